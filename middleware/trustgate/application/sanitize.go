package application

import (
	"trust-gate/middleware/trustgate/domain"
)

// MaxDepth limita a recursão do Sanitizer. Payloads mais fundos (ou cíclicos)
// falham com domain.ErrTooDeep em vez de não terminar.
const MaxDepth = 64

// Sanitizer aplica o Cleaner em toda folha de texto e só nelas.
// Formato, ordem, chaves e folhas não-texto passam intactos.
type Sanitizer struct {
	Cleaner domain.TextCleaner
}

func (s Sanitizer) Sanitize(v domain.Value) (domain.Value, error) {
	return s.walk(v, 0)
}

func (s Sanitizer) walk(v domain.Value, depth int) (domain.Value, error) {
	if depth > MaxDepth {
		return domain.Value{}, domain.ErrTooDeep
	}
	switch v.Kind() {
	case domain.KindText:
		text, _ := v.AsText()
		if s.Cleaner == nil {
			return v, nil
		}
		return domain.Text(s.Cleaner.Clean(text)), nil
	case domain.KindSequence:
		items := v.Items()
		out := make([]domain.Value, len(items))
		for i, item := range items {
			clean, err := s.walk(item, depth+1)
			if err != nil {
				return domain.Value{}, err
			}
			out[i] = clean
		}
		return domain.Sequence(out...), nil
	case domain.KindMapping:
		out := domain.NewMapping()
		var err error
		v.AsMapping().Range(func(k string, item domain.Value) bool {
			var clean domain.Value
			clean, err = s.walk(item, depth+1)
			if err != nil {
				return false
			}
			out.Set(k, clean)
			return true
		})
		if err != nil {
			return domain.Value{}, err
		}
		return domain.MappingValue(out), nil
	default:
		// número, booleano, nulo
		return v, nil
	}
}
