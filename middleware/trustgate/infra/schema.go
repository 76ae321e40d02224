package infra

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"trust-gate/middleware/trustgate/domain"
)

// FieldRule é uma restrição declarativa sobre um campo do payload.
type FieldRule struct {
	Name      string   `yaml:"name"`
	Kind      string   `yaml:"kind"` // text (padrão), number, bool, sequence, mapping
	Required  bool     `yaml:"required"`
	MinLength int      `yaml:"minLength"`
	MaxLength int      `yaml:"maxLength"`
	Pattern   string   `yaml:"pattern"`
	Min       *float64 `yaml:"min"`
	Max       *float64 `yaml:"max"`
	// Message substitui a mensagem padrão de qualquer violação do campo.
	Message string `yaml:"message"`

	re *regexp.Regexp
}

// Schema valida um payload-objeto. Chaves desconhecidas são descartadas do
// resultado, a não ser que AllowUnknown esteja ligado.
type Schema struct {
	Fields       []FieldRule `yaml:"fields"`
	AllowUnknown bool        `yaml:"allowUnknown"`
}

// NewSchema compila os padrões e confere os tipos declarados.
func NewSchema(fields ...FieldRule) (*Schema, error) {
	s := &Schema{Fields: fields}
	if err := s.Compile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) Compile() error {
	for i := range s.Fields {
		f := &s.Fields[i]
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("field %d: name is required", i)
		}
		if _, ok := kindByName(f.Kind); !ok {
			return fmt.Errorf("field %q: unknown kind %q", f.Name, f.Kind)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
			f.re = re
		}
	}
	return nil
}

func kindByName(name string) (domain.Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "text", "string":
		return domain.KindText, true
	case "number":
		return domain.KindNumber, true
	case "bool", "boolean":
		return domain.KindBool, true
	case "sequence", "array":
		return domain.KindSequence, true
	case "mapping", "object":
		return domain.KindMapping, true
	}
	return domain.KindNull, false
}

// Validate implementa domain.Validator.
func (s *Schema) Validate(v domain.Value) (domain.Value, error) {
	in := v.AsMapping()
	if in == nil {
		return domain.Value{}, &domain.ValidationError{
			Violations: []domain.FieldViolation{{Message: "expected an object"}},
		}
	}

	var violations []domain.FieldViolation
	known := make(map[string]bool, len(s.Fields))
	for i := range s.Fields {
		f := &s.Fields[i]
		known[f.Name] = true
		val, ok := in.Get(f.Name)
		if msg := f.check(val, ok); msg != "" {
			if f.Message != "" {
				msg = f.Message
			}
			violations = append(violations, domain.FieldViolation{Field: f.Name, Message: msg})
		}
	}
	if len(violations) > 0 {
		return domain.Value{}, &domain.ValidationError{Violations: violations}
	}

	out := domain.NewMapping()
	in.Range(func(k string, item domain.Value) bool {
		if s.AllowUnknown || known[k] {
			out.Set(k, item)
		}
		return true
	})
	return domain.MappingValue(out), nil
}

// check devolve a mensagem da primeira violação do campo, ou "".
func (f *FieldRule) check(v domain.Value, present bool) string {
	if !present || v.IsNull() {
		if f.Required {
			return "is required"
		}
		return ""
	}

	want, _ := kindByName(f.Kind)
	if v.Kind() != want {
		return "must be a " + want.String()
	}

	switch want {
	case domain.KindText:
		text, _ := v.AsText()
		if f.Required && strings.TrimSpace(text) == "" {
			return "is required"
		}
		if msg := f.checkLength(utf8.RuneCountInString(text), "characters"); msg != "" {
			return msg
		}
		re := f.re
		if re == nil && f.Pattern != "" {
			var err error
			if re, err = regexp.Compile(f.Pattern); err != nil {
				return "has an invalid pattern"
			}
		}
		if re != nil && !re.MatchString(text) {
			return "has an invalid format"
		}
	case domain.KindSequence:
		if msg := f.checkLength(len(v.Items()), "items"); msg != "" {
			return msg
		}
	case domain.KindNumber:
		n, _ := v.AsNumber()
		if f.Min != nil && n < *f.Min {
			return "must be at least " + formatNumber(*f.Min)
		}
		if f.Max != nil && n > *f.Max {
			return "must be at most " + formatNumber(*f.Max)
		}
	}
	return ""
}

func (f *FieldRule) checkLength(n int, unit string) string {
	if f.MinLength > 0 && n < f.MinLength {
		return "must have at least " + strconv.Itoa(f.MinLength) + " " + unit
	}
	if f.MaxLength > 0 && n > f.MaxLength {
		return "must have at most " + strconv.Itoa(f.MaxLength) + " " + unit
	}
	return ""
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
