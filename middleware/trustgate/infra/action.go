package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"trust-gate/middleware/trustgate/domain"
)

// UpstreamAction entrega payloads já sanitizados e validados ao backend,
// como JSON em POST <BaseURL>/forms/<form>.
type UpstreamAction struct {
	BaseURL string
	Client  *http.Client
	// Header extra copiado em toda requisição (ex: credencial de serviço).
	Header http.Header
}

// For devolve a ação de submissão do formulário `form`.
func (a UpstreamAction) For(form string) domain.Action {
	endpoint := strings.TrimRight(a.BaseURL, "/") + "/forms/" + url.PathEscape(form)
	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return func(ctx context.Context, payload domain.Value) error {
		body, err := payload.MarshalJSON()
		if err != nil {
			return err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return err
		}
		for k, vs := range a.Header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return &domain.ActionError{Message: "upstream unavailable", Err: err}
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		return &domain.ActionError{
			Message: upstreamMessage(resp),
			Err:     fmt.Errorf("upstream status %d", resp.StatusCode),
		}
	}
}

// upstreamMessage tenta extrair {"message": "..."} do corpo; senão usa o status.
func upstreamMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return http.StatusText(resp.StatusCode)
}
