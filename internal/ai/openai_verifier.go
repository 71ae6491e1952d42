package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jogofacil/field-booking/internal/model"
)

type openAI struct {
	endpoint string
	key      string
	model    string
	httpc    *http.Client
}

// NewOpenAI returns a Verifier backed by an OpenAI-compatible
// /v1/chat/completions endpoint.
func NewOpenAI(endpoint, key, model string) Verifier {
	return &openAI{
		endpoint: strings.TrimRight(endpoint, "/"),
		key:      key,
		model:    model,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAI) VerifyPixReceipt(ctx context.Context, in ReceiptInput) (model.VerificationResult, error) {
	res, err := c.verify(ctx, in)
	if err != nil {
		log.Error().Err(err).Msg("receipt verification failed")
		return technicalError(), nil
	}
	return res, nil
}

func (c *openAI) verify(ctx context.Context, in ReceiptInput) (model.VerificationResult, error) {
	mime := in.MimeType
	if mime == "" {
		mime = "image/jpeg"
	}
	dataURI := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(in.Image)

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Você é um assistente financeiro anti-fraude. Responda somente JSON válido."},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: renderPrompt(in)},
				{Type: "image_url", ImageURL: &imageURL{URL: dataURI}},
			}},
		},
		Temperature:    0.1,
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return model.VerificationResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return model.VerificationResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return model.VerificationResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return model.VerificationResult{}, fmt.Errorf("chat completion: status %d", resp.StatusCode)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.VerificationResult{}, err
	}
	if len(out.Choices) == 0 {
		return model.VerificationResult{}, fmt.Errorf("no choices")
	}
	return parseResult(out.Choices[0].Message.Content)
}

// parseResult decodes the model's JSON answer, tolerating a ```json fence.
func parseResult(raw string) (model.VerificationResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var r model.VerificationResult
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &r); err != nil {
		return model.VerificationResult{}, fmt.Errorf("parse verification: %w", err)
	}
	if r.Reason == "" {
		return model.VerificationResult{}, fmt.Errorf("verification without reason")
	}
	return r, nil
}

func renderPrompt(in ReceiptInput) string {
	today := in.Today.Format("2006-01-02")
	return fmt.Sprintf(`Analise esta imagem de comprovante PIX.

Dados esperados:
- Valor: R$ %.2f
- Destinatário (nome parcial ou chave): "%s"
- Data de hoje: %s

Verifique se:
1. É um comprovante bancário legítimo (não é meme, foto aleatória, etc).
2. O valor corresponde ao esperado (ou muito próximo).
3. A data é recente (hoje ou ontem).

Responda estritamente em JSON no formato:
{"isValid": true|false, "amountFound": número|null, "dateFound": "YYYY-MM-DD"|null, "reason": "explicação curta em português"}`,
		in.ExpectedAmount, in.ExpectedReceiver, today)
}
