package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func chatServer(t *testing.T, status int, content string, seen *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("authorization = %q", got)
		}
		if seen != nil {
			var raw struct {
				Model          string            `json:"model"`
				Temperature    float64           `json:"temperature"`
				ResponseFormat map[string]string `json:"response_format"`
			}
			_ = json.NewDecoder(r.Body).Decode(&raw)
			seen.Model, seen.Temperature, seen.ResponseFormat = raw.Model, raw.Temperature, raw.ResponseFormat
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{"message": map[string]any{"content": content}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func input() ReceiptInput {
	return ReceiptInput{
		Image:            []byte{0xff, 0xd8, 0xff},
		MimeType:         "image/jpeg",
		ExpectedAmount:   150,
		ExpectedReceiver: "Arena",
		Today:            time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestOpenAIVerifierValid(t *testing.T) {
	var seen chatRequest
	srv := chatServer(t, http.StatusOK, `{"isValid":true,"amountFound":150,"dateFound":"2026-05-01","reason":"ok"}`, &seen)

	res, err := NewOpenAI(srv.URL+"/", "secret", "gpt-4o-mini").VerifyPixReceipt(context.Background(), input())
	if err != nil {
		t.Fatalf("VerifyPixReceipt: %v", err)
	}
	if !res.IsValid || res.AmountFound == nil || *res.AmountFound != 150 || res.DateFound == nil || *res.DateFound != "2026-05-01" {
		t.Fatalf("unexpected result %+v", res)
	}
	if seen.Model != "gpt-4o-mini" || seen.Temperature != 0.1 || seen.ResponseFormat["type"] != "json_object" {
		t.Fatalf("unexpected request %+v", seen)
	}
}

func TestOpenAIVerifierFallbacks(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		content string
	}{
		{"upstream error", http.StatusInternalServerError, `{}`},
		{"not json", http.StatusOK, "looks fine to me"},
		{"missing reason", http.StatusOK, `{"isValid":true}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := chatServer(t, tc.status, tc.content, nil)
			res, err := NewOpenAI(srv.URL, "secret", "m").VerifyPixReceipt(context.Background(), input())
			if err != nil {
				t.Fatalf("VerifyPixReceipt: %v", err)
			}
			if res.IsValid || res.Reason != TechnicalErrorReason {
				t.Fatalf("unexpected result %+v", res)
			}
		})
	}
}

func TestParseResultStripsFence(t *testing.T) {
	res, err := parseResult("```json\n{\"isValid\":false,\"amountFound\":null,\"dateFound\":null,\"reason\":\"valor diferente\"}\n```")
	if err != nil {
		t.Fatalf("parseResult: %v", err)
	}
	if res.IsValid || res.Reason != "valor diferente" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestNewWithoutKeyUsesMock(t *testing.T) {
	res, err := New("http://unused", "", "m").VerifyPixReceipt(context.Background(), input())
	if err != nil {
		t.Fatalf("VerifyPixReceipt: %v", err)
	}
	if res.IsValid || !strings.Contains(res.Reason, "indisponível") {
		t.Fatalf("unexpected result %+v", res)
	}
}
