// Package ai checks PIX payment receipts with a vision-capable chat model.
package ai

import (
	"context"
	"time"

	"github.com/jogofacil/field-booking/internal/model"
)

// ReceiptInput is one receipt image plus what it should prove.
type ReceiptInput struct {
	Image            []byte
	MimeType         string
	ExpectedAmount   float64
	ExpectedReceiver string
	Today            time.Time
}

// Verifier inspects a receipt image.  Implementations never fail the caller
// on upstream errors: they return an invalid result with a reason instead.
type Verifier interface {
	VerifyPixReceipt(ctx context.Context, in ReceiptInput) (model.VerificationResult, error)
}

// TechnicalErrorReason is reported when the model could not be reached or
// answered with something unreadable.
const TechnicalErrorReason = "Erro técnico na verificação da IA. Tente novamente ou contate o suporte."

func technicalError() model.VerificationResult {
	return model.VerificationResult{IsValid: false, Reason: TechnicalErrorReason}
}

// New picks the OpenAI-compatible verifier when a key is configured and the
// mock otherwise.
func New(endpoint, key, model string) Verifier {
	if key == "" {
		return NewMock()
	}
	return NewOpenAI(endpoint, key, model)
}
