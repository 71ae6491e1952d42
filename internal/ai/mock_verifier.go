package ai

import (
	"context"

	"github.com/jogofacil/field-booking/internal/model"
)

// UnavailableReason is returned by the mock verifier.
const UnavailableReason = "Verificação automática indisponível. O dono do campo irá conferir o comprovante manualmente."

type mockVerifier struct{}

// NewMock returns a Verifier that never approves a receipt, leaving the
// decision to the field owner.
func NewMock() Verifier { return &mockVerifier{} }

func (m *mockVerifier) VerifyPixReceipt(_ context.Context, _ ReceiptInput) (model.VerificationResult, error) {
	return model.VerificationResult{IsValid: false, Reason: UnavailableReason}, nil
}
