package model

import "time"

// VerificationResult is the outcome of checking a PIX receipt image.
type VerificationResult struct {
	IsValid     bool       `json:"isValid"`
	AmountFound *float64   `json:"amountFound"`
	DateFound   *string    `json:"dateFound"`
	Reason      string     `json:"reason"`
	CheckedAt   *time.Time `json:"checkedAt,omitempty"`
}
