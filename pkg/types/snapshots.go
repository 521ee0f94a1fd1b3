package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrSubPaisa = errors.New("amount has sub-paisa precision")

// ContactSnapshot is the buyer or farmer contact copied onto an order at
// creation. Later profile edits do not change it.
type ContactSnapshot struct {
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

func (c ContactSnapshot) Value() (driver.Value, error) {
	return marshalJSONColumn(c)
}

func (c *ContactSnapshot) Scan(value interface{}) error {
	return scanJSONColumn(value, c)
}

// PaymentProof is the evidence a buyer submits for a manual UPI transfer.
type PaymentProof struct {
	ScreenshotURL string    `json:"screenshot_url"`
	TransactionID string    `json:"transaction_id"`
	Notes         string    `json:"notes,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (p PaymentProof) Value() (driver.Value, error) {
	return marshalJSONColumn(p)
}

func (p *PaymentProof) Scan(value interface{}) error {
	return scanJSONColumn(value, p)
}

// PaymentVerification records the farmer's decision on a manual payment.
type PaymentVerification struct {
	VerifiedBy      uuid.UUID `json:"verified_by"`
	VerifiedAt      time.Time `json:"verified_at"`
	RejectionReason string    `json:"rejection_reason,omitempty"`
}

func (v PaymentVerification) Value() (driver.Value, error) {
	return marshalJSONColumn(v)
}

func (v *PaymentVerification) Scan(value interface{}) error {
	return scanJSONColumn(value, v)
}

func marshalJSONColumn(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanJSONColumn(value interface{}, dest any) error {
	if value == nil {
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
