package types

import (
	"github.com/shopspring/decimal"
)

// Paise is an amount in the smallest INR unit.
type Paise int64

// Rupees renders the amount with two decimal places, e.g. 12345 -> "123.45".
func (p Paise) Rupees() string {
	return decimal.New(int64(p), -2).StringFixed(2)
}

// Decimal returns the amount in rupees.
func (p Paise) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

// PaiseFromRupees converts a rupee string such as "49.5" to paise. Fractions
// below one paisa are rejected.
func PaiseFromRupees(value string) (Paise, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrSubPaisa
	}
	return Paise(scaled.IntPart()), nil
}

// Money is the JSON view of an amount.
type Money struct {
	Paise  int64  `json:"paise"`
	Rupees string `json:"rupees"`
}

func NewMoney(p Paise) Money {
	return Money{Paise: int64(p), Rupees: p.Rupees()}
}
