package models

import "github.com/shopspring/decimal"

// Sign is the CR/DR suffix printed next to an amount.
type Sign string

const (
	SignNone Sign = ""
	SignCR   Sign = "CR"
	SignDR   Sign = "DR"
)

// Money is an unsigned magnitude plus the suffix it was printed with.
type Money struct {
	Amount decimal.Decimal `json:"amount"`
	Sign   Sign            `json:"sign,omitempty"`
}

// NewMoney builds a Money from a decimal string. It panics on malformed
// input and is meant for literals.
func NewMoney(amount string, sign Sign) Money {
	return Money{Amount: decimal.RequireFromString(amount), Sign: sign}
}

// Equal compares amounts only; the sign is presentation.
func (m Money) Equal(o Money) bool {
	return m.Amount.Equal(o.Amount)
}

// Cmp orders by amount only.
func (m Money) Cmp(o Money) int {
	return m.Amount.Cmp(o.Amount)
}

// Signed returns the amount negated when the money was printed as DR.
func (m Money) Signed() decimal.Decimal {
	if m.Sign == SignDR {
		return m.Amount.Neg()
	}
	return m.Amount
}

func (m Money) String() string {
	s := m.Amount.StringFixed(2)
	if m.Sign != SignNone {
		s += " " + string(m.Sign)
	}
	return s
}
