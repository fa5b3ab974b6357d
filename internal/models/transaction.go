package models

import "time"

// TransactionRecord represents a single decoded statement transaction.
type TransactionRecord struct {
	Bank          BankType `json:"bank"`
	AccountNumber string   `json:"accountNumber"`
	// DateOfPurchase is always the economic event date.
	DateOfPurchase time.Time `json:"dateOfPurchase"`
	// DateOfSettlement is the date printed on the statement row. It differs
	// from DateOfPurchase only for card payments that carry their own date.
	DateOfSettlement time.Time `json:"dateOfSettlement"`
	Description      string    `json:"description"`
	// RawDescription keeps any embedded secondary-date text.
	RawDescription string `json:"rawDescription,omitempty"`
	Debit          *Money `json:"debit,omitempty"`
	Credit         *Money `json:"credit,omitempty"`
	Balance        Money  `json:"balance"`
}

// IsDebit reports whether the record moved money out of the account.
func (r TransactionRecord) IsDebit() bool {
	return r.Debit != nil
}

// Amount returns whichever of Debit or Credit is set.
func (r TransactionRecord) Amount() Money {
	if r.Debit != nil {
		return *r.Debit
	}
	if r.Credit != nil {
		return *r.Credit
	}
	return Money{}
}

// Statement is one parsed statement file. Boundary rows are never part of
// Transactions.
type Statement struct {
	OpeningDate    time.Time
	ClosingDate    time.Time
	OpeningBalance Money
	ClosingBalance Money
	Transactions   []TransactionRecord
}

// BankType identifies a statement layout.
type BankType string

const (
	BankCommBank BankType = "cba_au"
	BankING      BankType = "ing_au"
	BankANZ      BankType = "anz_au"
	BankKiwibank BankType = "kiwi_nz"
)

// Label returns the human-readable bank name.
func (b BankType) Label() string {
	switch b {
	case BankCommBank:
		return "Commonwealth Bank of Australia"
	case BankING:
		return "ING Australia"
	case BankANZ:
		return "ANZ Australia"
	case BankKiwibank:
		return "KiwiBank New Zealand"
	default:
		return string(b)
	}
}

// SwiftCode returns the bank's BIC in its 11 character form.
func (b BankType) SwiftCode() string {
	switch b {
	case BankCommBank:
		return "CTBAAU2SXXX"
	case BankING:
		return "INGBAU2SXXX"
	case BankANZ:
		return "ANZBAU3MXXX"
	case BankKiwibank:
		return "KIWINZ22XXX"
	default:
		return ""
	}
}

// Currency returns the ISO 4217 code the bank's statements are printed in.
func (b BankType) Currency() string {
	if b == BankKiwibank {
		return "NZD"
	}
	return "AUD"
}

// AllBanks lists every known bank in display order.
func AllBanks() []BankType {
	return []BankType{BankCommBank, BankING, BankANZ, BankKiwibank}
}

// ParseBankType resolves a bank name or common alias.
func ParseBankType(s string) (BankType, bool) {
	switch s {
	case "cba_au", "cba", "commbank", "commonwealth":
		return BankCommBank, true
	case "ing_au", "ing":
		return BankING, true
	case "anz_au", "anz":
		return BankANZ, true
	case "kiwi_nz", "kiwibank", "kiwi":
		return BankKiwibank, true
	}
	return "", false
}
