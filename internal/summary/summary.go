// Package summary totals converted transactions per account.
package summary

import (
	"errors"
	"fmt"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// ErrUnbalanced is returned by Reconcile when the transactions do not move the
// opening balance to the closing balance.
var ErrUnbalanced = errors.New("transactions do not reconcile with statement balances")

// Account totals the transactions of one account.
type Account struct {
	Bank          models.BankType
	AccountNumber string
	Transactions  int
	Debits        *money.Money
	Credits       *money.Money
	First         time.Time
	Last          time.Time
}

// Net is credits minus debits.
func (a Account) Net() *money.Money {
	net, err := a.Credits.Subtract(a.Debits)
	if err != nil {
		// Both sides are created in the account's currency.
		return money.New(0, a.Credits.Currency().Code)
	}
	return net
}

// Summary is the per-account breakdown of a batch, in first-seen order.
type Summary struct {
	Accounts     []Account
	Transactions int
}

// Currency returns the ISO-4217 code statements of bank are printed in.
func Currency(bank models.BankType) string {
	if c := money.GetCurrency(bank.Currency()); c != nil {
		return c.Code
	}
	return money.AUD
}

// Summarize groups records by bank and account number.
func Summarize(records []models.TransactionRecord) (*Summary, error) {
	s := &Summary{Transactions: len(records)}
	index := make(map[string]int)

	for _, r := range records {
		key := string(r.Bank) + "|" + r.AccountNumber
		i, ok := index[key]
		if !ok {
			code := Currency(r.Bank)
			s.Accounts = append(s.Accounts, Account{
				Bank:          r.Bank,
				AccountNumber: r.AccountNumber,
				Debits:        money.New(0, code),
				Credits:       money.New(0, code),
				First:         r.DateOfPurchase,
				Last:          r.DateOfPurchase,
			})
			i = len(s.Accounts) - 1
			index[key] = i
		}

		acc := &s.Accounts[i]
		acc.Transactions++
		if r.DateOfPurchase.Before(acc.First) {
			acc.First = r.DateOfPurchase
		}
		if r.DateOfPurchase.After(acc.Last) {
			acc.Last = r.DateOfPurchase
		}

		var err error
		switch {
		case r.Debit != nil:
			acc.Debits, err = acc.Debits.Add(toMoney(r.Debit.Amount.Abs(), acc.Debits.Currency().Code))
		case r.Credit != nil:
			acc.Credits, err = acc.Credits.Add(toMoney(r.Credit.Amount, acc.Credits.Currency().Code))
		}
		if err != nil {
			return nil, fmt.Errorf("totalling %s: %w", r.AccountNumber, err)
		}
	}

	return s, nil
}

// Reconcile checks that opening balance plus credits minus debits equals the
// closing balance. CR balances count as positive and DR balances as negative.
func Reconcile(stmt *models.Statement) error {
	running := stmt.OpeningBalance.Signed()
	for _, t := range stmt.Transactions {
		switch {
		case t.Debit != nil:
			running = running.Sub(t.Debit.Amount.Abs())
		case t.Credit != nil:
			running = running.Add(t.Credit.Amount)
		}
	}
	if want := stmt.ClosingBalance.Signed(); !running.Equal(want) {
		return fmt.Errorf("%w: expected closing %s, computed %s", ErrUnbalanced, want.StringFixed(2), running.StringFixed(2))
	}
	return nil
}

func toMoney(d decimal.Decimal, code string) *money.Money {
	return money.New(d.Shift(2).Round(0).IntPart(), code)
}
