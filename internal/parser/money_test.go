package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightdelivered/statement-converter/internal/models"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		amount  string
		sign    models.Sign
		wantErr bool
	}{
		{name: "debit with thousands", input: "$1,234.56 DR", amount: "1234.56", sign: models.SignDR},
		{name: "credit", input: "$500.00 CR", amount: "500", sign: models.SignCR},
		{name: "nil balance", input: "Nil", amount: "0", sign: models.SignNone},
		{name: "currency nil", input: "$ Nil", amount: "0", sign: models.SignNone},
		{name: "zero balance", input: "$0.00", amount: "0", sign: models.SignNone},
		{name: "whole dollars", input: "$12", amount: "12", sign: models.SignNone},
		{name: "negative literal", input: "-24.95", amount: "-24.95", sign: models.SignNone},
		{name: "non-breaking space", input: "$1\u00a0234.56\u00a0CR", amount: "1234.56", sign: models.SignCR},
		{name: "pound symbol", input: "£3.10", amount: "3.10", sign: models.SignNone},
		{name: "empty", input: "", wantErr: true},
		{name: "word", input: "Balance", wantErr: true},
		{name: "two decimal points", input: "$1.2.3 CR", wantErr: true},
		{name: "suffix only", input: "CR", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoney(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedMoney)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.amount).Equal(got.Amount),
				"amount: got %s, want %s", got.Amount, tt.amount)
			assert.Equal(t, tt.sign, got.Sign)
		})
	}
}

func TestIsMoneyLiteral(t *testing.T) {
	assert.True(t, isMoneyLiteral("$4.50"))
	assert.True(t, isMoneyLiteral("$495.50 CR"))
	assert.False(t, isMoneyLiteral(""))
	assert.False(t, isMoneyLiteral("Nil"))
	assert.False(t, isMoneyLiteral("$"))
	assert.False(t, isMoneyLiteral("Coffee Shop"))
}
