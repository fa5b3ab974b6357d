package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// moneyLiteral is the numeric part once symbols and the CR/DR suffix are gone.
var moneyLiteral = regexp.MustCompile(`^-?\d+(\.\d+)?$`)

var currencySymbols = []string{"$", "£", "€"}

// ParseMoney decodes strings like "$1,234.56 DR", "Nil", "$0.00" or "-24.95".
func ParseMoney(s string) (models.Money, error) {
	clean := strings.TrimSpace(s)
	for _, sym := range currencySymbols {
		clean = strings.ReplaceAll(clean, sym, "")
	}
	clean = strings.ReplaceAll(clean, "\u00A0", " ")
	clean = strings.TrimSpace(clean)

	if strings.HasSuffix(clean, "Nil") {
		return models.Money{Amount: decimal.Zero}, nil
	}

	sign := models.SignNone
	switch {
	case strings.HasSuffix(clean, string(models.SignDR)):
		sign = models.SignDR
	case strings.HasSuffix(clean, string(models.SignCR)):
		sign = models.SignCR
	}
	if sign != models.SignNone {
		clean = strings.TrimSpace(strings.TrimSuffix(clean, string(sign)))
	}

	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if !moneyLiteral.MatchString(clean) {
		return models.Money{}, fmt.Errorf("%w: %q", ErrMalformedMoney, s)
	}

	amount, err := decimal.NewFromString(clean)
	if err != nil {
		return models.Money{}, fmt.Errorf("%w: %q: %v", ErrMalformedMoney, s, err)
	}
	return models.Money{Amount: amount, Sign: sign}, nil
}

// isMoneyLiteral reports whether s decodes as money. "Nil" does not count:
// it only ever appears as a balance.
func isMoneyLiteral(s string) bool {
	if strings.TrimSpace(s) == "" || strings.HasSuffix(s, "Nil") {
		return false
	}
	_, err := ParseMoney(s)
	return err == nil
}
