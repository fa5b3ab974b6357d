package parser

import (
	"errors"
	"strings"

	"github.com/cloudflare/ahocorasick"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// ErrBankNotDetected is returned by AutoDetect when no marker matches.
var ErrBankNotDetected = errors.New("could not auto-detect bank from statement content; please specify the bank")

type bankMarker struct {
	pattern string
	bank    models.BankType
}

// Markers are upper case. Earlier entries win when several banks match, so the
// more specific ones come first.
var bankMarkers = []bankMarker{
	{"INGBAU2S", models.BankING},
	{"ING BANK (AUSTRALIA)", models.BankING},
	{"ING.COM.AU", models.BankING},
	{"COMMONWEALTH BANK", models.BankCommBank},
	{"COMMBANK.COM.AU", models.BankCommBank},
	{"NETBANK", models.BankCommBank},
	{"KIWIBANK", models.BankKiwibank},
	{"AUSTRALIA AND NEW ZEALAND BANKING", models.BankANZ},
	{"ANZ.COM", models.BankANZ},
}

var bankMatcher = newBankMatcher()

func newBankMatcher() *ahocorasick.Matcher {
	patterns := make([][]byte, len(bankMarkers))
	for i, m := range bankMarkers {
		patterns[i] = []byte(m.pattern)
	}
	return ahocorasick.NewMatcher(patterns)
}

// AutoDetect identifies the bank from the statement text. The first page is
// tried alone before falling back to the whole file.
func AutoDetect(f models.PDFFile) (models.BankType, error) {
	if len(f.Pages) > 0 {
		if bank, ok := detectBank(f.Pages[0]); ok {
			return bank, nil
		}
	}
	for _, page := range f.Pages {
		if bank, ok := detectBank(page); ok {
			return bank, nil
		}
	}
	return "", ErrBankNotDetected
}

func detectBank(tokens []string) (models.BankType, bool) {
	text := strings.ToUpper(strings.Join(tokens, "\n"))
	matches := bankMatcher.Match([]byte(text))
	if len(matches) == 0 {
		return "", false
	}
	best := matches[0]
	for _, idx := range matches[1:] {
		if idx < best {
			best = idx
		}
	}
	return bankMarkers[best].bank, true
}
