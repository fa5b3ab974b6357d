package parser

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
)

// tableState is the row extractor's position relative to the transaction
// table.
type tableState int

const (
	stateSearching tableState = iota
	stateInTable
)

func (s tableState) String() string {
	if s == stateInTable {
		return "in-table"
	}
	return "searching"
}

// rowDate matches the leading dd/mm/yyyy of an ING transaction row.
var rowDate = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}`)

// dayMonth matches the "dd Mon" half of a boundary label that wrapped before
// the year.
var dayMonth = regexp.MustCompile(`^\d{1,2} [A-Za-z]{3}$`)

// tokenAt returns tokens[i] or "" when i is out of range.
func tokenAt(tokens []string, i int) string {
	if i < 0 || i >= len(tokens) {
		return ""
	}
	return tokens[i]
}

// matchesHeader reports whether the column labels start at tokens[i], each
// separated by one blank item.
func matchesHeader(tokens []string, i int, header []string) bool {
	if i+headerSpan(header) > len(tokens) {
		return false
	}
	for k, label := range header {
		if tokens[i+2*k] != label {
			return false
		}
	}
	return true
}

// headerSpan is the number of tokens a header occupies, blanks included.
func headerSpan(header []string) int {
	return 2*len(header) - 1
}

// nonBlank drops empty and whitespace-only tokens.
func nonBlank(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t) != "" {
			out = append(out, t)
		}
	}
	return out
}

func isDayMonth(tok string) bool {
	return dayMonth.MatchString(strings.TrimSpace(tok))
}

func isRowDate(tok string) bool {
	return rowDate.MatchString(strings.TrimSpace(tok))
}

func loggerOrDefault(l *log.Logger) *log.Logger {
	if l == nil {
		return log.Default()
	}
	return l
}
