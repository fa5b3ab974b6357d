package parser

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// INGConverter handles ING Australia statement PDFs.
//
// A transaction is a date, the signed amount and the balance, followed by any
// number of description lines:
//
//	"31/01/2021", "", "-24.95", "", "284.86",
//	"Visa Purchase - Receipt 000000", "SOMETHING", "Date 29/01/21 Card 0000"
//
// Pages end with "Page n of m" or "Total ..." trailers.
type INGConverter struct {
	Location *time.Location
	Logger   *log.Logger
}

const (
	ingBSBLabel    = "BSB number: "
	ingVisaPrefix  = "Visa Purchase - "
	ingDebitPrefix = "-"

	// ingDescriptionOffset is where the description lines start within a row.
	ingDescriptionOffset = 5
	// The purchase date "dd/mm/yy" sits at a fixed distance from the end of a
	// card purchase description: "... Date 29/01/21 Card 0000".
	ingVisaDateStart = 19
	ingVisaDateEnd   = 10
)

var ingHeader = []string{"Date", "Details", "Money out $", "Money in $", "Balance $"}

var ingTrailers = []string{"Page ", "Total "}

func (c *INGConverter) Bank() models.BankType {
	return models.BankING
}

// Convert parses every file in order. Records from files before a failing file
// are returned alongside the error.
func (c *INGConverter) Convert(ctx context.Context, files []models.PDFFile) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return records, err
		}
		recs, err := c.convertOne(f)
		if err != nil {
			return records, err
		}
		records = append(records, recs...)
	}
	return records, nil
}

func (c *INGConverter) convertOne(f models.PDFFile) ([]models.TransactionRecord, error) {
	logger := loggerOrDefault(c.Logger).With("bank", models.BankING, "file", f.Name)
	loc := c.Location
	if loc == nil {
		loc = defaultLocation()
	}

	var account string
	if len(f.Pages) > 0 {
		account = ExtractINGAccountNumber(f.Pages[0])
	}
	if account == "" {
		logger.Warn("No BSB and account number on first page")
	}

	tokens := f.Flatten()
	rows := ExtractINGRows(tokens)
	records := make([]models.TransactionRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := parseINGRow(row, loc, logger)
		if err != nil {
			return nil, &FileError{File: f.Name, Tokens: tokens, Err: err}
		}
		rec.AccountNumber = account
		records = append(records, rec)
	}

	logger.Debug("Parsed statement", "tokens", len(tokens), "transactions", len(records))
	return records, nil
}

// ExtractINGAccountNumber reads "BSB number: 923 100" and the account line that
// follows it, returning "923100 12345678". It returns "" when the label is
// missing.
func ExtractINGAccountNumber(page []string) string {
	for i, tok := range page {
		if !strings.HasPrefix(tok, ingBSBLabel) {
			continue
		}
		bsb := strings.ReplaceAll(afterColon(tok), " ", "")
		acc := afterColon(tokenAt(page, i+1))
		return strings.TrimSpace(bsb + " " + acc)
	}
	return ""
}

func afterColon(s string) string {
	_, v, ok := strings.Cut(s, ": ")
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// ExtractINGRows returns one row per transaction. Each row keeps the fixed
// cells and the description lines, in that order.
func ExtractINGRows(tokens []string) [][]string {
	var rows [][]string
	state := stateSearching

	for i := 0; i < len(tokens); {
		if matchesHeader(tokens, i, ingHeader) {
			state = stateInTable
			i += headerSpan(ingHeader)
			continue
		}
		if state != stateInTable {
			i++
			continue
		}

		tok := tokens[i]
		switch {
		case strings.TrimSpace(tok) == "" || tok == models.PageBreak:
			i++
		case isRowDate(tok):
			end := i + ingDescriptionOffset
			for end < len(tokens) && !endsINGDescription(tokens, end) {
				end++
			}
			if end > len(tokens) {
				end = len(tokens)
			}
			rows = append(rows, append([]string(nil), tokens[i:end]...))
			i = end
		default:
			// Anything else ends the table on this page.
			state = stateSearching
			i++
		}
	}

	return rows
}

func endsINGDescription(tokens []string, i int) bool {
	tok := tokens[i]
	if tok == models.PageBreak || isRowDate(tok) || matchesHeader(tokens, i, ingHeader) {
		return true
	}
	for _, prefix := range ingTrailers {
		if strings.HasPrefix(tok, prefix) {
			return true
		}
	}
	return false
}

func parseINGRow(row []string, loc *time.Location, logger *log.Logger) (models.TransactionRecord, error) {
	if len(row) < ingDescriptionOffset {
		return models.TransactionRecord{}, rowError(ErrUnrecognizedRowShape, row)
	}

	settlement, err := ParseSlashDate(row[0], loc)
	if err != nil {
		return models.TransactionRecord{}, rowError(err, row)
	}

	amountTok := strings.TrimSpace(row[2])
	amount, err := ParseMoney(strings.TrimPrefix(amountTok, ingDebitPrefix))
	if err != nil {
		return models.TransactionRecord{}, rowError(err, row)
	}
	balance, err := ParseMoney(row[4])
	if err != nil {
		return models.TransactionRecord{}, rowError(err, row)
	}

	desc := strings.Join(nonBlank(row[ingDescriptionOffset:]), " ")
	rec := models.TransactionRecord{
		Bank:             models.BankING,
		DateOfPurchase:   settlement,
		DateOfSettlement: settlement,
		Description:      desc,
		RawDescription:   desc,
		Balance:          balance,
	}
	if strings.HasPrefix(amountTok, ingDebitPrefix) {
		rec.Debit = &amount
	} else {
		rec.Credit = &amount
	}

	if strings.HasPrefix(desc, ingVisaPrefix) {
		purchase, err := visaPurchaseDate(desc, loc)
		if err != nil {
			logger.Warn("Card purchase without a readable purchase date", "description", desc, "err", err)
		} else {
			rec.DateOfPurchase = purchase
		}
	}
	return rec, nil
}

func visaPurchaseDate(desc string, loc *time.Location) (time.Time, error) {
	// Offsets count characters; merchant names are not always ASCII.
	runes := []rune(desc)
	if len(runes) < ingVisaDateStart {
		return time.Time{}, ErrMalformedDate
	}
	return ParseSlashDate(string(runes[len(runes)-ingVisaDateStart:len(runes)-ingVisaDateEnd]), loc)
}
