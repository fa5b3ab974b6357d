package parser

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// CommBankConverter handles Commonwealth Bank of Australia statement PDFs.
//
// The text layer interleaves a blank item between the table columns:
//
//	Date | | Transaction | | Debit | | Credit | | Balance
//
// Transaction rows only print day and month ("05 Aug Coffee Shop"); the year
// comes from the opening balance row and rolls over with the months.
type CommBankConverter struct {
	Location *time.Location
	Logger   *log.Logger
	// OnStatement, when set, sees every parsed statement during Convert.
	OnStatement StatementHook
}

const (
	cbaAccountNumberLabel = "Account Number"
	cbaClosingBalance     = "CLOSING BALANCE"
	cbaCurrencySymbol     = "$"
	cbaZeroBalance        = "$0.00"

	// cbaClosingWindow is the closing row label plus the four cells after it.
	cbaClosingWindow = 5
	// cbaMoneyColumns is the number of trailing cells holding debit, credit
	// and balance when the currency symbol is printed on its own.
	cbaMoneyColumns = 5
	// cbaFusedColumns is the same when the symbol is part of the amount.
	cbaFusedColumns = 3
	// Descriptions may legitimately end in "CR" or "DR".
	cbaMinRowLength = 3
)

var cbaHeader = []string{"Date", "Transaction", "Debit", "Credit", "Balance"}

func (c *CommBankConverter) Bank() models.BankType {
	return models.BankCommBank
}

// Convert parses every file in order. The first failure aborts the batch and
// no records are returned.
func (c *CommBankConverter) Convert(ctx context.Context, files []models.PDFFile) ([]models.TransactionRecord, error) {
	var records []models.TransactionRecord
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		stmt, err := c.Statement(f)
		if err != nil {
			return nil, err
		}
		if c.OnStatement != nil {
			c.OnStatement(f.Name, stmt)
		}
		records = append(records, stmt.Transactions...)
	}
	return records, nil
}

// Statement parses a single file, stamping the account number on every
// transaction.
func (c *CommBankConverter) Statement(f models.PDFFile) (*models.Statement, error) {
	tokens := f.Flatten()
	logger := loggerOrDefault(c.Logger).With("bank", models.BankCommBank, "file", f.Name)

	account, err := ExtractCommBankAccountNumber(tokens)
	if err != nil {
		return nil, &FileError{File: f.Name, Tokens: tokens, Err: err}
	}

	stmt, err := ParseCommBankStatement(tokens, c.Location)
	if err != nil {
		return nil, &FileError{File: f.Name, Tokens: tokens, Err: err}
	}
	for i := range stmt.Transactions {
		stmt.Transactions[i].AccountNumber = account
	}

	logger.Debug("Parsed statement",
		"tokens", len(tokens),
		"transactions", len(stmt.Transactions),
		"opening", stmt.OpeningBalance,
		"closing", stmt.ClosingBalance)
	return stmt, nil
}

// ExtractCommBankAccountNumber returns the value printed after the
// "Account Number" label. A blank item sits between the two.
func ExtractCommBankAccountNumber(tokens []string) (string, error) {
	for i, tok := range tokens {
		if tok != cbaAccountNumberLabel {
			continue
		}
		if v := strings.TrimSpace(tokenAt(tokens, i+2)); v != "" && v != models.PageBreak {
			return v, nil
		}
	}
	return "", ErrAccountNumberNotFound
}

// ExtractCommBankRows groups the transaction table into rows. The first row is
// the opening balance and, when closed is true, the last row is the closing
// balance.
func ExtractCommBankRows(tokens []string) (rows [][]string, closed bool) {
	var buf []string
	state := stateSearching

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		if matchesHeader(tokens, i, cbaHeader) {
			state = stateInTable
			i += headerSpan(cbaHeader) - 1
			continue
		}

		if state != stateInTable {
			continue
		}

		// Every page re-prints the header before rows resume.
		if tok == models.PageBreak {
			state = stateSearching
			continue
		}

		if strings.Contains(tok, cbaClosingBalance) {
			if held := nonBlank(buf); len(held) == 1 && isDayMonth(held[0]) {
				return append(rows, wrappedClosingRow(tokens, i, held[0])), true
			}
			if len(buf) > 0 {
				rows = append(rows, buf)
			}
			return append(rows, cellWindow(tokens, i, cbaClosingWindow)), true
		}

		if len(buf) == 0 && tok == "" {
			continue
		}

		buf = append(buf, tok)
		if len(buf) >= cbaMinRowLength && isCommBankTerminal(tok) {
			rows = append(rows, buf)
			buf = nil
		}
	}

	return rows, false
}

// cellWindow copies n tokens from i, blanking page breaks.
func cellWindow(tokens []string, i, n int) []string {
	cells := make([]string, 0, n)
	for j := 0; j < n; j++ {
		cell := tokenAt(tokens, i+j)
		if cell == models.PageBreak {
			cell = ""
		}
		cells = append(cells, cell)
	}
	return cells
}

// wrappedClosingRow rebuilds a closing row whose "dd Mon" was printed above
// the "yyyy CLOSING BALANCE" label, in the 5 or 7 cell layout that
// NormalizeOpeningRow folds.
func wrappedClosingRow(tokens []string, i int, prefix string) []string {
	row := append([]string{prefix, ""}, cellWindow(tokens, i, 3)...)
	if !isCommBankTerminal(row[len(row)-1]) {
		row = append(row, cellWindow(tokens, i+3, 2)...)
	}
	return row
}

// isCommBankTerminal reports whether tok is a balance cell. New accounts open
// with "Nil" and an emptied account prints "$0.00" without a suffix.
func isCommBankTerminal(tok string) bool {
	return strings.HasSuffix(tok, string(models.SignCR)) ||
		strings.HasSuffix(tok, string(models.SignDR)) ||
		strings.HasSuffix(tok, "Nil") ||
		tok == cbaZeroBalance
}

// NormalizeOpeningRow folds the wrapped opening balance layouts into
// [label, "", balance]. Closing rows wrap the same way.
//
//	["01 Aug 2016 OPENING BALANCE", "", "$1234.00 CR"]
//	["01 Jul", "", "2016 OPENING BALANCE", "", "$1234.00 CR"]
//	["01 Jul", "", "2017 OPENING BALANCE", "", "$1234.00", "", "CR"]
func NormalizeOpeningRow(row []string) ([]string, error) {
	switch len(row) {
	case 3:
		return []string{row[0], "", row[2]}, nil
	case 5:
		return []string{row[0] + " " + row[2], "", row[4]}, nil
	case 7:
		return []string{row[0] + " " + row[2], "", row[4] + " " + row[6]}, nil
	}
	return nil, rowError(ErrUnrecognizedOpeningRowFormat, row)
}

// ParseCommBankStatement decodes a flattened token stream. Account numbers are
// not required here; Statement stamps them.
func ParseCommBankStatement(tokens []string, loc *time.Location) (*models.Statement, error) {
	if loc == nil {
		loc = defaultLocation()
	}

	rows, closed := ExtractCommBankRows(tokens)
	if !closed || len(rows) < 2 {
		return nil, ErrMissingTableBoundaries
	}

	opening, err := NormalizeOpeningRow(rows[0])
	if err != nil {
		return nil, err
	}
	closing := rows[len(rows)-1]
	if isDayMonth(tokenAt(closing, 0)) {
		if closing, err = NormalizeOpeningRow(closing); err != nil {
			return nil, err
		}
	}

	openingDate, err := boundaryDate(opening, loc)
	if err != nil {
		return nil, err
	}
	closingDate, err := boundaryDate(closing, loc)
	if err != nil {
		return nil, err
	}
	openingBalance, err := boundaryBalance(opening)
	if err != nil {
		return nil, err
	}
	closingBalance, err := boundaryBalance(closing)
	if err != nil {
		return nil, err
	}

	clock := YearClock{Year: openingDate.Year(), Month: openingDate.Month()}
	transactions := make([]models.TransactionRecord, 0, len(rows)-2)
	for _, row := range rows[1 : len(rows)-1] {
		var rec models.TransactionRecord
		rec, clock, err = parseCommBankRow(row, clock, loc)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, rec)
	}

	// Card payments are listed on their settlement date but may have been
	// made days earlier.
	sort.SliceStable(transactions, func(a, b int) bool {
		return transactions[a].DateOfPurchase.Before(transactions[b].DateOfPurchase)
	})

	return &models.Statement{
		OpeningDate:    openingDate,
		ClosingDate:    closingDate,
		OpeningBalance: openingBalance,
		ClosingBalance: closingBalance,
		Transactions:   transactions,
	}, nil
}

// rowShape is the column layout of a transaction row, decided by offsets from
// the end of the row.
type rowShape int

const (
	shapeUnrecognized rowShape = iota
	shapeDebit
	shapeCredit
	shapeFusedDebit
	shapeFusedCredit
)

type rowLayout struct {
	shape   rowShape
	descEnd int
	amount  int
	balance int
}

func classifyCommBankRow(row []string) rowLayout {
	n := len(row)
	switch {
	case n > cbaMoneyColumns && row[n-3] == cbaCurrencySymbol:
		return rowLayout{shape: shapeDebit, descEnd: n - 5, amount: n - 5, balance: n - 1}
	case n > cbaMoneyColumns && row[n-4] == cbaCurrencySymbol:
		return rowLayout{shape: shapeCredit, descEnd: n - 5, amount: n - 3, balance: n - 1}
	case n > cbaFusedColumns && row[n-2] == "" && isMoneyLiteral(row[n-3]):
		return rowLayout{shape: shapeFusedDebit, descEnd: n - 3, amount: n - 3, balance: n - 1}
	case n > cbaFusedColumns && row[n-3] == "" && isMoneyLiteral(row[n-2]):
		return rowLayout{shape: shapeFusedCredit, descEnd: n - 3, amount: n - 2, balance: n - 1}
	}
	return rowLayout{shape: shapeUnrecognized}
}

func parseCommBankRow(row []string, clock YearClock, loc *time.Location) (models.TransactionRecord, YearClock, error) {
	layout := classifyCommBankRow(row)
	if layout.shape == shapeUnrecognized {
		return models.TransactionRecord{}, clock, rowError(ErrUnrecognizedRowShape, row)
	}

	words := strings.Fields(strings.Join(row[:layout.descEnd], " "))
	if len(words) < 2 {
		return models.TransactionRecord{}, clock, rowError(ErrMalformedDate, row)
	}
	month, err := MonthNumber(words[1])
	if err != nil {
		return models.TransactionRecord{}, clock, rowError(err, row)
	}
	clock = clock.Advance(month)
	date, err := MakeDate(words[0], month, clock.Year, loc)
	if err != nil {
		return models.TransactionRecord{}, clock, rowError(err, row)
	}

	raw := words[2:]
	rec := models.TransactionRecord{
		Bank:             models.BankCommBank,
		DateOfPurchase:   date,
		DateOfSettlement: date,
		Description:      strings.Join(raw, " "),
		RawDescription:   strings.Join(raw, " "),
	}
	if purchase, desc, ok := valueDate(raw, loc); ok {
		rec.DateOfPurchase = purchase
		rec.Description = desc
	}

	amount, err := ParseMoney(row[layout.amount])
	if err != nil {
		return models.TransactionRecord{}, clock, rowError(err, row)
	}
	rec.Balance, err = ParseMoney(row[layout.balance])
	if err != nil {
		return models.TransactionRecord{}, clock, rowError(err, row)
	}

	switch layout.shape {
	case shapeDebit, shapeFusedDebit:
		rec.Debit = &amount
	case shapeCredit, shapeFusedCredit:
		rec.Credit = &amount
	}
	return rec, clock, nil
}

// valueDate recognises card payments, which end their description with
// "Value Date: dd/mm/yyyy" followed by one more word. The printed row date is
// then the settlement date.
func valueDate(raw []string, loc *time.Location) (time.Time, string, bool) {
	n := len(raw)
	if n < 4 || raw[n-4] != "Value" || raw[n-3] != "Date:" {
		return time.Time{}, "", false
	}
	purchase, err := ParseSlashDate(raw[n-2], loc)
	if err != nil {
		return time.Time{}, "", false
	}
	return purchase, strings.Join(raw[:n-4], " "), true
}

// boundaryDate reads "dd Mon yyyy ..." from the first cell of a boundary row.
func boundaryDate(row []string, loc *time.Location) (time.Time, error) {
	fields := strings.Fields(tokenAt(row, 0))
	if len(fields) < 3 {
		return time.Time{}, rowError(ErrMalformedDate, row)
	}
	month, err := MonthNumber(fields[1])
	if err != nil {
		return time.Time{}, rowError(err, row)
	}
	year, err := strconv.Atoi(fields[2])
	if err != nil {
		return time.Time{}, rowError(fmt.Errorf("%w: year %q", ErrMalformedDate, fields[2]), row)
	}
	date, err := MakeDate(fields[0], month, year, loc)
	if err != nil {
		return time.Time{}, rowError(err, row)
	}
	return date, nil
}

func boundaryBalance(row []string) (models.Money, error) {
	if len(row) < 3 {
		return models.Money{}, rowError(ErrMalformedMoney, row)
	}
	m, err := ParseMoney(strings.Join(nonBlank(row[2:]), " "))
	if err != nil {
		return models.Money{}, rowError(err, row)
	}
	return m, nil
}
