package writer

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// Formats lists the supported output formats.
func Formats() []Format {
	return []Format{FormatCSV, FormatJSON, FormatXLSX}
}

// ParseFormat resolves a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %q", s)
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv"
	}
}

// Options select which already-parsed fields are written and how.
type Options struct {
	ExcludeAccountBalance  bool `json:"excludeAccountBalance" yaml:"exclude_account_balance"`
	IncludeTimeZoneInDates bool `json:"includeTimeZoneInDates" yaml:"include_time_zone_in_dates"`
	SeparateDates          bool `json:"separateDates" yaml:"separate_dates"`
	// IncludeBankDetails adds the bank's SWIFT code and statement currency.
	IncludeBankDetails bool `json:"includeBankDetails" yaml:"include_bank_details"`
}

// DefaultOptions keeps every column and full timestamps.
func DefaultOptions() Options {
	return Options{IncludeTimeZoneInDates: true, SeparateDates: true}
}

// FormattedRecord is a transaction ready for output. Money is a plain decimal
// string; debits and overdrawn balances carry a leading "-".
type FormattedRecord struct {
	BankName         string  `json:"bank_name"`
	AccountNumber    string  `json:"account_number"`
	BankSwiftCode    *string `json:"bank_swift_code,omitempty"`
	Currency         *string `json:"currency,omitempty"`
	DateOfPurchase   *string `json:"date_of_purchase,omitempty"`
	DateOfSettlement string  `json:"date_of_settlement"`
	Description      string  `json:"description"`
	Debit            string  `json:"debit"`
	Credit           string  `json:"credit"`
	Balance          *string `json:"balance,omitempty"`
}

// FormatRecords applies opts to records.
func FormatRecords(records []models.TransactionRecord, opts Options) []FormattedRecord {
	out := make([]FormattedRecord, 0, len(records))
	for _, r := range records {
		f := FormattedRecord{
			BankName:         r.Bank.Label(),
			AccountNumber:    r.AccountNumber,
			DateOfSettlement: formatDate(r.DateOfSettlement, opts),
			Description:      r.Description,
		}
		if opts.IncludeBankDetails {
			swift, currency := r.Bank.SwiftCode(), r.Bank.Currency()
			f.BankSwiftCode = &swift
			f.Currency = &currency
		}
		if opts.SeparateDates {
			purchase := formatDate(r.DateOfPurchase, opts)
			f.DateOfPurchase = &purchase
		} else if r.RawDescription != "" {
			f.Description = r.RawDescription
		}
		if r.Debit != nil {
			f.Debit = "-" + r.Debit.Amount.Abs().StringFixed(2)
		}
		if r.Credit != nil {
			f.Credit = r.Credit.Amount.StringFixed(2)
		}
		if !opts.ExcludeAccountBalance {
			balance := formatBalance(r.Balance)
			f.Balance = &balance
		}
		out = append(out, f)
	}
	return out
}

// Columns returns the output column names for opts, in order.
func Columns(opts Options) []string {
	cols := []string{"bank_name", "account_number"}
	if opts.IncludeBankDetails {
		cols = append(cols, "bank_swift_code", "currency")
	}
	if opts.SeparateDates {
		cols = append(cols, "date_of_purchase")
	}
	cols = append(cols, "date_of_settlement", "description", "debit", "credit")
	if !opts.ExcludeAccountBalance {
		cols = append(cols, "balance")
	}
	return cols
}

// values returns the record's cells in Columns order.
func (f FormattedRecord) values() []string {
	row := []string{f.BankName, f.AccountNumber}
	if f.BankSwiftCode != nil && f.Currency != nil {
		row = append(row, *f.BankSwiftCode, *f.Currency)
	}
	if f.DateOfPurchase != nil {
		row = append(row, *f.DateOfPurchase)
	}
	row = append(row, f.DateOfSettlement, f.Description, f.Debit, f.Credit)
	if f.Balance != nil {
		row = append(row, *f.Balance)
	}
	return row
}

func formatDate(t time.Time, opts Options) string {
	if t.IsZero() {
		return ""
	}
	if opts.IncludeTimeZoneInDates {
		return t.Format(time.RFC3339)
	}
	return t.Format(time.DateOnly)
}

func formatBalance(m models.Money) string {
	s := m.Amount.Abs().StringFixed(2)
	if m.Sign == models.SignDR || m.Amount.IsNegative() {
		return "-" + s
	}
	return s
}

// Write serializes records to out in the given format.
func Write(out io.Writer, format Format, records []models.TransactionRecord, opts Options) error {
	formatted := FormatRecords(records, opts)
	switch format {
	case FormatCSV:
		return (&CSVWriter{}).Write(out, formatted, opts)
	case FormatJSON:
		return writeJSON(out, formatted)
	case FormatXLSX:
		return writeXLSX(out, formatted, opts)
	default:
		return fmt.Errorf("unsupported output format: %q", format)
	}
}

// WriteToFile writes records to a new file at path.
func WriteToFile(path string, format Format, records []models.TransactionRecord, opts Options) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	if err := Write(f, format, records, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
