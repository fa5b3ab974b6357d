package parser

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every error returned by a converter wraps one of these.
var (
	ErrMissingTableBoundaries       = errors.New("unable to find start and end of statement")
	ErrUnrecognizedOpeningRowFormat = errors.New("unrecognized opening balance row format")
	ErrAccountNumberNotFound        = errors.New("unable to find account number")
	ErrUnknownMonthName             = errors.New("unknown month name")
	ErrMalformedDate                = errors.New("malformed date")
	ErrMalformedMoney               = errors.New("malformed money")
	ErrUnrecognizedRowShape         = errors.New("row matches neither debit nor credit layout")
)

// RowError attaches the offending row to a failure.
type RowError struct {
	Err error
	Row []string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%v (row length %d: %q)", e.Err, len(e.Row), e.Row)
}

func (e *RowError) Unwrap() error { return e.Err }

func rowError(err error, row []string) error {
	return &RowError{Err: err, Row: append([]string(nil), row...)}
}

// FileError identifies the statement file a failure came from. Tokens holds
// the flattened token stream so layout drift can be diagnosed.
type FileError struct {
	File   string
	Tokens []string
	Err    error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// Dump renders the token stream one token per line with its index.
func (e *FileError) Dump() string {
	var b strings.Builder
	for i, tok := range e.Tokens {
		fmt.Fprintf(&b, "%5d %q\n", i, tok)
	}
	return b.String()
}
