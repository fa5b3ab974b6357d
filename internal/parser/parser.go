package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// Converter turns the text layers of one or more statement files into
// transaction records, in file order.
type Converter interface {
	// Bank identifies the statement layout this converter decodes.
	Bank() models.BankType
	// Convert parses files sequentially. Whether records already produced are
	// returned alongside an error is bank specific.
	Convert(ctx context.Context, files []models.PDFFile) ([]models.TransactionRecord, error)
}

// StatementParser is implemented by converters whose statements carry opening
// and closing balance rows.
type StatementParser interface {
	Statement(f models.PDFFile) (*models.Statement, error)
}

// Option configures converters built by New.
type Option func(*options)

type options struct {
	location *time.Location
	logger   *log.Logger
	onParsed StatementHook
}

// StatementHook receives each statement a StatementParser decodes during
// Convert, before its transactions are appended to the batch.
type StatementHook func(file string, stmt *models.Statement)

// WithLocation sets the zone dates are resolved in.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.location = loc }
}

// WithLogger sets the logger converters report through.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStatementHook registers h on converters that decode whole statements.
// Other converters ignore it.
func WithStatementHook(h StatementHook) Option {
	return func(o *options) { o.onParsed = h }
}

// New returns the converter for the given bank type.
func New(bankType models.BankType, opts ...Option) (Converter, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.location == nil {
		o.location = defaultLocation()
	}

	switch bankType {
	case models.BankCommBank:
		return &CommBankConverter{Location: o.location, Logger: o.logger, OnStatement: o.onParsed}, nil
	case models.BankING:
		return &INGConverter{Location: o.location, Logger: o.logger}, nil
	case models.BankANZ, models.BankKiwibank:
		return NotImplemented{BankType: bankType}, nil
	default:
		return nil, fmt.Errorf("unsupported bank type: %q", bankType)
	}
}

// Implemented reports whether bankType has a real layout decoder.
func Implemented(bankType models.BankType) bool {
	switch bankType {
	case models.BankCommBank, models.BankING:
		return true
	}
	return false
}
