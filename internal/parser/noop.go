package parser

import (
	"context"

	"github.com/insightdelivered/statement-converter/internal/models"
)

// NotImplemented stands in for banks without a layout decoder. Converting
// always succeeds with no records.
type NotImplemented struct {
	BankType models.BankType
}

func (n NotImplemented) Bank() models.BankType {
	return n.BankType
}

func (n NotImplemented) Convert(ctx context.Context, _ []models.PDFFile) ([]models.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []models.TransactionRecord{}, nil
}
