package writer

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// CSVWriter writes formatted records as CSV. The column set follows the
// options, so rows are written cell by cell rather than marshalled from a
// fixed struct.
type CSVWriter struct {
	// OmitHeader skips the column name row.
	OmitHeader bool
}

// Write writes records in CSV format to out.
func (w *CSVWriter) Write(out io.Writer, records []FormattedRecord, opts Options) error {
	writer := gocsv.DefaultCSVWriter(out)

	if !w.OmitHeader {
		if err := writer.Write(Columns(opts)); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
	}

	for _, rec := range records {
		if err := writer.Write(rec.values()); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}
