package writer

import (
	"encoding/json"
	"fmt"
	"io"
)

func writeJSON(out io.Writer, records []FormattedRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if _, err := out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write JSON: %w", err)
	}
	return nil
}
