package weather

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
)

// WriteCSV writes records semicolon separated with a header row. No
// records still produce the header.
func WriteCSV(out io.Writer, records []Record) error {
	w := csv.NewWriter(out)
	w.Comma = ';'

	if len(records) == 0 {
		if err := w.Write(Header); err != nil {
			return fmt.Errorf("failed to write CSV header: %w", err)
		}
		w.Flush()
		return w.Error()
	}

	if err := gocsv.MarshalCSV(&records, gocsv.NewSafeCSVWriter(w)); err != nil {
		return fmt.Errorf("failed to write CSV: %w", err)
	}
	return nil
}
