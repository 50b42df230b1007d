// AngelaMos | 2026
// csv.go

package ledger

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

var csvHeader = []string{
	"Date", "Type", "Quantity", "From", "To",
	"Status", "TransferType", "Notes",
}

// renderCSV writes one row per ledger entry. The Type column is the
// derived direction already present on the entry; TransferType is the
// stored ledger type (regular/initial).
func renderCSV(entries []LogEntry, storedTypes []string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}

	for i := range entries {
		e := &entries[i]

		var fromName, toName string
		if e.From != nil {
			fromName = e.From.Name
		}
		if e.To != nil {
			toName = e.To.Name
		}

		row := []string{
			e.Timestamp.Format("2006-01-02"),
			e.Type,
			strconv.FormatInt(e.Count, 10),
			fromName,
			toName,
			e.Status,
			storedTypes[i],
			e.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
