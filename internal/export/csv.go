package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// utf8BOM makes Excel open the file as UTF-8 instead of mangling the
// Korean headers.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteCSV writes the rows as a CSV document with a UTF-8 byte order mark.
func WriteCSV(w io.Writer, rows []Row) error {
	if _, err := w.Write(utf8BOM); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Headers); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			row.Date.Format("2006-01-02"),
			row.Merchant,
			row.Category,
			strconv.FormatInt(row.Total, 10),
			row.Memo,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
