// Package export renders receipts as downloadable CSV and Excel files.
package export

import (
	"fmt"
	"time"

	"smartledger/internal/core"
)

// Row is one exported receipt, flattened for spreadsheet use.
type Row struct {
	Date     time.Time
	Merchant string
	Category string
	Total    int64
	Memo     string
}

// Headers are the column names, in export order.
var Headers = []string{"날짜", "가맹점", "분류", "금액", "메모"}

// FromReceipts flattens receipts into export rows, keeping their order.
func FromReceipts(receipts []core.Receipt) []Row {
	rows := make([]Row, len(receipts))
	for i, receipt := range receipts {
		rows[i] = Row{
			Date:     receipt.PurchasedAt,
			Merchant: receipt.Merchant,
			Category: receipt.Category,
			Total:    receipt.Total,
			Memo:     receipt.Memo,
		}
	}
	return rows
}

// Filename returns the download name for an export taken at now, like
// smartledger_receipts_2026-08-31.csv.
func Filename(extension string, now time.Time) string {
	return fmt.Sprintf("smartledger_receipts_%s.%s", now.Format("2006-01-02"), extension)
}
