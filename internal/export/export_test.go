package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"smartledger/internal/core"
)

func sampleRows() []Row {
	return FromReceipts([]core.Receipt{
		{
			Merchant:    "이마트",
			Category:    "식비",
			Total:       45000,
			PurchasedAt: time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC),
			Memo:        "주말 장보기",
		},
		{
			Merchant:    "스타벅스",
			Category:    "카페/간식",
			Total:       5500,
			PurchasedAt: time.Date(2026, 8, 16, 0, 0, 0, 0, time.UTC),
		},
	})
}

func TestFilename(t *testing.T) {
	now := time.Date(2026, 8, 31, 14, 30, 0, 0, time.UTC)
	if got := Filename("csv", now); got != "smartledger_receipts_2026-08-31.csv" {
		t.Errorf("Filename(csv) = %q", got)
	}
	if got := Filename("xlsx", now); got != "smartledger_receipts_2026-08-31.xlsx" {
		t.Errorf("Filename(xlsx) = %q", got)
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	raw := buf.Bytes()
	if !bytes.HasPrefix(raw, []byte{0xEF, 0xBB, 0xBF}) {
		t.Error("CSV output does not start with a UTF-8 BOM")
	}

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("csv has %d records, want header + 2 rows", len(records))
	}
	if strings.Join(records[0], ",") != "날짜,가맹점,분류,금액,메모" {
		t.Errorf("header = %v", records[0])
	}
	if records[1][0] != "2026-08-15" || records[1][1] != "이마트" || records[1][3] != "45000" {
		t.Errorf("row 1 = %v", records[1])
	}
	if records[2][4] != "" {
		t.Errorf("empty memo rendered as %q", records[2][4])
	}
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV(nil) error = %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(buf.Bytes()[3:])).ReadAll()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("empty export has %d records, want header only", len(records))
	}
}

func TestWriteExcel(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteExcel(&buf, sampleRows()); err != nil {
		t.Fatalf("WriteExcel() error = %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("내역")
	if err != nil {
		t.Fatalf("GetRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("workbook has %d rows, want header + 2", len(rows))
	}
	if rows[0][0] != "날짜" || rows[0][3] != "금액" {
		t.Errorf("header row = %v", rows[0])
	}
	if rows[1][1] != "이마트" || rows[1][3] != "45000" {
		t.Errorf("data row = %v", rows[1])
	}
}
