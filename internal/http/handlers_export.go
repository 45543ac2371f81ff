package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"time"

	"smartledger/internal/export"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, userID int64) {
	rows, ok := s.exportRows(w, r, userID)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err)
		InternalServerError("CSV 내보내기에 실패했습니다").Write(w)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("csv", time.Now())+`"`)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportExcel(w http.ResponseWriter, r *http.Request, userID int64) {
	rows, ok := s.exportRows(w, r, userID)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteExcel(&buf, rows); err != nil {
		slog.ErrorContext(r.Context(), "Excel export failed", "error", err)
		InternalServerError("엑셀 내보내기에 실패했습니다").Write(w)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename("xlsx", time.Now())+`"`)
	_, _ = w.Write(buf.Bytes())
}

// exportRows loads the month's receipts as export rows. It writes the
// error response itself on failure.
func (s *Server) exportRows(w http.ResponseWriter, r *http.Request, userID int64) ([]export.Row, bool) {
	year, month := parseYearMonth(r)

	receipts, err := s.repo.ListReceipts(r.Context(), userID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Export listing failed", "error", err, "year", year, "month", month)
		InternalServerError("내역을 불러오지 못했습니다").Write(w)
		return nil, false
	}
	if len(receipts) == 0 {
		UnprocessableEntityError("내보낼 내역이 없습니다").Write(w)
		return nil, false
	}

	slog.InfoContext(r.Context(), "Export requested",
		"year", year, "month", month, "receipts", len(receipts))
	return export.FromReceipts(receipts), true
}
