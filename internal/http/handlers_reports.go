package http

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"smartledger/internal/core"
	"smartledger/internal/storage"
)

// reportRow is one category line in the month report.
type reportRow struct {
	Category  string
	Icon      string
	Total     string
	Count     int64
	Budget    string
	HasBudget bool
	Overspent bool
	// Width is the bar length as a percentage of the largest row.
	Width int
}

// monthReport is the cached, render-ready view of one user month.
type monthReport struct {
	Year  int
	Month int
	Total string
	Count int64
	Rows  []reportRow
}

func (s *Server) handleMonthReport(w http.ResponseWriter, r *http.Request, userID int64) {
	year, month := parseYearMonth(r)
	cacheKey := fmt.Sprintf("report:%d:%d-%02d", userID, year, month)

	report, ok := s.reportCache.Get(cacheKey)
	if !ok {
		built, err := s.buildMonthReport(r, userID, year, month)
		if err != nil {
			slog.ErrorContext(r.Context(), "Month report build failed", "error", err, "year", year, "month", month)
			InternalServerError("월간 리포트를 불러오지 못했습니다").Write(w)
			return
		}
		s.reportCache.Set(cacheKey, built)
		report = built
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, "month_report.html", report); err != nil {
		slog.ErrorContext(r.Context(), "Report template execution failed", "error", err)
		InternalServerError("월간 리포트를 불러오지 못했습니다").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) buildMonthReport(r *http.Request, userID int64, year, month int) (monthReport, error) {
	totals, err := s.repo.MonthCategoryTotals(r.Context(), userID, year, month)
	if err != nil {
		return monthReport{}, err
	}

	// Budgets come from the shared category list; categories that only
	// exist in receipts still get a row.
	budgets := make(map[string]core.Category)
	for _, c := range s.store.Categories(r.Context()) {
		budgets[c.Name] = c
	}

	var grandTotal, grandCount, maxTotal int64
	for _, t := range totals {
		grandTotal += t.Total
		grandCount += t.Count
		if t.Total > maxTotal {
			maxTotal = t.Total
		}
	}

	rows := make([]reportRow, len(totals))
	for i, t := range totals {
		row := reportRow{
			Category: t.Category,
			Icon:     core.DefaultIcon,
			Total:    core.FormatWon(t.Total),
			Count:    t.Count,
		}
		if c, ok := budgets[t.Category]; ok {
			row.Icon = c.Icon
			if c.Budget > 0 {
				row.HasBudget = true
				row.Budget = core.FormatWon(c.Budget)
				row.Overspent = t.Total > c.Budget
			}
		}
		if maxTotal > 0 {
			row.Width = int(t.Total * 100 / maxTotal)
		}
		rows[i] = row
	}

	return monthReport{
		Year:  year,
		Month: month,
		Total: core.FormatWon(grandTotal),
		Count: grandCount,
		Rows:  rows,
	}, nil
}

// alertView is a display row for the unread alert list.
type alertView struct {
	ID      int64
	Kind    string
	Message string
	Date    string
}

func (s *Server) handleAlertsPartial(w http.ResponseWriter, r *http.Request, userID int64) {
	alerts, err := s.repo.ListUnreadAlerts(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Alert listing failed", "error", err)
		InternalServerError("알림을 불러오지 못했습니다").Write(w)
		return
	}

	views := make([]alertView, len(alerts))
	for i, a := range alerts {
		views[i] = alertView{
			ID:      a.ID,
			Kind:    a.Kind,
			Message: a.Message,
			Date:    a.CreatedAt.Format("2006-01-02"),
		}
	}

	var buf bytes.Buffer
	data := struct{ Alerts []alertView }{Alerts: views}
	if err := s.templates.ExecuteTemplate(&buf, "alerts.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Alert template execution failed", "error", err)
		InternalServerError("알림을 불러오지 못했습니다").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

func (s *Server) handleDismissAlert(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := parsePathID(r)
	if err != nil {
		BadRequestError("알림 번호가 올바르지 않습니다").Write(w)
		return
	}

	if err := s.repo.MarkAlertRead(r.Context(), userID, id); err != nil {
		if errors.Is(err, storage.ErrAlertNotFound) {
			NotFoundError("해당 알림을 찾을 수 없습니다").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Alert dismiss failed", "error", err, "alert_id", id)
		InternalServerError("알림 확인에 실패했습니다").Write(w)
		return
	}

	NewHTMXResponse().Trigger("alert:read", map[string]int64{"id": id}).Write(w)
}
