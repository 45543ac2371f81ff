package http

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"smartledger/internal/core"
)

// categoryView is a display row for the category editor. Spent and Budget
// stay numeric because they prefill editable inputs that round-trip through
// ParseWon.
type categoryView struct {
	Index     int
	Name      string
	Icon      string
	Spent     int64
	Budget    int64
	Remaining string
	Overspent bool
}

func (s *Server) categoryViews(ctx context.Context) []categoryView {
	cc := s.store.Categories(ctx)
	views := make([]categoryView, len(cc))
	for i, c := range cc {
		views[i] = categoryView{
			Index:     i,
			Name:      c.Name,
			Icon:      c.Icon,
			Spent:     c.Spent,
			Budget:    c.Budget,
			Remaining: core.FormatWon(c.Remaining()),
			Overspent: c.Overspent(),
		}
	}
	return views
}

func (s *Server) renderCategories(ctx context.Context) (string, error) {
	var buf bytes.Buffer
	data := struct{ Categories []categoryView }{Categories: s.categoryViews(ctx)}
	if err := s.templates.ExecuteTemplate(&buf, "categories.html", data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *Server) handleCategoriesPartial(w http.ResponseWriter, r *http.Request) {
	html, err := s.renderCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Category template execution failed", "error", err)
		InternalServerError("분류 목록을 불러오지 못했습니다").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(html).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.FormValue("name"))
	icon := sanitizeInput(r.FormValue("icon"))

	budget := int64(0)
	if raw := r.FormValue("budget"); raw != "" {
		parsed, err := core.ParseWon(raw)
		if err != nil {
			BadRequestError("예산 금액이 올바르지 않습니다").Write(w)
			return
		}
		budget = parsed
	}

	if err := s.store.Add(r.Context(), name, icon, budget); err != nil {
		s.writeCategoryError(w, r, err, "분류 추가에 실패했습니다")
		return
	}

	slog.InfoContext(r.Context(), "Category added", "category", name)
	s.writeCategoriesChanged(w, r)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	index := parsePathIndex(r)
	if err := s.store.Delete(r.Context(), index); err != nil {
		s.writeCategoryError(w, r, err, "분류 삭제에 실패했습니다")
		return
	}

	slog.InfoContext(r.Context(), "Category deleted", "index", index)
	s.writeCategoriesChanged(w, r)
}

func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	index := parsePathIndex(r)
	name := sanitizeInput(r.FormValue("name"))

	if err := s.store.Rename(r.Context(), index, name); err != nil {
		s.writeCategoryError(w, r, err, "분류 이름 변경에 실패했습니다")
		return
	}

	slog.InfoContext(r.Context(), "Category renamed", "index", index, "category", name)
	s.writeCategoriesChanged(w, r)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	index := parsePathIndex(r)
	budget, err := core.ParseWon(r.FormValue("budget"))
	if err != nil {
		BadRequestError("예산 금액이 올바르지 않습니다").Write(w)
		return
	}

	if err := s.store.SetBudget(r.Context(), index, budget); err != nil {
		s.writeCategoryError(w, r, err, "예산 변경에 실패했습니다")
		return
	}

	slog.InfoContext(r.Context(), "Category budget updated", "index", index, "amount_won", budget)
	s.writeCategoriesChanged(w, r)
}

func (s *Server) handleSetSpent(w http.ResponseWriter, r *http.Request) {
	index := parsePathIndex(r)
	spent, err := core.ParseWon(r.FormValue("spent"))
	if err != nil {
		BadRequestError("지출 금액이 올바르지 않습니다").Write(w)
		return
	}

	if err := s.store.SetSpent(r.Context(), index, spent); err != nil {
		s.writeCategoryError(w, r, err, "지출 변경에 실패했습니다")
		return
	}

	slog.InfoContext(r.Context(), "Category spent updated", "index", index, "amount_won", spent)
	s.writeCategoriesChanged(w, r)
}

func (s *Server) handleResetCategories(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Reset(r.Context()); err != nil {
		slog.ErrorContext(r.Context(), "Category reset failed", "error", err)
		InternalServerError("기본 분류 복원에 실패했습니다").Write(w)
		return
	}

	slog.InfoContext(r.Context(), "Categories reset to defaults")
	s.toasts.Info(r.Context(), "기본 분류로 복원했습니다")
	s.writeCategoriesChanged(w, r)
}

// writeCategoriesChanged re-renders the editor fragment and fires the
// categories:changed trigger so dependent panels refresh.
func (s *Server) writeCategoriesChanged(w http.ResponseWriter, r *http.Request) {
	html, err := s.renderCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Category template execution failed", "error", err)
		InternalServerError("분류 목록을 불러오지 못했습니다").Write(w)
		return
	}
	NewHTMXResponse().
		TriggerCategoriesChanged().
		BodyHTML(html).
		Write(w)
}

func (s *Server) writeCategoryError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, core.ErrIndexOutOfRange):
		NotFoundError("해당 분류를 찾을 수 없습니다").Write(w)
	case errors.Is(err, core.ErrEmptyName):
		UnprocessableEntityError("분류 이름을 입력해 주세요").Write(w)
	case errors.Is(err, core.ErrNegativeAmount):
		UnprocessableEntityError("금액은 0 이상이어야 합니다").Write(w)
	default:
		slog.ErrorContext(r.Context(), "Category mutation failed", "error", err)
		InternalServerError(fallback).Write(w)
	}
}
