package http

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"smartledger/internal/core"
	"smartledger/internal/storage"
)

// receiptView is a display row for the receipt list.
type receiptView struct {
	ID       int64
	Date     string
	Merchant string
	Category string
	Total    string
	Memo     string
}

func (s *Server) handleCreateReceipt(w http.ResponseWriter, r *http.Request, userID int64) {
	merchant := sanitizeInput(r.FormValue("merchant"))
	category := sanitizeInput(r.FormValue("category"))
	if category == "" {
		category = "기타"
	}
	memo := sanitizeInput(r.FormValue("memo"))

	total, err := core.ParseWon(r.FormValue("total"))
	if err != nil {
		BadRequestError("금액이 올바르지 않습니다").Write(w)
		return
	}

	purchasedAt := time.Now()
	if raw := r.FormValue("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			BadRequestError("날짜 형식이 올바르지 않습니다").Write(w)
			return
		}
		purchasedAt = parsed
	}

	receipt := core.Receipt{
		UserID:      userID,
		Merchant:    merchant,
		Category:    category,
		Total:       total,
		PurchasedAt: purchasedAt,
		Memo:        memo,
	}

	id, err := s.repo.CreateReceipt(r.Context(), receipt)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicateReceipt):
			UnprocessableEntityError("이미 등록된 내역입니다").Write(w)
		case errors.Is(err, core.ErrEmptyMerchant):
			UnprocessableEntityError("가맹점 이름을 입력해 주세요").Write(w)
		case errors.Is(err, core.ErrNegativeAmount):
			UnprocessableEntityError("금액은 0 이상이어야 합니다").Write(w)
		default:
			slog.ErrorContext(r.Context(), "Receipt create failed", "error", err, "merchant", merchant)
			InternalServerError("내역 저장에 실패했습니다").Write(w)
		}
		return
	}
	receipt.ID = id

	s.invalidateReports(userID)
	slog.InfoContext(r.Context(), "Receipt created",
		"receipt_id", id, "merchant", merchant, "category", category, "amount_won", total)

	if s.checker != nil {
		if err := s.checker.CheckReceipt(r.Context(), receipt); err != nil {
			slog.WarnContext(r.Context(), "Overspend check failed", "error", err, "receipt_id", id)
		}
	}

	s.toasts.Success(r.Context(), merchant+" 내역을 저장했습니다")

	NewHTMXResponse().
		TriggerReceiptCreated(purchasedAt.Year(), int(purchasedAt.Month())).
		TriggerFormReset().
		Status(http.StatusCreated).
		Write(w)
}

func (s *Server) handleDeleteReceipt(w http.ResponseWriter, r *http.Request, userID int64) {
	id, err := parsePathID(r)
	if err != nil {
		BadRequestError("내역 번호가 올바르지 않습니다").Write(w)
		return
	}

	receipt, err := s.repo.GetReceipt(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrReceiptNotFound) {
			NotFoundError("해당 내역을 찾을 수 없습니다").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Receipt lookup failed", "error", err, "receipt_id", id)
		InternalServerError("내역 조회에 실패했습니다").Write(w)
		return
	}

	if err := s.repo.SoftDeleteReceipt(r.Context(), userID, id); err != nil {
		if errors.Is(err, storage.ErrReceiptNotFound) {
			NotFoundError("해당 내역을 찾을 수 없습니다").Write(w)
			return
		}
		slog.ErrorContext(r.Context(), "Receipt delete failed", "error", err, "receipt_id", id)
		InternalServerError("내역 삭제에 실패했습니다").Write(w)
		return
	}

	s.invalidateReports(userID)
	slog.InfoContext(r.Context(), "Receipt deleted", "receipt_id", id, "merchant", receipt.Merchant)
	s.toasts.Info(r.Context(), "내역을 삭제했습니다")

	NewHTMXResponse().
		TriggerReceiptDeleted(receipt.PurchasedAt.Year(), int(receipt.PurchasedAt.Month())).
		Write(w)
}

func (s *Server) handleReceiptsPartial(w http.ResponseWriter, r *http.Request, userID int64) {
	year, month := parseYearMonth(r)

	receipts, err := s.repo.ListReceipts(r.Context(), userID, year, month)
	if err != nil {
		slog.ErrorContext(r.Context(), "Receipt listing failed", "error", err, "year", year, "month", month)
		InternalServerError("내역을 불러오지 못했습니다").Write(w)
		return
	}

	views := make([]receiptView, len(receipts))
	for i, rc := range receipts {
		views[i] = receiptView{
			ID:       rc.ID,
			Date:     rc.PurchasedAt.Format("2006-01-02"),
			Merchant: rc.Merchant,
			Category: rc.Category,
			Total:    core.FormatWon(rc.Total),
			Memo:     rc.Memo,
		}
	}

	var buf bytes.Buffer
	data := struct {
		Year     int
		Month    int
		Receipts []receiptView
	}{Year: year, Month: month, Receipts: views}
	if err := s.templates.ExecuteTemplate(&buf, "receipts.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Receipt template execution failed", "error", err)
		InternalServerError("내역을 불러오지 못했습니다").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(buf.String()).Write(w)
}

// invalidateReports drops every cached month report for the user.
func (s *Server) invalidateReports(userID int64) {
	s.reportCache.DeletePrefix("report:" + strconv.FormatInt(userID, 10) + ":")
}
