package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smartledger/internal/core"
)

const dateLayout = "2006-01-02"

// CreateReceipt stores a receipt with its line items and returns the new id.
// A receipt with the same user, merchant, total and purchase date as an
// existing one is treated as a double submit and rejected with
// ErrDuplicateReceipt.
func (r *SQLiteRepository) CreateReceipt(ctx context.Context, receipt core.Receipt) (int64, error) {
	if err := receipt.Validate(); err != nil {
		return 0, fmt.Errorf("validate receipt: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO receipts (user_id, merchant, category, total, purchased_at, memo)
		VALUES (?, ?, ?, ?, ?, ?)`,
		receipt.UserID,
		receipt.Merchant,
		receipt.Category,
		receipt.Total,
		receipt.PurchasedAt.Format(dateLayout),
		receipt.Memo)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateReceipt
		}
		return 0, fmt.Errorf("insert receipt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("receipt id: %w", err)
	}

	for _, item := range receipt.Items {
		qty := item.Quantity
		if qty <= 0 {
			qty = 1
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO receipt_items (receipt_id, name, price, quantity)
			VALUES (?, ?, ?, ?)`,
			id, item.Name, item.Price, qty)
		if err != nil {
			return 0, fmt.Errorf("insert receipt item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit receipt: %w", err)
	}

	slog.InfoContext(ctx, "Receipt saved",
		"id", id,
		"merchant", receipt.Merchant,
		"total", receipt.Total,
		"items", len(receipt.Items))

	return id, nil
}

// GetReceipt returns one receipt with its items. Soft-deleted receipts are
// reported as not found.
func (r *SQLiteRepository) GetReceipt(ctx context.Context, userID, id int64) (*core.Receipt, error) {
	var receipt core.Receipt
	var purchasedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, merchant, category, total, purchased_at, memo
		FROM receipts
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		id, userID).Scan(
		&receipt.ID,
		&receipt.UserID,
		&receipt.Merchant,
		&receipt.Category,
		&receipt.Total,
		&purchasedAt,
		&receipt.Memo)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	receipt.PurchasedAt, err = parseDate(purchasedAt)
	if err != nil {
		return nil, fmt.Errorf("parse purchase date: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT name, price, quantity FROM receipt_items
		WHERE receipt_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("get receipt items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item core.ReceiptItem
		if err := rows.Scan(&item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan receipt item: %w", err)
		}
		receipt.Items = append(receipt.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipt items: %w", err)
	}

	return &receipt, nil
}

// ListReceipts returns the user's receipts for one month, newest purchase
// first, excluding soft-deleted ones. Items are not loaded.
func (r *SQLiteRepository) ListReceipts(ctx context.Context, userID int64, year, month int) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, merchant, category, total, purchased_at, memo
		FROM receipts
		WHERE user_id = ?
		  AND is_deleted = 0
		  AND CAST(strftime('%Y', purchased_at) AS INTEGER) = ?
		  AND CAST(strftime('%m', purchased_at) AS INTEGER) = ?
		ORDER BY purchased_at DESC, id DESC`,
		userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

// ListReceiptsBetween returns all receipts with a purchase date in [from, to),
// oldest first. Used by exports and alert checks.
func (r *SQLiteRepository) ListReceiptsBetween(ctx context.Context, userID int64, from, to time.Time) ([]core.Receipt, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, merchant, category, total, purchased_at, memo
		FROM receipts
		WHERE user_id = ?
		  AND is_deleted = 0
		  AND purchased_at >= ?
		  AND purchased_at < ?
		ORDER BY purchased_at, id`,
		userID, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("list receipts between: %w", err)
	}
	defer rows.Close()

	return scanReceipts(rows)
}

func scanReceipts(rows *sql.Rows) ([]core.Receipt, error) {
	var receipts []core.Receipt
	for rows.Next() {
		var receipt core.Receipt
		var purchasedAt string
		err := rows.Scan(
			&receipt.ID,
			&receipt.UserID,
			&receipt.Merchant,
			&receipt.Category,
			&receipt.Total,
			&purchasedAt,
			&receipt.Memo)
		if err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		receipt.PurchasedAt, err = parseDate(purchasedAt)
		if err != nil {
			return nil, fmt.Errorf("parse purchase date: %w", err)
		}
		receipts = append(receipts, receipt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate receipts: %w", err)
	}
	return receipts, nil
}

// SoftDeleteReceipt hides a receipt from every read path without losing the
// row. Deleting an already deleted or unknown receipt reports not found.
func (r *SQLiteRepository) SoftDeleteReceipt(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE receipts SET is_deleted = 1
		WHERE id = ? AND user_id = ? AND is_deleted = 0`,
		id, userID)
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete receipt: %w", err)
	}
	if affected == 0 {
		return ErrReceiptNotFound
	}

	slog.InfoContext(ctx, "Receipt soft-deleted", "id", id)
	return nil
}

// MonthTotals returns the per-month spend rows for a user, newest first.
func (r *SQLiteRepository) MonthTotals(ctx context.Context, userID int64) ([]core.MonthTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT year, month, total, receipt_count
		FROM v_month_totals
		WHERE user_id = ?
		ORDER BY year DESC, month DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("month totals: %w", err)
	}
	defer rows.Close()

	var totals []core.MonthTotal
	for rows.Next() {
		var t core.MonthTotal
		if err := rows.Scan(&t.Year, &t.Month, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("scan month total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month totals: %w", err)
	}
	return totals, nil
}

// MonthCategoryTotals returns one month's spend broken down by category,
// largest first.
func (r *SQLiteRepository) MonthCategoryTotals(ctx context.Context, userID int64, year, month int) ([]core.CategoryTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, total, receipt_count
		FROM v_month_category_totals
		WHERE user_id = ? AND year = ? AND month = ?
		ORDER BY total DESC`,
		userID, year, month)
	if err != nil {
		return nil, fmt.Errorf("month category totals: %w", err)
	}
	defer rows.Close()

	var totals []core.CategoryTotal
	for rows.Next() {
		var t core.CategoryTotal
		if err := rows.Scan(&t.Category, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return totals, nil
}

// CategoryAverage returns the average receipt total and receipt count for
// one category over [from, to).
func (r *SQLiteRepository) CategoryAverage(ctx context.Context, userID int64, category string, from, to time.Time) (avg int64, count int64, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT COALESCE(CAST(AVG(total) AS INTEGER), 0), COUNT(*)
		FROM receipts
		WHERE user_id = ?
		  AND category = ?
		  AND is_deleted = 0
		  AND purchased_at >= ?
		  AND purchased_at < ?`,
		userID, category, from.Format(dateLayout), to.Format(dateLayout)).Scan(&avg, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("category average: %w", err)
	}
	return avg, count, nil
}

// MerchantMonth is one merchant's spend within one calendar month.
type MerchantMonth struct {
	Merchant string
	Year     int
	Month    int
	Total    int64
}

// MerchantMonthlyTotals returns per-merchant monthly sums since from, used
// to spot recurring fixed costs.
func (r *SQLiteRepository) MerchantMonthlyTotals(ctx context.Context, userID int64, from time.Time) ([]MerchantMonth, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT merchant,
		       CAST(strftime('%Y', purchased_at) AS INTEGER) AS year,
		       CAST(strftime('%m', purchased_at) AS INTEGER) AS month,
		       SUM(total)
		FROM receipts
		WHERE user_id = ? AND is_deleted = 0 AND purchased_at >= ?
		GROUP BY merchant, year, month
		ORDER BY merchant, year, month`,
		userID, from.Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("merchant monthly totals: %w", err)
	}
	defer rows.Close()

	var result []MerchantMonth
	for rows.Next() {
		var mm MerchantMonth
		if err := rows.Scan(&mm.Merchant, &mm.Year, &mm.Month, &mm.Total); err != nil {
			return nil, fmt.Errorf("scan merchant month: %w", err)
		}
		result = append(result, mm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merchant months: %w", err)
	}
	return result, nil
}

func parseDate(s string) (time.Time, error) {
	// modernc/sqlite may hand back the bare date or a full timestamp
	// depending on how the value was written.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
