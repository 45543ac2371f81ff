// Package alerts raises spending warnings: an unusually large receipt, a
// category over its monthly budget, and recurring fixed costs worth
// reviewing. Raised alerts are stored and surfaced as toasts.
package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"smartledger/internal/categories"
	"smartledger/internal/core"
	"smartledger/internal/storage"
	"smartledger/internal/toast"
)

// Alert kinds. Each carries a subject suffix so repeated checks can
// deduplicate against unread alerts.
const (
	KindOverspend      = "overspend"
	KindBudgetExceeded = "budget_exceeded"
	KindFixedCost      = "fixed_cost"
)

const (
	// overspendWindow is how far back the category average looks.
	overspendWindow = 3

	// fixedCostWindow is how far back the fixed-cost scan looks.
	fixedCostWindow = 6

	// fixedCostMinMonths is the distinct months a merchant must appear in.
	fixedCostMinMonths = 3

	// fixedCostTolerance is the allowed spread around the mean amount.
	fixedCostTolerance = 0.05
)

// Checker runs the alert checks against stored receipts and the category
// budgets.
type Checker struct {
	repo       *storage.SQLiteRepository
	store      *categories.Store
	presenter  toast.Presenter
	multiplier float64
}

// NewChecker wires a checker. multiplier scales the category average a
// single receipt must exceed to count as an overspend.
func NewChecker(repo *storage.SQLiteRepository, store *categories.Store, presenter toast.Presenter, multiplier float64) *Checker {
	if presenter == nil {
		presenter = toast.LogPresenter{}
	}
	return &Checker{
		repo:       repo,
		store:      store,
		presenter:  presenter,
		multiplier: multiplier,
	}
}

// CheckReceipt flags a freshly recorded receipt whose total is far above
// the category's recent average. Categories with too little history are
// left alone.
func (c *Checker) CheckReceipt(ctx context.Context, receipt core.Receipt) error {
	monthStart := time.Date(receipt.PurchasedAt.Year(), receipt.PurchasedAt.Month(), 1, 0, 0, 0, 0, time.UTC)
	from := monthStart.AddDate(0, -overspendWindow, 0)

	avg, count, err := c.repo.CategoryAverage(ctx, receipt.UserID, receipt.Category, from, monthStart)
	if err != nil {
		return fmt.Errorf("overspend check: %w", err)
	}
	if count < 3 || avg == 0 {
		return nil
	}

	threshold := int64(float64(avg) * c.multiplier)
	if receipt.Total <= threshold {
		return nil
	}

	kind := fmt.Sprintf("%s:%s", KindOverspend, receipt.Category)
	message := fmt.Sprintf("%s 지출 %s이 최근 %d개월 평균(%s)을 크게 초과했습니다",
		receipt.Category, core.FormatWon(receipt.Total), overspendWindow, core.FormatWon(avg))

	return c.raise(ctx, receipt.UserID, kind, message)
}

// CheckBudgets compares this month's per-category totals against the
// budgets in the category collection and raises one alert per exceeded
// category.
func (c *Checker) CheckBudgets(ctx context.Context, userID int64, now time.Time) error {
	totals, err := c.repo.MonthCategoryTotals(ctx, userID, now.Year(), int(now.Month()))
	if err != nil {
		return fmt.Errorf("budget check: %w", err)
	}
	if len(totals) == 0 {
		return nil
	}

	spentByCategory := make(map[string]int64, len(totals))
	for _, t := range totals {
		spentByCategory[t.Category] = t.Total
	}

	for _, category := range c.store.Categories(ctx) {
		if category.Budget <= 0 {
			continue
		}
		spent, ok := spentByCategory[category.Name]
		if !ok || spent <= category.Budget {
			continue
		}

		kind := fmt.Sprintf("%s:%s", KindBudgetExceeded, category.Name)
		message := fmt.Sprintf("%s 예산 %s을 초과했습니다 (현재 %s)",
			category.Name, core.FormatWon(category.Budget), core.FormatWon(spent))
		if err := c.raise(ctx, userID, kind, message); err != nil {
			return err
		}
	}
	return nil
}

// DetectFixedCosts finds merchants charged in at least three distinct
// months for nearly the same amount, the signature of a subscription or
// other fixed cost.
func (c *Checker) DetectFixedCosts(ctx context.Context, userID int64, now time.Time) error {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -fixedCostWindow, 0)
	months, err := c.repo.MerchantMonthlyTotals(ctx, userID, from)
	if err != nil {
		return fmt.Errorf("fixed cost scan: %w", err)
	}

	byMerchant := make(map[string][]int64)
	for _, mm := range months {
		byMerchant[mm.Merchant] = append(byMerchant[mm.Merchant], mm.Total)
	}

	for merchant, amounts := range byMerchant {
		if len(amounts) < fixedCostMinMonths {
			continue
		}
		if !nearlyConstant(amounts) {
			continue
		}

		kind := fmt.Sprintf("%s:%s", KindFixedCost, merchant)
		message := fmt.Sprintf("%s에서 %d개월째 약 %s이 반복 결제되고 있습니다",
			merchant, len(amounts), core.FormatWon(mean(amounts)))
		if err := c.raise(ctx, userID, kind, message); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) raise(ctx context.Context, userID int64, kind, message string) error {
	exists, err := c.repo.HasAlert(ctx, userID, kind)
	if err != nil {
		return fmt.Errorf("alert dedup: %w", err)
	}
	if exists {
		slog.DebugContext(ctx, "Alert already pending, skipping", "kind", kind)
		return nil
	}

	if _, err := c.repo.CreateAlert(ctx, userID, kind, message); err != nil {
		return fmt.Errorf("store alert: %w", err)
	}
	c.presenter.Warning(ctx, message)
	return nil
}

func mean(amounts []int64) int64 {
	var sum int64
	for _, a := range amounts {
		sum += a
	}
	return sum / int64(len(amounts))
}

func nearlyConstant(amounts []int64) bool {
	m := mean(amounts)
	if m == 0 {
		return false
	}
	for _, a := range amounts {
		diff := a - m
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > float64(m)*fixedCostTolerance {
			return false
		}
	}
	return true
}
