package alerts

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smartledger/internal/categories"
	"smartledger/internal/core"
	"smartledger/internal/kv/memory"
	"smartledger/internal/storage"
	"smartledger/internal/toast"
)

func newTestChecker(t *testing.T) (*Checker, *storage.SQLiteRepository, *categories.Store, *toast.Queue, int64) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	userID, err := repo.CreateUser(context.Background(), "test@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	store := categories.NewStore(memory.NewBackend())
	queue := toast.NewQueue()
	return NewChecker(repo, store, queue, 2.5), repo, store, queue, userID
}

func seedReceipt(t *testing.T, repo *storage.SQLiteRepository, userID int64, merchant, category string, total int64, day time.Time) {
	t.Helper()
	_, err := repo.CreateReceipt(context.Background(), core.Receipt{
		UserID:      userID,
		Merchant:    merchant,
		Category:    category,
		Total:       total,
		PurchasedAt: day,
	})
	if err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCheckReceiptOverspend(t *testing.T) {
	checker, repo, _, queue, userID := newTestChecker(t)
	ctx := context.Background()

	// Three months of ~10000 won food spending.
	seedReceipt(t, repo, userID, "a", "식비", 9000, date(2026, 5, 10))
	seedReceipt(t, repo, userID, "b", "식비", 10000, date(2026, 6, 10))
	seedReceipt(t, repo, userID, "c", "식비", 11000, date(2026, 7, 10))

	big := core.Receipt{
		UserID: userID, Merchant: "오마카세", Category: "식비",
		Total: 180000, PurchasedAt: date(2026, 8, 15),
	}
	if err := checker.CheckReceipt(ctx, big); err != nil {
		t.Fatalf("CheckReceipt() error = %v", err)
	}

	alerts, err := repo.ListUnreadAlerts(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].Kind != "overspend:식비" {
		t.Fatalf("alerts = %+v, want one overspend:식비", alerts)
	}
	if queue.Pending() != 1 {
		t.Errorf("queue has %d toasts, want 1", queue.Pending())
	}

	// A repeat while the first alert is unread does not duplicate.
	if err := checker.CheckReceipt(ctx, big); err != nil {
		t.Fatal(err)
	}
	if alerts, _ := repo.ListUnreadAlerts(ctx, userID); len(alerts) != 1 {
		t.Errorf("duplicate alert raised: %+v", alerts)
	}
}

func TestCheckReceiptNeedsHistory(t *testing.T) {
	checker, repo, _, _, userID := newTestChecker(t)
	ctx := context.Background()

	// Only two prior receipts: not enough history to judge.
	seedReceipt(t, repo, userID, "a", "식비", 9000, date(2026, 6, 10))
	seedReceipt(t, repo, userID, "b", "식비", 10000, date(2026, 7, 10))

	receipt := core.Receipt{
		UserID: userID, Merchant: "x", Category: "식비",
		Total: 999999, PurchasedAt: date(2026, 8, 15),
	}
	if err := checker.CheckReceipt(ctx, receipt); err != nil {
		t.Fatal(err)
	}
	if alerts, _ := repo.ListUnreadAlerts(ctx, userID); len(alerts) != 0 {
		t.Errorf("alert raised without enough history: %+v", alerts)
	}
}

func TestCheckReceiptNormalSpend(t *testing.T) {
	checker, repo, _, _, userID := newTestChecker(t)
	ctx := context.Background()

	seedReceipt(t, repo, userID, "a", "식비", 9000, date(2026, 5, 10))
	seedReceipt(t, repo, userID, "b", "식비", 10000, date(2026, 6, 10))
	seedReceipt(t, repo, userID, "c", "식비", 11000, date(2026, 7, 10))

	receipt := core.Receipt{
		UserID: userID, Merchant: "x", Category: "식비",
		Total: 12000, PurchasedAt: date(2026, 8, 15),
	}
	if err := checker.CheckReceipt(ctx, receipt); err != nil {
		t.Fatal(err)
	}
	if alerts, _ := repo.ListUnreadAlerts(ctx, userID); len(alerts) != 0 {
		t.Errorf("alert raised for ordinary spend: %+v", alerts)
	}
}

func TestCheckBudgets(t *testing.T) {
	checker, repo, store, _, userID := newTestChecker(t)
	ctx := context.Background()

	// Tight food budget, generous transport budget.
	cc := core.Collection{
		{Name: "식비", Budget: 50000, Icon: "food"},
		{Name: "교통", Budget: 500000, Icon: "transport"},
	}
	if err := store.Save(ctx, cc); err != nil {
		t.Fatal(err)
	}

	seedReceipt(t, repo, userID, "a", "식비", 40000, date(2026, 8, 5))
	seedReceipt(t, repo, userID, "b", "식비", 30000, date(2026, 8, 20))
	seedReceipt(t, repo, userID, "c", "교통", 10000, date(2026, 8, 10))

	if err := checker.CheckBudgets(ctx, userID, date(2026, 8, 25)); err != nil {
		t.Fatalf("CheckBudgets() error = %v", err)
	}

	alerts, err := repo.ListUnreadAlerts(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].Kind != "budget_exceeded:식비" {
		t.Fatalf("alerts = %+v, want one budget_exceeded:식비", alerts)
	}

	// Second run while unread stays quiet.
	if err := checker.CheckBudgets(ctx, userID, date(2026, 8, 26)); err != nil {
		t.Fatal(err)
	}
	if alerts, _ := repo.ListUnreadAlerts(ctx, userID); len(alerts) != 1 {
		t.Errorf("duplicate budget alert: %+v", alerts)
	}
}

func TestDetectFixedCosts(t *testing.T) {
	checker, repo, _, _, userID := newTestChecker(t)
	ctx := context.Background()

	// Three months of a near-identical subscription charge.
	seedReceipt(t, repo, userID, "넷플릭스", "문화/여가", 17000, date(2026, 5, 1))
	seedReceipt(t, repo, userID, "넷플릭스", "문화/여가", 17000, date(2026, 6, 1))
	seedReceipt(t, repo, userID, "넷플릭스", "문화/여가", 17500, date(2026, 7, 1))

	// Groceries vary too much to be a fixed cost.
	seedReceipt(t, repo, userID, "이마트", "식비", 30000, date(2026, 5, 2))
	seedReceipt(t, repo, userID, "이마트", "식비", 80000, date(2026, 6, 2))
	seedReceipt(t, repo, userID, "이마트", "식비", 55000, date(2026, 7, 2))

	if err := checker.DetectFixedCosts(ctx, userID, date(2026, 8, 1)); err != nil {
		t.Fatalf("DetectFixedCosts() error = %v", err)
	}

	alerts, err := repo.ListUnreadAlerts(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].Kind != "fixed_cost:넷플릭스" {
		t.Fatalf("alerts = %+v, want one fixed_cost:넷플릭스", alerts)
	}
}

func TestNearlyConstant(t *testing.T) {
	tests := []struct {
		name    string
		amounts []int64
		want    bool
	}{
		{"identical", []int64{17000, 17000, 17000}, true},
		{"within tolerance", []int64{17000, 17000, 17500}, true},
		{"too spread", []int64{30000, 80000, 55000}, false},
		{"zeros", []int64{0, 0, 0}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nearlyConstant(tt.amounts); got != tt.want {
				t.Errorf("nearlyConstant(%v) = %v, want %v", tt.amounts, got, tt.want)
			}
		})
	}
}
