package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"smartledger/internal/alerts"
	"smartledger/internal/categories"
	"smartledger/internal/core"
	"smartledger/internal/kv/memory"
	"smartledger/internal/storage"
)

func newTestWatcher(t *testing.T) (*BudgetWatcher, *storage.SQLiteRepository, *categories.Store) {
	t.Helper()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store := categories.NewStore(memory.NewBackend())
	checker := alerts.NewChecker(repo, store, nil, 2.5)
	return NewBudgetWatcher(repo, checker, DefaultBudgetWatcherConfig()), repo, store
}

func TestStartStop(t *testing.T) {
	watcher, _, _ := newTestWatcher(t)
	ctx := context.Background()

	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !watcher.IsRunning() {
		t.Error("watcher not running after Start")
	}

	if err := watcher.Start(ctx); err == nil {
		t.Error("second Start() should fail")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := watcher.Stop(stopCtx); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if watcher.IsRunning() {
		t.Error("watcher still running after Stop")
	}

	// Stopping twice is a no-op.
	if err := watcher.Stop(stopCtx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestCheckAllRaisesBudgetAlerts(t *testing.T) {
	watcher, repo, store := newTestWatcher(t)
	ctx := context.Background()

	userID, err := repo.CreateUser(ctx, "test@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Save(ctx, core.Collection{
		{Name: "식비", Budget: 50000, Icon: "food"},
	}); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	_, err = repo.CreateReceipt(ctx, core.Receipt{
		UserID:      userID,
		Merchant:    "이마트",
		Category:    "식비",
		Total:       80000,
		PurchasedAt: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}

	watcher.CheckAll(ctx)

	unread, err := repo.ListUnreadAlerts(ctx, userID)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 1 || unread[0].Kind != "budget_exceeded:식비" {
		t.Fatalf("alerts = %+v, want one budget_exceeded:식비", unread)
	}
}
