// Package worker runs the background spending checks: budget overruns and
// recurring fixed costs, evaluated periodically for every account.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"smartledger/internal/alerts"
	"smartledger/internal/storage"
)

// BudgetWatcherConfig holds configuration for the budget watcher
type BudgetWatcherConfig struct {
	// CheckInterval is how often to run the spending checks (default: 10m)
	CheckInterval time.Duration

	// FixedCostInterval is how often to scan for recurring fixed costs (default: 24h)
	FixedCostInterval time.Duration
}

// DefaultBudgetWatcherConfig returns sensible defaults
func DefaultBudgetWatcherConfig() BudgetWatcherConfig {
	return BudgetWatcherConfig{
		CheckInterval:     10 * time.Minute,
		FixedCostInterval: 24 * time.Hour,
	}
}

// BudgetWatcher periodically runs the alert checks against every account.
type BudgetWatcher struct {
	storage *storage.SQLiteRepository
	checker *alerts.Checker
	config  BudgetWatcherConfig

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewBudgetWatcher creates a new budget watcher
func NewBudgetWatcher(storage *storage.SQLiteRepository, checker *alerts.Checker, config BudgetWatcherConfig) *BudgetWatcher {
	return &BudgetWatcher{
		storage: storage,
		checker: checker,
		config:  config,
	}
}

// Start begins the check loop. Returns an error if already running.
func (w *BudgetWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("budget watcher is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	go w.runLoop(ctx)

	slog.InfoContext(ctx, "Budget watcher started",
		"check_interval", w.config.CheckInterval,
		"fixed_cost_interval", w.config.FixedCostInterval)

	return nil
}

// Stop gracefully stops the watcher and waits for completion.
func (w *BudgetWatcher) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)

	select {
	case <-w.doneCh:
		slog.InfoContext(ctx, "Budget watcher stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Budget watcher stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	return nil
}

// IsRunning returns whether the watcher is currently running
func (w *BudgetWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// runLoop is the main check loop
func (w *BudgetWatcher) runLoop(ctx context.Context) {
	defer close(w.doneCh)

	checkTicker := time.NewTicker(w.config.CheckInterval)
	defer checkTicker.Stop()

	fixedCostTicker := time.NewTicker(w.config.FixedCostInterval)
	defer fixedCostTicker.Stop()

	// Check immediately on startup
	w.CheckAll(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			w.CheckAll(ctx)
		case <-fixedCostTicker.C:
			w.ScanFixedCosts(ctx)
		}
	}
}

// CheckAll runs the budget check for every account.
func (w *BudgetWatcher) CheckAll(ctx context.Context) {
	userIDs, err := w.storage.ListUserIDs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list users for budget check", "error", err)
		return
	}

	now := time.Now()
	for _, userID := range userIDs {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.checker.CheckBudgets(ctx, userID, now); err != nil {
			slog.ErrorContext(ctx, "Budget check failed", "user_id", userID, "error", err)
		}
	}

	slog.DebugContext(ctx, "Budget check cycle completed", "users", len(userIDs))
}

// ScanFixedCosts runs the recurring fixed cost detection for every account.
func (w *BudgetWatcher) ScanFixedCosts(ctx context.Context) {
	userIDs, err := w.storage.ListUserIDs(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to list users for fixed cost scan", "error", err)
		return
	}

	now := time.Now()
	for _, userID := range userIDs {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		if err := w.checker.DetectFixedCosts(ctx, userID, now); err != nil {
			slog.ErrorContext(ctx, "Fixed cost scan failed", "user_id", userID, "error", err)
		}
	}

	slog.DebugContext(ctx, "Fixed cost scan completed", "users", len(userIDs))
}
