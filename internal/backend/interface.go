// Package backend wires the configured persistence stack: the key-value
// cell the categories live in, the optional AMQP change notifier, and the
// SQLite repository for receipts, users and alerts.
package backend

import (
	"context"

	"smartledger/internal/categories"
	"smartledger/internal/storage"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// Result contains the assembled persistence stack. Repository is nil for
// the memory backend, which serves categories only.
type Result struct {
	KV       categories.Backend
	Notifier categories.Notifier

	Repository *storage.SQLiteRepository

	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend creates a backend instance based on the provided config
	CreateBackend(ctx context.Context, config Config) (*Result, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Backend type
	Type Type

	// SQLite specific
	SQLiteDBPath string

	// Cross-context change events (optional)
	AMQPURL      string
	AMQPExchange string
}

// Type represents the kind of backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is valid
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
