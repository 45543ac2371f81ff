package categories

import "context"

// Ports for the store's outbound adapters.
type (
	// Backend is the persistent key-value cell the collection lives in.
	// Load reports found=false when no value exists under the key.
	Backend interface {
		Load(ctx context.Context, key string) (value string, found bool, err error)
		Store(ctx context.Context, key, value string) error
	}

	// Notifier broadcasts a change event to every other context sharing the
	// backend. The event carries only the key and the writer's origin id;
	// receivers re-read the current value from the backend themselves.
	Notifier interface {
		Publish(ctx context.Context, change Change) error
	}
)

// Change is the cross-context change event payload.
type Change struct {
	Event  string `json:"event"`
	Key    string `json:"key"`
	Origin string `json:"origin"`
}
