package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Fixed external contracts shared by every context of the application.
// CategoriesKey is the storage key the serialized collection lives under;
// CategoriesChangedEvent is the event name used to signal a change to other
// contexts. Both are stable and must not change between releases.
const (
	CategoriesKey          = "expense_categories"
	CategoriesChangedEvent = "expense_categories:changed"
)

// DefaultIcon is the placeholder icon id used when a category is created
// without an explicit icon.
const DefaultIcon = "default"

var (
	ErrEmptyName       = errors.New("empty category name")
	ErrNegativeAmount  = errors.New("negative amount")
	ErrIndexOutOfRange = errors.New("category index out of range")
)

// Category is a named expense bucket. Amounts are whole KRW, no minor units.
// The JSON field names are part of the persisted-state contract.
type Category struct {
	Name   string `json:"name"`
	Spent  int64  `json:"spent"`
	Budget int64  `json:"budget"`
	Icon   string `json:"icon"`
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyName
	}
	if len(c.Name) > 100 {
		return errors.New("category name too long (max 100 characters)")
	}
	if c.Spent < 0 || c.Budget < 0 {
		return ErrNegativeAmount
	}
	return nil
}

// Remaining returns the unspent part of the budget, which may be negative
// when the category is overspent.
func (c Category) Remaining() int64 {
	return c.Budget - c.Spent
}

// Overspent reports whether spending has exceeded the budget ceiling.
// Categories without a budget (budget == 0) are never overspent.
func (c Category) Overspent() bool {
	return c.Budget > 0 && c.Spent > c.Budget
}

// Collection is the ordered category list. Order is display order and is
// significant for index-addressed operations.
type Collection []Category

func (cc Collection) Validate() error {
	for i, c := range cc {
		if err := c.Validate(); err != nil {
			return fmt.Errorf("category %d (%s): %w", i, c.Name, err)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can mutate freely without affecting
// the collection handed out by the store.
func (cc Collection) Clone() Collection {
	if cc == nil {
		return nil
	}
	out := make(Collection, len(cc))
	copy(out, cc)
	return out
}

// EncodeCollection serializes the collection to the persisted JSON form:
// an array of objects with exactly the fields name, spent, budget, icon.
func EncodeCollection(cc Collection) (string, error) {
	b, err := json.Marshal(cc)
	if err != nil {
		return "", fmt.Errorf("encode categories: %w", err)
	}
	return string(b), nil
}

// DecodeCollection parses the persisted JSON form. A JSON null decodes to an
// empty collection; anything malformed is an error so the caller can fall
// back to the bootstrap defaults.
func DecodeCollection(raw string) (Collection, error) {
	var cc Collection
	if err := json.Unmarshal([]byte(raw), &cc); err != nil {
		return nil, fmt.Errorf("decode categories: %w", err)
	}
	return cc, nil
}
