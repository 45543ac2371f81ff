package core

import (
	"errors"
	"time"
)

var (
	ErrEmptyMerchant = errors.New("merchant must not be empty")
)

// ReceiptItem is a single line on a receipt. Price is the line total in
// whole won.
type ReceiptItem struct {
	Name     string `json:"name"`
	Price    int64  `json:"price"`
	Quantity int64  `json:"quantity"`
}

// Receipt is one purchase. Total is whole won; PurchasedAt carries the
// purchase date only, the time of day is not tracked.
type Receipt struct {
	ID          int64
	UserID      int64
	Merchant    string
	Category    string
	Total       int64
	PurchasedAt time.Time
	Memo        string
	Items       []ReceiptItem
}

func (r Receipt) Validate() error {
	if r.Merchant == "" {
		return ErrEmptyMerchant
	}
	if r.Total < 0 {
		return ErrNegativeAmount
	}
	for _, item := range r.Items {
		if item.Price < 0 {
			return ErrNegativeAmount
		}
	}
	return nil
}

// MonthTotal is one row of the monthly spend report.
type MonthTotal struct {
	Year  int
	Month int
	Total int64
	Count int64
}

// CategoryTotal is one category's share of a month.
type CategoryTotal struct {
	Category string
	Total    int64
	Count    int64
}
