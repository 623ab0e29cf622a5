package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Cover string

const (
	CoverHard Cover = "hard"
	CoverSoft Cover = "soft"
)

func (c Cover) Valid() bool {
	return c == CoverHard || c == CoverSoft
}

// Title is a lendable work. StockCount is only mutated by the inventory ledger.
type Title struct {
	ID         string
	Name       string
	Author     string
	Cover      Cover
	StockCount int
	DailyFee   decimal.Decimal
	LateFee    decimal.Decimal
	CreatedAt  time.Time
}

// Available reports whether at least one copy can be reserved.
func (t Title) Available() bool {
	return t.StockCount > 0
}
