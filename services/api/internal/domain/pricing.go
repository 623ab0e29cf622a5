package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Charge is the price breakdown of a borrow at a given instant.
type Charge struct {
	Days    int
	Base    decimal.Decimal
	LateFee decimal.Decimal
	Total   decimal.Decimal
}

// PriceBorrow charges DailyFee per elapsed day up to the effective return date,
// plus the title's LateFee once when the borrow came back (or is still out) after
// its expected return date. The late fee is flat, not per day.
func PriceBorrow(b Borrow, t Title, now time.Time) Charge {
	days := DaysBetween(b.BorrowDate, b.EffectiveReturnDate(now))
	if days < 0 {
		days = 0
	}
	base := t.DailyFee.Mul(decimal.NewFromInt(int64(days)))

	late := decimal.Zero
	if b.IsLate(now) {
		late = t.LateFee
	}

	return Charge{
		Days:    days,
		Base:    base,
		LateFee: late,
		Total:   base.Add(late),
	}
}

// PlannedCharge prices the committed lending period (borrow date to expected return).
func PlannedCharge(b Borrow, t Title) decimal.Decimal {
	days := DaysBetween(b.BorrowDate, b.ExpectedReturnDate)
	if days < 1 {
		days = 1
	}
	return t.DailyFee.Mul(decimal.NewFromInt(int64(days)))
}
