package domain

import "time"

type BorrowStatus string

const (
	BorrowStatusOpen   BorrowStatus = "open"
	BorrowStatusClosed BorrowStatus = "closed"
)

// Borrow is one lending of a title to a borrower. Dates are calendar days in UTC.
// A nil ActualReturnDate means the book is still out.
type Borrow struct {
	ID                 string
	TitleID            string
	BorrowerID         string
	BorrowDate         time.Time
	ExpectedReturnDate time.Time
	ActualReturnDate   *time.Time
	CreatedAt          time.Time
}

func (b Borrow) Status() BorrowStatus {
	if b.ActualReturnDate == nil {
		return BorrowStatusOpen
	}
	return BorrowStatusClosed
}

func (b Borrow) IsActive() bool {
	return b.ActualReturnDate == nil
}

// EffectiveReturnDate is the actual return date when closed, otherwise today.
func (b Borrow) EffectiveReturnDate(now time.Time) time.Time {
	if b.ActualReturnDate != nil {
		return *b.ActualReturnDate
	}
	return Day(now)
}

// IsLate reports whether the effective return date is past the expected one.
func (b Borrow) IsLate(now time.Time) bool {
	return b.ExpectedReturnDate.Before(b.EffectiveReturnDate(now))
}

// IsOverdue reports whether the borrow is still out on or after its expected return day.
func (b Borrow) IsOverdue(today time.Time) bool {
	return b.ActualReturnDate == nil && !b.ExpectedReturnDate.After(Day(today))
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole calendar days from -> to.
func DaysBetween(from, to time.Time) int {
	return int(Day(to).Sub(Day(from)).Hours() / 24)
}
