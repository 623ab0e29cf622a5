package domain

import "time"

// BorrowFilter is a set of predicates over borrows. All set predicates must hold.
// The zero value matches every borrow.
type BorrowFilter struct {
	borrowerIDs []string
	titleID     string
	active      *bool
	overdueAsOf *time.Time
}

func NewBorrowFilter() BorrowFilter {
	return BorrowFilter{}
}

// ByBorrowers restricts to borrows of any of the given borrowers.
func (f BorrowFilter) ByBorrowers(ids ...string) BorrowFilter {
	f.borrowerIDs = append(append([]string(nil), f.borrowerIDs...), ids...)
	return f
}

func (f BorrowFilter) ByTitle(titleID string) BorrowFilter {
	f.titleID = titleID
	return f
}

// Active restricts to borrows that have not been returned.
func (f BorrowFilter) Active() BorrowFilter {
	v := true
	f.active = &v
	return f
}

// Returned restricts to closed borrows.
func (f BorrowFilter) Returned() BorrowFilter {
	v := false
	f.active = &v
	return f
}

// OverdueAsOf restricts to outstanding borrows whose expected return day is on or before day.
func (f BorrowFilter) OverdueAsOf(day time.Time) BorrowFilter {
	d := Day(day)
	f.overdueAsOf = &d
	return f
}

func (f BorrowFilter) BorrowerIDs() []string { return f.borrowerIDs }

func (f BorrowFilter) TitleID() string { return f.titleID }

// ActiveState returns the active predicate and whether it is set.
func (f BorrowFilter) ActiveState() (active bool, ok bool) {
	if f.active == nil {
		return false, false
	}
	return *f.active, true
}

func (f BorrowFilter) OverdueDay() (time.Time, bool) {
	if f.overdueAsOf == nil {
		return time.Time{}, false
	}
	return *f.overdueAsOf, true
}

// Matches evaluates the filter against a single borrow.
func (f BorrowFilter) Matches(b Borrow) bool {
	if len(f.borrowerIDs) > 0 {
		found := false
		for _, id := range f.borrowerIDs {
			if id == b.BorrowerID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.titleID != "" && f.titleID != b.TitleID {
		return false
	}
	if active, ok := f.ActiveState(); ok && active != b.IsActive() {
		return false
	}
	if day, ok := f.OverdueDay(); ok && !b.IsOverdue(day) {
		return false
	}
	return true
}
