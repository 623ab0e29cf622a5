package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentKind string

const (
	PaymentKindPayment PaymentKind = "payment"
	PaymentKindFine    PaymentKind = "fine"
)

func (k PaymentKind) Valid() bool {
	return k == PaymentKindPayment || k == PaymentKindFine
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

func (s PaymentStatus) Valid() bool {
	return s == PaymentStatusPending || s == PaymentStatusConfirmed
}

// PaymentIntent ties a borrow to one external payment session.
// AmountDue is fixed when the intent is opened.
type PaymentIntent struct {
	ID                string
	BorrowID          string
	Kind              PaymentKind
	Status            PaymentStatus
	ExternalSessionID string
	SessionURL        string
	AmountDue         decimal.Decimal
	CreatedAt         time.Time
	ConfirmedAt       *time.Time
}

func (p PaymentIntent) IsConfirmed() bool {
	return p.Status == PaymentStatusConfirmed
}

// SessionStatus is the payment provider's authoritative view of a session.
type SessionStatus string

const (
	SessionStatusPaid    SessionStatus = "paid"
	SessionStatusUnpaid  SessionStatus = "unpaid"
	SessionStatusUnknown SessionStatus = "unknown"
)

// PaymentFilter narrows a payment listing. Empty fields match everything.
type PaymentFilter struct {
	BorrowerIDs []string
	Status      PaymentStatus
	Kind        PaymentKind
}
