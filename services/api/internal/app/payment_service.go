package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"

	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	FindPendingPayment(ctx context.Context, borrowID string, kind domain.PaymentKind) (*domain.PaymentIntent, error)
	CreatePayment(ctx context.Context, payment domain.PaymentIntent) error
	GetPaymentBySessionID(ctx context.Context, sessionID string) (domain.PaymentIntent, error)
	GetPaymentBySessionIDForUpdate(ctx context.Context, sessionID string) (domain.PaymentIntent, error)
	MarkPaymentConfirmed(ctx context.Context, paymentID string, at time.Time) error
	ListPaymentsByBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error)
	GetPayment(ctx context.Context, paymentID string) (domain.PaymentIntent, error)
	ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentIntent, error)
}

type TitleReader interface {
	GetTitle(ctx context.Context, titleID string) (domain.Title, error)
}

// SessionRequest describes the checkout session to open with the payment provider.
type SessionRequest struct {
	Amount      decimal.Decimal
	Description string
	Reference   string
}

type Session struct {
	ID  string
	URL string
}

// PaymentGateway is the external payment provider.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req SessionRequest) (Session, error)
	GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error)
}

// PaymentService reconciles borrows with external payment sessions.
type PaymentService struct {
	repo    PaymentRepository
	titles  TitleReader
	gateway PaymentGateway
	clock   clock.Clock
	logger  *slog.Logger
}

type PaymentServiceOption func(*PaymentService)

func WithPaymentLogger(logger *slog.Logger) PaymentServiceOption {
	return func(s *PaymentService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewPaymentService(repo PaymentRepository, titles TitleReader, gateway PaymentGateway, clk clock.Clock, opts ...PaymentServiceOption) *PaymentService {
	svc := &PaymentService{
		repo:    repo,
		titles:  titles,
		gateway: gateway,
		clock:   clk,
		logger:  discardLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

const cancelMessage = "Payment was cancelled. You can pay later, but the session is available for only 24 hours."

// Open returns the pending intent of kind for the borrow, creating one when none exists.
// A nil amount prices the borrow as of now.
func (s *PaymentService) Open(ctx context.Context, borrow domain.Borrow, kind domain.PaymentKind, amount *decimal.Decimal) (_ domain.PaymentIntent, err error) {
	ctx, span := startSpan(ctx, spanPaymentOpen,
		attribute.String(attrBorrowID, borrow.ID),
		attribute.String(attrPaymentKind, string(kind)),
	)
	defer func() { endSpan(span, err) }()

	if !kind.Valid() {
		return domain.PaymentIntent{}, domain.ErrInvalidPaymentKind
	}

	if existing, err := s.repo.FindPendingPayment(ctx, borrow.ID, kind); err != nil {
		return domain.PaymentIntent{}, err
	} else if existing != nil {
		return *existing, nil
	}

	title, err := s.titles.GetTitle(ctx, borrow.TitleID)
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	now := s.clock.Now()
	due := domain.PriceBorrow(borrow, title, now).Total
	if amount != nil {
		due = *amount
	}
	due = due.Round(2)
	if !due.IsPositive() {
		return domain.PaymentIntent{}, domain.ErrInvalidAmount
	}

	session, err := s.gateway.CreateSession(ctx, SessionRequest{
		Amount:      due,
		Description: sessionDescription(kind, title),
		Reference:   borrow.ID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "create payment session failed", "borrow_id", borrow.ID, "kind", kind, "error", err)
		return domain.PaymentIntent{}, fmt.Errorf("%w: %v", domain.ErrPaymentProviderUnavailable, err)
	}

	payment := domain.PaymentIntent{
		ID:                newUUID(),
		BorrowID:          borrow.ID,
		Kind:              kind,
		Status:            domain.PaymentStatusPending,
		ExternalSessionID: session.ID,
		SessionURL:        session.URL,
		AmountDue:         due,
		CreatedAt:         now,
	}

	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		// A concurrent Open for the same borrow and kind won; its session is the one to keep.
		if errors.Is(err, domain.ErrPaymentAlreadyOpen) {
			existing, findErr := s.repo.FindPendingPayment(ctx, borrow.ID, kind)
			if findErr != nil {
				return domain.PaymentIntent{}, findErr
			}
			if existing != nil {
				return *existing, nil
			}
		}
		return domain.PaymentIntent{}, err
	}

	s.logger.InfoContext(ctx, "payment opened",
		"payment_id", payment.ID,
		"borrow_id", borrow.ID,
		"kind", kind,
		"amount_due", due.StringFixed(2),
	)
	return payment, nil
}

type ConfirmOutcome string

const (
	ConfirmOutcomeConfirmed        ConfirmOutcome = "confirmed"
	ConfirmOutcomeAlreadyConfirmed ConfirmOutcome = "already_confirmed"
	ConfirmOutcomeNotPaid          ConfirmOutcome = "not_paid"
)

type ConfirmResult struct {
	Payment domain.PaymentIntent
	Outcome ConfirmOutcome
}

// Confirm asks the provider for the session's status and marks the intent confirmed
// once it is paid. Repeated callbacks for a confirmed session are answered with
// the current state.
func (s *PaymentService) Confirm(ctx context.Context, sessionID string) (_ ConfirmResult, err error) {
	ctx, span := startSpan(ctx, spanPaymentConfirm, attribute.String(attrSessionID, sessionID))
	defer func() { endSpan(span, err) }()

	if sessionID == "" {
		return ConfirmResult{}, domain.ErrPaymentNotFound
	}

	payment, err := s.repo.GetPaymentBySessionID(ctx, sessionID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if payment.IsConfirmed() {
		return ConfirmResult{Payment: payment, Outcome: ConfirmOutcomeAlreadyConfirmed}, nil
	}

	status, err := s.gateway.GetSessionStatus(ctx, sessionID)
	if err != nil {
		s.logger.ErrorContext(ctx, "get payment session status failed", "session_id", sessionID, "error", err)
		return ConfirmResult{}, fmt.Errorf("%w: %v", domain.ErrPaymentProviderUnavailable, err)
	}
	if status != domain.SessionStatusPaid {
		return ConfirmResult{Payment: payment, Outcome: ConfirmOutcomeNotPaid}, nil
	}

	now := s.clock.Now()
	var result ConfirmResult
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetPaymentBySessionIDForUpdate(txCtx, sessionID)
		if err != nil {
			return err
		}
		if locked.IsConfirmed() {
			result = ConfirmResult{Payment: locked, Outcome: ConfirmOutcomeAlreadyConfirmed}
			return nil
		}
		if err := s.repo.MarkPaymentConfirmed(txCtx, locked.ID, now); err != nil {
			return err
		}
		locked.Status = domain.PaymentStatusConfirmed
		locked.ConfirmedAt = &now
		result = ConfirmResult{Payment: locked, Outcome: ConfirmOutcomeConfirmed}
		return nil
	})
	if err != nil {
		return ConfirmResult{}, err
	}

	if result.Outcome == ConfirmOutcomeConfirmed {
		s.logger.InfoContext(ctx, "payment confirmed", "payment_id", result.Payment.ID, "borrow_id", result.Payment.BorrowID)
	}
	return result, nil
}

type CancelResult struct {
	Message string
	Payment *domain.PaymentIntent
}

// Cancel records that the payer abandoned a checkout session. It never changes
// payment status, the borrow or the stock; the session can still be paid later.
func (s *PaymentService) Cancel(ctx context.Context, sessionID string) (CancelResult, error) {
	result := CancelResult{Message: cancelMessage}
	if sessionID == "" {
		s.logger.InfoContext(ctx, "payment session abandoned")
		return result, nil
	}

	payment, err := s.repo.GetPaymentBySessionID(ctx, sessionID)
	switch {
	case errors.Is(err, domain.ErrPaymentNotFound):
		s.logger.WarnContext(ctx, "payment session abandoned for unknown session", "session_id", sessionID)
		return result, nil
	case err != nil:
		return CancelResult{}, err
	}

	s.logger.InfoContext(ctx, "payment session abandoned",
		"session_id", sessionID,
		"payment_id", payment.ID,
		"borrow_id", payment.BorrowID,
	)
	result.Payment = &payment
	return result, nil
}

func (s *PaymentService) ListForBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error) {
	if borrowID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListPaymentsByBorrow(ctx, borrowID)
}

func (s *PaymentService) Get(ctx context.Context, paymentID string) (domain.PaymentIntent, error) {
	if paymentID == "" {
		return domain.PaymentIntent{}, domain.ErrInvalidID
	}
	return s.repo.GetPayment(ctx, paymentID)
}

// List returns payment intents across borrows, oldest first.
func (s *PaymentService) List(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentIntent, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidPaymentKind
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, domain.ErrInvalidPaymentStatus
	}
	return s.repo.ListPayments(ctx, filter)
}

func sessionDescription(kind domain.PaymentKind, title domain.Title) string {
	if kind == domain.PaymentKindFine {
		return "Late return fine: " + title.Name
	}
	return "Book borrowing: " + title.Name
}
