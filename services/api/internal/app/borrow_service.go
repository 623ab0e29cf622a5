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

type BorrowRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateBorrow(ctx context.Context, borrow domain.Borrow) error
	GetBorrow(ctx context.Context, borrowID string) (domain.Borrow, error)
	GetBorrowForUpdate(ctx context.Context, borrowID string) (domain.Borrow, error)
	MarkReturned(ctx context.Context, borrowID string, returnedOn time.Time) error
}

// BorrowQuery lists borrows matching a composable filter.
type BorrowQuery interface {
	ListBorrows(ctx context.Context, filter domain.BorrowFilter) ([]domain.Borrow, error)
}

type PaymentOpener interface {
	Open(ctx context.Context, borrow domain.Borrow, kind domain.PaymentKind, amount *decimal.Decimal) (domain.PaymentIntent, error)
	ListForBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error)
}

type BorrowService struct {
	repo     BorrowRepository
	ledger   *InventoryLedger
	titles   TitleReader
	query    BorrowQuery
	payments PaymentOpener
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

type BorrowServiceOption func(*BorrowService)

func WithBorrowLogger(logger *slog.Logger) BorrowServiceOption {
	return func(s *BorrowService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBorrowNotifier sets the collaborator told about new borrows.
func WithBorrowNotifier(n Notifier) BorrowServiceOption {
	return func(s *BorrowService) {
		if n != nil {
			s.notifier = n
		}
	}
}

func NewBorrowService(
	repo BorrowRepository,
	ledger *InventoryLedger,
	titles TitleReader,
	query BorrowQuery,
	payments PaymentOpener,
	clk clock.Clock,
	opts ...BorrowServiceOption,
) *BorrowService {
	svc := &BorrowService{
		repo:     repo,
		ledger:   ledger,
		titles:   titles,
		query:    query,
		payments: payments,
		notifier: nopNotifier{},
		clock:    clk,
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type OpenBorrowInput struct {
	BorrowerID         string
	TitleID            string
	BorrowDate         time.Time
	ExpectedReturnDate time.Time
}

// OpenBorrowResult carries the committed borrow and the outcome of opening its
// payment. PaymentErr does not mean the borrow failed.
type OpenBorrowResult struct {
	Borrow     domain.Borrow
	Payment    *domain.PaymentIntent
	PaymentErr error
}

// Open lends one copy of a title. Stock is taken in the same transaction that
// persists the borrow; the payment intent is opened after commit.
func (s *BorrowService) Open(ctx context.Context, in OpenBorrowInput) (_ OpenBorrowResult, err error) {
	ctx, span := startSpan(ctx, spanBorrowOpen,
		attribute.String(attrTitleID, in.TitleID),
		attribute.String(attrBorrowerID, in.BorrowerID),
	)
	defer func() { endSpan(span, err) }()

	if in.BorrowerID == "" {
		return OpenBorrowResult{}, domain.ErrBorrowerRequired
	}
	if in.TitleID == "" {
		return OpenBorrowResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	today := domain.Day(now)
	borrowDate := today
	if !in.BorrowDate.IsZero() {
		borrowDate = domain.Day(in.BorrowDate)
	}
	expected := domain.Day(in.ExpectedReturnDate)
	if in.ExpectedReturnDate.IsZero() || expected.Before(borrowDate) || expected.Before(today) {
		return OpenBorrowResult{}, domain.ErrInvalidDateRange
	}

	borrow := domain.Borrow{
		ID:                 newUUID(),
		TitleID:            in.TitleID,
		BorrowerID:         in.BorrowerID,
		BorrowDate:         borrowDate,
		ExpectedReturnDate: expected,
		CreatedAt:          now,
	}

	var title domain.Title
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		reserved, err := s.ledger.Reserve(txCtx, in.TitleID)
		if err != nil {
			return err
		}
		title = reserved
		return s.repo.CreateBorrow(txCtx, borrow)
	})
	if err != nil {
		return OpenBorrowResult{}, err
	}

	s.logger.InfoContext(ctx, "borrow opened",
		"borrow_id", borrow.ID,
		"title_id", borrow.TitleID,
		"borrower_id", borrow.BorrowerID,
		"stock_left", title.StockCount,
	)
	s.notify(ctx, fmt.Sprintf("Borrowing create: Book %s, User %s", title.Name, borrow.BorrowerID))

	result := OpenBorrowResult{Borrow: borrow}
	amount := domain.PlannedCharge(borrow, title)
	payment, err := s.payments.Open(ctx, borrow, domain.PaymentKindPayment, &amount)
	if err != nil {
		s.logger.ErrorContext(ctx, "open borrow payment failed", "borrow_id", borrow.ID, "error", err)
		result.PaymentErr = err
		return result, nil
	}
	result.Payment = &payment
	return result, nil
}

type CloseBorrowInput struct {
	BorrowID         string
	ActualReturnDate time.Time
}

type CloseBorrowResult struct {
	Borrow  domain.Borrow
	Fine    *domain.PaymentIntent
	FineErr error
}

// Close records the return and puts the copy back in stock. A late return opens
// a fine for whatever the borrow costs beyond what was already billed.
func (s *BorrowService) Close(ctx context.Context, in CloseBorrowInput) (_ CloseBorrowResult, err error) {
	ctx, span := startSpan(ctx, spanBorrowClose, attribute.String(attrBorrowID, in.BorrowID))
	defer func() { endSpan(span, err) }()

	if in.BorrowID == "" {
		return CloseBorrowResult{}, domain.ErrInvalidID
	}

	now := s.clock.Now()
	returnedOn := domain.Day(now)
	if !in.ActualReturnDate.IsZero() {
		returnedOn = domain.Day(in.ActualReturnDate)
	}
	if returnedOn.After(domain.Day(now)) {
		return CloseBorrowResult{}, domain.ErrInvalidDateRange
	}

	var borrow domain.Borrow
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		locked, err := s.repo.GetBorrowForUpdate(txCtx, in.BorrowID)
		if err != nil {
			return err
		}
		if !locked.IsActive() {
			return domain.ErrAlreadyReturned
		}
		if returnedOn.Before(locked.BorrowDate) {
			return domain.ErrInvalidDateRange
		}
		if err := s.repo.MarkReturned(txCtx, locked.ID, returnedOn); err != nil {
			return err
		}
		if err := s.ledger.Release(txCtx, locked.TitleID); err != nil {
			return err
		}
		locked.ActualReturnDate = &returnedOn
		borrow = locked
		return nil
	})
	if err != nil {
		return CloseBorrowResult{}, err
	}

	s.logger.InfoContext(ctx, "borrow closed",
		"borrow_id", borrow.ID,
		"title_id", borrow.TitleID,
		"late", borrow.IsLate(now),
	)

	title, titleErr := s.titles.GetTitle(ctx, borrow.TitleID)
	name := borrow.TitleID
	if titleErr == nil {
		name = title.Name
	}
	s.notify(ctx, fmt.Sprintf("Borrowing returned: Book %s, User %s", name, borrow.BorrowerID))

	result := CloseBorrowResult{Borrow: borrow}
	if !borrow.IsLate(now) {
		return result, nil
	}
	if titleErr != nil {
		s.logger.ErrorContext(ctx, "open fine failed", "borrow_id", borrow.ID, "error", titleErr)
		result.FineErr = titleErr
		return result, nil
	}

	fine, err := s.openFine(ctx, borrow, title, now)
	if err != nil {
		s.logger.ErrorContext(ctx, "open fine failed", "borrow_id", borrow.ID, "error", err)
		result.FineErr = err
		return result, nil
	}
	result.Fine = fine
	return result, nil
}

func (s *BorrowService) openFine(ctx context.Context, borrow domain.Borrow, title domain.Title, now time.Time) (*domain.PaymentIntent, error) {
	existing, err := s.payments.ListForBorrow(ctx, borrow.ID)
	if err != nil {
		return nil, err
	}

	amount := domain.PriceBorrow(borrow, title, now).Total
	for _, p := range existing {
		if p.Kind == domain.PaymentKindPayment {
			amount = amount.Sub(p.AmountDue)
		}
	}
	if !amount.IsPositive() {
		return nil, nil
	}

	fine, err := s.payments.Open(ctx, borrow, domain.PaymentKindFine, &amount)
	if err != nil {
		return nil, err
	}
	return &fine, nil
}

func (s *BorrowService) Get(ctx context.Context, borrowID string) (domain.Borrow, error) {
	if borrowID == "" {
		return domain.Borrow{}, domain.ErrInvalidID
	}
	return s.repo.GetBorrow(ctx, borrowID)
}

func (s *BorrowService) List(ctx context.Context, filter domain.BorrowFilter) ([]domain.Borrow, error) {
	return s.query.ListBorrows(ctx, filter)
}

// Quote prices a borrow as of now.
func (s *BorrowService) Quote(ctx context.Context, borrowID string) (domain.Charge, error) {
	borrow, err := s.Get(ctx, borrowID)
	if err != nil {
		return domain.Charge{}, err
	}
	title, err := s.titles.GetTitle(ctx, borrow.TitleID)
	if err != nil {
		return domain.Charge{}, err
	}
	return domain.PriceBorrow(borrow, title, s.clock.Now()), nil
}

func (s *BorrowService) notify(ctx context.Context, message string) {
	if err := s.notifier.Notify(ctx, message); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "notification failed", "error", err)
	}
}
