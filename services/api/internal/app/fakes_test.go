package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

type txMarker struct{}

// fakeStore is an in-memory store shared by every repository interface. WithTx
// holds a single lock for the whole transaction and rolls state back when fn
// fails; calls outside a transaction take the same lock per call.
type fakeStore struct {
	txMu sync.Mutex

	titles   map[string]domain.Title
	borrows  map[string]domain.Borrow
	payments []domain.PaymentIntent

	listErr error
}

func newFakeStore(titles ...domain.Title) *fakeStore {
	s := &fakeStore{
		titles:  make(map[string]domain.Title),
		borrows: make(map[string]domain.Borrow),
	}
	for _, t := range titles {
		s.titles[t.ID] = t
	}
	return s
}

func (s *fakeStore) enter(ctx context.Context) func() {
	if ctx.Value(txMarker{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func (s *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	titles := make(map[string]domain.Title, len(s.titles))
	for k, v := range s.titles {
		titles[k] = v
	}
	borrows := make(map[string]domain.Borrow, len(s.borrows))
	for k, v := range s.borrows {
		borrows[k] = v
	}
	payments := append([]domain.PaymentIntent(nil), s.payments...)

	if err := fn(context.WithValue(ctx, txMarker{}, true)); err != nil {
		s.titles, s.borrows, s.payments = titles, borrows, payments
		return err
	}
	return nil
}

func (s *fakeStore) stock(titleID string) int {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return s.titles[titleID].StockCount
}

func (s *fakeStore) borrowCount() int {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return len(s.borrows)
}

func (s *fakeStore) paymentsOf(borrowID string) []domain.PaymentIntent {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	var out []domain.PaymentIntent
	for _, p := range s.payments {
		if p.BorrowID == borrowID {
			out = append(out, p)
		}
	}
	return out
}

func (s *fakeStore) CreateTitle(ctx context.Context, title domain.Title) error {
	defer s.enter(ctx)()
	s.titles[title.ID] = title
	return nil
}

func (s *fakeStore) GetTitle(ctx context.Context, titleID string) (domain.Title, error) {
	defer s.enter(ctx)()
	t, ok := s.titles[titleID]
	if !ok {
		return domain.Title{}, domain.ErrTitleNotFound
	}
	return t, nil
}

func (s *fakeStore) ListTitles(ctx context.Context) ([]domain.Title, error) {
	defer s.enter(ctx)()
	out := make([]domain.Title, 0, len(s.titles))
	for _, t := range s.titles {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *fakeStore) GetTitleForUpdate(ctx context.Context, titleID string) (domain.Title, error) {
	return s.GetTitle(ctx, titleID)
}

func (s *fakeStore) AdjustStock(ctx context.Context, titleID string, delta int) error {
	defer s.enter(ctx)()
	t, ok := s.titles[titleID]
	if !ok {
		return domain.ErrTitleNotFound
	}
	if t.StockCount+delta < 0 {
		return fmt.Errorf("stock_count check violated for %s", titleID)
	}
	t.StockCount += delta
	s.titles[titleID] = t
	return nil
}

func (s *fakeStore) CreateBorrow(ctx context.Context, borrow domain.Borrow) error {
	defer s.enter(ctx)()
	if _, ok := s.titles[borrow.TitleID]; !ok {
		return domain.ErrTitleNotFound
	}
	s.borrows[borrow.ID] = borrow
	return nil
}

func (s *fakeStore) GetBorrow(ctx context.Context, borrowID string) (domain.Borrow, error) {
	defer s.enter(ctx)()
	b, ok := s.borrows[borrowID]
	if !ok {
		return domain.Borrow{}, domain.ErrBorrowNotFound
	}
	return b, nil
}

func (s *fakeStore) GetBorrowForUpdate(ctx context.Context, borrowID string) (domain.Borrow, error) {
	return s.GetBorrow(ctx, borrowID)
}

func (s *fakeStore) MarkReturned(ctx context.Context, borrowID string, returnedOn time.Time) error {
	defer s.enter(ctx)()
	b, ok := s.borrows[borrowID]
	if !ok {
		return domain.ErrBorrowNotFound
	}
	b.ActualReturnDate = &returnedOn
	s.borrows[borrowID] = b
	return nil
}

func (s *fakeStore) ListBorrows(ctx context.Context, filter domain.BorrowFilter) ([]domain.Borrow, error) {
	defer s.enter(ctx)()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Borrow
	for _, b := range s.borrows {
		if filter.Matches(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowDate.Equal(out[j].BorrowDate) {
			return out[i].BorrowDate.Before(out[j].BorrowDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *fakeStore) FindPendingPayment(ctx context.Context, borrowID string, kind domain.PaymentKind) (*domain.PaymentIntent, error) {
	defer s.enter(ctx)()
	return s.findPending(borrowID, kind), nil
}

func (s *fakeStore) findPending(borrowID string, kind domain.PaymentKind) *domain.PaymentIntent {
	for _, p := range s.payments {
		if p.BorrowID == borrowID && p.Kind == kind && p.Status == domain.PaymentStatusPending {
			copy := p
			return &copy
		}
	}
	return nil
}

func (s *fakeStore) CreatePayment(ctx context.Context, payment domain.PaymentIntent) error {
	defer s.enter(ctx)()
	return s.insertPayment(payment)
}

func (s *fakeStore) insertPayment(payment domain.PaymentIntent) error {
	if s.findPending(payment.BorrowID, payment.Kind) != nil {
		return domain.ErrPaymentAlreadyOpen
	}
	s.payments = append(s.payments, payment)
	return nil
}

func (s *fakeStore) GetPaymentBySessionID(ctx context.Context, sessionID string) (domain.PaymentIntent, error) {
	defer s.enter(ctx)()
	for _, p := range s.payments {
		if p.ExternalSessionID == sessionID {
			return p, nil
		}
	}
	return domain.PaymentIntent{}, domain.ErrPaymentNotFound
}

func (s *fakeStore) GetPaymentBySessionIDForUpdate(ctx context.Context, sessionID string) (domain.PaymentIntent, error) {
	return s.GetPaymentBySessionID(ctx, sessionID)
}

func (s *fakeStore) MarkPaymentConfirmed(ctx context.Context, paymentID string, at time.Time) error {
	defer s.enter(ctx)()
	for i, p := range s.payments {
		if p.ID == paymentID {
			s.payments[i].Status = domain.PaymentStatusConfirmed
			s.payments[i].ConfirmedAt = &at
			return nil
		}
	}
	return domain.ErrPaymentNotFound
}

func (s *fakeStore) ListPaymentsByBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error) {
	defer s.enter(ctx)()
	var out []domain.PaymentIntent
	for _, p := range s.payments {
		if p.BorrowID == borrowID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) GetPayment(ctx context.Context, paymentID string) (domain.PaymentIntent, error) {
	defer s.enter(ctx)()
	for _, p := range s.payments {
		if p.ID == paymentID {
			return p, nil
		}
	}
	return domain.PaymentIntent{}, domain.ErrPaymentNotFound
}

func (s *fakeStore) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentIntent, error) {
	defer s.enter(ctx)()
	var out []domain.PaymentIntent
	for _, p := range s.payments {
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.Kind != "" && p.Kind != filter.Kind {
			continue
		}
		if len(filter.BorrowerIDs) > 0 && !slices.Contains(filter.BorrowerIDs, s.borrows[p.BorrowID].BorrowerID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	next     int
	created  []SessionRequest
	statuses map[string]domain.SessionStatus

	createErr error
	statusErr error
	onCreate  func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]domain.SessionStatus)}
}

func (g *fakeGateway) CreateSession(_ context.Context, req SessionRequest) (Session, error) {
	g.mu.Lock()
	if g.createErr != nil {
		g.mu.Unlock()
		return Session{}, g.createErr
	}
	g.next++
	id := fmt.Sprintf("cs_test_%d", g.next)
	g.created = append(g.created, req)
	g.statuses[id] = domain.SessionStatusUnpaid
	hook := g.onCreate
	g.mu.Unlock()

	if hook != nil {
		hook()
	}
	return Session{ID: id, URL: "https://checkout.example.test/" + id}, nil
}

func (g *fakeGateway) GetSessionStatus(_ context.Context, sessionID string) (domain.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.statusErr != nil {
		return "", g.statusErr
	}
	status, ok := g.statuses[sessionID]
	if !ok {
		return domain.SessionStatusUnknown, nil
	}
	return status, nil
}

func (g *fakeGateway) markPaid(sessionID string) {
	g.mu.Lock()
	g.statuses[sessionID] = domain.SessionStatusPaid
	g.mu.Unlock()
}

func (g *fakeGateway) sessionsCreated() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.created)
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(_ context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return n.err
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

var errProviderDown = errors.New("provider down")
