package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

const nothingOverdueMessage = "No borrowings overdue today!"

// SweepReport summarises one overdue sweep.
type SweepReport struct {
	Day      time.Time
	Overdue  int
	Notified int
	Failed   int
}

// OverdueScanner finds outstanding borrows past their expected return day and
// tells the notifier about each of them. It keeps no state between sweeps.
type OverdueScanner struct {
	query    BorrowQuery
	titles   TitleReader
	notifier Notifier
	clock    clock.Clock
	logger   *slog.Logger
}

type OverdueScannerOption func(*OverdueScanner)

func WithScannerLogger(logger *slog.Logger) OverdueScannerOption {
	return func(s *OverdueScanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewOverdueScanner(query BorrowQuery, titles TitleReader, notifier Notifier, clk clock.Clock, opts ...OverdueScannerOption) *OverdueScanner {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	s := &OverdueScanner{
		query:    query,
		titles:   titles,
		notifier: notifier,
		clock:    clk,
		logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep notifies once per overdue borrow, or once with a "nothing overdue"
// message when there are none. Notification failures are counted, not returned.
func (s *OverdueScanner) Sweep(ctx context.Context) (_ SweepReport, err error) {
	ctx, span := startSpan(ctx, spanOverdueSweep)
	defer func() { endSpan(span, err) }()

	today := clock.Today(s.clock)
	report := SweepReport{Day: today}

	borrows, err := s.query.ListBorrows(ctx, domain.NewBorrowFilter().Active().OverdueAsOf(today))
	if err != nil {
		return SweepReport{}, err
	}
	report.Overdue = len(borrows)
	span.SetAttributes(attribute.Int("overdue.count", report.Overdue))

	if len(borrows) == 0 {
		s.deliver(ctx, nothingOverdueMessage, &report)
		s.logger.InfoContext(ctx, "overdue sweep finished", "day", today.Format(time.DateOnly), "overdue", 0)
		return report, nil
	}

	names := make(map[string]string)
	for _, b := range borrows {
		name, ok := names[b.TitleID]
		if !ok {
			title, err := s.titles.GetTitle(ctx, b.TitleID)
			if err != nil {
				s.logger.WarnContext(ctx, "overdue title lookup failed", "title_id", b.TitleID, "error", err)
				name = b.TitleID
			} else {
				name = title.Name
			}
			names[b.TitleID] = name
		}
		s.deliver(ctx, fmt.Sprintf("Borrowing overdue: Book %s, User %s", name, b.BorrowerID), &report)
	}

	s.logger.InfoContext(ctx, "overdue sweep finished",
		"day", today.Format(time.DateOnly),
		"overdue", report.Overdue,
		"notified", report.Notified,
		"failed", report.Failed,
	)
	return report, nil
}

func (s *OverdueScanner) deliver(ctx context.Context, message string, report *SweepReport) {
	if err := s.notifier.Notify(ctx, message); err != nil {
		report.Failed++
		s.logger.WarnContext(ctx, "overdue notification failed", "error", err)
		return
	}
	report.Notified++
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *OverdueScanner) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
			s.logger.ErrorContext(ctx, "overdue sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
