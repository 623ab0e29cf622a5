package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

const pendingPaymentIndex = "payment_intents_one_pending_idx"

type PaymentRepository struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

func (r *PaymentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

const paymentColumns = `id, borrow_id, kind, status, external_session_id, session_url, amount_due, created_at, confirmed_at`

func scanPayment(row pgx.Row) (domain.PaymentIntent, error) {
	var p domain.PaymentIntent
	var kind, status string
	err := row.Scan(
		&p.ID,
		&p.BorrowID,
		&kind,
		&status,
		&p.ExternalSessionID,
		&p.SessionURL,
		&p.AmountDue,
		&p.CreatedAt,
		&p.ConfirmedAt,
	)
	p.Kind = domain.PaymentKind(kind)
	p.Status = domain.PaymentStatus(status)
	return p, err
}

// FindPendingPayment returns nil when the borrow has no pending intent of kind.
func (r *PaymentRepository) FindPendingPayment(ctx context.Context, borrowID string, kind domain.PaymentKind) (*domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + `
FROM payment_intents
WHERE borrow_id = $1 AND kind = $2 AND status = 'pending'`

	p, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, query, borrowID, string(kind)))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending payment: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) CreatePayment(ctx context.Context, payment domain.PaymentIntent) error {
	const stmt = `
INSERT INTO payment_intents (id, borrow_id, kind, status, external_session_id, session_url, amount_due, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		payment.ID,
		payment.BorrowID,
		string(payment.Kind),
		string(payment.Status),
		payment.ExternalSessionID,
		payment.SessionURL,
		payment.AmountDue,
		payment.CreatedAt,
	)
	if err != nil {
		if _, constraint := pgErrorCode(err); isUniqueViolation(err) && constraint == pendingPaymentIndex {
			return domain.ErrPaymentAlreadyOpen
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrBorrowNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidAmount
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetPaymentBySessionID(ctx context.Context, sessionID string) (domain.PaymentIntent, error) {
	return r.getBySession(ctx, `SELECT `+paymentColumns+` FROM payment_intents WHERE external_session_id = $1`, sessionID)
}

func (r *PaymentRepository) GetPaymentBySessionIDForUpdate(ctx context.Context, sessionID string) (domain.PaymentIntent, error) {
	return r.getBySession(ctx, `SELECT `+paymentColumns+` FROM payment_intents WHERE external_session_id = $1 FOR UPDATE`, sessionID)
}

func (r *PaymentRepository) getBySession(ctx context.Context, query, sessionID string) (domain.PaymentIntent, error) {
	p, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, domain.ErrPaymentNotFound
		}
		return domain.PaymentIntent{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// MarkPaymentConfirmed moves a pending intent to confirmed. Confirmed intents
// are never touched again.
func (r *PaymentRepository) MarkPaymentConfirmed(ctx context.Context, paymentID string, at time.Time) error {
	const stmt = `
UPDATE payment_intents
SET status = 'confirmed', confirmed_at = $2
WHERE id = $1 AND status = 'pending'`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, paymentID, at)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("confirm payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) GetPayment(ctx context.Context, paymentID string) (domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_intents WHERE id = $1`

	p, err := scanPayment(conn(ctx, r.pool).QueryRow(ctx, query, paymentID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.PaymentIntent{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.PaymentIntent{}, domain.ErrPaymentNotFound
		}
		return domain.PaymentIntent{}, fmt.Errorf("get payment: %w", err)
	}
	return p, nil
}

// buildPaymentListSQL renders a payment listing. The borrower predicate joins
// borrows, since payment intents only reference the borrow.
func buildPaymentListSQL(filter domain.PaymentFilter) (string, []any, error) {
	ds := goqu.Dialect("postgres").
		From(goqu.T("payment_intents").As("p")).
		Select(
			goqu.I("p.id"), goqu.I("p.borrow_id"), goqu.I("p.kind"), goqu.I("p.status"),
			goqu.I("p.external_session_id"), goqu.I("p.session_url"), goqu.I("p.amount_due"),
			goqu.I("p.created_at"), goqu.I("p.confirmed_at"),
		)

	var where []exp.Expression
	if len(filter.BorrowerIDs) > 0 {
		ds = ds.Join(goqu.T("borrows").As("b"), goqu.On(goqu.I("b.id").Eq(goqu.I("p.borrow_id"))))
		where = append(where, goqu.I("b.borrower_id").In(filter.BorrowerIDs))
	}
	if filter.Status != "" {
		where = append(where, goqu.I("p.status").Eq(string(filter.Status)))
	}
	if filter.Kind != "" {
		where = append(where, goqu.I("p.kind").Eq(string(filter.Kind)))
	}

	return ds.
		Where(where...).
		Order(goqu.I("p.created_at").Asc(), goqu.I("p.id").Asc()).
		Prepared(true).
		ToSQL()
}

func (r *PaymentRepository) ListPayments(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentIntent, error) {
	query, args, err := buildPaymentListSQL(filter)
	if err != nil {
		return nil, fmt.Errorf("build payment query: %w", err)
	}
	return r.queryPayments(ctx, query, args...)
}

func (r *PaymentRepository) ListPaymentsByBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error) {
	query := `SELECT ` + paymentColumns + `
FROM payment_intents
WHERE borrow_id = $1
ORDER BY created_at ASC, id ASC`

	return r.queryPayments(ctx, query, borrowID)
}

func (r *PaymentRepository) queryPayments(ctx context.Context, query string, args ...any) ([]domain.PaymentIntent, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []domain.PaymentIntent
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("iterate payments: %w", err)
	}
	return payments, nil
}
