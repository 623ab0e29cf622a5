package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

type BorrowRepository struct {
	pool *pgxpool.Pool
}

func NewBorrowRepository(pool *pgxpool.Pool) *BorrowRepository {
	return &BorrowRepository{pool: pool}
}

func (r *BorrowRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *BorrowRepository) CreateBorrow(ctx context.Context, borrow domain.Borrow) error {
	const stmt = `
INSERT INTO borrows (id, title_id, borrower_id, borrow_date, expected_return_date, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		borrow.ID,
		borrow.TitleID,
		borrow.BorrowerID,
		borrow.BorrowDate,
		borrow.ExpectedReturnDate,
		borrow.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrTitleNotFound
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidDateRange
		}
		return fmt.Errorf("create borrow: %w", err)
	}
	return nil
}

const borrowColumns = `id, title_id, borrower_id, borrow_date, expected_return_date, actual_return_date, created_at`

func (r *BorrowRepository) GetBorrow(ctx context.Context, borrowID string) (domain.Borrow, error) {
	return r.getBorrow(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1`, borrowID)
}

func (r *BorrowRepository) GetBorrowForUpdate(ctx context.Context, borrowID string) (domain.Borrow, error) {
	return r.getBorrow(ctx, `SELECT `+borrowColumns+` FROM borrows WHERE id = $1 FOR UPDATE`, borrowID)
}

func (r *BorrowRepository) getBorrow(ctx context.Context, query, borrowID string) (domain.Borrow, error) {
	var b domain.Borrow
	err := conn(ctx, r.pool).QueryRow(ctx, query, borrowID).Scan(
		&b.ID,
		&b.TitleID,
		&b.BorrowerID,
		&b.BorrowDate,
		&b.ExpectedReturnDate,
		&b.ActualReturnDate,
		&b.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Borrow{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Borrow{}, domain.ErrBorrowNotFound
		}
		return domain.Borrow{}, fmt.Errorf("get borrow: %w", err)
	}
	return b, nil
}

// MarkReturned closes an outstanding borrow. It reports ErrAlreadyReturned when
// the row has a return date already.
func (r *BorrowRepository) MarkReturned(ctx context.Context, borrowID string, returnedOn time.Time) error {
	const stmt = `
UPDATE borrows
SET actual_return_date = $2
WHERE id = $1 AND actual_return_date IS NULL`

	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, borrowID, returnedOn)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return domain.ErrInvalidDateRange
		}
		return fmt.Errorf("mark returned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBorrow(ctx, borrowID); err != nil {
			return err
		}
		return domain.ErrAlreadyReturned
	}
	return nil
}
