package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// TitleRepository stores the catalog and is the only writer of stock_count.
type TitleRepository struct {
	pool *pgxpool.Pool
}

func NewTitleRepository(pool *pgxpool.Pool) *TitleRepository {
	return &TitleRepository{pool: pool}
}

const titleColumns = `id, name, author, cover, stock_count, daily_fee, late_fee, created_at`

func scanTitle(row pgx.Row) (domain.Title, error) {
	var t domain.Title
	var cover string
	err := row.Scan(&t.ID, &t.Name, &t.Author, &cover, &t.StockCount, &t.DailyFee, &t.LateFee, &t.CreatedAt)
	t.Cover = domain.Cover(cover)
	return t, err
}

func (r *TitleRepository) CreateTitle(ctx context.Context, title domain.Title) error {
	const stmt = `
INSERT INTO titles (id, name, author, cover, stock_count, daily_fee, late_fee, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, r.pool).Exec(ctx, stmt,
		title.ID,
		title.Name,
		title.Author,
		string(title.Cover),
		title.StockCount,
		title.DailyFee,
		title.LateFee,
		title.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return fmt.Errorf("%w: %v", domain.ErrInvalidStock, err)
		}
		return fmt.Errorf("create title: %w", err)
	}
	return nil
}

func (r *TitleRepository) GetTitle(ctx context.Context, titleID string) (domain.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = $1`
	return r.getTitle(ctx, query, titleID)
}

// GetTitleForUpdate locks the title row until the surrounding transaction ends.
func (r *TitleRepository) GetTitleForUpdate(ctx context.Context, titleID string) (domain.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles WHERE id = $1 FOR UPDATE`
	return r.getTitle(ctx, query, titleID)
}

func (r *TitleRepository) getTitle(ctx context.Context, query, titleID string) (domain.Title, error) {
	t, err := scanTitle(conn(ctx, r.pool).QueryRow(ctx, query, titleID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Title{}, domain.ErrInvalidID
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Title{}, domain.ErrTitleNotFound
		}
		return domain.Title{}, fmt.Errorf("get title: %w", err)
	}
	return t, nil
}

func (r *TitleRepository) ListTitles(ctx context.Context) ([]domain.Title, error) {
	query := `SELECT ` + titleColumns + ` FROM titles ORDER BY name ASC, id ASC`
	rows, err := conn(ctx, r.pool).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list titles: %w", err)
	}
	defer rows.Close()

	var titles []domain.Title
	for rows.Next() {
		t, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan title: %w", err)
		}
		titles = append(titles, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate titles: %w", rows.Err())
	}
	return titles, nil
}

// AdjustStock adds delta to stock_count. The table's CHECK keeps it non-negative
// even if a caller skips the row lock.
func (r *TitleRepository) AdjustStock(ctx context.Context, titleID string, delta int) error {
	const stmt = `UPDATE titles SET stock_count = stock_count + $2 WHERE id = $1`
	tag, err := conn(ctx, r.pool).Exec(ctx, stmt, titleID, delta)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return domain.ErrOutOfStock
		}
		return fmt.Errorf("adjust stock: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTitleNotFound
	}
	return nil
}
