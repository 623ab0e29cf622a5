package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// BorrowQuery is the read side for borrow listings. It turns a domain.BorrowFilter
// into a single SELECT and runs it over a database/sql handle.
type BorrowQuery struct {
	db      *sqlx.DB
	dialect goqu.DialectWrapper
}

func NewBorrowQuery(db *sqlx.DB) *BorrowQuery {
	return &BorrowQuery{db: db, dialect: goqu.Dialect("postgres")}
}

type borrowRow struct {
	ID                 string     `db:"id"`
	TitleID            string     `db:"title_id"`
	BorrowerID         string     `db:"borrower_id"`
	BorrowDate         time.Time  `db:"borrow_date"`
	ExpectedReturnDate time.Time  `db:"expected_return_date"`
	ActualReturnDate   *time.Time `db:"actual_return_date"`
	CreatedAt          time.Time  `db:"created_at"`
}

func (r borrowRow) toDomain() domain.Borrow {
	b := domain.Borrow{
		ID:                 r.ID,
		TitleID:            r.TitleID,
		BorrowerID:         r.BorrowerID,
		BorrowDate:         domain.Day(r.BorrowDate),
		ExpectedReturnDate: domain.Day(r.ExpectedReturnDate),
		CreatedAt:          r.CreatedAt,
	}
	if r.ActualReturnDate != nil {
		d := domain.Day(*r.ActualReturnDate)
		b.ActualReturnDate = &d
	}
	return b
}

// BuildListSQL renders the filter as a parameterised statement.
func (q *BorrowQuery) BuildListSQL(filter domain.BorrowFilter) (string, []any, error) {
	var where []exp.Expression
	if ids := filter.BorrowerIDs(); len(ids) > 0 {
		where = append(where, goqu.L("? = ANY(?)", goqu.I("borrower_id"), pq.Array(ids)))
	}
	if titleID := filter.TitleID(); titleID != "" {
		where = append(where, goqu.C("title_id").Eq(titleID))
	}
	if active, ok := filter.ActiveState(); ok {
		if active {
			where = append(where, goqu.C("actual_return_date").IsNull())
		} else {
			where = append(where, goqu.C("actual_return_date").IsNotNull())
		}
	}
	if day, ok := filter.OverdueDay(); ok {
		where = append(where,
			goqu.C("actual_return_date").IsNull(),
			goqu.C("expected_return_date").Lte(day.Format(time.DateOnly)),
		)
	}

	ds := q.dialect.
		From("borrows").
		Select("id", "title_id", "borrower_id", "borrow_date", "expected_return_date", "actual_return_date", "created_at").
		Where(where...).
		Order(goqu.C("borrow_date").Asc(), goqu.C("id").Asc()).
		Prepared(true)

	return ds.ToSQL()
}

func (q *BorrowQuery) ListBorrows(ctx context.Context, filter domain.BorrowFilter) ([]domain.Borrow, error) {
	query, args, err := q.BuildListSQL(filter)
	if err != nil {
		return nil, fmt.Errorf("build borrow query: %w", err)
	}

	var rows []borrowRow
	if err := q.db.SelectContext(ctx, &rows, query, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "22P02" {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list borrows: %w", err)
	}

	borrows := make([]domain.Borrow, 0, len(rows))
	for _, r := range rows {
		borrows = append(borrows, r.toDomain())
	}
	return borrows, nil
}
