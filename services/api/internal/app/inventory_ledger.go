package app

import (
	"context"

	"github.com/cimillas/bookloan/services/api/internal/domain"
)

type InventoryRepository interface {
	GetTitleForUpdate(ctx context.Context, titleID string) (domain.Title, error)
	AdjustStock(ctx context.Context, titleID string, delta int) error
}

// InventoryLedger owns Title.StockCount. Reserve and Release must run inside the
// transaction that creates or closes the accompanying borrow.
type InventoryLedger struct {
	repo InventoryRepository
}

func NewInventoryLedger(repo InventoryRepository) *InventoryLedger {
	return &InventoryLedger{repo: repo}
}

// Reserve locks the title row, checks a copy is left and takes it.
// Concurrent reservations of the same title queue on the row lock.
func (l *InventoryLedger) Reserve(ctx context.Context, titleID string) (domain.Title, error) {
	title, err := l.repo.GetTitleForUpdate(ctx, titleID)
	if err != nil {
		return domain.Title{}, err
	}
	if !title.Available() {
		return domain.Title{}, domain.ErrOutOfStock
	}
	if err := l.repo.AdjustStock(ctx, titleID, -1); err != nil {
		return domain.Title{}, err
	}
	title.StockCount--
	return title, nil
}

// Release puts one copy back. It has no upper bound: calling it without a
// matching Reserve is a caller bug.
func (l *InventoryLedger) Release(ctx context.Context, titleID string) error {
	return l.repo.AdjustStock(ctx, titleID, 1)
}
