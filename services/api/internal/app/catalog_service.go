package app

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

type CatalogRepository interface {
	CreateTitle(ctx context.Context, title domain.Title) error
	GetTitle(ctx context.Context, titleID string) (domain.Title, error)
	ListTitles(ctx context.Context) ([]domain.Title, error)
}

type CatalogService struct {
	repo  CatalogRepository
	clock clock.Clock
}

func NewCatalogService(repo CatalogRepository, clk clock.Clock) *CatalogService {
	return &CatalogService{
		repo:  repo,
		clock: clk,
	}
}

type CreateTitleInput struct {
	Name       string
	Author     string
	Cover      domain.Cover
	StockCount int
	DailyFee   decimal.Decimal
	LateFee    decimal.Decimal
}

func (s *CatalogService) CreateTitle(ctx context.Context, in CreateTitleInput) (domain.Title, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Title{}, domain.ErrTitleNameRequired
	}
	if in.StockCount < 0 {
		return domain.Title{}, domain.ErrInvalidStock
	}
	if !in.DailyFee.IsPositive() || in.LateFee.IsNegative() {
		return domain.Title{}, domain.ErrInvalidFee
	}
	cover := in.Cover
	if cover == "" {
		cover = domain.CoverHard
	}
	if !cover.Valid() {
		return domain.Title{}, domain.ErrInvalidCover
	}

	title := domain.Title{
		ID:         newUUID(),
		Name:       name,
		Author:     strings.TrimSpace(in.Author),
		Cover:      cover,
		StockCount: in.StockCount,
		DailyFee:   in.DailyFee.Round(2),
		LateFee:    in.LateFee.Round(2),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.CreateTitle(ctx, title); err != nil {
		return domain.Title{}, err
	}
	return title, nil
}

func (s *CatalogService) GetTitle(ctx context.Context, titleID string) (domain.Title, error) {
	if titleID == "" {
		return domain.Title{}, domain.ErrInvalidID
	}
	return s.repo.GetTitle(ctx, titleID)
}

func (s *CatalogService) ListTitles(ctx context.Context) ([]domain.Title, error) {
	return s.repo.ListTitles(ctx)
}
