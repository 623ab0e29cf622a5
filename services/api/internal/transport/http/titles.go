package http

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// TitleCatalog is the minimal interface needed for the title endpoints.
type TitleCatalog interface {
	CreateTitle(ctx context.Context, in app.CreateTitleInput) (domain.Title, error)
	GetTitle(ctx context.Context, titleID string) (domain.Title, error)
	ListTitles(ctx context.Context) ([]domain.Title, error)
}

type createTitleRequest struct {
	Name       string          `json:"name" validate:"required"`
	Author     string          `json:"author"`
	Cover      string          `json:"cover" validate:"omitempty,oneof=hard soft"`
	StockCount *int            `json:"stock_count" validate:"required,gte=0"`
	DailyFee   decimal.Decimal `json:"daily_fee"`
	LateFee    decimal.Decimal `json:"late_fee"`
}

type titleResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Author     string    `json:"author"`
	Cover      string    `json:"cover"`
	StockCount int       `json:"stock_count"`
	DailyFee   string    `json:"daily_fee"`
	LateFee    string    `json:"late_fee"`
	CreatedAt  time.Time `json:"created_at"`
}

func toTitleResponse(t domain.Title) titleResponse {
	return titleResponse{
		ID:         t.ID,
		Name:       t.Name,
		Author:     t.Author,
		Cover:      string(t.Cover),
		StockCount: t.StockCount,
		DailyFee:   t.DailyFee.StringFixed(2),
		LateFee:    t.LateFee.StringFixed(2),
		CreatedAt:  t.CreatedAt,
	}
}

// HandleTitles serves GET and POST on /titles.
func HandleTitles(svc TitleCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			titles, err := svc.ListTitles(r.Context())
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]titleResponse, 0, len(titles))
			for _, t := range titles {
				resp = append(resp, toTitleResponse(t))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req createTitleRequest
			if !decodeBody(w, r, &req) {
				return
			}
			title, err := svc.CreateTitle(r.Context(), app.CreateTitleInput{
				Name:       req.Name,
				Author:     req.Author,
				Cover:      domain.Cover(req.Cover),
				StockCount: *req.StockCount,
				DailyFee:   req.DailyFee,
				LateFee:    req.LateFee,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, toTitleResponse(title))
		default:
			methodNotAllowed(w)
		}
	}
}

// HandleTitle serves GET /titles/{id}.
func HandleTitle(svc TitleCatalog) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r.URL.Path, "/titles")
		if len(parts) != 1 {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		title, err := svc.GetTitle(r.Context(), parts[0])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toTitleResponse(title))
	}
}
