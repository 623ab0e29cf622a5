package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// BorrowLifecycle is the minimal interface needed for the borrow endpoints.
type BorrowLifecycle interface {
	Open(ctx context.Context, in app.OpenBorrowInput) (app.OpenBorrowResult, error)
	Close(ctx context.Context, in app.CloseBorrowInput) (app.CloseBorrowResult, error)
	Get(ctx context.Context, borrowID string) (domain.Borrow, error)
	List(ctx context.Context, filter domain.BorrowFilter) ([]domain.Borrow, error)
	Quote(ctx context.Context, borrowID string) (domain.Charge, error)
}

// PaymentLister lists the payment intents of a borrow.
type PaymentLister interface {
	ListForBorrow(ctx context.Context, borrowID string) ([]domain.PaymentIntent, error)
}

const dateLayout = time.DateOnly

type openBorrowRequest struct {
	TitleID            string `json:"title_id" validate:"required"`
	BorrowerID         string `json:"borrower_id" validate:"required"`
	BorrowDate         string `json:"borrow_date"`
	ExpectedReturnDate string `json:"expected_return_date" validate:"required"`
}

type returnBorrowRequest struct {
	ActualReturnDate string `json:"actual_return_date"`
}

type borrowResponse struct {
	ID                 string  `json:"id"`
	TitleID            string  `json:"title_id"`
	BorrowerID         string  `json:"borrower_id"`
	Status             string  `json:"status"`
	BorrowDate         string  `json:"borrow_date"`
	ExpectedReturnDate string  `json:"expected_return_date"`
	ActualReturnDate   *string `json:"actual_return_date"`
}

type chargeResponse struct {
	Days    int    `json:"days"`
	Base    string `json:"base"`
	LateFee string `json:"late_fee"`
	Total   string `json:"total"`
}

type openBorrowResponse struct {
	Borrow       borrowResponse   `json:"borrow"`
	Payment      *paymentResponse `json:"payment"`
	PaymentError string           `json:"payment_error,omitempty"`
}

type returnBorrowResponse struct {
	Borrow    borrowResponse   `json:"borrow"`
	Fine      *paymentResponse `json:"fine"`
	FineError string           `json:"fine_error,omitempty"`
}

type borrowDetailResponse struct {
	borrowResponse
	Charge chargeResponse `json:"charge"`
}

func toBorrowResponse(b domain.Borrow) borrowResponse {
	resp := borrowResponse{
		ID:                 b.ID,
		TitleID:            b.TitleID,
		BorrowerID:         b.BorrowerID,
		Status:             string(b.Status()),
		BorrowDate:         b.BorrowDate.Format(dateLayout),
		ExpectedReturnDate: b.ExpectedReturnDate.Format(dateLayout),
	}
	if b.ActualReturnDate != nil {
		d := b.ActualReturnDate.Format(dateLayout)
		resp.ActualReturnDate = &d
	}
	return resp
}

func toChargeResponse(c domain.Charge) chargeResponse {
	return chargeResponse{
		Days:    c.Days,
		Base:    c.Base.StringFixed(2),
		LateFee: c.LateFee.StringFixed(2),
		Total:   c.Total.StringFixed(2),
	}
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, v, time.UTC)
}

// HandleBorrows serves GET (list) and POST (open) on /borrows.
func HandleBorrows(svc BorrowLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			filter, ok := parseBorrowFilter(w, r)
			if !ok {
				return
			}
			borrows, err := svc.List(r.Context(), filter)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]borrowResponse, 0, len(borrows))
			for _, b := range borrows {
				resp = append(resp, toBorrowResponse(b))
			}
			writeJSON(w, http.StatusOK, resp)
		case http.MethodPost:
			var req openBorrowRequest
			if !decodeBody(w, r, &req) {
				return
			}
			borrowDate, err := parseDate(req.BorrowDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidDate, "invalid borrow_date")
				return
			}
			expected, err := parseDate(req.ExpectedReturnDate)
			if err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidDate, "invalid expected_return_date")
				return
			}

			res, err := svc.Open(r.Context(), app.OpenBorrowInput{
				BorrowerID:         req.BorrowerID,
				TitleID:            req.TitleID,
				BorrowDate:         borrowDate,
				ExpectedReturnDate: expected,
			})
			if err != nil {
				writeDomainError(w, err)
				return
			}

			resp := openBorrowResponse{Borrow: toBorrowResponse(res.Borrow)}
			if res.Payment != nil {
				p := toPaymentResponse(*res.Payment)
				resp.Payment = &p
			}
			if res.PaymentErr != nil {
				resp.PaymentError = res.PaymentErr.Error()
			}
			writeJSON(w, http.StatusCreated, resp)
		default:
			methodNotAllowed(w)
		}
	}
}

// parseBorrowFilter reads borrower_id (comma separated), title_id, is_active and overdue.
func parseBorrowFilter(w http.ResponseWriter, r *http.Request) (domain.BorrowFilter, bool) {
	q := r.URL.Query()
	filter := domain.NewBorrowFilter()

	if ids := q.Get("borrower_id"); ids != "" {
		var borrowers []string
		for _, id := range strings.Split(ids, ",") {
			if id = strings.TrimSpace(id); id != "" {
				borrowers = append(borrowers, id)
			}
		}
		filter = filter.ByBorrowers(borrowers...)
	}
	if titleID := q.Get("title_id"); titleID != "" {
		filter = filter.ByTitle(titleID)
	}
	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "is_active must be true or false")
			return domain.BorrowFilter{}, false
		}
		if active {
			filter = filter.Active()
		} else {
			filter = filter.Returned()
		}
	}
	if v := q.Get("overdue_as_of"); v != "" {
		day, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidQuery, "overdue_as_of must be YYYY-MM-DD")
			return domain.BorrowFilter{}, false
		}
		filter = filter.OverdueAsOf(day)
	}
	return filter, true
}

// HandleBorrow serves /borrows/{id}, /borrows/{id}/return and /borrows/{id}/payments.
func HandleBorrow(svc BorrowLifecycle, payments PaymentLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r.URL.Path, "/borrows")
		switch {
		case len(parts) == 1:
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			borrow, err := svc.Get(r.Context(), parts[0])
			if err != nil {
				writeDomainError(w, err)
				return
			}
			charge, err := svc.Quote(r.Context(), parts[0])
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, borrowDetailResponse{
				borrowResponse: toBorrowResponse(borrow),
				Charge:         toChargeResponse(charge),
			})
		case len(parts) == 2 && parts[1] == "return":
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			handleReturn(w, r, svc, parts[0])
		case len(parts) == 2 && parts[1] == "payments":
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			intents, err := payments.ListForBorrow(r.Context(), parts[0])
			if err != nil {
				writeDomainError(w, err)
				return
			}
			resp := make([]paymentResponse, 0, len(intents))
			for _, p := range intents {
				resp = append(resp, toPaymentResponse(p))
			}
			writeJSON(w, http.StatusOK, resp)
		default:
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
		}
	}
}

func handleReturn(w http.ResponseWriter, r *http.Request, svc BorrowLifecycle, borrowID string) {
	var req returnBorrowRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}
	returnedOn, err := parseDate(req.ActualReturnDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidDate, "invalid actual_return_date")
		return
	}

	res, err := svc.Close(r.Context(), app.CloseBorrowInput{
		BorrowID:         borrowID,
		ActualReturnDate: returnedOn,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := returnBorrowResponse{Borrow: toBorrowResponse(res.Borrow)}
	if res.Fine != nil {
		p := toPaymentResponse(*res.Fine)
		resp.Fine = &p
	}
	if res.FineErr != nil {
		resp.FineError = res.FineErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}
