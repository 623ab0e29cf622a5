package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// PaymentCallbacks handles the redirects coming back from the checkout page.
type PaymentCallbacks interface {
	Confirm(ctx context.Context, sessionID string) (app.ConfirmResult, error)
	Cancel(ctx context.Context, sessionID string) (app.CancelResult, error)
}

// PaymentReader lists and fetches payment intents.
type PaymentReader interface {
	Get(ctx context.Context, paymentID string) (domain.PaymentIntent, error)
	List(ctx context.Context, filter domain.PaymentFilter) ([]domain.PaymentIntent, error)
}

type paymentResponse struct {
	ID          string     `json:"id"`
	BorrowID    string     `json:"borrow_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	SessionID   string     `json:"session_id"`
	SessionURL  string     `json:"session_url"`
	AmountDue   string     `json:"amount_due"`
	CreatedAt   time.Time  `json:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at"`
}

func toPaymentResponse(p domain.PaymentIntent) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		BorrowID:    p.BorrowID,
		Kind:        string(p.Kind),
		Status:      string(p.Status),
		SessionID:   p.ExternalSessionID,
		SessionURL:  p.SessionURL,
		AmountDue:   p.AmountDue.StringFixed(2),
		CreatedAt:   p.CreatedAt,
		ConfirmedAt: p.ConfirmedAt,
	}
}

type confirmPaymentResponse struct {
	Outcome string          `json:"outcome"`
	Payment paymentResponse `json:"payment"`
}

type cancelPaymentResponse struct {
	Message string           `json:"message"`
	Payment *paymentResponse `json:"payment,omitempty"`
}

// HandlePaymentSuccess serves GET /payments/success/{session_id}. The provider is
// asked for the session's status; the redirect itself proves nothing.
func HandlePaymentSuccess(svc PaymentCallbacks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		parts := pathParts(r.URL.Path, "/payments/success")
		sessionID := r.URL.Query().Get("session_id")
		if len(parts) == 1 {
			sessionID = parts[0]
		}
		if sessionID == "" || len(parts) > 1 {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		res, err := svc.Confirm(r.Context(), sessionID)
		if err != nil {
			writeDomainError(w, err)
			return
		}

		status := http.StatusOK
		if res.Outcome == app.ConfirmOutcomeNotPaid {
			status = http.StatusAccepted
		}
		writeJSON(w, status, confirmPaymentResponse{
			Outcome: string(res.Outcome),
			Payment: toPaymentResponse(res.Payment),
		})
	}
}

// HandlePaymentCancel serves GET /payments/cancel with an optional session_id query.
func HandlePaymentCancel(svc PaymentCallbacks) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		res, err := svc.Cancel(r.Context(), r.URL.Query().Get("session_id"))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := cancelPaymentResponse{Message: res.Message}
		if res.Payment != nil {
			p := toPaymentResponse(*res.Payment)
			resp.Payment = &p
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandlePayments serves GET /payments with optional borrower_id (comma
// separated), status and kind filters.
func HandlePayments(svc PaymentReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		q := r.URL.Query()
		filter := domain.PaymentFilter{
			Status: domain.PaymentStatus(q.Get("status")),
			Kind:   domain.PaymentKind(q.Get("kind")),
		}
		for _, id := range strings.Split(q.Get("borrower_id"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				filter.BorrowerIDs = append(filter.BorrowerIDs, id)
			}
		}

		intents, err := svc.List(r.Context(), filter)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		resp := make([]paymentResponse, 0, len(intents))
		for _, p := range intents {
			resp = append(resp, toPaymentResponse(p))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandlePayment serves GET /payments/{id}.
func HandlePayment(svc PaymentReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := pathParts(r.URL.Path, "/payments")
		if len(parts) != 1 {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		payment, err := svc.Get(r.Context(), parts[0])
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(payment))
	}
}
