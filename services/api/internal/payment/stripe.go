// Package payment talks to the external checkout provider.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

const sessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"

// sessionAPI is the subset of the Stripe checkout session client the gateway uses.
type sessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type StripeConfig struct {
	SecretKey  string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// StripeGateway opens Stripe Checkout sessions. Each gateway owns its client and
// key; nothing is set on the stripe package globals.
type StripeGateway struct {
	sessions   sessionAPI
	currency   string
	successURL string
	cancelURL  string
}

func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("stripe secret key required")
	}
	sc := &client.API{}
	sc.Init(cfg.SecretKey, nil)
	return newStripeGateway(sc.CheckoutSessions, cfg), nil
}

func newStripeGateway(sessions sessionAPI, cfg StripeConfig) *StripeGateway {
	currency := strings.ToLower(cfg.Currency)
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeGateway{
		sessions:   sessions,
		currency:   currency,
		successURL: withSessionID(cfg.SuccessURL),
		cancelURL:  cfg.CancelURL,
	}
}

// withSessionID makes Stripe append the session id to the success redirect.
func withSessionID(url string) string {
	if url == "" || strings.Contains(url, sessionIDPlaceholder) {
		return url
	}
	return strings.TrimSuffix(url, "/") + "/" + sessionIDPlaceholder
}

func (g *StripeGateway) CreateSession(ctx context.Context, req app.SessionRequest) (app.Session, error) {
	cents := req.Amount.Mul(decimal.NewFromInt(100)).Round(0)
	if !cents.IsPositive() {
		return app.Session{}, domain.ErrInvalidAmount
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.Reference),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(g.currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(cents.IntPart()),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return app.Session{}, fmt.Errorf("create checkout session: %w", err)
	}
	return app.Session{ID: s.ID, URL: s.URL}, nil
}

func (g *StripeGateway) GetSessionStatus(ctx context.Context, sessionID string) (domain.SessionStatus, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.sessions.Get(sessionID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return domain.SessionStatusUnknown, nil
		}
		return "", fmt.Errorf("get checkout session: %w", err)
	}

	switch s.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return domain.SessionStatusPaid, nil
	case stripe.CheckoutSessionPaymentStatusUnpaid:
		return domain.SessionStatusUnpaid, nil
	default:
		return domain.SessionStatusUnknown, nil
	}
}
