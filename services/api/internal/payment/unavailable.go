package payment

import (
	"context"
	"fmt"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

// Unavailable is the gateway used when no provider is configured. Borrows still
// open; every payment attempt fails with ErrPaymentProviderUnavailable.
type Unavailable struct {
	Reason string
}

func (u Unavailable) CreateSession(context.Context, app.SessionRequest) (app.Session, error) {
	return app.Session{}, fmt.Errorf("%w: %s", domain.ErrPaymentProviderUnavailable, u.Reason)
}

func (u Unavailable) GetSessionStatus(context.Context, string) (domain.SessionStatus, error) {
	return "", fmt.Errorf("%w: %s", domain.ErrPaymentProviderUnavailable, u.Reason)
}
