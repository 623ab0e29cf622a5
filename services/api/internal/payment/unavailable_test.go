package payment

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/bookloan/services/api/internal/app"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

func TestUnavailable(t *testing.T) {
	gw := Unavailable{Reason: "stripe not configured"}

	_, err := gw.CreateSession(context.Background(), app.SessionRequest{Amount: decimal.NewFromInt(3)})
	require.ErrorIs(t, err, domain.ErrPaymentProviderUnavailable)
	assert.Contains(t, err.Error(), "stripe not configured")

	_, err = gw.GetSessionStatus(context.Background(), "cs_1")
	require.ErrorIs(t, err, domain.ErrPaymentProviderUnavailable)
}
