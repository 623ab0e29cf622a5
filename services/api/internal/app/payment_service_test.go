package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cimillas/bookloan/services/api/internal/clock"
	"github.com/cimillas/bookloan/services/api/internal/domain"
)

func seedBorrow(env *testEnv, borrowDays, expectedDays int) domain.Borrow {
	b := domain.Borrow{
		ID:                 "borrow-1",
		TitleID:            "title-1",
		BorrowerID:         "reader-1",
		BorrowDate:         domain.Day(day0.AddDate(0, 0, borrowDays)),
		ExpectedReturnDate: domain.Day(day0.AddDate(0, 0, expectedDays)),
	}
	env.store.borrows[b.ID] = b
	return b
}

func TestPaymentService_Open(t *testing.T) {
	ctx := context.Background()

	t.Run("prices the borrow when no amount is given", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -3, 4)

		got, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)
		assert.True(t, dec("7.35").Equal(got.AmountDue), "got %s", got.AmountDue)
		assert.Equal(t, domain.PaymentStatusPending, got.Status)
		assert.NotEmpty(t, got.ExternalSessionID)
		assert.NotEmpty(t, got.SessionURL)
		require.Equal(t, 1, env.gateway.sessionsCreated())
		assert.Equal(t, borrow.ID, env.gateway.created[0].Reference)
	})

	t.Run("second open returns the pending intent", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -2, 2)

		first, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)
		second, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, env.gateway.sessionsCreated())
		assert.Len(t, env.store.paymentsOf(borrow.ID), 1)
	})

	t.Run("payment and fine are independent", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -2, 2)

		payment, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)
		amount := dec("5.00")
		fine, err := env.payments.Open(ctx, borrow, domain.PaymentKindFine, &amount)
		require.NoError(t, err)

		assert.NotEqual(t, payment.ID, fine.ID)
		assert.Len(t, env.store.paymentsOf(borrow.ID), 2)
	})

	t.Run("losing a concurrent open returns the winner", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -2, 2)
		winner := domain.PaymentIntent{
			ID:                "payment-winner",
			BorrowID:          borrow.ID,
			Kind:              domain.PaymentKindPayment,
			Status:            domain.PaymentStatusPending,
			ExternalSessionID: "cs_winner",
			AmountDue:         dec("4.90"),
		}
		env.gateway.onCreate = func() {
			require.NoError(t, env.store.CreatePayment(context.Background(), winner))
		}

		got, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)
		assert.Equal(t, winner.ID, got.ID)
		assert.Len(t, env.store.paymentsOf(borrow.ID), 1)
	})

	t.Run("zero amount is rejected", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, 0, 2)

		_, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
		assert.Zero(t, env.gateway.sessionsCreated())
	})

	t.Run("unknown kind", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -2, 2)

		_, err := env.payments.Open(ctx, borrow, domain.PaymentKind("refund"), nil)
		require.ErrorIs(t, err, domain.ErrInvalidPaymentKind)
	})

	t.Run("provider failure", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		borrow := seedBorrow(env, -2, 2)
		env.gateway.createErr = errProviderDown

		_, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.ErrorIs(t, err, domain.ErrPaymentProviderUnavailable)
		assert.Empty(t, env.store.paymentsOf(borrow.ID))
	})
}

func TestPaymentService_Confirm(t *testing.T) {
	ctx := context.Background()

	openIntent := func(t *testing.T, env *testEnv) domain.PaymentIntent {
		t.Helper()
		borrow := seedBorrow(env, -2, 2)
		p, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
		require.NoError(t, err)
		return p
	}

	t.Run("unpaid session is reported, not confirmed", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		intent := openIntent(t, env)

		res, err := env.payments.Confirm(ctx, intent.ExternalSessionID)
		require.NoError(t, err)
		assert.Equal(t, ConfirmOutcomeNotPaid, res.Outcome)
		assert.Equal(t, domain.PaymentStatusPending, res.Payment.Status)
	})

	t.Run("paid session confirms once", func(t *testing.T) {
		clk := clock.NewManual(day0)
		env := newTestEnv(clk, testTitle("title-1", 1))
		intent := openIntent(t, env)
		env.gateway.markPaid(intent.ExternalSessionID)

		first, err := env.payments.Confirm(ctx, intent.ExternalSessionID)
		require.NoError(t, err)
		assert.Equal(t, ConfirmOutcomeConfirmed, first.Outcome)
		assert.Equal(t, domain.PaymentStatusConfirmed, first.Payment.Status)
		require.NotNil(t, first.Payment.ConfirmedAt)

		clk.AdvanceDays(1)
		second, err := env.payments.Confirm(ctx, intent.ExternalSessionID)
		require.NoError(t, err)
		assert.Equal(t, ConfirmOutcomeAlreadyConfirmed, second.Outcome)
		assert.Equal(t, domain.PaymentStatusConfirmed, second.Payment.Status)
		require.NotNil(t, second.Payment.ConfirmedAt)
		assert.True(t, first.Payment.ConfirmedAt.Equal(*second.Payment.ConfirmedAt))
	})

	t.Run("already confirmed does not ask the provider", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		intent := openIntent(t, env)
		require.NoError(t, env.store.MarkPaymentConfirmed(ctx, intent.ID, day0.Add(time.Hour)))
		env.gateway.statusErr = errProviderDown

		res, err := env.payments.Confirm(ctx, intent.ExternalSessionID)
		require.NoError(t, err)
		assert.Equal(t, ConfirmOutcomeAlreadyConfirmed, res.Outcome)
	})

	t.Run("unknown session", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))

		_, err := env.payments.Confirm(ctx, "cs_missing")
		require.ErrorIs(t, err, domain.ErrPaymentNotFound)

		_, err = env.payments.Confirm(ctx, "")
		require.ErrorIs(t, err, domain.ErrPaymentNotFound)
	})

	t.Run("provider failure", func(t *testing.T) {
		env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
		intent := openIntent(t, env)
		env.gateway.statusErr = errProviderDown

		_, err := env.payments.Confirm(ctx, intent.ExternalSessionID)
		require.ErrorIs(t, err, domain.ErrPaymentProviderUnavailable)
		assert.Equal(t, domain.PaymentStatusPending, env.store.paymentsOf(intent.BorrowID)[0].Status)
	})
}

func TestPaymentService_Cancel(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))
	borrow := seedBorrow(env, -2, 2)
	intent, err := env.payments.Open(ctx, borrow, domain.PaymentKindPayment, nil)
	require.NoError(t, err)

	anonymous, err := env.payments.Cancel(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, cancelMessage, anonymous.Message)
	assert.Nil(t, anonymous.Payment)

	known, err := env.payments.Cancel(ctx, intent.ExternalSessionID)
	require.NoError(t, err)
	require.NotNil(t, known.Payment)
	assert.Equal(t, intent.ID, known.Payment.ID)

	unknown, err := env.payments.Cancel(ctx, "cs_missing")
	require.NoError(t, err)
	assert.Nil(t, unknown.Payment)

	assert.Equal(t, domain.PaymentStatusPending, env.store.paymentsOf(borrow.ID)[0].Status)
}

func TestPaymentService_ListForBorrow(t *testing.T) {
	env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 1))

	_, err := env.payments.ListForBorrow(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrInvalidID)

	got, err := env.payments.ListForBorrow(context.Background(), "borrow-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPaymentService_GetAndList(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(clock.NewFixed(day0), testTitle("title-1", 2))

	var opened []OpenBorrowResult
	for _, reader := range []string{"reader-1", "reader-2"} {
		res, err := env.borrows.Open(ctx, OpenBorrowInput{
			BorrowerID:         reader,
			TitleID:            "title-1",
			ExpectedReturnDate: day0.AddDate(0, 0, 2),
		})
		require.NoError(t, err)
		require.NotNil(t, res.Payment)
		opened = append(opened, res)
	}

	got, err := env.payments.Get(ctx, opened[1].Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, opened[1].Borrow.ID, got.BorrowID)

	_, err = env.payments.Get(ctx, "")
	require.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = env.payments.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrPaymentNotFound)

	all, err := env.payments.List(ctx, domain.PaymentFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := env.payments.List(ctx, domain.PaymentFilter{BorrowerIDs: []string{"reader-1"}})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, opened[0].Payment.ID, mine[0].ID)

	fines, err := env.payments.List(ctx, domain.PaymentFilter{Kind: domain.PaymentKindFine})
	require.NoError(t, err)
	assert.Empty(t, fines)

	_, err = env.payments.List(ctx, domain.PaymentFilter{Kind: "refund"})
	require.ErrorIs(t, err, domain.ErrInvalidPaymentKind)
	_, err = env.payments.List(ctx, domain.PaymentFilter{Status: "paid"})
	require.ErrorIs(t, err, domain.ErrInvalidPaymentStatus)
}
