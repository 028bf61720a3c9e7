package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/retro-wallet/internal/features/ledger"
	"serotonyl.ru/retro-wallet/internal/features/ledger/ledgertest"
)

type failingReconciler struct{}

func (failingReconciler) ReconcileAll(context.Context) ([]ledger.Drift, error) {
	return nil, errors.New("БД недоступна")
}

func TestRunReconcile(t *testing.T) {
	ctx := context.Background()
	store := ledgertest.New()
	l := ledger.NewService(store, ledger.Options{ApplyTimeout: time.Second, MaxAttempts: 1})

	in, err := ledger.NewIntent(ledger.IntentParams{PlayerID: "p1", CoinDelta: 100})
	require.NoError(t, err)
	_, err = l.Apply(ctx, in)
	require.NoError(t, err)

	s := NewScheduler(l, "30 4 * * *", time.UTC)
	require.Equal(t, 0, s.RunReconcile(ctx))

	// Счёт поправили мимо леджера
	store.SetAccount(ledger.Account{PlayerID: "p1", Coins: 150})
	require.Equal(t, 1, s.RunReconcile(ctx))

	s = NewScheduler(failingReconciler{}, "30 4 * * *", time.UTC)
	require.Equal(t, -1, s.RunReconcile(ctx))
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler(failingReconciler{}, "не расписание", time.UTC)
	require.Error(t, s.Start(context.Background()))
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(failingReconciler{}, "@every 1h", time.UTC)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
