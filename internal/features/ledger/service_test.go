package ledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/retro-wallet/internal/common"
	"serotonyl.ru/retro-wallet/internal/features/ledger"
	"serotonyl.ru/retro-wallet/internal/features/ledger/ledgertest"
)

func newService(t *testing.T) (*ledger.Service, *ledgertest.Store) {
	t.Helper()
	store := ledgertest.New()
	svc := ledger.NewService(store, ledger.Options{
		ApplyTimeout:        time.Second,
		MaxAttempts:         3,
		RetryDelay:          time.Millisecond,
		HistoryDefaultLimit: 20,
		HistoryMaxLimit:     50,
	})
	return svc, store
}

func intent(t *testing.T, p ledger.IntentParams) ledger.Intent {
	t.Helper()
	in, err := ledger.NewIntent(p)
	require.NoError(t, err)
	return in
}

func requireConsistent(t *testing.T, svc *ledger.Service, playerID string) {
	t.Helper()
	d, err := svc.Reconcile(context.Background(), playerID)
	require.NoError(t, err)
	require.True(t, d.Consistent(), "счёт %+v, леджер %+v", d.Account, d.Ledger)
}

func TestApplyScenarios(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	// 1. Новый игрок получает 50 монет
	res, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 50, Category: ledger.CategoryEarn}))
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeApplied, res.Outcome)
	require.Equal(t, int64(50), res.BalanceAfter)
	require.Equal(t, 1, res.LevelAfter)
	require.NotEmpty(t, res.Entry.ID)
	require.Equal(t, int64(50), res.Entry.BalanceAfter)

	snap, err := svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(50), snap.Coins)

	// 2. Списание 70 при балансе 50: отказ, баланс не меняется
	_, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: -70, Category: ledger.CategorySpend}))
	require.ErrorIs(t, err, common.ErrInsufficientBalance)
	require.False(t, ledger.IsRetryable(err))

	snap, err = svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(50), snap.Coins)
	require.Len(t, store.Entries("p1"), 1)

	// 3. Повтор с тем же ключом после таймаута: одно списание
	_, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 100}))
	require.NoError(t, err)

	spend := intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: -70, IdempotencyKey: "buy-1"})
	first, err := svc.Apply(ctx, spend)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeApplied, first.Outcome)
	require.Equal(t, int64(80), first.BalanceAfter)

	second, err := svc.Apply(ctx, spend)
	require.NoError(t, err)
	require.True(t, second.Duplicate())
	require.Equal(t, first.Entry.ID, second.Entry.ID)
	require.Nil(t, second.Balances)
	require.Equal(t, int64(80), second.Entry.BalanceAfter)

	snap, err = svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(80), snap.Coins)

	// 4. Тот же run_id с другой суммой: действует только первый
	res, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p2", CoinDelta: 10, ExperienceDelta: 1000, RunID: "run-abc"}))
	require.NoError(t, err)
	require.Equal(t, 2, res.LevelAfter)

	res, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p2", CoinDelta: 9999, RunID: "run-abc"}))
	require.NoError(t, err)
	require.True(t, res.Duplicate())
	require.Equal(t, int64(10), res.Entry.BalanceAfter)

	snap, err = svc.Snapshot(ctx, "p2")
	require.NoError(t, err)
	require.Equal(t, int64(10), snap.Coins)
	require.Equal(t, int64(1000), snap.Experience)
	require.Equal(t, 2, snap.Level)

	// 5. Все дельты ноль: отказ до хранилища
	before := store.TotalCalls()
	_, err = ledger.NewIntent(ledger.IntentParams{PlayerID: "p3"})
	require.ErrorIs(t, err, common.ErrInvalidIntent)
	_, err = svc.Apply(ctx, ledger.Intent{})
	require.ErrorIs(t, err, common.ErrInvalidIntent)
	require.Equal(t, before, store.TotalCalls())

	for _, p := range []string{"p1", "p2"} {
		requireConsistent(t, svc, p)
	}
}

func TestApplyRunIsPerPlayer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for _, p := range []string{"a", "b"} {
		res, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: p, Category: ledger.CategoryGame, CoinDelta: 5, PlaysDelta: 1, RunID: "run-1"}))
		require.NoError(t, err)
		require.Equal(t, ledger.OutcomeApplied, res.Outcome)
		require.Equal(t, int64(1), res.GamesPlayedAfter)
	}
}

func TestDuplicateResultOmitsBalances(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	in := intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 40, ExperienceDelta: 1500, IdempotencyKey: "k-json"})
	first, err := svc.Apply(ctx, in)
	require.NoError(t, err)

	var applied map[string]any
	raw, err := json.Marshal(first)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &applied))
	require.Equal(t, "applied", applied["status"])
	require.EqualValues(t, 2, applied["level_after"])
	require.EqualValues(t, 40, applied["balance_after"])

	dup, err := svc.Apply(ctx, in)
	require.NoError(t, err)
	require.True(t, dup.Duplicate())

	var replay map[string]any
	raw, err = json.Marshal(dup)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &replay))
	require.Equal(t, "duplicate", replay["status"])
	for _, k := range []string{"balance_after", "experience_after", "tickets_after", "games_played_after", "level_after"} {
		require.NotContains(t, replay, k)
	}
	entry, ok := replay["entry"].(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 40, entry["balance_after"])
}

func TestApplyForeignIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "alice", CoinDelta: 30, IdempotencyKey: "shared"}))
	require.NoError(t, err)

	// Ключ глобальный: у другого игрока это повтор, но чужую запись не показываем
	res, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "bob", CoinDelta: 30, IdempotencyKey: "shared"}))
	require.NoError(t, err)
	require.True(t, res.Duplicate())
	require.Nil(t, res.Entry)
	require.Nil(t, res.Balances)

	snap, err := svc.Snapshot(ctx, "bob")
	require.NoError(t, err)
	require.Zero(t, snap.Coins)
}

func TestApplyRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 100}))
	require.NoError(t, err)

	store.FailNext(ledgertest.OpInsertEntry, fmt.Errorf("%w: диск отвалился", common.ErrStorage))
	spend := intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: -40, IdempotencyKey: "k-rollback"})

	_, err = svc.Apply(ctx, spend)
	require.ErrorIs(t, err, common.ErrStorage)
	require.True(t, ledger.IsRetryable(err))

	// Ни счёт, ни ключ не изменились
	snap, err := svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(100), snap.Coins)
	requireConsistent(t, svc, "p1")

	// Повтор с тем же ключом применяется один раз
	res, err := svc.Apply(ctx, spend)
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeApplied, res.Outcome)
	require.Equal(t, int64(60), res.BalanceAfter)
	requireConsistent(t, svc, "p1")
}

func TestApplyRetriesConflicts(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	conflict := fmt.Errorf("%w: %w", common.ErrStorage, ledger.ErrConflict)
	store.FailNext(ledgertest.OpLockAccount, conflict)
	store.FailNext(ledgertest.OpLockAccount, conflict)

	res, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 7, IdempotencyKey: "retry-me"}))
	require.NoError(t, err)
	require.Equal(t, ledger.OutcomeApplied, res.Outcome)
	require.Equal(t, 3, store.Calls(ledgertest.OpLockAccount))
	require.Len(t, store.Entries("p1"), 1)

	// Попытки кончились: ошибка хранилища, которую можно повторить
	for i := 0; i < 3; i++ {
		store.FailNext(ledgertest.OpLockAccount, conflict)
	}
	_, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 7}))
	require.ErrorIs(t, err, common.ErrStorage)
	require.ErrorIs(t, err, ledger.ErrConflict)
	require.True(t, ledger.IsRetryable(err))
	require.Len(t, store.Entries("p1"), 1)
}

func TestApplyConcurrentDebits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	const n = 50
	_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: n - 1}))
	require.NoError(t, err)

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		ok, rejected int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in, err := ledger.NewIntent(ledger.IntentParams{
				PlayerID:       "p1",
				CoinDelta:      -1,
				IdempotencyKey: fmt.Sprintf("debit-%d", i),
			})
			if err != nil {
				panic(err)
			}
			_, err = svc.Apply(ctx, in)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, common.ErrInsufficientBalance):
				rejected++
			}
		}(i)
	}
	wg.Wait()

	require.Equal(t, n-1, ok)
	require.Equal(t, 1, rejected)

	snap, err := svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Zero(t, snap.Coins)
	requireConsistent(t, svc, "p1")
}

func TestApplyConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	in := intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: 10, IdempotencyKey: "same"})

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		applied    int
		duplicates int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Apply(ctx, in)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if res.Duplicate() {
				duplicates++
			} else {
				applied++
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, applied)
	require.Equal(t, 19, duplicates)
	require.Len(t, store.Entries("p1"), 1)

	snap, err := svc.Snapshot(ctx, "p1")
	require.NoError(t, err)
	require.Equal(t, int64(10), snap.Coins)
}

// Случайные начисления и списания никогда не уводят счётчики в минус,
// а счёт всегда равен свёртке записей.
func TestApplyNeverNegative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	rnd := rand.New(rand.NewSource(42))
	players := []string{"p1", "p2", "p3"}

	for i := 0; i < 500; i++ {
		p := ledger.IntentParams{
			PlayerID:        players[rnd.Intn(len(players))],
			CoinDelta:       rnd.Int63n(200) - 100,
			ExperienceDelta: rnd.Int63n(60) - 20,
			TicketDelta:     rnd.Int63n(5) - 2,
			Category:        ledger.CategoryReward,
		}
		if rnd.Intn(4) == 0 {
			p.IdempotencyKey = fmt.Sprintf("k-%d", rnd.Intn(50))
		}
		in, err := ledger.NewIntent(p)
		if err != nil {
			require.ErrorIs(t, err, common.ErrInvalidIntent)
			continue
		}

		res, err := svc.Apply(ctx, in)
		if err != nil {
			require.ErrorIs(t, err, common.ErrInsufficientBalance)
			continue
		}
		if !res.Duplicate() {
			require.GreaterOrEqual(t, res.BalanceAfter, int64(0))
			require.GreaterOrEqual(t, res.ExperienceAfter, int64(0))
			require.GreaterOrEqual(t, res.TicketsAfter, int64(0))
		}
	}

	for _, p := range players {
		snap, err := svc.Snapshot(ctx, p)
		require.NoError(t, err)
		require.GreaterOrEqual(t, snap.Coins, int64(0))
		require.GreaterOrEqual(t, snap.Experience, int64(0))
		require.GreaterOrEqual(t, snap.Tickets, int64(0))
		requireConsistent(t, svc, p)
	}
}

func TestSnapshotUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	snap, err := svc.Snapshot(ctx, "ghost")
	require.NoError(t, err)
	require.Equal(t, ledger.Snapshot{PlayerID: "ghost", Level: 1}, snap)
	require.Zero(t, store.Calls(ledgertest.OpLockAccount))

	acc, err := store.GetAccount(ctx, "ghost")
	require.NoError(t, err)
	require.Nil(t, acc)

	_, err = svc.Snapshot(ctx, " ")
	require.ErrorIs(t, err, common.ErrInvalidIntent)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	for i := 1; i <= 5; i++ {
		_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{
			PlayerID:   "p1",
			CoinDelta:  int64(i),
			Category:   ledger.CategoryGame,
			RunID:      fmt.Sprintf("run-%d", i),
			SourceGame: "snake",
		}))
		require.NoError(t, err)
	}
	_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "p1", CoinDelta: -3, SourceGame: "shop"}))
	require.NoError(t, err)
	_, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "other", CoinDelta: 1}))
	require.NoError(t, err)

	all, err := svc.History(ctx, "p1", ledger.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, ledger.CategorySpend, all[0].Category)
	require.Equal(t, int64(12), all[0].BalanceAfter)
	for i := 1; i < len(all); i++ {
		require.Greater(t, all[i-1].Seq, all[i].Seq)
	}

	games, err := svc.History(ctx, "p1", ledger.HistoryFilter{Category: ledger.CategoryGame, Limit: 2})
	require.NoError(t, err)
	require.Len(t, games, 2)
	require.Equal(t, "run-5", games[0].RunID)

	next, err := svc.History(ctx, "p1", ledger.HistoryFilter{Category: ledger.CategoryGame, Limit: 2, BeforeSeq: games[1].Seq})
	require.NoError(t, err)
	require.Len(t, next, 2)
	require.Equal(t, "run-3", next[0].RunID)

	shop, err := svc.History(ctx, "p1", ledger.HistoryFilter{SourceGame: "shop"})
	require.NoError(t, err)
	require.Len(t, shop, 1)

	future, err := svc.History(ctx, "p1", ledger.HistoryFilter{Since: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.Empty(t, future)

	capped, err := svc.History(ctx, "p1", ledger.HistoryFilter{Limit: 1000})
	require.NoError(t, err)
	require.Len(t, capped, 6)

	_, err = svc.History(ctx, "p1", ledger.HistoryFilter{Category: "bonus"})
	require.ErrorIs(t, err, common.ErrInvalidIntent)

	now := time.Now()
	_, err = svc.History(ctx, "p1", ledger.HistoryFilter{Since: now, Until: now.Add(-time.Minute)})
	require.ErrorIs(t, err, common.ErrInvalidIntent)
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	_, err := svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "good", CoinDelta: 10}))
	require.NoError(t, err)
	_, err = svc.Apply(ctx, intent(t, ledger.IntentParams{PlayerID: "bad", CoinDelta: 10}))
	require.NoError(t, err)

	drifts, err := svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Empty(t, drifts)

	// Кто-то поменял счёт в обход леджера
	store.SetAccount(ledger.Account{PlayerID: "bad", Coins: 999})

	drifts, err = svc.ReconcileAll(ctx)
	require.NoError(t, err)
	require.Len(t, drifts, 1)
	require.Equal(t, "bad", drifts[0].Account.PlayerID)
	require.Equal(t, int64(10), drifts[0].Ledger.Coins)

	store.FailNext(ledgertest.OpDrifts, common.ErrStorage)
	_, err = svc.ReconcileAll(ctx)
	require.ErrorIs(t, err, common.ErrStorage)
}
