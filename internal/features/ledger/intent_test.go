package ledger

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"serotonyl.ru/retro-wallet/internal/common"
)

func TestNewIntentValidation(t *testing.T) {
	tests := []struct {
		name  string
		p     IntentParams
		field string
	}{
		{"пустой игрок", IntentParams{PlayerID: "  ", CoinDelta: 5}, "player_id"},
		{"длинный игрок", IntentParams{PlayerID: strings.Repeat("x", MaxPlayerIDLen+1), CoinDelta: 5}, "player_id"},
		{"все дельты ноль", IntentParams{PlayerID: "p3"}, "deltas"},
		{"все дельты ноль с категорией", IntentParams{PlayerID: "p3", Category: CategoryReward}, "deltas"},
		{"все дельты ноль у игры", IntentParams{PlayerID: "p3", Category: CategoryGame, RunID: "run-1"}, "deltas"},
		{"битый UTF-8 в игроке", IntentParams{PlayerID: "p\xff", CoinDelta: 5}, "player_id"},
		{"NUL в ключе", IntentParams{PlayerID: "p1", CoinDelta: 5, IdempotencyKey: "run\x00abc"}, "idempotency_key"},
		{"NUL в run", IntentParams{PlayerID: "p1", CoinDelta: 5, RunID: "run\x00abc"}, "run_id"},
		{"битый UTF-8 в run", IntentParams{PlayerID: "p1", CoinDelta: 5, RunID: "run\xff\xfe"}, "run_id"},
		{"NUL в причине", IntentParams{PlayerID: "p1", CoinDelta: 5, Reason: "a\x00"}, "reason"},
		{"слишком много монет", IntentParams{PlayerID: "p1", CoinDelta: MaxDelta + 1}, "coin_delta"},
		{"слишком мало опыта", IntentParams{PlayerID: "p1", ExperienceDelta: -MaxDelta - 1, Category: CategoryReward}, "experience_delta"},
		{"нет категории при нуле монет", IntentParams{PlayerID: "p1", TicketDelta: 1}, "category"},
		{"неизвестная категория", IntentParams{PlayerID: "p1", CoinDelta: 1, Category: "bonus"}, "category"},
		{"earn с минусом", IntentParams{PlayerID: "p1", CoinDelta: -1, Category: CategoryEarn}, "coin_delta"},
		{"spend с плюсом", IntentParams{PlayerID: "p1", CoinDelta: 1, Category: CategorySpend}, "coin_delta"},
		{"длинный ключ", IntentParams{PlayerID: "p1", CoinDelta: 1, IdempotencyKey: strings.Repeat("k", MaxKeyLen+1)}, "idempotency_key"},
		{"длинный run", IntentParams{PlayerID: "p1", CoinDelta: 1, RunID: strings.Repeat("r", MaxKeyLen+1)}, "run_id"},
		{"длинная причина", IntentParams{PlayerID: "p1", CoinDelta: 1, Reason: strings.Repeat("я", MaxReasonLen+1)}, "reason"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIntent(tt.p)
			require.Error(t, err)
			require.ErrorIs(t, err, common.ErrInvalidIntent)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestNewIntentNormalizes(t *testing.T) {
	in, err := NewIntent(IntentParams{PlayerID: " p1 ", CoinDelta: 50, IdempotencyKey: " k1 "})
	require.NoError(t, err)
	require.Equal(t, "p1", in.PlayerID())
	require.Equal(t, CategoryEarn, in.Category())
	require.Equal(t, "k1", in.IdempotencyKey())

	in, err = NewIntent(IntentParams{PlayerID: "p1", CoinDelta: -5})
	require.NoError(t, err)
	require.Equal(t, CategorySpend, in.Category())

	// plays_delta не подставляется: что передали, то и записано
	in, err = NewIntent(IntentParams{PlayerID: "p1", Category: CategoryGame, CoinDelta: 5, RunID: "run-1"})
	require.NoError(t, err)
	require.Zero(t, in.Params().PlaysDelta)
	require.Equal(t, "run-1", in.RunID())

	// Нулевые монеты допустимы при явной категории
	in, err = NewIntent(IntentParams{PlayerID: "p1", TicketDelta: -1, Category: CategoryReward})
	require.NoError(t, err)
	require.Equal(t, int64(0), in.CoinDelta())

	_, err = NewIntent(IntentParams{PlayerID: "p1", CoinDelta: MaxDelta})
	require.NoError(t, err)
}

func TestIntentApply(t *testing.T) {
	acc := Account{PlayerID: "p1", Coins: 50, Experience: 10, Tickets: 1}

	in, err := NewIntent(IntentParams{PlayerID: "p1", CoinDelta: -20, TicketDelta: -1, Category: CategorySpend})
	require.NoError(t, err)
	next, err := in.apply(acc)
	require.NoError(t, err)
	require.Equal(t, int64(30), next.Coins)
	require.Equal(t, int64(0), next.Tickets)
	require.Equal(t, int64(10), next.Experience)

	in, err = NewIntent(IntentParams{PlayerID: "p1", CoinDelta: -70})
	require.NoError(t, err)
	_, err = in.apply(acc)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)

	// Монет хватает, билетов нет: отказ целиком
	in, err = NewIntent(IntentParams{PlayerID: "p1", CoinDelta: 5, TicketDelta: -2, Category: CategoryReward})
	require.NoError(t, err)
	_, err = in.apply(acc)
	require.ErrorIs(t, err, common.ErrInsufficientBalance)
	require.Contains(t, err.Error(), "билеты")
}

func TestLevel(t *testing.T) {
	require.Equal(t, 1, Level(0))
	require.Equal(t, 1, Level(999))
	require.Equal(t, 2, Level(1000))
	require.Equal(t, 11, Level(10_500))
	require.Equal(t, MaxLevel, Level(998_000))
	require.Equal(t, MaxLevel, Level(5_000_000))
	require.Equal(t, 1, Level(-5))
}

func TestDriftConsistent(t *testing.T) {
	d := Drift{
		Account: Account{Coins: 10, Experience: 5, Tickets: 1, GamesPlayed: 2},
		Ledger:  Totals{Coins: 10, Experience: 5, Tickets: 1, GamesPlayed: 2, Entries: 3},
	}
	require.True(t, d.Consistent())

	d.Ledger.Tickets = 0
	require.False(t, d.Consistent())
}
