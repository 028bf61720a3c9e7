package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateKeyUsesLocation(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	// 22:30 UTC: это уже следующий день по Москве
	ts := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)

	require.Equal(t, "2026-03-01", DateKey(ts, time.UTC))
	require.Equal(t, "2026-03-02", DateKey(ts, msk))
}

func TestStartOfDay(t *testing.T) {
	msk := time.FixedZone("MSK", 3*60*60)
	ts := time.Date(2026, 3, 1, 22, 30, 0, 0, time.UTC)

	got := StartOfDay(ts, msk)
	require.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, msk), got)
}

func TestCleanString(t *testing.T) {
	s, ok := CleanString("  snake ", 16)
	require.True(t, ok)
	require.Equal(t, "snake", s)

	_, ok = CleanString("монета", 5)
	require.False(t, ok)

	_, ok = CleanString("монета", 6)
	require.True(t, ok)
}

func TestCleanStringRejectsNonText(t *testing.T) {
	_, ok := CleanString("run\x00abc", 64)
	require.False(t, ok)

	_, ok = CleanString("run\xff\xfe", 64)
	require.False(t, ok)

	require.True(t, ValidText("змейка"))
	require.False(t, ValidText("p\xff"))
}
