package redis

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screening-systemv1/internal/model"
	"screening-systemv1/internal/store"
)

func newTestStore(t *testing.T, cfg Config) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := NewWithClient(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), cfg, nil)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func result() *model.Result {
	index := []time.Time{
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	res := model.NewResult(index)
	res.Set("SMA", []float64{math.NaN(), 10.5, 11.25})
	res.Direction[2] = model.DirectionLong
	return res
}

func TestStore_Key(t *testing.T) {
	s := NewWithClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), Config{}, nil)
	defer s.Close()
	assert.Equal(t, "ind:sma_Close_10:AAPL", s.Key("sma_Close_10", "AAPL"))

	custom := NewWithClient(goredis.NewClient(&goredis.Options{Addr: "localhost:0"}), Config{KeyPrefix: "screen"}, nil)
	defer custom.Close()
	assert.Equal(t, "screen:ema_macd_12_26_9.MACD_9:X", custom.Key("ema_macd_12_26_9.MACD_9", "X"))
}

func TestStore_RejectsInvalidKeys(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	ctx := context.Background()

	_, err := s.Load(ctx, "sma_Close_10", "")
	assert.ErrorIs(t, err, store.ErrInvalidKey)

	// ("a:b","c") and ("a","b:c") would both be ind:a:b:c
	assert.ErrorIs(t, s.Save(ctx, "a:b", "c", result()), store.ErrInvalidKey)
	assert.ErrorIs(t, s.Save(ctx, "a", "b:c", result()), store.ErrInvalidKey)
	_, err = s.Load(ctx, "a", "b:c")
	assert.ErrorIs(t, err, store.ErrInvalidKey)
	assert.Empty(t, mr.Keys())
}

func TestStore_MissingEntryIsAbsent(t *testing.T) {
	s, _ := newTestStore(t, Config{})

	res, err := s.Load(context.Background(), "sma_Close_10", "AAPL")
	require.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, StateClosed, s.Breaker().CurrentState())
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, Config{KeyPrefix: "screen"})

	in := result()
	require.NoError(t, s.Save(ctx, "sma_Close_2", "AAPL", in))
	assert.True(t, mr.Exists("screen:sma_Close_2:AAPL"))
	assert.Zero(t, mr.TTL("screen:sma_Close_2:AAPL"), "no TTL configured")

	out, err := s.Load(ctx, "sma_Close_2", "AAPL")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, out.IndexEqual(in.Index))
	sma, ok := out.Column("SMA")
	require.True(t, ok)
	assert.True(t, math.IsNaN(sma[0]))
	assert.Equal(t, []float64{10.5, 11.25}, sma[1:])
	assert.Equal(t, model.DirectionLong, out.Direction[2])

	// a second save replaces the entry
	in.Direction[2] = model.DirectionShort
	require.NoError(t, s.Save(ctx, "sma_Close_2", "AAPL", in))
	out, err = s.Load(ctx, "sma_Close_2", "AAPL")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionShort, out.Direction[2])
}

func TestStore_TTLExpiresEntries(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, Config{TTL: time.Hour})

	require.NoError(t, s.Save(ctx, "atr_10", "MSFT", result()))
	assert.Equal(t, time.Hour, mr.TTL("ind:atr_10:MSFT"))

	mr.FastForward(2 * time.Hour)
	res, err := s.Load(ctx, "atr_10", "MSFT")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestStore_CorruptEntry(t *testing.T) {
	s, mr := newTestStore(t, Config{})
	require.NoError(t, mr.Set("ind:sma_Close_10:AAPL", "not msgpack"))

	_, err := s.Load(context.Background(), "sma_Close_10", "AAPL")
	assert.ErrorIs(t, err, store.ErrCorrupt)
}

func TestStore_ErrorsTripTheBreaker(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t, Config{MaxFailures: 2, ResetTimeout: time.Minute})
	mr.SetError("ERR injected failure")

	_, err := s.Load(ctx, "sma_Close_10", "AAPL")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)
	assert.Error(t, s.Save(ctx, "sma_Close_10", "AAPL", result()))
	assert.Equal(t, StateOpen, s.Breaker().CurrentState())

	mr.SetError("")
	_, err = s.Load(ctx, "sma_Close_10", "AAPL")
	assert.ErrorIs(t, err, ErrCircuitOpen, "rejected without reaching redis")
}
