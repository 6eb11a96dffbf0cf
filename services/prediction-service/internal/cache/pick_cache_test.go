package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stitts-dev/pick-engine/services/prediction-service/internal/metrics"
	"github.com/stitts-dev/pick-engine/shared/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var slateDate = time.Date(2025, 2, 14, 18, 30, 0, 0, time.UTC)

func samplePicks() []types.Pick {
	return []types.Pick{{
		ID:        "p-1",
		GameID:    "g-1",
		Sport:     types.SportNCAAB,
		Market:    types.MarketSpread,
		Side:      types.DirectionHome,
		Line:      -4.5,
		Score:     81,
		Edge:      3.2,
		Tier:      4,
		Status:    types.PickPending,
		GameDate:  time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC),
		Signals:   []types.SignalResult{},
	}}
}

func TestPicksRoundTripThroughRedis(t *testing.T) {
	client, mock := redismock.NewClientMock()
	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	cache := NewPickCacheWithClient(client, time.Hour, "pe:", recorder)
	ctx := context.Background()

	picks := samplePicks()
	data, err := json.Marshal(picks)
	require.NoError(t, err)

	mock.ExpectSet("pe:picks:ncaab:2025-02-14", data, time.Hour).SetVal("OK")
	require.NoError(t, cache.SetPicks(ctx, types.SportNCAAB, slateDate, picks))

	mock.ExpectGet("pe:picks:ncaab:2025-02-14").SetVal(string(data))
	got, found, err := cache.GetPicks(ctx, types.SportNCAAB, slateDate)
	require.NoError(t, err)
	assert.True(t, found)
	require.Len(t, got, 1)
	assert.Equal(t, "p-1", got[0].ID)
	assert.Equal(t, 4, got[0].Tier)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.CacheRequests.WithLabelValues("picks", "hit")))
}

func TestCacheMissIsNotAnError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	recorder := metrics.NewRecorder(prometheus.NewRegistry())
	cache := NewPickCacheWithClient(client, time.Hour, "", recorder)

	mock.ExpectGet("elo:nba").RedisNil()
	ratings, found, err := cache.GetElo(context.Background(), types.SportNBA)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, ratings)

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1.0, testutil.ToFloat64(recorder.CacheRequests.WithLabelValues("elo", "miss")))
}

func TestCacheErrorsPropagate(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewPickCacheWithClient(client, 0, "", nil)
	boom := errors.New("connection reset")

	mock.ExpectGet("picks:nba:2025-02-14").SetErr(boom)
	_, found, err := cache.GetPicks(context.Background(), types.SportNBA, slateDate)
	assert.False(t, found)
	assert.ErrorIs(t, err, boom)

	mock.ExpectDel("picks:nba:2025-02-14").SetErr(boom)
	assert.ErrorIs(t, cache.InvalidatePicks(context.Background(), types.SportNBA, slateDate), boom)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEloTableIsStoredWithDefaultTTL(t *testing.T) {
	client, mock := redismock.NewClientMock()
	cache := NewPickCacheWithClient(client, 0, "", nil)

	ratings := []types.EloRating{{Team: "Duke", Sport: types.SportNCAAB, Rating: 1712.5}}
	data, err := json.Marshal(ratings)
	require.NoError(t, err)

	mock.ExpectSet("elo:ncaab", data, 6*time.Hour).SetVal("OK")
	require.NoError(t, cache.SetElo(context.Background(), types.SportNCAAB, ratings))
	assert.NoError(t, mock.ExpectationsWereMet())
}
