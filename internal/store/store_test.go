package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-gdd/internal/weather"
)

func f(v float64) *float64 { return &v }

func realtimeRec(key string, temp, rh float64) weather.ObservationRecord {
	return weather.ObservationRecord{ObsKey: key, Temperature: f(temp), Humidity: f(rh)}
}

func climateRec(key string, tmax, tmin float64) weather.ObservationRecord {
	return weather.ObservationRecord{
		ObsKey:      key,
		Temperature: f((tmax + tmin) / 2),
		Humidity:    f(70),
		TMax:        f(tmax),
		TMin:        f(tmin),
	}
}

// storeFactories runs every contract test against both implementations.
func storeFactories(t *testing.T, layout Layout) map[string]weather.Store {
	t.Helper()

	sqliteStore, err := Open(MemoryDSN, layout)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]weather.Store{
		"sqlite": sqliteStore,
		"memory": NewMemoryStore(),
	}
}

func TestStore_InsertIfAbsentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, LayoutRealtime) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init(ctx))
			require.NoError(t, s.Init(ctx))

			batch := []weather.ObservationRecord{
				realtimeRec("2024-05-02 04:00", 25.1, 80),
				realtimeRec("2024-05-02 05:00", 25.4, 78),
			}

			n, err := s.InsertIfAbsent(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			n, err = s.InsertIfAbsent(ctx, batch)
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			// The first write wins; values are never updated.
			n, err = s.InsertIfAbsent(ctx, []weather.ObservationRecord{realtimeRec("2024-05-02 04:00", 99, 1)})
			require.NoError(t, err)
			assert.Equal(t, 0, n)

			got, err := s.ReadRange(ctx, "", nil)
			require.NoError(t, err)
			require.Len(t, got, 2)
			assert.InDelta(t, 25.1, *got[0].Temperature, 1e-9)
		})
	}
}

func TestStore_ReadRangeBoundsAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, LayoutRealtime) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init(ctx))
			_, err := s.InsertIfAbsent(ctx, []weather.ObservationRecord{
				realtimeRec("2024-05-03 00:00", 3, 50),
				realtimeRec("2024-05-01 00:00", 1, 50),
				realtimeRec("2024-05-02 00:00", 2, 50),
			})
			require.NoError(t, err)

			to := "2024-05-02 00:00"
			got, err := s.ReadRange(ctx, "2024-05-01 12:00", &to)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, "2024-05-02 00:00", got[0].ObsKey)

			got, err = s.ReadRange(ctx, "2024-05-01 00:00", nil)
			require.NoError(t, err)
			require.Len(t, got, 3)
			assert.Equal(t, "2024-05-01 00:00", got[0].ObsKey)
			assert.Equal(t, "2024-05-03 00:00", got[2].ObsKey)
		})
	}
}

func TestStore_NullValuesRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, LayoutRealtime) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init(ctx))
			_, err := s.InsertIfAbsent(ctx, []weather.ObservationRecord{
				{ObsKey: "2024-05-01 00:00", Temperature: f(20)},
			})
			require.NoError(t, err)

			got, err := s.ReadRange(ctx, "", nil)
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Nil(t, got[0].Humidity)
			require.NotNil(t, got[0].Temperature)
		})
	}
}

func TestStore_ClimateLayoutKeepsExtremes(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, LayoutClimate) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init(ctx))
			_, err := s.InsertIfAbsent(ctx, []weather.ObservationRecord{climateRec("2024-05-01", 30, 20)})
			require.NoError(t, err)

			got, err := s.ReadRange(ctx, "", nil)
			require.NoError(t, err)
			require.Len(t, got, 1)
			require.True(t, got[0].HasDailyExtremes())
			assert.InDelta(t, 30.0, *got[0].TMax, 1e-9)
			assert.InDelta(t, 20.0, *got[0].TMin, 1e-9)
		})
	}
}

func TestStore_ExistingKeysAndClearAll(t *testing.T) {
	ctx := context.Background()
	for name, s := range storeFactories(t, LayoutClimate) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Init(ctx))
			_, err := s.InsertIfAbsent(ctx, []weather.ObservationRecord{
				climateRec("2024-05-01", 30, 20),
				climateRec("2024-05-02", 32, 22),
			})
			require.NoError(t, err)

			found, err := s.ExistingKeys(ctx, []string{"2024-05-01", "2024-05-09"})
			require.NoError(t, err)
			assert.Contains(t, found, "2024-05-01")
			assert.NotContains(t, found, "2024-05-09")

			n, err := s.ClearAll(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, n)

			got, err := s.ReadRange(ctx, "", nil)
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestSQLiteStore_ExistingKeysChunks(t *testing.T) {
	ctx := context.Background()
	s, err := Open(MemoryDSN, LayoutRealtime)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Init(ctx))

	var (
		batch []weather.ObservationRecord
		keys  []string
	)
	for i := 0; i < keyChunk+20; i++ {
		key := fmt.Sprintf("2024-01-01 %02d:%02d", i/60, i%60)
		batch = append(batch, realtimeRec(key, 20, 50))
		keys = append(keys, key)
	}
	n, err := s.InsertIfAbsent(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, len(batch), n)

	found, err := s.ExistingKeys(ctx, keys)
	require.NoError(t, err)
	assert.Len(t, found, len(keys))
}

func TestSQLiteStore_FileBacked(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "climate.db")

	s, err := Open(path, LayoutClimate)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	_, err = s.InsertIfAbsent(ctx, []weather.ObservationRecord{climateRec("2024-05-01", 30, 20)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := Open(path, LayoutClimate)
	require.NoError(t, err)
	defer reopened.Close()
	require.NoError(t, reopened.Init(ctx))

	got, err := reopened.ReadRange(ctx, "", nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "2024-05-01", got[0].ObsKey)
}

func TestSQLiteStore_InsertAfterCloseFails(t *testing.T) {
	ctx := context.Background()
	s, err := Open(MemoryDSN, LayoutRealtime)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Close())

	_, err = s.InsertIfAbsent(ctx, []weather.ObservationRecord{realtimeRec("2024-05-01 00:00", 1, 1)})
	assert.Error(t, err)
}
