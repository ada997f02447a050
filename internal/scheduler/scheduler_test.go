package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-gdd/internal/weather"
)

type countingIngester struct {
	calls atomic.Int32
}

func (c *countingIngester) RunIngestion(context.Context) weather.IngestResult {
	c.calls.Add(1)
	return weather.IngestResult{RunID: "test"}
}

func TestScheduler_RunOnStart(t *testing.T) {
	ing := &countingIngester{}
	s := New(Config{Cron: "10 * * * *", Location: time.UTC, RunOnStart: true}, ing, nil)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return ing.calls.Load() == 1 }, time.Second, 10*time.Millisecond)

	var next time.Time
	require.Eventually(t, func() bool {
		var ok bool
		next, ok = s.NextRun()
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 10, next.Minute())
}

func TestScheduler_InvalidCron(t *testing.T) {
	s := New(Config{Cron: "every hour"}, &countingIngester{}, nil)
	assert.Error(t, s.Start())

	s = New(Config{}, &countingIngester{}, nil)
	assert.ErrorIs(t, s.Start(), errNoSchedule)
}
