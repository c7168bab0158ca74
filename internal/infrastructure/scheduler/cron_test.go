package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(nil, nil)
	assert.Error(t, s.Schedule("every ten minutes", func(time.Time) {}))
	assert.NoError(t, s.Schedule("*/10 * * * *", func(time.Time) {}))
	assert.NoError(t, s.Schedule("@hourly", func(time.Time) {}))
}

func TestScheduledJobRuns(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler(time.UTC, nil)
	fired := make(chan time.Time, 1)
	require.NoError(t, s.Schedule("@every 1s", func(ts time.Time) {
		select {
		case fired <- ts:
		default:
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Start(ctx))

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	assert.NoError(t, s.Stop(stopCtx))
	assert.NoError(t, s.Stop(stopCtx))
}
