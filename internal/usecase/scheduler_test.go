package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	jobs    map[string]func(time.Time)
	started bool
	stopped bool
}

func (d *fakeDriver) Schedule(spec string, job func(time.Time)) error {
	if spec == "bad" {
		return errors.New("invalid spec")
	}
	if d.jobs == nil {
		d.jobs = map[string]func(time.Time){}
	}
	d.jobs[spec] = job
	return nil
}

func (d *fakeDriver) Start(context.Context) error { d.started = true; return nil }
func (d *fakeDriver) Stop(context.Context) error  { d.stopped = true; return nil }

func TestSchedulerRegistersJobs(t *testing.T) {
	t.Parallel()
	driver := &fakeDriver{}
	var probes int
	probe := func(context.Context) error { probes++; return errors.New("db down") }

	s := NewScheduler(driver, nil,
		KeepAliveJob(5*time.Minute, probe),
		Job{Name: "disabled", Spec: "", Run: probe},
	)
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, driver.started)
	require.Len(t, driver.jobs, 1)

	job, ok := driver.jobs["@every 5m0s"]
	require.True(t, ok)
	job(time.Now())
	assert.Equal(t, 1, probes)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, driver.stopped)
}

func TestSchedulerReportsBadSpec(t *testing.T) {
	t.Parallel()
	s := NewScheduler(&fakeDriver{}, nil, Job{Name: "broken", Spec: "bad", Run: func(context.Context) error { return nil }})
	assert.ErrorContains(t, s.Start(context.Background()), "register broken")
}

func TestSessionSweepJobDeletesExpired(t *testing.T) {
	t.Parallel()
	auth, _, clock := newAuth(t)
	register(t, auth, "sweeper")
	_, err := auth.Login(context.Background(), "sweeper", "correct-horse")
	require.NoError(t, err)

	clock.Advance(30 * 24 * time.Hour)
	job := SessionSweepJob("@hourly", auth)
	require.NoError(t, job.Run(context.Background()))

	n, err := auth.SweepSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
