package cron

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/poolfund-backend/pkg/logger"
	"github.com/angelmondragon/poolfund-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	releases int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func quietLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func mustRegistry(t *testing.T, jobs ...Job) *Registry {
	t.Helper()
	r, err := NewRegistry(jobs...)
	require.NoError(t, err)
	return r
}

func runCount(t *testing.T, reg *prometheus.Registry, job, result string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "cron_job_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelIs(m, "job", job) && labelIs(m, "result", result) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelIs(m *dto.Metric, name, value string) bool {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue() == value
		}
	}
	return false
}

func TestRunCycleRunsEveryJobDespiteFailures(t *testing.T) {
	sweep := &countingJob{name: "payout-voting-expiry", err: errors.New("pool locked")}
	retention := &countingJob{name: "outbox-retention"}
	reg := prometheus.NewRegistry()
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: mustRegistry(t, sweep, retention),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Equal(t, 1, sweep.runs)
	assert.Equal(t, 1, retention.runs)
	assert.Equal(t, 1.0, runCount(t, reg, "payout-voting-expiry", "failure"))
	assert.Equal(t, 1.0, runCount(t, reg, "outbox-retention", "success"))
	assert.Equal(t, 1, lock.releases)
	assert.False(t, lock.held)
}

func TestRunCycleSkipsWhenLockHeldElsewhere(t *testing.T) {
	job := &countingJob{name: "payout-voting-expiry"}
	lock := &fakeLock{held: true}
	svc, err := NewService(ServiceParams{Logger: quietLogger(), Registry: mustRegistry(t, job), Lock: lock})
	require.NoError(t, err)

	require.NoError(t, svc.runCycle(context.Background()))
	assert.Zero(t, job.runs)
	assert.Zero(t, lock.releases)
}

type cancelingJob struct {
	cancel context.CancelFunc
	runs   int
}

func (c *cancelingJob) Name() string { return "cancel" }

func (c *cancelingJob) Run(context.Context) error {
	c.runs++
	c.cancel()
	return nil
}

func TestRunExecutesImmediatelyAndStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job := &cancelingJob{cancel: cancel}
	lock := &fakeLock{}
	svc, err := NewService(ServiceParams{
		Logger:   quietLogger(),
		Registry: mustRegistry(t, job),
		Lock:     lock,
		Spec:     "@every 1h",
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
	assert.Equal(t, 1, lock.releases)
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: quietLogger(), Lock: &fakeLock{}, Spec: "whenever"})
	assert.ErrorContains(t, err, "invalid cron spec")

	_, err = NewService(ServiceParams{Logger: quietLogger()})
	assert.ErrorContains(t, err, "lock required")
}
