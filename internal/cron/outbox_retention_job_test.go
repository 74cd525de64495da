package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type deleteCall struct {
	cutoff      time.Time
	minAttempts int
}

type fakeRetentionRepo struct {
	calls []deleteCall
	err   error
}

func (f *fakeRetentionRepo) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttempts int) (int64, error) {
	f.calls = append(f.calls, deleteCall{cutoff: cutoff, minAttempts: minAttempts})
	if f.err != nil {
		return 0, f.err
	}
	return 7, nil
}

type passthroughTx struct{ runs int }

func (p *passthroughTx) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	p.runs++
	return fn(nil)
}

var retentionNow = time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

func retentionJob(t *testing.T, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	params.Logger = quietLogger()
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	concrete := job.(*outboxRetentionJob)
	concrete.now = func() time.Time { return retentionNow }
	return concrete
}

func TestOutboxRetentionDefaults(t *testing.T) {
	repo := &fakeRetentionRepo{}
	tx := &passthroughTx{}
	job := retentionJob(t, OutboxRetentionJobParams{DB: tx, Repository: repo})

	assert.Equal(t, "outbox-retention", job.Name())
	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, tx.runs)
	assert.Equal(t, []deleteCall{{
		cutoff:      retentionNow.Add(-outboxRetentionDays * 24 * time.Hour),
		minAttempts: outboxMinAttempts,
	}}, repo.calls)
}

func TestOutboxRetentionHonorsConfiguredWindow(t *testing.T) {
	repo := &fakeRetentionRepo{}
	job := retentionJob(t, OutboxRetentionJobParams{
		DB:          &passthroughTx{},
		Repository:  repo,
		Retention:   72 * time.Hour,
		MinAttempts: 3,
	})

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, repo.calls, 1)
	assert.Equal(t, retentionNow.Add(-72*time.Hour), repo.calls[0].cutoff)
	assert.Equal(t, 3, repo.calls[0].minAttempts)
}

func TestOutboxRetentionWrapsRepositoryError(t *testing.T) {
	boom := errors.New("statement timeout")
	job := retentionJob(t, OutboxRetentionJobParams{DB: &passthroughTx{}, Repository: &fakeRetentionRepo{err: boom}})

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "outbox retention")
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), Repository: &fakeRetentionRepo{}})
	assert.ErrorContains(t, err, "db runner required")

	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: quietLogger(), DB: &passthroughTx{}})
	assert.ErrorContains(t, err, "outbox repository required")
}
