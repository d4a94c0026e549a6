package reconciliation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

type fakeLock struct {
	mu       sync.Mutex
	held     bool
	acquires int
}

func (l *fakeLock) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acquires++
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held = false
	return nil
}

type countingJob struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) Runs() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "reconciliation-test", Level: zerolog.ErrorLevel})
}

func TestServiceRunsJobsOnce(t *testing.T) {
	t.Parallel()

	job := &countingJob{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err = svc.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, job.Runs())
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &countingJob{}
	lock := &fakeLock{held: true}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = svc.Run(ctx)
	assert.Zero(t, job.Runs())
	assert.Equal(t, 1, lock.acquires)
}

func TestServiceContinuesAfterJobFailure(t *testing.T) {
	t.Parallel()

	failing := &countingJob{err: assert.AnError}
	following := &countingJob{}
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(failing, following),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_ = svc.Run(ctx)
	assert.Equal(t, 1, failing.Runs())
	assert.Equal(t, 1, following.Runs())
}

func TestRegistryIgnoresNilJobs(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil, &countingJob{})
	registry.Register(nil)
	assert.Len(t, registry.Jobs(), 1)
}
