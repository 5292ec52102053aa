package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	calls  atomic.Int32
	fail   bool
	active atomic.Int32
	maxPar atomic.Int32
}

func (j *countingJob) Run(_ context.Context, opts RunOptions) (*Result, error) {
	n := j.active.Add(1)
	defer j.active.Add(-1)
	if n > j.maxPar.Load() {
		j.maxPar.Store(n)
	}
	j.calls.Add(1)
	time.Sleep(2 * time.Millisecond)
	if j.fail {
		return nil, errors.New("upstream down")
	}
	return &Result{EventTicker: opts.EventTicker}, nil
}

func TestScheduler_RunsImmediatelyAndRepeats(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(job, 10*time.Millisecond, RunOptions{EventTicker: eventTicker, Now: runNow}, nil)

	var results atomic.Int32
	s.OnResult(func(r *Result) {
		assert.Equal(t, eventTicker, r.EventTicker)
		results.Add(1)
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))

	assert.EqualValues(t, 1, job.maxPar.Load(), "runs never overlap")
	assert.Equal(t, job.calls.Load(), results.Load())
	assert.True(t, s.opts.Now.IsZero())
}

func TestScheduler_ErrorsAreNotFatal(t *testing.T) {
	job := &countingJob{fail: true}
	s := NewScheduler(job, 5*time.Millisecond, RunOptions{EventTicker: eventTicker}, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return job.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))
}
