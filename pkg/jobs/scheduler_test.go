package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mo-amir99/lms-progress-server/pkg/logger"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Execute(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestSchedulerRunsJobUntilStopped(t *testing.T) {
	job := &countingJob{}
	s := NewScheduler(logger.Discard(), time.Second)
	s.AddJob(job, 5*time.Millisecond)

	s.Start()
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := job.runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, job.runs.Load())
}

func TestRunOnce(t *testing.T) {
	job := &countingJob{err: errors.New("smtp down")}
	s := NewScheduler(logger.Discard(), time.Second)
	s.AddJob(job, time.Hour)

	assert.EqualError(t, s.RunOnce(context.Background(), "counting"), "smtp down")
	assert.Equal(t, int32(1), job.runs.Load())
	assert.Error(t, s.RunOnce(context.Background(), "missing"))
}
