package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockJob implements the Job interface for testing
type MockJob struct {
	id       string
	jobType  string
	duration time.Duration
	err      error
	executed int32
}

func NewMockJob(id, jobType string, duration time.Duration, err error) *MockJob {
	return &MockJob{
		id:       id,
		jobType:  jobType,
		duration: duration,
		err:      err,
	}
}

func (m *MockJob) Execute(ctx context.Context) error {
	atomic.AddInt32(&m.executed, 1)
	if m.duration > 0 {
		select {
		case <-time.After(m.duration):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return m.err
}

func (m *MockJob) ID() string {
	return m.id
}

func (m *MockJob) Type() string {
	return m.jobType
}

func (m *MockJob) ExecutedCount() int32 {
	return atomic.LoadInt32(&m.executed)
}

func TestNewPool(t *testing.T) {
	t.Run("creates pool with valid configuration", func(t *testing.T) {
		config := Config{
			Size:            5,
			QueueSize:       100,
			ShutdownTimeout: 10 * time.Second,
			RateLimit:       10,
		}

		pool := New(config)

		assert.NotNil(t, pool)
		assert.Equal(t, config.Size, cap(pool.workers))
		assert.Equal(t, config.QueueSize, cap(pool.jobs))
		assert.Equal(t, config.QueueSize, cap(pool.results))
	})

	t.Run("creates pool with default values", func(t *testing.T) {
		pool := New(DefaultConfig())

		assert.NotNil(t, pool)
		assert.NotNil(t, pool.ctx)
		assert.NotNil(t, pool.cancel)
	})
}

func TestPoolLifecycle(t *testing.T) {
	t.Run("start and shutdown pool successfully", func(t *testing.T) {
		config := Config{
			Size:            2,
			QueueSize:       10,
			ShutdownTimeout: 2 * time.Second,
		}

		pool := New(config)
		pool.Start()

		job := NewMockJob("test-1", "port-scan", 10*time.Millisecond, nil)
		err := pool.Submit(job)
		assert.NoError(t, err)

		time.Sleep(50 * time.Millisecond)

		err = pool.Shutdown()
		assert.NoError(t, err)

		assert.Equal(t, int32(1), job.ExecutedCount())
	})

	t.Run("handles multiple start calls gracefully", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 1, ShutdownTimeout: time.Second})
		pool.Start()
		pool.Start()

		require.NoError(t, pool.Shutdown())
	})

	t.Run("rejects submission after shutdown", func(t *testing.T) {
		pool := New(Config{Size: 1, QueueSize: 1, ShutdownTimeout: time.Second})
		pool.Start()
		require.NoError(t, pool.Shutdown())

		err := pool.Submit(NewMockJob("late", "port-scan", 0, nil))
		assert.Error(t, err)
	})
}

func TestFailedJobsAreNotRetried(t *testing.T) {
	pool := New(Config{Size: 1, QueueSize: 10, ShutdownTimeout: 2 * time.Second})
	pool.Start()

	job := NewMockJob("failing", "port-scan", 0, errors.New("exit status 1"))
	require.NoError(t, pool.Submit(job))

	var result Result
	select {
	case result = <-pool.Results():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	assert.Equal(t, "failing", result.JobID)
	assert.Error(t, result.Error)
	assert.Equal(t, int32(1), job.ExecutedCount())

	require.NoError(t, pool.Shutdown())
}

func TestResultsCarryDuration(t *testing.T) {
	pool := New(Config{Size: 1, QueueSize: 10, ShutdownTimeout: 2 * time.Second})
	pool.Start()

	require.NoError(t, pool.Submit(NewMockJob("timed", "os-detection", 20*time.Millisecond, nil)))

	select {
	case result := <-pool.Results():
		assert.Equal(t, "timed", result.JobID)
		assert.Equal(t, "os-detection", result.JobType)
		assert.GreaterOrEqual(t, result.Duration, 20*time.Millisecond)
		assert.NoError(t, result.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for job result")
	}

	require.NoError(t, pool.Shutdown())
}

func TestConcurrentJobsAllComplete(t *testing.T) {
	pool := New(Config{Size: 4, QueueSize: 50, ShutdownTimeout: 5 * time.Second})
	pool.Start()

	const jobCount = 20
	jobs := make([]*MockJob, jobCount)
	for i := 0; i < jobCount; i++ {
		jobs[i] = NewMockJob("job", "port-scan", time.Millisecond, nil)
		require.NoError(t, pool.Submit(jobs[i]))
	}

	received := 0
	deadline := time.After(5 * time.Second)
	for received < jobCount {
		select {
		case <-pool.Results():
			received++
		case <-deadline:
			t.Fatalf("only %d of %d results received", received, jobCount)
		}
	}

	for _, job := range jobs {
		assert.Equal(t, int32(1), job.ExecutedCount())
	}

	require.NoError(t, pool.Shutdown())
}
