package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profitmonk/high-intent-signals/pkg/metrics"
)

func countingJob(name string, failures int32, calls *int32) FuncJob {
	return FuncJob{
		JobName: name,
		Spec:    "0 0 3 * * SUN",
		Fn: func(ctx context.Context) error {
			if atomic.AddInt32(calls, 1) <= failures {
				return errors.New("transient")
			}
			return nil
		},
	}
}

func TestScheduler_AddAndRemove(t *testing.T) {
	s := New(nil)
	var calls int32

	require.NoError(t, s.AddJob(countingJob("b", 0, &calls)))
	require.NoError(t, s.AddJob(countingJob("a", 0, &calls)))
	assert.Error(t, s.AddJob(countingJob("a", 0, &calls)))
	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	require.NoError(t, s.RemoveJob("a"))
	assert.Equal(t, []string{"b"}, s.GetAllJobs())
	assert.Error(t, s.RemoveJob("a"))

	bad := FuncJob{JobName: "bad", Spec: "not a spec", Fn: func(context.Context) error { return nil }}
	assert.Error(t, s.AddJob(bad))
}

func TestScheduler_RunJobSyncRetries(t *testing.T) {
	tests := []struct {
		name        string
		failures    int32
		wantSuccess bool
		wantCalls   int32
	}{
		{"first try", 0, true, 1},
		{"recovers on retry", 2, true, 3},
		{"exhausts retries", 10, false, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			s := New(nil, WithRetry(2, time.Millisecond), WithMetrics(m))
			var calls int32
			require.NoError(t, s.AddJob(countingJob("refresh", tt.failures, &calls)))

			result, err := s.RunJobSync("refresh")
			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, tt.wantCalls, atomic.LoadInt32(&calls))
			if !tt.wantSuccess {
				assert.Equal(t, "transient", result.Error)
			}

			history, err := s.GetJobHistory("refresh")
			require.NoError(t, err)
			require.Len(t, history.Results, 1)

			stats := s.GetJobStats()["refresh"]
			assert.Equal(t, 1, stats.TotalRuns)
			if tt.wantSuccess {
				assert.Equal(t, 1.0, stats.SuccessRate)
				assert.NotNil(t, stats.LastSuccess)
			} else {
				assert.NotNil(t, stats.LastFailure)
			}
		})
	}
}

func TestScheduler_UnknownJob(t *testing.T) {
	s := New(nil)
	_, err := s.RunJobSync("missing")
	assert.Error(t, err)
	assert.Error(t, s.RunJob("missing"))
	_, err = s.GetJobHistory("missing")
	assert.Error(t, err)
}

func TestScheduler_TimeoutCancelsAttempt(t *testing.T) {
	s := New(nil, WithRetry(0, 0), WithTimeout(20*time.Millisecond))
	require.NoError(t, s.AddJob(FuncJob{
		JobName: "slow",
		Spec:    "@weekly",
		Fn: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}))

	result, err := s.RunJobSync("slow")
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.True(t, strings.Contains(result.Error, "deadline"))
}

func TestScheduler_StopCancelsRunningJob(t *testing.T) {
	s := New(nil, WithRetry(3, time.Hour))
	started := make(chan struct{})
	require.NoError(t, s.AddJob(FuncJob{
		JobName: "long",
		Spec:    "@weekly",
		Fn: func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
	}))
	s.Start()

	done := make(chan JobResult, 1)
	go func() {
		r, _ := s.RunJobSync("long")
		done <- r
	}()
	<-started
	s.Stop()

	select {
	case r := <-done:
		assert.False(t, r.Success)
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop")
	}
}

func TestJobHistory_Bounded(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+20; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}
	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(5), 5)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-12)
	assert.Empty(t, (&JobHistory{}).GetLatestResults(3))
}
