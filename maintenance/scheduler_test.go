package maintenance

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velluxe/storefront-core/logger"
	"github.com/velluxe/storefront-core/types"
)

func newSchedulerForTest(t *testing.T) *Scheduler {
	t.Helper()

	s, err := NewScheduler(context.Background(), logger.NewNopLogger(), &types.JobsConfig{
		Enabled:  true,
		Timezone: "UTC",
	})
	require.NoError(t, err)
	return s
}

func TestSchedulerRunsJob(t *testing.T) {
	s := newSchedulerForTest(t)

	var runs int64
	require.NoError(t, s.Add("tick", "* * * * * *", func(ctx context.Context) error {
		atomic.AddInt64(&runs, 1)
		return nil
	}))

	require.NoError(t, s.Start())
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&runs) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerAddValidation(t *testing.T) {
	s := newSchedulerForTest(t)

	noop := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, s.Add("", "* * * * * *", noop), types.ErrJobNameIsEmpty)
	assert.ErrorIs(t, s.Add("job", "", noop), types.ErrJobSpecInvalid)
	assert.ErrorIs(t, s.Add("job", "* * * * * *", nil), types.ErrJobIsNil)
	assert.ErrorIs(t, s.Add("job", "not a cron spec", noop), types.ErrJobSpecInvalid)

	require.NoError(t, s.Add("job", "* * * * * *", noop))
	assert.ErrorIs(t, s.Add("job", "* * * * * *", noop), types.ErrJobExists)
}

func TestSchedulerRemove(t *testing.T) {
	s := newSchedulerForTest(t)

	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, s.Add("job", "* * * * * *", noop))
	require.NoError(t, s.Remove("job"))
	assert.ErrorIs(t, s.Remove("job"), types.ErrJobNotFound)
}

func TestSchedulerLifecycle(t *testing.T) {
	s := newSchedulerForTest(t)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start())

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.Error(t, s.Stop())
}

type countingCache struct {
	types.CacheManager
	sweeps int64
}

func (c *countingCache) Sweep() {
	atomic.AddInt64(&c.sweeps, 1)
}

type countingResumer struct {
	resumes int64
}

func (r *countingResumer) Resume(ctx context.Context) error {
	atomic.AddInt64(&r.resumes, 1)
	return nil
}

func TestRegisterDefaultJobs(t *testing.T) {
	s := newSchedulerForTest(t)

	cache := &countingCache{}
	resumer := &countingResumer{}

	require.NoError(t, RegisterDefaultJobs(s, &types.JobsConfig{
		Enabled:          true,
		CacheSweepSpec:   "* * * * * *",
		RewardResumeSpec: "* * * * * *",
	}, cache, resumer))

	require.NoError(t, s.Start())
	defer func() { _ = s.Stop() }()

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&cache.sweeps) >= 1 && atomic.LoadInt64(&resumer.resumes) >= 1
	}, 3*time.Second, 50*time.Millisecond)
}

func TestRegisterDefaultJobsDisabled(t *testing.T) {
	s := newSchedulerForTest(t)

	require.NoError(t, RegisterDefaultJobs(s, &types.JobsConfig{Enabled: false}, nil, nil))
	require.NoError(t, RegisterDefaultJobs(s, nil, nil, nil))
	assert.Empty(t, s.entries)
}
