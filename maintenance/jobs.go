package maintenance

import (
	"context"

	"github.com/velluxe/storefront-core/types"
)

const (
	JobCacheSweep   = "cache_sweep"
	JobRewardResume = "reward_resume"
)

// RewardResumer re-runs pending reward reconciliation; the checkout
// manager satisfies it.
type RewardResumer interface {
	Resume(ctx context.Context) error
}

// RegisterDefaultJobs wires the standing housekeeping jobs. Specs come
// from config so hosts can tune or disable the cadence.
func RegisterDefaultJobs(s *Scheduler, config *types.JobsConfig, cache types.CacheManager, resumer RewardResumer) error {
	if config == nil || !config.Enabled {
		return nil
	}

	if config.CacheSweepSpec != "" && cache != nil {
		err := s.Add(JobCacheSweep, config.CacheSweepSpec, func(ctx context.Context) error {
			cache.Sweep()
			return nil
		})
		if err != nil {
			return err
		}
	}

	if config.RewardResumeSpec != "" && resumer != nil {
		err := s.Add(JobRewardResume, config.RewardResumeSpec, func(ctx context.Context) error {
			return resumer.Resume(ctx)
		})
		if err != nil {
			return err
		}
	}

	return nil
}
