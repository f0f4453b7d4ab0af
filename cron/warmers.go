package cron

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/saiset-co/estate-client/api"
	"github.com/saiset-co/estate-client/types"
)

// Warmer is the part of api.Service the warmers drive.
type Warmer interface {
	Landing(ctx context.Context) api.LandingResult
	PrefetchProperties(ctx context.Context, ids []string)
}

// WarmerJob loads the landing page and/or prefetches property details. Both
// go through the cache with UseCache set, so a run against fresh entries
// makes no requests.
func WarmerJob(w Warmer, config types.WarmerConfig) types.CronJob {
	return func(ctx context.Context) error {
		var g errgroup.Group

		if config.Landing {
			g.Go(func() error {
				w.Landing(ctx)
				return nil
			})
		}

		if len(config.PropertyIDs) > 0 {
			g.Go(func() error {
				w.PrefetchProperties(ctx, config.PropertyIDs)
				return nil
			})
		}

		return g.Wait()
	}
}

// RegisterWarmers adds one job per configured warmer. It is a no-op when
// warmers are disabled.
func RegisterWarmers(m types.CronManager, w Warmer, config *types.WarmersConfig) error {
	if config == nil || !config.Enabled {
		return nil
	}

	for _, warmer := range config.Jobs {
		if err := m.Add(warmer.Name, warmer.Schedule, WarmerJob(w, warmer)); err != nil {
			return types.WrapError(err, "failed to register warmer "+warmer.Name)
		}
	}

	return nil
}
