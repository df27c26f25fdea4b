package tasks

import (
	"context"

	"github.com/windrose/windrose/internal/scheduler"
	"github.com/windrose/windrose/internal/upgrade"
)

// RegisterUpgradeSweepTask registers the periodic below-cutoff sweep.
func RegisterUpgradeSweepTask(sched *scheduler.Scheduler, svc *upgrade.Service, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "upgrade-sweep",
		Name:        "Upgrade Sweep",
		Description: "Searches indexers for better releases of items below their quality cutoff",
		Cron:        cron,
		Func: func(ctx context.Context) error {
			return svc.Sweep(ctx, "", 0)
		},
	})
}
