package tasks

import (
	"github.com/windrose/windrose/internal/scanner"
	"github.com/windrose/windrose/internal/scheduler"
)

// RegisterLibraryScanTask registers the periodic full-library scan.
func RegisterLibraryScanTask(sched *scheduler.Scheduler, svc *scanner.Service, cron string) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "library-scan",
		Name:        "Library Scan",
		Description: "Walks every library root, reconciles the catalog with disk and stamps quality",
		Cron:        cron,
		RunOnStart:  true,
		Func:        svc.ScanAll,
	})
}

// RegisterQualityRescanTask registers the nightly quality re-stamp, which
// keeps cutoff evaluations honest after preset changes.
func RegisterQualityRescanTask(sched *scheduler.Scheduler, svc *scanner.Service) error {
	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "quality-rescan",
		Name:        "Quality Rescan",
		Description: "Recomputes quality scores and cutoff status for every catalog item",
		Cron:        "30 4 * * *",
		Func:        svc.RescanQualityStatus,
	})
}
