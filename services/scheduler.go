// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

const statsHeartbeatInterval = 10 * time.Minute

// StartMaintenanceScheduler runs the periodic stats heartbeat and, when an
// uploader is configured, the audit export on exportCron. The caller owns
// Shutdown.
func StartMaintenanceScheduler(ctx context.Context, admin *AdminService, export *ExportService, exportCron string, log *zap.Logger) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(statsHeartbeatInterval),
		gocron.NewTask(func() {
			st, err := admin.Stats(ctx)
			if err != nil {
				log.Warn("[Scheduler] stats failed", zap.Error(err))
				return
			}
			log.Info("[Scheduler] stats",
				zap.Int("task_version", st.TaskVersion),
				zap.Int64("users", st.Users),
				zap.Int64("codes", st.Codes),
				zap.Int64("used_codes", st.UsedCodes))
		}),
	)
	if err != nil {
		return nil, err
	}

	if export != nil && export.Uploader != nil && exportCron != "" {
		_, err = sched.NewJob(
			gocron.CronJob(exportCron, false),
			gocron.NewTask(func() {
				if _, _, err := export.UploadCodesCSV(ctx, time.Now()); err != nil {
					log.Error("[Scheduler] audit export failed", zap.Error(err))
				}
			}),
		)
		if err != nil {
			return nil, err
		}
	}

	sched.Start()
	return sched, nil
}
