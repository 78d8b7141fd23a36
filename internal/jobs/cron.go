// Package jobs runs the periodic maintenance work that sits outside the
// tick loop, currently the appointment reminder sweep.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/LeventeLantos/cadence-engine/internal/engine"
)

type CronManager struct {
	cron     *cron.Cron
	engine   *engine.Engine
	isLeader func(ctx context.Context) bool
}

func NewCronManager(eng *engine.Engine, isLeader func(ctx context.Context) bool) *CronManager {
	return &CronManager{
		cron:     cron.New(),
		engine:   eng,
		isLeader: isLeader,
	}
}

// SetupJobs registers the reminder sweep on the given cron spec
// (e.g. "@every 15m"). The sweep honours the same leader gate as the tick
// loop so only one replica seeds triggers.
func (cm *CronManager) SetupJobs(spec string) error {
	_, err := cm.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if cm.isLeader != nil && !cm.isLeader(ctx) {
			return
		}

		processed, err := cm.engine.ScheduleReminders(ctx, "")
		if err != nil {
			slog.Error("reminder sweep failed", "error", err)
			return
		}
		slog.Info("reminder sweep completed", "processed", processed)
	})
	if err != nil {
		return fmt.Errorf("register reminder sweep: %w", err)
	}
	return nil
}

func (cm *CronManager) Start() {
	cm.cron.Start()
	slog.Info("cron jobs started")
}

func (cm *CronManager) Stop() {
	ctx := cm.cron.Stop()
	<-ctx.Done()
	slog.Info("cron jobs stopped")
}
