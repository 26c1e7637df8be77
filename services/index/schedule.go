package index

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// ScheduleMedicinesRefresh runs RefreshMedicines on the given cron expression
// until ctx is done. An empty expression schedules nothing.
func (s *Service) ScheduleMedicinesRefresh(ctx context.Context, cronExpr string) error {
	if cronExpr == "" {
		s.logger.Info("medicines refresh is not scheduled")
		return nil
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cronExpr, func() {
		if err := s.RefreshMedicines(ctx); err != nil {
			s.logger.Warn("scheduled medicines refresh failed", "err", err.Error())
		}
	}); err != nil {
		s.logger.Error("invalid medicines refresh schedule", "cron", cronExpr, "err", err.Error())
		return fmt.Errorf("invalid medicines refresh schedule %q: %w", cronExpr, err)
	}

	scheduler.Start()
	s.logger.Info("scheduled medicines refresh", "cron", cronExpr)

	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
		s.logger.Info("medicines refresh scheduler stopped", "reason", ctx.Err())
	}()

	return nil
}
