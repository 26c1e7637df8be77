package highlight

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/meghashyamc/clinicsearch/db/kvdb"
)

// Sweep removes every expired request, including those left behind by views
// that closed before their deadline. Half-written requests are left alone since
// a Select may be writing them. It returns the number of sessions cleared.
func (c *Correlator) Sweep() (int, error) {
	keys, err := c.store.GetAllKeys(kvdb.HighlightsBucket)
	if err != nil {
		c.logger.Error("could not list highlight requests", "err", err.Error())
		return 0, fmt.Errorf("could not list highlight requests: %w", err)
	}

	sessions := make(map[string]struct{})
	for _, key := range keys {
		for _, slot := range []string{highlightSlot, timestampSlot} {
			if session, ok := strings.CutSuffix(key, "/"+slot); ok {
				sessions[session] = struct{}{}
			}
		}
	}

	cleared := 0
	for session := range sessions {
		req, _, err := c.read(session)
		switch {
		case err != nil:
			c.logger.Warn("could not read highlight request", "session", session, "err", err.Error())
		case c.expired(req):
			c.clearIfCurrent(session, req)
			cleared++
		}
	}

	if cleared > 0 {
		c.logger.Debug("swept highlight requests", "cleared", cleared)
	}
	return cleared, nil
}

// ScheduleSweep runs Sweep every interval until ctx is done.
func (c *Correlator) ScheduleSweep(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		return fmt.Errorf("invalid highlight sweep interval %s", every)
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", every), func() {
		// errors are logged by Sweep
		_, _ = c.Sweep()
	}); err != nil {
		c.logger.Error("invalid highlight sweep schedule", "every", every.String(), "err", err.Error())
		return fmt.Errorf("invalid highlight sweep schedule: %w", err)
	}

	scheduler.Start()
	go func() {
		<-ctx.Done()
		<-scheduler.Stop().Done()
	}()

	return nil
}
