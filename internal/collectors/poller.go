// Package collectors implements the user-space pollers named as external
// collaborators in spec.md §1: CPU, memory, disk, network, and process
// samplers that publish metric Event Records onto the fabric on a fixed
// interval.
package collectors

import (
	"context"
	"log/slog"
	"time"

	"github.com/aegisflux/obsfabric/internal/fabric"
)

// PublishFunc hands a completed metric Event Record to the bus.
type PublishFunc func(fabric.Record) error

// Sampler produces zero or more Event Records on each poll tick. A sampler
// that fails to read its /proc source for one tick logs and skips; it
// never aborts the poller loop, mirroring the bus's publish-never-blocks
// discipline one layer up.
type Sampler interface {
	Name() string
	Sample() ([]fabric.Record, error)
}

// RunPoller ticks a Sampler on interval and publishes whatever it
// produces, until ctx is cancelled. Grounded on the teacher's
// ticker-driven WindowBuffer.StartGC goroutine shape.
func RunPoller(ctx context.Context, s Sampler, interval time.Duration, publish PublishFunc, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			records, err := s.Sample()
			if err != nil {
				log.Warn("collector sample failed", "collector", s.Name(), "error", err)
				continue
			}
			for _, rec := range records {
				if err := publish(rec); err != nil {
					log.Warn("collector publish failed", "collector", s.Name(), "error", err)
				}
			}
		}
	}
}
