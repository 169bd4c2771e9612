package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chaos-ops/display-server-go/internal/repository"
)

// CleanupJob reaps device rows that stayed UNPAIRED past the retention
// window, measured from when the row last became unpaired rather than from
// creation, so a long-lived device that was just disconnected gets the full
// window again. Pairing codes never expire on their own; an abandoned
// kiosk's row is eventually deleted here, and a kiosk that comes back after
// that restarts pairing through the 404-on-poll path.
type CleanupJob struct {
	deviceRepo repository.DeviceRepository
	retention  time.Duration
	interval   time.Duration
	done       chan struct{}
}

func NewCleanupJob(
	deviceRepo repository.DeviceRepository,
	retention time.Duration,
	interval time.Duration,
) *CleanupJob {
	return &CleanupJob{
		deviceRepo: deviceRepo,
		retention:  retention,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Dur("retention", j.retention).Msg("cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	log.Info().Msg("cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.cleanup()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.cleanup()
		}
	}
}

func (j *CleanupJob) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := j.deviceRepo.DeleteStaleUnpaired(ctx, time.Now().Add(-j.retention))
	if err != nil {
		log.Error().Err(err).Msg("failed to cleanup stale unpaired devices")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("cleaned up stale unpaired devices")
	}
}
