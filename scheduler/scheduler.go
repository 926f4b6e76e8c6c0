// Package scheduler runs the periodic housekeeping of the leaflet API:
// index cache eviction and pipeline health monitoring.
package scheduler

import (
	"fmt"
	"time"

	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

const (
	DefaultEvictionInterval = 5 * time.Minute
	DefaultMonitorInterval  = time.Hour
	DefaultStaleAfter       = 24 * time.Hour
)

// Scheduler evicts expired indexes and warns about a stalled retrieval pipeline
type Scheduler struct {
	cache  interfaces.IndexStore
	status interfaces.PipelineStatus

	evictionInterval time.Duration
	monitorInterval  time.Duration
	staleAfter       time.Duration

	scheduler *gocron.Scheduler
}

// NewScheduler creates a scheduler; the eviction interval follows the cache ttl
// (half of it, bounded to [1m, 5m])
func NewScheduler(cache interfaces.IndexStore, status interfaces.PipelineStatus, cacheTTL time.Duration) *Scheduler {
	interval := DefaultEvictionInterval
	if cacheTTL > 0 && cacheTTL/2 < interval {
		interval = max(cacheTTL/2, time.Minute)
	}

	return &Scheduler{
		cache:            cache,
		status:           status,
		evictionInterval: interval,
		monitorInterval:  DefaultMonitorInterval,
		staleAfter:       DefaultStaleAfter,
		scheduler:        gocron.NewScheduler(time.Local),
	}
}

// Start schedules the jobs and starts the gocron loop
func (s *Scheduler) Start() error {
	if s.cache != nil && s.cache.Enabled() {
		_, err := s.scheduler.Every(s.evictionInterval).Do(s.evictExpired)
		if err != nil {
			logging.Error("Failed to schedule cache eviction", "error", err)
			return fmt.Errorf("failed to schedule cache eviction: %w", err)
		}
	}

	// the first run happens one interval after start
	_, err := s.scheduler.Every(s.monitorInterval).WaitForSchedule().Do(s.checkPipeline)
	if err != nil {
		logging.Error("Failed to schedule pipeline monitoring", "error", err)
		return fmt.Errorf("failed to schedule pipeline monitoring: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started",
		"eviction_interval", s.evictionInterval.String(),
		"monitor_interval", s.monitorInterval.String())

	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) evictExpired() {
	if removed := s.cache.EvictExpired(); removed > 0 {
		logging.Info("Evicted expired leaflet indexes", "removed", removed, "remaining", s.cache.Len())
	}
}

// checkPipeline warns when no leaflet was captured for a long time while the server is up
func (s *Scheduler) checkPipeline() {
	if s.status == nil {
		return
	}

	last := s.status.LastSuccessfulFetch()
	reference := last
	if reference.IsZero() {
		reference = s.status.GetServerStartTime()
	}
	if reference.IsZero() {
		return
	}

	if time.Since(reference) > s.staleAfter {
		logging.Warn("No leaflet captured recently, portal may have changed",
			"last_successful_fetch", last,
			"threshold", s.staleAfter.String())
	}
}
