// Package data holds the process-local state of the leaflet API: pipeline
// activity counters for health reporting and the leaflet index cache.
package data

import (
	"sync/atomic"
	"time"

	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
)

// Compile-time check to ensure StatusTracker implements PipelineStatus
var _ interfaces.PipelineStatus = (*StatusTracker)(nil)

// StatusTracker records pipeline activity with atomics so handlers and health checks never block
type StatusTracker struct {
	lastFetch       atomic.Value // time.Time
	fetchesFound    atomic.Int64
	fetchesMissed   atomic.Int64
	activeSessions  atomic.Int64
	serverStartTime atomic.Value // time.Time
}

// NewStatusTracker creates a tracker with zero times
func NewStatusTracker() *StatusTracker {
	st := &StatusTracker{}
	st.lastFetch.Store(time.Time{})
	st.serverStartTime.Store(time.Time{})
	return st
}

// RecordFetch counts a finished fetch and stamps successful ones
func (st *StatusTracker) RecordFetch(found bool) {
	if found {
		st.fetchesFound.Add(1)
		st.lastFetch.Store(time.Now())
		return
	}
	st.fetchesMissed.Add(1)
}

// LastSuccessfulFetch returns when a document was last captured, zero if never
func (st *StatusTracker) LastSuccessfulFetch() time.Time {
	if v := st.lastFetch.Load(); v != nil {
		if t, ok := v.(time.Time); ok {
			return t
		}
	}

	logging.Warn("Could not get the last fetch value")
	return time.Time{}
}

// FetchCounts returns found and missed fetches since start
func (st *StatusTracker) FetchCounts() (found, missed int64) {
	return st.fetchesFound.Load(), st.fetchesMissed.Load()
}

// BeginSession marks a browser session as opened
func (st *StatusTracker) BeginSession() {
	st.activeSessions.Add(1)
}

// EndSession marks a browser session as torn down
func (st *StatusTracker) EndSession() {
	if n := st.activeSessions.Add(-1); n < 0 {
		st.activeSessions.CompareAndSwap(n, 0)
	}
}

// ActiveSessions returns the number of browser sessions currently open
func (st *StatusTracker) ActiveSessions() int64 {
	return st.activeSessions.Load()
}

// SetServerStartTime sets the server start time
func (st *StatusTracker) SetServerStartTime(startTime time.Time) {
	st.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (st *StatusTracker) GetServerStartTime() time.Time {
	if v := st.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}
