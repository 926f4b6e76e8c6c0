package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/leaflet-api/vectorindex"
)

type mockIndexStore struct {
	enabled   bool
	evictions atomic.Int32
}

func (m *mockIndexStore) GetOrBuild(ctx context.Context, pdf []byte, build func(ctx context.Context, pdf []byte) (*vectorindex.Index, error)) (*vectorindex.Index, bool, error) {
	index, err := build(ctx, pdf)
	return index, false, err
}

func (m *mockIndexStore) EvictExpired() int {
	m.evictions.Add(1)
	return 1
}

func (m *mockIndexStore) Len() int      { return 0 }
func (m *mockIndexStore) Enabled() bool { return m.enabled }

type mockStatus struct {
	lastFetch time.Time
	startTime time.Time
}

func (m *mockStatus) RecordFetch(bool)               {}
func (m *mockStatus) LastSuccessfulFetch() time.Time { return m.lastFetch }
func (m *mockStatus) FetchCounts() (int64, int64)    { return 0, 0 }
func (m *mockStatus) BeginSession()                  {}
func (m *mockStatus) EndSession()                    {}
func (m *mockStatus) ActiveSessions() int64          { return 0 }
func (m *mockStatus) GetServerStartTime() time.Time  { return m.startTime }

func TestNewSchedulerEvictionInterval(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{0, DefaultEvictionInterval},
		{time.Hour, DefaultEvictionInterval},
		{4 * time.Minute, 2 * time.Minute},
		{30 * time.Second, time.Minute},
	}

	for _, tt := range tests {
		s := NewScheduler(&mockIndexStore{}, &mockStatus{}, tt.ttl)
		if s.evictionInterval != tt.want {
			t.Errorf("ttl %v: eviction interval = %v, want %v", tt.ttl, s.evictionInterval, tt.want)
		}
	}
}

func TestSchedulerRunsEviction(t *testing.T) {
	store := &mockIndexStore{enabled: true}
	s := NewScheduler(store, &mockStatus{}, time.Minute)
	s.evictionInterval = 50 * time.Millisecond

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for store.evictions.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := store.evictions.Load(); got < 2 {
		t.Errorf("expected repeated evictions, got %d", got)
	}
}

func TestSchedulerSkipsEvictionWhenCacheDisabled(t *testing.T) {
	store := &mockIndexStore{enabled: false}
	s := NewScheduler(store, &mockStatus{}, 0)
	s.evictionInterval = 20 * time.Millisecond

	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if got := store.evictions.Load(); got != 0 {
		t.Errorf("disabled cache should not be evicted, got %d runs", got)
	}
}

func TestCheckPipelineHandlesZeroTimes(t *testing.T) {
	s := NewScheduler(nil, &mockStatus{}, 0)
	s.checkPipeline()

	s = NewScheduler(nil, &mockStatus{startTime: time.Now().Add(-48 * time.Hour)}, 0)
	s.checkPipeline()

	s = NewScheduler(nil, nil, 0)
	s.checkPipeline()
}
