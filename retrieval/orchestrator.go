// Package retrieval finds the regulatory document of a medicine through progressive
// portal searches, fuzzy matching of result rows and network-level PDF capture.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Compile-time check to ensure Orchestrator implements LeafletFetcher
var _ interfaces.LeafletFetcher = (*Orchestrator)(nil)

const (
	DefaultCaptureTimeout     = 30 * time.Second
	DefaultLowConfidence      = 0.5
	DefaultMaxBrowserSessions = 2
)

// Orchestrator runs the fallback tiers inside one exclusively owned browser session per fetch
type Orchestrator struct {
	sessions       interfaces.SessionFactory
	columns        ColumnConfig
	captureTimeout time.Duration
	lowConfidence  float64
	limiter        *semaphore.Weighted
	status         interfaces.PipelineStatus
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithColumns sets which result columns hold name and substance
func WithColumns(cols ColumnConfig) Option {
	return func(o *Orchestrator) { o.columns = cols }
}

// WithCaptureTimeout bounds the wait for the PDF after the download click
func WithCaptureTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.captureTimeout = d
		}
	}
}

// WithLowConfidenceThreshold sets the combined similarity under which a match is flagged
func WithLowConfidenceThreshold(threshold float64) Option {
	return func(o *Orchestrator) { o.lowConfidence = threshold }
}

// WithMaxSessions caps the number of browsers running at once
func WithMaxSessions(n int64) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.limiter = semaphore.NewWeighted(n)
		}
	}
}

// WithStatus reports sessions and fetch outcomes to a status tracker
func WithStatus(status interfaces.PipelineStatus) Option {
	return func(o *Orchestrator) { o.status = status }
}

// NewOrchestrator creates an orchestrator opening sessions from factory
func NewOrchestrator(factory interfaces.SessionFactory, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions:       factory,
		columns:        DefaultColumns(),
		captureTimeout: DefaultCaptureTimeout,
		lowConfidence:  DefaultLowConfidence,
		limiter:        semaphore.NewWeighted(DefaultMaxBrowserSessions),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// FetchLeaflet obtains the best matching document for identity.
// Not found and capture timeouts are reported through the result status;
// automation failures are returned as errors.
func (o *Orchestrator) FetchLeaflet(ctx context.Context, identity entities.MedicineIdentity) (*entities.FetchResult, error) {
	start := time.Now()
	result := &entities.FetchResult{
		FetchID: uuid.NewString(),
		Status:  entities.FetchStatusNotFound,
	}
	log := logging.With("fetch_id", result.FetchID)

	defer func() {
		metrics.LeafletFetchDuration.Observe(time.Since(start).Seconds())
	}()

	log.Info("Starting leaflet search",
		"name", identity.Name,
		"active_substance", identity.ActiveSubstance,
		"dosage", identity.Dosage)

	if err := o.limiter.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for a free browser session: %w", err)
	}
	defer o.limiter.Release(1)

	session, err := o.sessions.Open(ctx)
	if err != nil {
		metrics.LeafletFetchTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to open browser session: %w", err)
	}
	o.beginSession()
	defer func() {
		if cerr := session.Close(); cerr != nil {
			log.Debug("Browser session teardown error ignored", "error", cerr)
		}
		o.endSession()
	}()

	tier, candidates, attempts, err := o.runTiers(ctx, log, session, identity)
	result.Attempts = attempts
	if err != nil {
		metrics.LeafletFetchTotal.WithLabelValues("error").Inc()
		log.Error("Leaflet search aborted", "attempts", attempts, "error", err)
		return nil, err
	}

	if len(candidates) == 0 {
		log.Warn("All search strategies failed, no results", "name", identity.Name, "attempts", attempts)
		o.finish(result)
		return result, nil
	}

	best, _ := SelectBest(candidates)
	result.Tier = tier
	result.Match = &best

	log.Info("Best match selected",
		"tier", tier,
		"display_name", best.DisplayName,
		"active_substance", best.ActiveSubstanceText,
		"row_index", best.RowIndex,
		"similarity", best.CombinedSimilarity,
		"candidates", len(candidates))

	if best.CombinedSimilarity < o.lowConfidence {
		result.LowConfidence = true
		metrics.LowConfidenceMatchTotal.Inc()
		log.Warn("Low confidence match, proceeding with caution",
			"similarity", best.CombinedSimilarity,
			"threshold", o.lowConfidence)
	}

	pdf := o.capture(ctx, log, session, best.RowIndex)
	if pdf == nil {
		result.Status = entities.FetchStatusCaptureTimeout
		log.Error("Failed to retrieve PDF",
			"error", apperrors.ErrInterceptionTimeout,
			"timeout", o.captureTimeout.String())
		o.finish(result)
		return result, nil
	}

	result.Status = entities.FetchStatusFound
	result.RCM = &entities.RegulatoryDocument{
		Kind:        entities.DocumentKindRCM,
		ContentType: "application/pdf",
		Data:        pdf,
	}
	log.Info("Successfully retrieved PDF", "bytes", len(pdf), "duration", time.Since(start).String())
	o.finish(result)
	return result, nil
}

// runTiers stops at the first tier producing at least one candidate
func (o *Orchestrator) runTiers(ctx context.Context, log *slog.Logger, session interfaces.PortalSession, identity entities.MedicineIdentity) (int, []entities.SearchResultCandidate, int, error) {
	tiers := BuildTiers(identity)
	attempts := 0

	for _, t := range tiers {
		tierLabel := strconv.Itoa(t.Number)
		attempts++

		log.Info("Search attempt", "tier", t.Number, "of", len(tiers),
			"name", t.Attempt.Name,
			"active_substance", t.Attempt.ActiveSubstance,
			"dosage", t.Attempt.Dosage)

		found, err := session.Search(ctx, t.Attempt)
		if err != nil {
			metrics.PortalSearchTotal.WithLabelValues(tierLabel, "error").Inc()
			return 0, nil, attempts, fmt.Errorf("tier %d search: %w", t.Number, err)
		}
		if !found {
			metrics.PortalSearchTotal.WithLabelValues(tierLabel, "no_results").Inc()
			log.Info("Strategy returned no results", "tier", t.Number, "reason", apperrors.ErrNoResults)
			continue
		}

		rows, err := session.ResultRows(ctx)
		if err != nil {
			metrics.PortalSearchTotal.WithLabelValues(tierLabel, "error").Inc()
			return 0, nil, attempts, fmt.Errorf("tier %d rows: %w", t.Number, err)
		}

		candidates := make([]entities.SearchResultCandidate, 0, len(rows))
		for i, cells := range rows {
			c, ok := RowToCandidate(cells, i, identity, o.columns)
			if !ok {
				continue
			}
			log.Debug("Result row", "row_index", i, "display_name", c.DisplayName, "similarity", c.CombinedSimilarity)
			candidates = append(candidates, c)
		}

		if len(candidates) == 0 {
			metrics.PortalSearchTotal.WithLabelValues(tierLabel, "no_candidates").Inc()
			log.Info("Strategy returned no valid results", "tier", t.Number, "rows", len(rows))
			continue
		}

		metrics.PortalSearchTotal.WithLabelValues(tierLabel, "results").Inc()
		log.Info("Strategy succeeded", "tier", t.Number, "candidates", len(candidates))
		return t.Number, candidates, attempts, nil
	}

	return 0, nil, attempts, nil
}

// capture races the capture window against a best-effort click; the click outcome is ignored
func (o *Orchestrator) capture(ctx context.Context, log *slog.Logger, session interfaces.PortalSession, rowIndex int) []byte {
	go func() {
		if err := session.TriggerDownload(ctx, rowIndex); err != nil {
			log.Debug("Download click failed, still waiting for capture", "row_index", rowIndex, "error", err)
		}
	}()

	log.Info("Waiting for PDF to be intercepted", "timeout", o.captureTimeout.String())
	return session.AwaitFirstPDF(ctx, o.captureTimeout)
}

func (o *Orchestrator) finish(result *entities.FetchResult) {
	metrics.LeafletFetchTotal.WithLabelValues(string(result.Status)).Inc()
	if o.status != nil {
		o.status.RecordFetch(result.Found())
	}
}

func (o *Orchestrator) beginSession() {
	metrics.BrowserSessionsInFlight.Inc()
	if o.status != nil {
		o.status.BeginSession()
	}
}

func (o *Orchestrator) endSession() {
	metrics.BrowserSessionsInFlight.Dec()
	if o.status != nil {
		o.status.EndSession()
	}
}
