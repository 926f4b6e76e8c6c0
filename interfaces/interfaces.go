// Package interfaces defines core abstractions for the leaflet API
// to improve testability, maintainability, and separation of concerns.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/vectorindex"
)

// PortalSession is one exclusively owned browser session against the regulatory portal.
// It combines the search driver and the document interceptor so the retrieval
// logic can run against a fixture portal in tests.
type PortalSession interface {
	// Search runs one query; true when a results table rendered, false on an explicit
	// no-results message. Any other failure is returned as an error.
	Search(ctx context.Context, attempt entities.SearchAttempt) (bool, error)

	// ResultRows returns the cell texts of the current results table
	ResultRows(ctx context.Context) ([][]string, error)

	// TriggerDownload fires the UI action expected to yield the document of a row
	TriggerDownload(ctx context.Context, rowIndex int) error

	// AwaitFirstPDF returns the first PDF seen in the session, nil after timeout
	AwaitFirstPDF(ctx context.Context, timeout time.Duration) []byte

	// Close tears the whole session down
	Close() error
}

// SessionFactory opens a fresh PortalSession per fetch
type SessionFactory interface {
	Open(ctx context.Context) (PortalSession, error)
}

// LeafletFetcher obtains the regulatory document for a medicine identity
type LeafletFetcher interface {
	FetchLeaflet(ctx context.Context, identity entities.MedicineIdentity) (*entities.FetchResult, error)
}

// IndexBuilder turns PDF bytes into a queryable index
type IndexBuilder interface {
	BuildIndex(ctx context.Context, pdf []byte) (*vectorindex.Index, error)
}

// QuestionAnswerer answers one question against one leaflet index.
// It never fails: errors are folded into the returned status.
type QuestionAnswerer interface {
	Answer(ctx context.Context, index *vectorindex.Index, question string, opts ...AnswerOption) entities.AnsweredQuestion
}

// AnswerOption tweaks a single Answer call
type AnswerOption func(*AnswerSettings)

// AnswerSettings carries per call overrides
type AnswerSettings struct {
	Language string
}

// WithLanguage overrides the message catalog used for one answer
func WithLanguage(lang string) AnswerOption {
	return func(s *AnswerSettings) { s.Language = lang }
}

// Identifier extracts a medicine identity from a packaging image
type Identifier interface {
	Identify(ctx context.Context, image string) (entities.MedicineIdentity, error)
}

// IndexStore caches indexes by PDF content for the lifetime of the process
type IndexStore interface {
	// GetOrBuild returns the cached index for pdf or builds it once. cached reports a hit.
	GetOrBuild(ctx context.Context, pdf []byte, build func(ctx context.Context, pdf []byte) (*vectorindex.Index, error)) (index *vectorindex.Index, cached bool, err error)
	EvictExpired() int
	Len() int
	Enabled() bool
}

// PipelineStatus tracks pipeline activity for health reporting
type PipelineStatus interface {
	RecordFetch(found bool)
	LastSuccessfulFetch() time.Time
	FetchCounts() (found, missed int64)
	BeginSession()
	EndSession()
	ActiveSessions() int64
	GetServerStartTime() time.Time
}

// Scheduler defines the contract for background job scheduling.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker defines the contract for health check functionality.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
}

// Validator checks user supplied input before it reaches the pipelines
type Validator interface {
	ValidateIdentity(identity *entities.MedicineIdentity) error
	ValidateQuestion(question string) error
	DecodePDF(encoded string) ([]byte, error)
	DecodeImage(encoded string) (string, error)
}

// HTTPHandler defines the contract for the API endpoints.
type HTTPHandler interface {
	Identify(w http.ResponseWriter, r *http.Request)
	FetchLeaflet(w http.ResponseWriter, r *http.Request)
	ProcessLeaflet(w http.ResponseWriter, r *http.Request)
	QueryLeaflet(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}
