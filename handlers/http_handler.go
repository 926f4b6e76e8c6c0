// Package handlers provides the HTTP handlers of the leaflet API: medicine
// identification, leaflet retrieval, indexing and question answering.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/identify"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
	"github.com/giygas/leaflet-api/qa"
)

// Dependencies groups the collaborators of the handlers
type Dependencies struct {
	Fetcher    interfaces.LeafletFetcher
	Indexer    interfaces.IndexBuilder
	Indexes    interfaces.IndexStore
	Answerer   interfaces.QuestionAnswerer
	Identifier interfaces.Identifier
	Validator  interfaces.Validator
	Health     interfaces.HealthChecker
	Status     interfaces.PipelineStatus
	Language   string // default catalog when Accept-Language matches nothing
}

// HTTPHandlerImpl implements the interfaces.HTTPHandler interface
type HTTPHandlerImpl struct {
	deps Dependencies
}

// Compile-time check to ensure HTTPHandlerImpl implements HTTPHandler
var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)

// NewHTTPHandler creates a new HTTP handler with injected dependencies
func NewHTTPHandler(deps Dependencies) *HTTPHandlerImpl {
	if deps.Language == "" {
		deps.Language = qa.DefaultLanguage
	}
	return &HTTPHandlerImpl{deps: deps}
}

// RespondWithJSON writes a JSON response
func (h *HTTPHandlerImpl) RespondWithJSON(w http.ResponseWriter, code int, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.Error("Failed to marshal JSON response", "error", err, "payload_type", fmt.Sprintf("%T", payload))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// RespondWithError writes a JSON error response
func (h *HTTPHandlerImpl) RespondWithError(w http.ResponseWriter, code int, message string) {
	h.RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
	})
}

func (h *HTTPHandlerImpl) respondWithAppError(w http.ResponseWriter, code int, message string, err error) {
	h.RespondWithJSON(w, code, map[string]any{
		"error":   http.StatusText(code),
		"message": message,
		"code":    code,
		"reason":  string(apperrors.CodeOf(err)),
	})
}

// language picks the message catalog from Accept-Language
func (h *HTTPHandlerImpl) language(r *http.Request) string {
	return qa.MatchAcceptLanguage(r.Header.Get("Accept-Language"), h.deps.Language)
}

// decodeJSON reads a single JSON object into dst
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return fmt.Errorf("request body too large")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// formatUptimeHuman formats duration into a human-readable string
func formatUptimeHuman(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	var parts []string

	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 || days > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	parts = append(parts, fmt.Sprintf("%ds", seconds))

	return strings.Join(parts, " ")
}

// IdentifyRequest carries a packaging photo as data URL or raw base64
type IdentifyRequest struct {
	Image string `json:"image"`
}

var unidentifiedMessages = map[string]string{
	qa.LanguagePortuguese: "Não foi possível identificar o medicamento",
	qa.LanguageEnglish:    "Could not identify the medicine",
}

// Identify extracts a MedicineIdentity from a packaging image
func (h *HTTPHandlerImpl) Identify(w http.ResponseWriter, r *http.Request) {
	var req IdentifyRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	image, err := h.deps.Validator.DecodeImage(req.Image)
	if err != nil {
		logging.Warn("Rejected identification image", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := h.deps.Identifier.Identify(r.Context(), image)
	switch {
	case err == nil:
		h.RespondWithJSON(w, http.StatusOK, identity)
	case errors.Is(err, identify.ErrUnidentified):
		h.RespondWithError(w, http.StatusUnprocessableEntity, unidentifiedMessages[h.language(r)])
	case errors.Is(err, identify.ErrNotConfigured):
		h.RespondWithError(w, http.StatusServiceUnavailable, err.Error())
	default:
		logging.Error("Identification failed", "error", err)
		h.RespondWithError(w, http.StatusBadGateway, unidentifiedMessages[h.language(r)])
	}
}

// DocumentResponse is a captured regulatory document
type DocumentResponse struct {
	DocumentKind entities.DocumentKind `json:"documentKind"`
	ContentType  string                `json:"contentType"`
	Data         string                `json:"data"` // base64
}

// FetchResponse is the outcome of one leaflet retrieval
type FetchResponse struct {
	FetchID       string                          `json:"fetchId"`
	Status        entities.FetchStatus            `json:"status"`
	Found         bool                            `json:"found"`
	RCM           *DocumentResponse               `json:"rcm"`
	FI            *DocumentResponse               `json:"fi"`
	Tier          int                             `json:"tier"`
	Attempts      int                             `json:"attempts"`
	Match         *entities.SearchResultCandidate `json:"match"`
	LowConfidence bool                            `json:"lowConfidence"`
}

// FetchLeaflet searches the portal for the identity and returns the captured PDF.
// Not found and capture timeouts are 200 responses with found=false; automation failures are 502.
func (h *HTTPHandlerImpl) FetchLeaflet(w http.ResponseWriter, r *http.Request) {
	var identity entities.MedicineIdentity
	if err := decodeJSON(r, &identity); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.deps.Validator.ValidateIdentity(&identity); err != nil {
		logging.Warn("Unusual user input", "error", err)
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.deps.Fetcher.FetchLeaflet(r.Context(), identity)
	if err != nil {
		var automation *apperrors.AutomationError
		if errors.As(err, &automation) {
			h.respondWithAppError(w, http.StatusBadGateway, "portal automation failed", err)
			return
		}
		if r.Context().Err() != nil {
			h.RespondWithError(w, http.StatusServiceUnavailable, "request cancelled before a browser session was available")
			return
		}
		logging.Error("Leaflet fetch failed", "error", err)
		h.respondWithAppError(w, http.StatusBadGateway, "leaflet retrieval failed", err)
		return
	}

	response := FetchResponse{
		FetchID:       result.FetchID,
		Status:        result.Status,
		Found:         result.Found(),
		Tier:          result.Tier,
		Attempts:      result.Attempts,
		Match:         result.Match,
		LowConfidence: result.LowConfidence,
	}
	if result.Found() {
		response.RCM = &DocumentResponse{
			DocumentKind: result.RCM.Kind,
			ContentType:  result.RCM.ContentType,
			Data:         base64.StdEncoding.EncodeToString(result.RCM.Data),
		}
	}

	h.RespondWithJSON(w, http.StatusOK, response)
}

// ProcessRequest carries a base64 PDF
type ProcessRequest struct {
	PDF string `json:"pdf"`
}

// ProcessResponse summarizes the index built for a PDF
type ProcessResponse struct {
	Success       bool   `json:"success"`
	DocumentCount int    `json:"documentCount"`
	Pages         []int  `json:"pages"`
	Cached        bool   `json:"cached"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ProcessLeaflet builds (or reuses) the index of a PDF and reports its chunk count
func (h *HTTPHandlerImpl) ProcessLeaflet(w http.ResponseWriter, r *http.Request) {
	var req ProcessRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	pdf, err := h.deps.Validator.DecodePDF(req.PDF)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	index, cached, err := h.deps.Indexes.GetOrBuild(r.Context(), pdf, h.deps.Indexer.BuildIndex)
	if err != nil {
		var parseErr *apperrors.DocumentParseError
		if errors.As(err, &parseErr) {
			h.RespondWithJSON(w, http.StatusUnprocessableEntity, ProcessResponse{Success: false, Error: err.Error(), Pages: []int{}})
			return
		}
		if r.Context().Err() != nil {
			h.RespondWithJSON(w, http.StatusServiceUnavailable, ProcessResponse{Success: false, Error: err.Error(), Pages: []int{}})
			return
		}
		logging.Error("Leaflet indexing failed", "error", err)
		h.RespondWithJSON(w, http.StatusBadGateway, ProcessResponse{Success: false, Error: err.Error(), Pages: []int{}})
		return
	}

	chunks := index.Chunks()

	h.RespondWithJSON(w, http.StatusOK, ProcessResponse{
		Success:       true,
		DocumentCount: len(chunks),
		Pages:         qa.CitedPages(chunks),
		Cached:        cached,
		Message:       fmt.Sprintf("Successfully processed %d document chunks", len(chunks)),
	})
}

// QueryRequest asks one question about one PDF
type QueryRequest struct {
	PDF      string `json:"pdf"`
	Question string `json:"question"`
}

// QueryResponse is the answer with its citations
type QueryResponse struct {
	Success        bool                  `json:"success"`
	Answer         string                `json:"answer"`
	CitedPages     []int                 `json:"citedPages"`
	MentionedPages []int                 `json:"mentionedPages"`
	SourceCount    int                   `json:"sourceCount"`
	Status         entities.AnswerStatus `json:"status"`
	Cached         bool                  `json:"cached"`
	Error          string                `json:"error,omitempty"`
}

// QueryLeaflet answers a question about a PDF. Indexing and model failures are
// absorbed into a 200 with success=false and a localized apology.
func (h *HTTPHandlerImpl) QueryLeaflet(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.deps.Validator.ValidateQuestion(req.Question); err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	pdf, err := h.deps.Validator.DecodePDF(req.PDF)
	if err != nil {
		h.RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	lang := h.language(r)
	question := strings.TrimSpace(req.Question)

	index, cached, err := h.deps.Indexes.GetOrBuild(r.Context(), pdf, h.deps.Indexer.BuildIndex)
	if err != nil {
		logging.Error("Error querying leaflet", "stage", "index", "error", err)
		h.RespondWithJSON(w, http.StatusOK, QueryResponse{
			Success:        false,
			Answer:         qa.Apology(lang),
			CitedPages:     []int{},
			MentionedPages: []int{},
			Status:         entities.AnswerStatusFailed,
			Error:          err.Error(),
		})
		return
	}

	answer := h.deps.Answerer.Answer(r.Context(), index, question, interfaces.WithLanguage(lang))

	h.RespondWithJSON(w, http.StatusOK, QueryResponse{
		Success:        answer.Success,
		Answer:         answer.AnswerText,
		CitedPages:     nonNil(answer.CitedPages),
		MentionedPages: nonNil(answer.MentionedPages),
		SourceCount:    len(answer.SourceChunks),
		Status:         answer.Status,
		Cached:         cached,
		Error:          answer.Error,
	})
}

func nonNil(pages []int) []int {
	if pages == nil {
		return []int{}
	}
	return pages
}

// HealthResponse defines the structure for consistent JSON ordering
type HealthResponse struct {
	Status        string         `json:"status"`
	Uptime        string         `json:"uptime"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Data          map[string]any `json:"data"`
	System        map[string]any `json:"system"`
}

// HealthCheck reports pipeline health and runtime statistics
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, data, httpStatus := h.deps.Health.HealthCheck()

	var uptime time.Duration
	if h.deps.Status != nil {
		if start := h.deps.Status.GetServerStartTime(); !start.IsZero() {
			uptime = time.Since(start)
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	h.RespondWithJSON(w, httpStatus, HealthResponse{
		Status:        status,
		Uptime:        formatUptimeHuman(uptime),
		UptimeSeconds: uptime.Seconds(),
		Data:          data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb": int(m.Alloc / 1024 / 1024),
				"sys_mb":   int(m.Sys / 1024 / 1024),
				"num_gc":   m.NumGC,
			},
		},
	})
}
