package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/data"
	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/identify"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/qa"
	"github.com/giygas/leaflet-api/validation"
	"github.com/giygas/leaflet-api/vectorindex"
)

var samplePDF = []byte("%PDF-1.4\nfixture")

type mockFetcher struct {
	result *entities.FetchResult
	err    error
	got    entities.MedicineIdentity
}

func (m *mockFetcher) FetchLeaflet(ctx context.Context, identity entities.MedicineIdentity) (*entities.FetchResult, error) {
	m.got = identity
	return m.result, m.err
}

type mockIndexer struct {
	chunks []entities.LeafletChunk
	err    error
	block  chan struct{} // build waits on it when set
	calls  atomic.Int32
}

func (m *mockIndexer) BuildIndex(ctx context.Context, pdf []byte) (*vectorindex.Index, error) {
	m.calls.Add(1)
	if m.block != nil {
		<-m.block
	}
	if m.err != nil {
		return nil, m.err
	}
	return vectorindex.Build(ctx, m.chunks, vectorindex.NewHashingEmbedder(64))
}

type mockAnswerer struct {
	answer   entities.AnsweredQuestion
	language string
}

func (m *mockAnswerer) Answer(ctx context.Context, index *vectorindex.Index, question string, opts ...interfaces.AnswerOption) entities.AnsweredQuestion {
	var settings interfaces.AnswerSettings
	for _, opt := range opts {
		opt(&settings)
	}
	m.language = settings.Language
	answer := m.answer
	answer.Question = question
	return answer
}

type mockIdentifier struct {
	identity entities.MedicineIdentity
	err      error
}

func (m *mockIdentifier) Identify(ctx context.Context, image string) (entities.MedicineIdentity, error) {
	return m.identity, m.err
}

type mockHealth struct {
	status string
	code   int
}

func (m *mockHealth) HealthCheck() (string, map[string]any, int) {
	return m.status, map[string]any{"browser_sessions": 0}, m.code
}

type mockStatus struct{ start time.Time }

func (m *mockStatus) RecordFetch(bool)               {}
func (m *mockStatus) LastSuccessfulFetch() time.Time { return time.Time{} }
func (m *mockStatus) FetchCounts() (int64, int64)    { return 0, 0 }
func (m *mockStatus) BeginSession()                  {}
func (m *mockStatus) EndSession()                    {}
func (m *mockStatus) ActiveSessions() int64          { return 0 }
func (m *mockStatus) GetServerStartTime() time.Time  { return m.start }

type fixture struct {
	fetcher    *mockFetcher
	indexer    *mockIndexer
	answerer   *mockAnswerer
	identifier *mockIdentifier
	handler    *HTTPHandlerImpl
}

func newFixture() *fixture {
	f := &fixture{
		fetcher: &mockFetcher{},
		indexer: &mockIndexer{chunks: []entities.LeafletChunk{
			{Text: "Tomar um comprimido de 8 em 8 horas.", PageNumber: 2, SourceTag: "leaflet"},
			{Text: "Não utilizar durante a gravidez.", PageNumber: 4, SourceTag: "leaflet"},
		}},
		answerer:   &mockAnswerer{},
		identifier: &mockIdentifier{},
	}
	f.handler = NewHTTPHandler(Dependencies{
		Fetcher:    f.fetcher,
		Indexer:    f.indexer,
		Indexes:    data.NewIndexCache(time.Minute),
		Answerer:   f.answerer,
		Identifier: f.identifier,
		Validator:  validation.NewInputValidator(0, 0),
		Health:     &mockHealth{status: "healthy", code: http.StatusOK},
		Status:     &mockStatus{start: time.Now().Add(-90 * time.Second)},
	})
	return f
}

func post(t *testing.T, handler http.HandlerFunc, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestRespondWithError(t *testing.T) {
	h := NewHTTPHandler(Dependencies{})
	rr := httptest.NewRecorder()
	h.RespondWithError(rr, http.StatusBadRequest, "bad input")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("unexpected content type %q", ct)
	}
	body := decode[map[string]any](t, rr)
	if body["error"] != "Bad Request" || body["message"] != "bad input" || body["code"] != float64(400) {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestFetchLeafletFound(t *testing.T) {
	f := newFixture()
	f.fetcher.result = &entities.FetchResult{
		FetchID:  "abc",
		Status:   entities.FetchStatusFound,
		RCM:      &entities.RegulatoryDocument{Kind: entities.DocumentKindRCM, ContentType: "application/pdf", Data: samplePDF},
		Tier:     1,
		Attempts: 1,
		Match:    &entities.SearchResultCandidate{DisplayName: "Ben-u-ron", CombinedSimilarity: 0.95},
	}

	rr := post(t, f.handler.FetchLeaflet, entities.MedicineIdentity{Name: "  Ben-u-ron ", ActiveSubstance: "Paracetamol", Dosage: "500 mg"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if f.fetcher.got.Name != "Ben-u-ron" {
		t.Errorf("identity was not trimmed before fetching: %q", f.fetcher.got.Name)
	}

	resp := decode[FetchResponse](t, rr)
	if !resp.Found || resp.RCM == nil {
		t.Fatalf("expected found with document, got %+v", resp)
	}
	data, err := base64.StdEncoding.DecodeString(resp.RCM.Data)
	if err != nil || !bytes.Equal(data, samplePDF) {
		t.Errorf("document bytes did not round trip: %v", err)
	}
	if resp.FI != nil {
		t.Error("FI must always be null")
	}
	if resp.Match == nil || resp.Match.DisplayName != "Ben-u-ron" {
		t.Errorf("unexpected match %+v", resp.Match)
	}
}

func TestFetchLeafletNotFound(t *testing.T) {
	f := newFixture()
	f.fetcher.result = &entities.FetchResult{FetchID: "x", Status: entities.FetchStatusNotFound, Attempts: 4}

	rr := post(t, f.handler.FetchLeaflet, entities.MedicineIdentity{Name: "Inexistente"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[FetchResponse](t, rr)
	if resp.Found || resp.RCM != nil || resp.Status != entities.FetchStatusNotFound || resp.Attempts != 4 {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestFetchLeafletAutomationError(t *testing.T) {
	f := newFixture()
	f.fetcher.err = apperrors.NewAutomationError("navigate", errors.New("net::ERR_NAME_NOT_RESOLVED"))

	rr := post(t, f.handler.FetchLeaflet, entities.MedicineIdentity{Name: "Brufen"})
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
	body := decode[map[string]any](t, rr)
	if body["reason"] != string(apperrors.CodeAutomation) {
		t.Errorf("expected automation reason, got %v", body["reason"])
	}
}

func TestFetchLeafletValidation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		body any
	}{
		{"empty identity", entities.MedicineIdentity{Dosage: "500 mg"}},
		{"script injection", entities.MedicineIdentity{Name: "<script>alert(1)</script>"}},
		{"not json", "plain string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := post(t, f.handler.FetchLeaflet, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestProcessLeaflet(t *testing.T) {
	f := newFixture()
	body := ProcessRequest{PDF: base64.StdEncoding.EncodeToString(samplePDF)}

	rr := post(t, f.handler.ProcessLeaflet, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	first := decode[ProcessResponse](t, rr)
	if !first.Success || first.DocumentCount != 2 || first.Cached {
		t.Errorf("unexpected first response %+v", first)
	}
	if len(first.Pages) != 2 || first.Pages[0] != 2 || first.Pages[1] != 4 {
		t.Errorf("unexpected pages %v", first.Pages)
	}

	second := decode[ProcessResponse](t, post(t, f.handler.ProcessLeaflet, body))
	if !second.Cached {
		t.Error("second processing of the same PDF should hit the cache")
	}
	if f.indexer.calls.Load() != 1 {
		t.Errorf("expected one build, got %d", f.indexer.calls.Load())
	}
}

func TestProcessLeafletParseError(t *testing.T) {
	f := newFixture()
	f.indexer.err = &apperrors.DocumentParseError{Err: errors.New("malformed xref")}

	rr := post(t, f.handler.ProcessLeaflet, ProcessRequest{PDF: base64.StdEncoding.EncodeToString(samplePDF)})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	if resp := decode[ProcessResponse](t, rr); resp.Success {
		t.Error("expected success=false")
	}
}

func TestProcessLeafletRejectsNonPDF(t *testing.T) {
	f := newFixture()
	rr := post(t, f.handler.ProcessLeaflet, ProcessRequest{PDF: base64.StdEncoding.EncodeToString([]byte("hello"))})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if f.indexer.calls.Load() != 0 {
		t.Error("indexer must not run for rejected input")
	}
}

func TestIndexingPastDeadlineDoesNotHang(t *testing.T) {
	f := newFixture()
	f.indexer.block = make(chan struct{})
	defer close(f.indexer.block)

	send := func(handler http.HandlerFunc, body any) (*httptest.ResponseRecorder, time.Duration) {
		payload, _ := json.Marshal(body)
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(payload)).WithContext(ctx)
		rr := httptest.NewRecorder()
		start := time.Now()
		handler(rr, req)
		return rr, time.Since(start)
	}

	pdf := base64.StdEncoding.EncodeToString(samplePDF)

	rr, elapsed := send(f.handler.QueryLeaflet, QueryRequest{PDF: pdf, Question: "Qual a dose?"})
	if elapsed > time.Second {
		t.Fatalf("query waited %s for a stalled build", elapsed)
	}
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[QueryResponse](t, rr)
	if resp.Success || resp.Status != entities.AnswerStatusFailed || !strings.Contains(resp.Answer, "Desculpe") {
		t.Errorf("expected apology, got %+v", resp)
	}

	rr, elapsed = send(f.handler.ProcessLeaflet, ProcessRequest{PDF: pdf})
	if elapsed > time.Second {
		t.Fatalf("process waited %s for a stalled build", elapsed)
	}
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestQueryLeaflet(t *testing.T) {
	f := newFixture()
	f.answerer.answer = entities.AnsweredQuestion{
		AnswerText:   "Tomar de 8 em 8 horas (Página 2).",
		CitedPages:   []int{2},
		SourceChunks: []entities.LeafletChunk{{PageNumber: 2}},
		Status:       entities.AnswerStatusAnswered,
		Success:      true,
	}

	rr := post(t, f.handler.QueryLeaflet, QueryRequest{
		PDF:      base64.StdEncoding.EncodeToString(samplePDF),
		Question: "  Qual a posologia?  ",
	}, "Accept-Language", "en-GB,en;q=0.9")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	resp := decode[QueryResponse](t, rr)
	if !resp.Success || resp.SourceCount != 1 || len(resp.CitedPages) != 1 || resp.CitedPages[0] != 2 {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.MentionedPages == nil {
		t.Error("mentionedPages must serialize as an empty array")
	}
	if f.answerer.language != qa.LanguageEnglish {
		t.Errorf("expected language from Accept-Language, got %q", f.answerer.language)
	}
}

func TestQueryLeafletIndexFailureIsAbsorbed(t *testing.T) {
	f := newFixture()
	f.indexer.err = &apperrors.DocumentParseError{Err: errors.New("broken")}

	rr := post(t, f.handler.QueryLeaflet, QueryRequest{
		PDF:      base64.StdEncoding.EncodeToString(samplePDF),
		Question: "Posso tomar durante a gravidez?",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[QueryResponse](t, rr)
	if resp.Success || resp.Status != entities.AnswerStatusFailed {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Answer != qa.Apology(qa.LanguagePortuguese) {
		t.Errorf("expected the Portuguese apology, got %q", resp.Answer)
	}
}

func TestQueryLeafletRejectsEmptyQuestion(t *testing.T) {
	f := newFixture()
	rr := post(t, f.handler.QueryLeaflet, QueryRequest{PDF: base64.StdEncoding.EncodeToString(samplePDF), Question: "   "})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func TestIdentify(t *testing.T) {
	image := base64.StdEncoding.EncodeToString(pngHeader)

	tests := []struct {
		name     string
		identity entities.MedicineIdentity
		err      error
		status   int
	}{
		{"identified", entities.MedicineIdentity{Name: "Brufen", ActiveSubstance: "Ibuprofeno"}, nil, http.StatusOK},
		{"unidentified", entities.MedicineIdentity{}, identify.ErrUnidentified, http.StatusUnprocessableEntity},
		{"not configured", entities.MedicineIdentity{}, identify.ErrNotConfigured, http.StatusServiceUnavailable},
		{"model failure", entities.MedicineIdentity{}, errors.New("upstream 500"), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.identifier.identity = tt.identity
			f.identifier.err = tt.err

			rr := post(t, f.handler.Identify, IdentifyRequest{Image: image})
			if rr.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rr.Code, rr.Body.String())
			}
			if tt.status == http.StatusOK {
				got := decode[entities.MedicineIdentity](t, rr)
				if got.Name != "Brufen" {
					t.Errorf("unexpected identity %+v", got)
				}
			}
		})
	}
}

func TestIdentifyRejectsNonImage(t *testing.T) {
	f := newFixture()
	rr := post(t, f.handler.Identify, IdentifyRequest{Image: base64.StdEncoding.EncodeToString([]byte("just text"))})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newFixture()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	f.handler.HealthCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decode[HealthResponse](t, rr)
	if resp.Status != "healthy" {
		t.Errorf("unexpected status %q", resp.Status)
	}
	if resp.UptimeSeconds < 90 {
		t.Errorf("expected uptime from server start, got %f", resp.UptimeSeconds)
	}
	if _, ok := resp.System["goroutines"]; !ok {
		t.Error("system stats missing goroutines")
	}
}

func TestFormatUptimeHuman(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{5 * time.Second, "5s"},
		{2*time.Minute + 3*time.Second, "2m 3s"},
		{26*time.Hour + time.Second, "1d 2h 0m 1s"},
	}
	for _, tt := range tests {
		if got := formatUptimeHuman(tt.d); got != tt.want {
			t.Errorf("formatUptimeHuman(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
