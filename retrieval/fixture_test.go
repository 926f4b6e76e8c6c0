package retrieval

import (
	"context"
	"sync"
	"time"

	"github.com/giygas/leaflet-api/entities"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/portal"
)

// fixturePortal answers searches from a table keyed by attempt and delivers
// PDFs through the real interceptor when a row is clicked
type fixturePortal struct {
	mu          sync.Mutex
	results     map[entities.SearchAttempt][][]string
	pdfs        map[int][]byte
	searchErr   error
	clickErr    error
	searches    []entities.SearchAttempt
	current     [][]string
	interceptor *portal.Interceptor
	closed      bool
	opened      int
}

func newFixturePortal() *fixturePortal {
	return &fixturePortal{
		results:     map[entities.SearchAttempt][][]string{},
		pdfs:        map[int][]byte{},
		interceptor: portal.NewInterceptor(),
	}
}

func (f *fixturePortal) Open(ctx context.Context) (interfaces.PortalSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened++
	return f, nil
}

func (f *fixturePortal) Search(ctx context.Context, attempt entities.SearchAttempt) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.searches = append(f.searches, attempt)
	if f.searchErr != nil {
		return false, f.searchErr
	}
	rows, ok := f.results[attempt]
	if !ok {
		f.current = nil
		return false, nil
	}
	f.current = rows
	return true, nil
}

func (f *fixturePortal) ResultRows(ctx context.Context) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, nil
}

func (f *fixturePortal) TriggerDownload(ctx context.Context, rowIndex int) error {
	f.mu.Lock()
	pdf := f.pdfs[rowIndex]
	err := f.clickErr
	f.mu.Unlock()

	// the portal may still open the document even when the click reports an error
	if pdf != nil {
		f.interceptor.Offer(pdf)
	}
	return err
}

func (f *fixturePortal) AwaitFirstPDF(ctx context.Context, timeout time.Duration) []byte {
	return f.interceptor.AwaitFirstPDF(ctx, timeout)
}

func (f *fixturePortal) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.interceptor.Close()
	f.closed = true
	return nil
}

func (f *fixturePortal) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

func (f *fixturePortal) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
