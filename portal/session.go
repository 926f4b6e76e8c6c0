package portal

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/chromedp"
	"github.com/giygas/leaflet-api/apperrors"
	"github.com/giygas/leaflet-api/interfaces"
	"github.com/giygas/leaflet-api/logging"
)

// Compile-time checks
var (
	_ interfaces.SessionFactory = (*BrowserFactory)(nil)
	_ interfaces.PortalSession  = (*Session)(nil)
)

// BrowserFactory launches one dedicated Chrome process per session
type BrowserFactory struct {
	opts Options
}

// NewBrowserFactory creates a factory with the given options, zero fields take defaults
func NewBrowserFactory(opts Options) *BrowserFactory {
	opts.applyDefaults()
	return &BrowserFactory{opts: opts}
}

// Session owns one browser process, its first tab and the interceptor watching every response.
// It must not be shared between concurrent fetches.
type Session struct {
	opts        Options
	ctx         context.Context // tab context, parent of every action
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	interceptor *Interceptor
	closeOnce   sync.Once
	closeErr    error
}

// Open starts Chrome and arms response interception for every tab of the browser
func (f *BrowserFactory) Open(ctx context.Context) (interfaces.PortalSession, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts, chromedp.Flag("headless", f.opts.Headless))
	if f.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.opts.ExecPath))
	}
	if f.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(f.opts.UserAgent))
	}

	// the session outlives the request context that opened it, Close ends it
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:        f.opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		interceptor: NewInterceptor(),
	}

	chromedp.ListenBrowser(tabCtx, s.onBrowserEvent)

	startCtx, cancel := s.actionContext(ctx, f.opts.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(startCtx, sessionSetup()); err != nil {
		_ = s.Close()
		return nil, apperrors.NewAutomationError("session", err)
	}

	logging.Debug("Browser session opened", "headless", f.opts.Headless)
	return s, nil
}

// sessionSetup denies downloads and arms response interception on the browser
// target. Interception there covers every tab of the browser, including tabs
// the portal opens later, from their first request.
func sessionSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		if c == nil || c.Browser == nil {
			return chromedp.ErrInvalidContext
		}
		browserCtx := cdp.WithExecutor(ctx, c.Browser)
		for _, action := range browserActions() {
			if err := action.Do(browserCtx); err != nil {
				return err
			}
		}
		return nil
	})
}

func browserActions() []chromedp.Action {
	return []chromedp.Action{
		browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorDeny),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageResponse},
		}),
	}
}

// onBrowserEvent runs in event order, so PDF responses claim their capture
// slot here before their bodies are read concurrently
func (s *Session) onBrowserEvent(ev interface{}) {
	paused, ok := ev.(*fetch.EventRequestPaused)
	if !ok {
		return
	}

	slot := -1
	if IsPDFResponse(responseHeaders(paused)) {
		slot = s.interceptor.Reserve()
	}
	// CDP calls are not allowed from inside the listener
	go s.handlePaused(paused, slot)
}

func responseHeaders(ev *fetch.EventRequestPaused) map[string]string {
	headers := make(map[string]string, len(ev.ResponseHeaders))
	for _, h := range ev.ResponseHeaders {
		headers[h.Name] = h.Value
	}
	return headers
}

// handlePaused reads the body of a reserved PDF response and lets every response continue
func (s *Session) handlePaused(ev *fetch.EventRequestPaused, slot int) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Browser == nil {
		if slot >= 0 {
			s.interceptor.Abandon(slot)
		}
		return
	}
	execCtx := cdp.WithExecutor(s.ctx, c.Browser)

	if slot >= 0 {
		body, err := fetch.GetResponseBody(ev.RequestID).Do(execCtx)
		switch {
		case err != nil:
			s.interceptor.Abandon(slot)
			if s.ctx.Err() == nil {
				logging.Warn("Failed to read intercepted PDF body", "url", requestURL(ev), "error", err)
			}
		case s.interceptor.Fulfil(slot, body):
			logging.Info("PDF response intercepted", "url", requestURL(ev), "bytes", len(body))
		}
	}

	// fails once the session is torn down, nothing left to continue
	_ = fetch.ContinueRequest(ev.RequestID).Do(execCtx)
}

func requestURL(ev *fetch.EventRequestPaused) string {
	if ev.Request == nil {
		return ""
	}
	return ev.Request.URL
}

// actionContext derives a bounded context on the tab that also ends with the caller's ctx
func (s *Session) actionContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// AwaitFirstPDF returns the first PDF seen in this session or nil after timeout
func (s *Session) AwaitFirstPDF(ctx context.Context, timeout time.Duration) []byte {
	return s.interceptor.AwaitFirstPDF(ctx, timeout)
}

// Close tears down tab, browser and allocator. Errors are reported but the teardown always completes.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.interceptor.Close()
		s.closeErr = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
	})
	return s.closeErr
}
