package portal

import (
	"context"
	"strings"
	"sync"
	"time"
)

// IsPDFResponse reports whether response headers announce a PDF payload,
// either through Content-Type or a .pdf filename in Content-Disposition.
// Header names are matched case-insensitively.
func IsPDFResponse(headers map[string]string) bool {
	for name, value := range headers {
		switch strings.ToLower(name) {
		case "content-type":
			if strings.Contains(strings.ToLower(value), "application/pdf") {
				return true
			}
		case "content-disposition":
			if strings.Contains(strings.ToLower(value), ".pdf") {
				return true
			}
		}
	}
	return false
}

// Interceptor keeps the first PDF payload seen anywhere in a browser session.
// Arrival order decides which payload is first: a response claims a slot with
// Reserve when its headers are seen and its body is delivered later.
// Offers arriving after the first one, or after Close, are dropped.
type Interceptor struct {
	mu      sync.Mutex
	next    int
	head    int // lowest slot still undecided
	slots   map[int][]byte
	settled map[int]bool
	body    []byte
	closed  bool
	done    chan struct{}
}

// NewInterceptor creates an empty interceptor
func NewInterceptor() *Interceptor {
	return &Interceptor{
		slots:   make(map[int][]byte),
		settled: make(map[int]bool),
		done:    make(chan struct{}),
	}
}

// Reserve claims the next slot in arrival order. The caller must settle it
// with Fulfil or Abandon.
func (i *Interceptor) Reserve() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	slot := i.next
	i.next++
	return slot
}

// Fulfil delivers the payload of slot. It returns true when that payload becomes the capture.
func (i *Interceptor) Fulfil(slot int, body []byte) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed || i.body != nil || slot < i.head || i.settled[slot] {
		return false
	}
	i.settled[slot] = true
	if len(body) > 0 {
		i.slots[slot] = body
	}
	return i.advance() == slot
}

// Abandon settles slot without a payload, for example after a failed body read
func (i *Interceptor) Abandon(slot int) {
	i.Fulfil(slot, nil)
}

// advance walks the settled prefix of slots and captures the first payload in it.
// It returns the captured slot, -1 when nothing was captured.
func (i *Interceptor) advance() int {
	for i.settled[i.head] {
		slot := i.head
		body := i.slots[slot]
		delete(i.slots, slot)
		delete(i.settled, slot)
		i.head++
		if body != nil {
			i.body = body
			i.slots = map[int][]byte{}
			close(i.done)
			return slot
		}
	}
	return -1
}

// Offer records body if it is the first non-empty payload. It returns true when accepted.
func (i *Interceptor) Offer(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	return i.Fulfil(i.Reserve(), body)
}

// Captured returns the first payload, nil when none was captured yet
func (i *Interceptor) Captured() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.body
}

// fallback returns the capture, or the earliest delivered payload when an
// earlier slot never settled
func (i *Interceptor) fallback() []byte {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.body != nil {
		return i.body
	}
	earliest := -1
	for slot := range i.slots {
		if earliest < 0 || slot < earliest {
			earliest = slot
		}
	}
	if earliest < 0 {
		return nil
	}
	return i.slots[earliest]
}

// AwaitFirstPDF blocks until a payload is captured, the timeout elapses or ctx ends.
// A timeout is a normal outcome and yields nil unless a payload was delivered
// behind a response whose body never arrived.
func (i *Interceptor) AwaitFirstPDF(ctx context.Context, timeout time.Duration) []byte {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-i.done:
		return i.Captured()
	case <-timer.C:
	case <-ctx.Done():
	}

	// a capture may have landed together with the timer
	return i.fallback()
}

// Close stops accepting offers. Safe to call more than once.
func (i *Interceptor) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.closed = true
}
