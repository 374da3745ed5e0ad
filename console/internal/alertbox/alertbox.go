// Package alertbox keeps the operator-facing status line and the short-lived
// notices shown over it.
package alertbox

import (
	"sync"
	"time"
)

// DefaultTTL is how long a transient alert stays up.
const DefaultTTL = 5 * time.Second

type Severity string

const (
	Success Severity = "success"
	Info    Severity = "info"
	Warning Severity = "warning"
	Danger  Severity = "danger"
)

// Icon is the icon class shown next to an alert.
func (s Severity) Icon() string {
	if s == Success {
		return "fa-check-circle"
	}
	return "fa-exclamation-triangle"
}

// Alert is one message on the surface.
type Alert struct {
	Message    string    `json:"message"`
	Severity   Severity  `json:"severity"`
	Icon       string    `json:"icon"`
	Persistent bool      `json:"persistent"`
	ShownAt    time.Time `json:"shown_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Option configures a Surface.
type Option func(*Surface)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Surface) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Surface) {
		s.now = now
	}
}

// Surface holds the current alert. A persistent alert becomes the status line;
// a transient one overlays it until its TTL elapses, after which the status line
// shows again.
type Surface struct {
	ttl time.Duration
	now func() time.Time

	mu         sync.Mutex
	current    *Alert
	previous   *Alert
	persistent *Alert
	nextSubID  int
	subs       map[int]func(Alert)
}

func New(opts ...Option) *Surface {
	s := &Surface{
		ttl:  DefaultTTL,
		now:  time.Now,
		subs: make(map[int]func(Alert)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Show displays message and notifies subscribers.
func (s *Surface) Show(message string, severity Severity, persistent bool) Alert {
	s.mu.Lock()
	now := s.now()
	a := Alert{
		Message:    message,
		Severity:   severity,
		Icon:       severity.Icon(),
		Persistent: persistent,
		ShownAt:    now,
	}
	if persistent {
		s.persistent = &a
	} else {
		a.ExpiresAt = now.Add(s.ttl)
	}
	s.previous = s.current
	s.current = &a
	subs := s.subscribers()
	s.mu.Unlock()

	notify(subs, a)
	return a
}

// Expire reverts an elapsed transient alert to the status line and reports
// whether anything changed.
func (s *Surface) Expire() bool {
	s.mu.Lock()
	reverted, changed := s.expireLocked()
	subs := s.subscribers()
	s.mu.Unlock()

	if changed {
		notify(subs, reverted)
	}
	return changed
}

func (s *Surface) expireLocked() (Alert, bool) {
	if s.current == nil || s.current.Persistent || s.now().Before(s.current.ExpiresAt) {
		return Alert{}, false
	}

	s.previous = s.current
	s.current = s.persistent
	if s.current == nil {
		return Alert{}, true
	}
	return *s.current, true
}

// Current returns the alert on display, applying any pending expiry.
func (s *Surface) Current() (Alert, bool) {
	s.mu.Lock()
	reverted, changed := s.expireLocked()
	subs := s.subscribers()
	var out Alert
	ok := s.current != nil
	if ok {
		out = *s.current
	}
	s.mu.Unlock()

	if changed {
		notify(subs, reverted)
	}
	return out, ok
}

// Previous returns the alert displayed before the current one.
func (s *Surface) Previous() (Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.previous == nil {
		return Alert{}, false
	}
	return *s.previous, true
}

// Subscribe registers fn for every change. A cleared surface is reported as a
// zero Alert. The returned func unsubscribes.
func (s *Surface) Subscribe(fn func(Alert)) func() {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Surface) subscribers() []func(Alert) {
	out := make([]func(Alert), 0, len(s.subs))
	for _, fn := range s.subs {
		out = append(out, fn)
	}
	return out
}

func notify(subs []func(Alert), a Alert) {
	for _, fn := range subs {
		fn(a)
	}
}
