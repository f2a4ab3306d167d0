// Package tracing times the stages of a single request. Spans ride on the
// request context, nest under whichever span is already there, and the
// finished tree is written to slog at debug level.
package tracing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/tfidf-search/pkg/logger"
)

type contextKey struct{}

// Span is one timed stage. It is safe to add children and attributes from
// several goroutines.
type Span struct {
	name    string
	traceID string
	start   time.Time

	mu       sync.Mutex
	duration time.Duration
	attrs    []any
	children []*Span
}

// Start begins a span under the span already in ctx, if any. A root span
// takes the request ID from ctx as its trace ID.
func Start(ctx context.Context, name string) (context.Context, *Span) {
	span := &Span{name: name, start: time.Now()}
	if parent := FromContext(ctx); parent != nil {
		span.traceID = parent.traceID
		parent.mu.Lock()
		parent.children = append(parent.children, span)
		parent.mu.Unlock()
	} else {
		span.traceID = logger.RequestID(ctx)
	}
	return context.WithValue(ctx, contextKey{}, span), span
}

// FromContext returns the innermost span in ctx, or nil.
func FromContext(ctx context.Context) *Span {
	span, _ := ctx.Value(contextKey{}).(*Span)
	return span
}

func (s *Span) Name() string { return s.name }

func (s *Span) SetAttr(key string, value any) {
	s.mu.Lock()
	s.attrs = append(s.attrs, key, value)
	s.mu.Unlock()
}

// End stops the clock. Only the first call counts.
func (s *Span) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.duration == 0 {
		s.duration = max(time.Since(s.start), time.Nanosecond)
	}
}

func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Span) Children() []*Span {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Span(nil), s.children...)
}

// Log writes the span and its descendants, parents first.
func (s *Span) Log(log *slog.Logger) {
	if !log.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	s.log(log, 0)
}

func (s *Span) log(log *slog.Logger, depth int) {
	s.mu.Lock()
	args := append([]any{
		"trace_id", s.traceID,
		"span", s.name,
		"depth", depth,
		"duration_us", s.duration.Microseconds(),
	}, s.attrs...)
	children := append([]*Span(nil), s.children...)
	s.mu.Unlock()

	log.Debug("span", args...)
	for _, child := range children {
		child.log(log, depth+1)
	}
}
