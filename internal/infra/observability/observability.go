// Package observability provides tracing and Prometheus metrics for moneytime.
//
// This provides:
//   - Trace spans for every call to the finance collaborator (list → create → balance)
//   - Preview lifecycle metrics (added, promoted, expired, removed)
//   - Balance reconstruction and ledger cache metrics
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans: lightweight span tracking without an OTel SDK
// ═══════════════════════════════════════════════════════════════════════════

// Span represents a unit of work, typically one collaborator request.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	Operation string            `json:"operation"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer keeps the most recent spans in memory for inspection.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 1_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 1_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	if cfg.MaxSpans <= 0 {
		cfg.MaxSpans = DefaultTracerConfig().MaxSpans
	}
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a new span with the given operation name.
// Returns the span (caller must call EndSpan when done).
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if t == nil || !t.enabled {
		return &Span{Operation: operation, StartTime: time.Now()}
	}
	return &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    generateID(),
		Operation: operation,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}
}

// EndSpan completes a span, records it and observes the ledger metrics.
func (t *Tracer) EndSpan(span *Span, err error) {
	if span == nil {
		return
	}
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
	}
	LedgerRequestDuration.WithLabelValues(span.Operation, outcome).Observe(span.Duration.Seconds())

	if t == nil || !t.enabled {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the most recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const traceIDKey contextKey = "moneytime-trace-id"

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

// generateID creates a short unique ID (not cryptographically secure).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Preview Metrics ────────────────────────────────────────────────────────

// PreviewsActive tracks the current size of the live preview set.
var PreviewsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "moneytime",
	Subsystem: "preview",
	Name:      "active",
	Help:      "Current number of live preview transactions.",
})

// PreviewEvents counts preview lifecycle transitions.
var PreviewEvents = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moneytime",
	Subsystem: "preview",
	Name:      "events_total",
	Help:      "Preview lifecycle transitions by type (added, removed, promoted, expired).",
}, []string{"type"})

// PreviewPromotionFailures counts promotions rejected by the collaborator.
var PreviewPromotionFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "moneytime",
	Subsystem: "preview",
	Name:      "promotion_failures_total",
	Help:      "Total preview promotions that failed and left the preview active.",
})

// ─── Balance Metrics ────────────────────────────────────────────────────────

// ReconstructDuration tracks how long a month reconstruction takes end to end.
var ReconstructDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "moneytime",
	Subsystem: "balance",
	Name:      "reconstruct_seconds",
	Help:      "Time to fetch and reconstruct a month of daily balances.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// LedgerRequestDuration tracks collaborator calls by operation and outcome.
var LedgerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "moneytime",
	Subsystem: "ledger",
	Name:      "request_seconds",
	Help:      "Finance collaborator request latency by operation and outcome.",
	Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
}, []string{"operation", "outcome"})

// CacheLookups counts ledger cache hits and misses by scope.
var CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moneytime",
	Subsystem: "cache",
	Name:      "lookups_total",
	Help:      "Ledger cache lookups by scope and result (hit, miss).",
}, []string{"scope", "result"})

// CacheInvalidations counts scope invalidations.
var CacheInvalidations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "moneytime",
	Subsystem: "cache",
	Name:      "invalidations_total",
	Help:      "Ledger cache invalidations by scope.",
}, []string{"scope"})

// RecurringMaterialized counts transactions created by the auto-materializer.
var RecurringMaterialized = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "moneytime",
	Subsystem: "recurring",
	Name:      "materialized_total",
	Help:      "Total transactions created from recurring rules by the daemon.",
})
