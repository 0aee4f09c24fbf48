// Package integration hosts the Registry, the orchestrator that owns
// integration records and coordinates the dependency graph, lifecycle hooks,
// conditional content, enhanced features and health checks behind one API.
package integration

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/bizhub/integrations/internal/domain/dependency"
	"github.com/bizhub/integrations/internal/domain/integration"
	"github.com/bizhub/integrations/internal/domain/shared"
	"github.com/bizhub/integrations/internal/infrastructure/event"
	"github.com/bizhub/integrations/internal/infrastructure/health"
	"github.com/bizhub/integrations/internal/infrastructure/logger"
	"github.com/bizhub/integrations/internal/infrastructure/telemetry"
	"github.com/bizhub/integrations/internal/infrastructure/validation"
)

const (
	// DefaultHookTimeout bounds one lifecycle hook invocation
	DefaultHookTimeout = 10 * time.Second
	// DefaultHealthCheckTimeout bounds one health probe
	DefaultHealthCheckTimeout = 5 * time.Second

	healthCheckConcurrency = 8
	spanComponent          = "registry"
)

// DefinitionValidator normalizes and validates a definition in place
type DefinitionValidator interface {
	Validate(in *integration.Integration) error
}

// HealthProber checks one integration
type HealthProber interface {
	Probe(ctx context.Context, in *integration.Integration) (integration.HealthReport, error)
}

// Registry is safe for concurrent use. A single RWMutex serializes every
// mutation together with the dependency graph; reads share it. Events are
// queued under the mutex and delivered after it is released, in mutation
// order, by whichever caller is draining the queue. Health probes run outside
// the mutex. Hooks and custom conditions run while it is held and must not
// call back into the registry; event handlers may.
type Registry struct {
	mu sync.RWMutex

	pending  []queuedEvents
	draining bool

	integrations map[string]*integration.Integration
	order        []string
	categories   map[integration.Category][]string
	conflicts    map[string][]string
	enhancements map[string][]string
	graph        *dependency.Manager

	content      map[string][]integration.ConditionalContent
	features     map[string]integration.EnhancedFeature
	featureOrder []string
	available    map[string]struct{}
	context      *integration.Context

	validator        DefinitionValidator
	prober           HealthProber
	bus              shared.EventBus
	logger           *zap.Logger
	metrics          *telemetry.RegistryMetrics
	tracer           trace.Tracer
	clock            func() time.Time
	hookTimeout      time.Duration
	healthTimeout    time.Duration
	treeDepth        int
	enforceConflicts bool
}

// Option configures a Registry
type Option func(*Registry)

// WithValidator replaces the definition validator
func WithValidator(v DefinitionValidator) Option {
	return func(r *Registry) {
		r.validator = v
	}
}

// WithHealthProber replaces the health prober
func WithHealthProber(p HealthProber) Option {
	return func(r *Registry) {
		r.prober = p
	}
}

// WithEventBus publishes lifecycle events on bus instead of a private bus
func WithEventBus(bus shared.EventBus) Option {
	return func(r *Registry) {
		r.bus = bus
	}
}

// WithHookTimeout bounds each lifecycle hook invocation
func WithHookTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.hookTimeout = d
		}
	}
}

// WithHealthCheckTimeout bounds each health probe
func WithHealthCheckTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.healthTimeout = d
		}
	}
}

// WithConflictCheckOnEnable toggles re-checking conflicts when enabling
func WithConflictCheckOnEnable(enabled bool) Option {
	return func(r *Registry) {
		r.enforceConflicts = enabled
	}
}

// WithTreeDepth sets the depth of dependency trees
func WithTreeDepth(depth int) Option {
	return func(r *Registry) {
		if depth > 0 {
			r.treeDepth = depth
		}
	}
}

// WithClock overrides time.Now
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		r.clock = clock
	}
}

// WithMetrics records registry metrics
func WithMetrics(m *telemetry.RegistryMetrics) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// WithTracer records spans around registry mutations
func WithTracer(t trace.Tracer) Option {
	return func(r *Registry) {
		r.tracer = t
	}
}

// NewRegistry creates an empty registry. The registry's own logging handler
// is subscribed to its event bus.
func NewRegistry(log *zap.Logger, opts ...Option) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		integrations:     make(map[string]*integration.Integration),
		order:            make([]string, 0),
		categories:       make(map[integration.Category][]string),
		conflicts:        make(map[string][]string),
		enhancements:     make(map[string][]string),
		graph:            dependency.NewManager(),
		content:          make(map[string][]integration.ConditionalContent),
		features:         make(map[string]integration.EnhancedFeature),
		featureOrder:     make([]string, 0),
		available:        make(map[string]struct{}),
		logger:           log.Named("registry"),
		clock:            time.Now,
		hookTimeout:      DefaultHookTimeout,
		healthTimeout:    DefaultHealthCheckTimeout,
		treeDepth:        dependency.DefaultTreeDepth,
		enforceConflicts: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.validator == nil {
		r.validator = validation.NewDefinitionValidator()
	}
	if r.prober == nil {
		r.prober = health.MetricsProber{}
	}
	if r.bus == nil {
		r.bus = event.NewInMemoryEventBus(r.logger)
	}
	if r.metrics == nil {
		// the noop meter never fails instrument creation
		r.metrics, _ = telemetry.NewRegistryMetrics(noop.NewMeterProvider().Meter(telemetry.TracerName))
	}
	if r.tracer == nil {
		r.tracer = tracenoop.NewTracerProvider().Tracer(telemetry.TracerName)
	}

	r.bus.Subscribe(event.NewLoggingHandler(log))
	return r
}

// Subscribe registers a handler for lifecycle events. No event types means
// the handler's own EventTypes.
func (r *Registry) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	r.bus.Subscribe(handler, eventTypes...)
}

// Unsubscribe removes a handler
func (r *Registry) Unsubscribe(handler shared.EventHandler) {
	r.bus.Unsubscribe(handler)
}

func (r *Registry) now() time.Time {
	return r.clock().UTC()
}

func (r *Registry) log(ctx context.Context) *logger.ContextLogger {
	return logger.WithLogger(ctx, r.logger)
}

type queuedEvents struct {
	ctx    context.Context
	events []shared.DomainEvent
}

// queueEvents must be called with r.mu held
func (r *Registry) queueEvents(ctx context.Context, events ...shared.DomainEvent) {
	if len(events) == 0 {
		return
	}
	r.pending = append(r.pending, queuedEvents{ctx: ctx, events: events})
}

// flushEvents publishes queued events in queue order. One caller drains at a
// time; a concurrent or reentrant caller leaves its events to the active
// drainer, so they may be delivered after it returns. Must be called without
// r.mu held.
func (r *Registry) flushEvents() {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	for len(r.pending) > 0 {
		next := r.pending[0]
		r.pending[0] = queuedEvents{}
		r.pending = r.pending[1:]
		r.mu.Unlock()

		if err := r.bus.Publish(next.ctx, next.events...); err != nil {
			r.log(next.ctx).Error("failed to publish registry events", zap.Error(err))
		}

		r.mu.Lock()
	}
	r.pending = nil
	r.draining = false
	r.mu.Unlock()
}

func (r *Registry) startSpan(ctx context.Context, operation string, keyValues ...any) (context.Context, trace.Span) {
	return telemetry.StartSpan(ctx, r.tracer, spanComponent, operation, keyValues...)
}

// isEnabled must be called with r.mu held
func (r *Registry) isEnabled(id string) bool {
	in, ok := r.integrations[id]
	return ok && in.IsEnabled
}

// enabledCount must be called with r.mu held
func (r *Registry) enabledCount() int {
	n := 0
	for _, in := range r.integrations {
		if in.IsEnabled {
			n++
		}
	}
	return n
}
