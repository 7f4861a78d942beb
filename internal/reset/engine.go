package reset

import (
	"context"
	"reflect"
	"runtime"
	"sync"
	"time"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	ptime "recycle/internal/platform/time"
	"recycle/internal/reset/rules"

	"github.com/google/uuid"
)

// Container is the part of the construction container the engine needs
type Container interface {
	Resolve(ctx context.Context, t reflect.Type) (any, error)
}

// OrdererType is the key the engine resolves its Orderer by
var OrdererType = reflect.TypeFor[Orderer]()

// Stats are cumulative engine counters
type Stats struct {
	Cycles    uint64        `json:"cycles"`
	Failed    uint64        `json:"failed"`
	Reset     uint64        `json:"reset"`
	Skipped   uint64        `json:"skipped"`
	Tracked   int           `json:"tracked"`
	LastCycle time.Duration `json:"last_cycle_ns"`
	LastAt    *time.Time    `json:"last_at,omitempty"`
}

// Option configures an Engine
type Option func(*Engine)

// WithCatalog shares a catalog of explicit class names
func WithCatalog(c *Catalog) Option { return func(e *Engine) { e.catalog = c } }

// WithPatcher shares a patcher, and with it the field metadata cache
func WithPatcher(p *Patcher) Option { return func(e *Engine) { e.patcher = p } }

// WithOrderer pins the orderer; the container is then never asked for one
func WithOrderer(o Orderer) Option { return func(e *Engine) { e.orderer = o } }

// WithCollector replaces the forced collection that brackets each cycle
func WithCollector(fn func()) Option { return func(e *Engine) { e.collect = fn } }

// WithLogger sets the base logger
func WithLogger(l *logger.Logger) Option { return func(e *Engine) { e.log = l } }

// Engine tracks instances and resets them at each unit of work boundary
type Engine struct {
	set      rules.Set
	catalog  *Catalog
	patcher  *Patcher
	registry *Registry
	collect  func()
	log      *logger.Logger

	mu        sync.Mutex
	container Container
	orderer   Orderer
	plans     map[reflect.Type]Plan
	stats     Stats
}

// New builds an engine over an already loaded rule set. The container is
// attached later with SetContainer.
func New(set rules.Set, opts ...Option) *Engine {
	e := &Engine{
		set:      set,
		registry: NewRegistry(),
		collect:  runtime.GC,
		plans:    map[reflect.Type]Plan{},
	}
	for _, o := range opts {
		o(e)
	}
	if e.catalog == nil {
		e.catalog = NewCatalog()
	}
	if e.patcher == nil {
		e.patcher = NewPatcher()
	}
	if e.log == nil {
		e.log = logger.Named("reset")
	}
	return e
}

// SetContainer attaches the container the orderer is resolved from on first use
func (e *Engine) SetContainer(c Container) {
	e.mu.Lock()
	e.container = c
	e.mu.Unlock()
}

// Registry exposes the instance registry
func (e *Engine) Registry() *Registry { return e.registry }

// Rules returns the rule set the engine was built with
func (e *Engine) Rules() rules.Set { return e.set }

// PlanOf returns the plan the engine uses for instances of type t
func (e *Engine) PlanOf(t reflect.Type) Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.plans[t]
	if !ok {
		p = planFor(t, e.catalog, e.set)
		e.plans[t] = p
		if p.Kind != KindNone && sharesTinyBlock(t.Elem()) {
			e.log.Warn().Str("type", t.String()).
				Msg("small pointer-free type may stay tracked after it is dropped; add a pointer field or pad it to 16 bytes")
		}
	}
	return p
}

// AddInstance tracks instance if it qualifies; anything else is ignored and not retained
func (e *Engine) AddInstance(instance any) {
	if instance == nil {
		return
	}
	t := reflect.TypeOf(instance)
	p := e.PlanOf(t)
	if p.Kind == KindNone {
		return
	}
	if e.registry.Add(instance, p) {
		e.log.Trace().Str("type", t.String()).Stringer("plan", p.Kind).Msg("tracking instance")
	}
}

// RunCycle resets every live tracked instance. It collects garbage, walks the
// ordered handles, and collects again. The first failure stops the walk and is
// returned; the worker that owns this engine should not be reused after that.
// ctx only carries logging fields; a cycle is never cancelled.
func (e *Engine) RunCycle(ctx context.Context) (err error) {
	ctx = logger.WithCycle(ctx, uuid.NewString())
	log := logger.Enrich(ctx, e.log)
	start := time.Now()

	e.collect()

	var reset, skipped uint64
	defer func() {
		e.collect()

		elapsed := time.Since(start)
		e.mu.Lock()
		e.stats.Cycles++
		e.stats.Reset += reset
		e.stats.Skipped += skipped
		e.stats.LastCycle = elapsed
		e.stats.LastAt = ptime.Ptr(start)
		if err != nil {
			e.stats.Failed++
		}
		e.mu.Unlock()

		if err != nil {
			log.Error().Err(err).Uint64("reset", reset).Dur("elapsed", elapsed).Msg("reset cycle failed")
			return
		}
		log.Debug().Uint64("reset", reset).Uint64("skipped", skipped).Dur("elapsed", elapsed).Msg("reset cycle done")
	}()

	ord, err := e.resolveOrderer(ctx)
	if err != nil {
		return perr.WithOp(err, "reset.RunCycle")
	}
	for _, h := range ord.Order(e.registry) {
		inst, ok := h.Value()
		if !ok {
			skipped++
			continue
		}
		if err := e.resetOne(inst, h.plan); err != nil {
			return perr.WithOp(err, "reset.RunCycle")
		}
		reset++
	}
	return nil
}

// Stats returns a snapshot of the counters
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := e.stats
	e.mu.Unlock()
	s.Tracked = e.registry.Len()
	return s
}

func (e *Engine) resolveOrderer(ctx context.Context) (Orderer, error) {
	e.mu.Lock()
	o, c := e.orderer, e.container
	e.mu.Unlock()
	if o != nil {
		return o, nil
	}
	if c == nil {
		return nil, perr.Containerf("reset: no container attached")
	}

	// resolved outside the lock: building the orderer reports instances back to us
	v, err := c.Resolve(ctx, OrdererType)
	switch {
	case perr.IsCode(err, perr.ErrorCodeNotFound):
		logger.Enrich(ctx, e.log).Warn().Msg("container has no orderer; using registration order")
		o = SequenceOrder
	case err != nil:
		return nil, perr.Wrap(err, perr.ErrorCodeContainer, "reset: resolve orderer")
	default:
		var ok bool
		if o, ok = v.(Orderer); !ok {
			return nil, perr.Containerf("reset: container returned %T for the orderer", v)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.orderer == nil {
		e.orderer = o
	}
	return e.orderer, nil
}

func (e *Engine) resetOne(inst any, p Plan) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = perr.PanicErrf("reset: %T panicked: %v", inst, r)
		}
	}()

	switch p.Kind {
	case KindSelf:
		if err := inst.(Resetter).ResetState(); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeReset, "reset: %T.%s", inst, MethodName)
		}
	case KindConvention:
		out := reflect.ValueOf(inst).MethodByName(MethodName).Call(nil)
		if n := len(out); n > 0 && out[n-1].Type() == errorType && !out[n-1].IsNil() {
			return perr.Wrapf(out[n-1].Interface().(error), perr.ErrorCodeReset, "reset: %T.%s", inst, MethodName)
		}
	case KindRules:
		for _, m := range p.Matches {
			if err := e.patcher.Apply(inst, m, m.Fields); err != nil {
				return err
			}
		}
	default:
		return perr.Internalf("reset: unexpected plan %s", p.Kind)
	}
	return nil
}
