// Package container builds a worker's object graph from type-keyed providers.
//
// Providers declare the types they depend on; the container resolves those
// first, builds each singleton once (concurrent resolutions share one build),
// and reports every built or seeded value to an optional Tracker. The reset
// engine is the usual tracker.
package container

import (
	"context"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"

	"golang.org/x/sync/singleflight"
)

// Lifetime says whether a provider's value is shared or built per resolution
type Lifetime uint8

const (
	// Singleton values are built once and cached
	Singleton Lifetime = iota
	// Transient values are built on every resolution
	Transient
)

func (l Lifetime) String() string {
	if l == Transient {
		return "transient"
	}
	return "singleton"
}

// Tracker receives every value the container builds or is seeded with
type Tracker interface {
	AddInstance(instance any)
}

// Build constructs a T. ctx carries the resolution stack; pass it on when
// resolving further types inside a build.
type Build[T any] func(ctx context.Context, c *Container) (T, error)

// ProvideOption tunes a single provider
type ProvideOption func(*provider)

// DependsOn declares types that must be resolved before the provider builds
func DependsOn(types ...reflect.Type) ProvideOption {
	return func(p *provider) { p.deps = append(p.deps, types...) }
}

// AsTransient builds a fresh value on every resolution
func AsTransient() ProvideOption {
	return func(p *provider) { p.lifetime = Transient }
}

// Dep is shorthand for reflect.TypeFor, for use with DependsOn
func Dep[T any]() reflect.Type { return reflect.TypeFor[T]() }

type provider struct {
	key      reflect.Type
	id       string
	deps     []reflect.Type
	lifetime Lifetime
	seeded   bool
	build    func(ctx context.Context, c *Container) (any, error)
}

// Option configures a Container
type Option func(*Container)

// WithTracker reports built and seeded values to t
func WithTracker(t Tracker) Option { return func(c *Container) { c.tracker = t } }

// WithLogger sets the base logger
func WithLogger(l *logger.Logger) Option { return func(c *Container) { c.log = l } }

// Container holds providers and the singletons built from them
type Container struct {
	tracker Tracker
	log     *logger.Logger
	sf      singleflight.Group

	mu        sync.RWMutex
	providers map[reflect.Type]*provider
	declared  []reflect.Type
	instances map[reflect.Type]any
	built     []reflect.Type
	origin    map[reflect.Type]reflect.Type
	topo      []reflect.Type
	closed    bool
}

// New returns an empty container
func New(opts ...Option) *Container {
	c := &Container{
		providers: map[reflect.Type]*provider{},
		instances: map[reflect.Type]any{},
		origin:    map[reflect.Type]reflect.Type{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = logger.Named("container")
	}
	return c
}

// Provide registers build as the provider of T
func Provide[T any](c *Container, build Build[T], opts ...ProvideOption) error {
	if build == nil {
		return perr.InvalidArgf("container: nil build for %s", reflect.TypeFor[T]())
	}
	p := &provider{
		key: reflect.TypeFor[T](),
		build: func(ctx context.Context, c *Container) (any, error) {
			return build(ctx, c)
		},
	}
	for _, o := range opts {
		o(p)
	}
	return c.add(p)
}

// Instance seeds the container with a pre-built T. The value is reported to
// the tracker straight away.
func Instance[T any](c *Container, v T) error {
	p := &provider{key: reflect.TypeFor[T](), seeded: true}
	if err := c.add(p); err != nil {
		return err
	}
	c.mu.Lock()
	c.instances[p.key] = v
	c.built = append(c.built, p.key)
	c.note(p.key, v)
	c.mu.Unlock()
	c.track(v)
	return nil
}

func (c *Container) add(p *provider) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return perr.Containerf("container: closed")
	}
	if _, dup := c.providers[p.key]; dup {
		return perr.Conflictf("container: %s already provided", p.key)
	}
	p.id = strconv.Itoa(len(c.declared))
	c.providers[p.key] = p
	c.declared = append(c.declared, p.key)
	c.topo = nil
	return nil
}

// Has reports whether t has a provider
func (c *Container) Has(t reflect.Type) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.providers[t]
	return ok
}

// Resolve returns the value provided for t. A type without a provider is
// ErrorCodeNotFound; a dependency cycle or failed build is ErrorCodeContainer.
func (c *Container) Resolve(ctx context.Context, t reflect.Type) (any, error) {
	withStack, err := pushStack(ctx, t)
	if err != nil {
		return nil, err
	}

	c.mu.RLock()
	p, ok := c.providers[t]
	cached, hit := c.instances[t]
	closed := c.closed
	c.mu.RUnlock()
	switch {
	case closed:
		return nil, perr.Containerf("container: closed")
	case !ok:
		return nil, perr.NotFoundf("container: no provider for %s", t)
	case hit:
		return cached, nil
	case p.lifetime == Transient:
		return c.construct(withStack, p)
	}

	v, err, _ := c.sf.Do(p.id, func() (any, error) {
		c.mu.RLock()
		again, ok := c.instances[t]
		c.mu.RUnlock()
		if ok {
			return again, nil
		}
		return c.construct(withStack, p)
	})
	return v, err
}

func (c *Container) construct(ctx context.Context, p *provider) (any, error) {
	if p.seeded {
		return nil, perr.Containerf("container: seeded %s has no value", p.key)
	}
	for _, d := range p.deps {
		if _, err := c.Resolve(ctx, d); err != nil {
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				return nil, perr.Containerf("container: %s depends on %s which has no provider", p.key, d)
			}
			return nil, err
		}
	}

	v, err := p.build(ctx, c)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeContainer) {
			return nil, err
		}
		return nil, perr.Wrapf(err, perr.ErrorCodeContainer, "container: build %s", p.key)
	}

	c.mu.Lock()
	if p.lifetime == Singleton {
		c.instances[p.key] = v
		c.built = append(c.built, p.key)
	}
	c.note(p.key, v)
	c.mu.Unlock()

	c.log.Trace().Str("type", p.key.String()).Stringer("lifetime", p.lifetime).Msg("built")
	c.track(v)
	return v, nil
}

// note remembers which provider produced values of v's dynamic type; caller holds mu
func (c *Container) note(key reflect.Type, v any) {
	if v == nil {
		return
	}
	if _, seen := c.origin[reflect.TypeOf(v)]; !seen {
		c.origin[reflect.TypeOf(v)] = key
	}
}

func (c *Container) track(v any) {
	if c.tracker != nil && v != nil {
		c.tracker.AddInstance(v)
	}
}

// Get resolves T
func Get[T any](ctx context.Context, c *Container) (T, error) {
	var zero T
	v, err := c.Resolve(ctx, reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	out, ok := v.(T)
	if !ok {
		return zero, perr.Containerf("container: provider of %s returned %T", reflect.TypeFor[T](), v)
	}
	return out, nil
}

// MustGet resolves T or panics; meant for wiring code at startup
func MustGet[T any](ctx context.Context, c *Container) T {
	v, err := Get[T](ctx, c)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks that every declared dependency has a provider and the graph is acyclic
func (c *Container) Validate() error {
	_, err := c.TopoOrder()
	return err
}

// Close closes built singletons implementing io.Closer, dependents first.
// Every closer is called; the first error is returned.
func (c *Container) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	built := append([]reflect.Type(nil), c.built...)
	instances := c.instances
	c.mu.Unlock()

	rank := c.rankOf()
	// higher rank depends on lower; close from the top
	ordered := sortByRank(built, rank)

	var first error
	for i := len(ordered) - 1; i >= 0; i-- {
		cl, ok := instances[ordered[i]].(io.Closer)
		if !ok {
			continue
		}
		if err := cl.Close(); err != nil {
			c.log.Warn().Err(err).Str("type", ordered[i].String()).Msg("close failed")
			if first == nil {
				first = perr.Wrapf(err, perr.ErrorCodeContainer, "container: close %s", ordered[i])
			}
		}
	}
	return first
}

type stackKey struct{}

func pushStack(ctx context.Context, t reflect.Type) (context.Context, error) {
	stack, _ := ctx.Value(stackKey{}).([]reflect.Type)
	for i := range stack {
		if stack[i] == t {
			path := append(append([]reflect.Type(nil), stack[i:]...), t)
			return nil, perr.Containerf("container: dependency cycle: %s", joinTypes(path, " -> "))
		}
	}
	next := make([]reflect.Type, 0, len(stack)+1)
	next = append(next, stack...)
	next = append(next, t)
	return context.WithValue(ctx, stackKey{}, next), nil
}

func joinTypes(ts []reflect.Type, sep string) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}
