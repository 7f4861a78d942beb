// Package boot assembles the process: rule set, catalog, and a worker pool
// whose workers each own a container and a reset engine.
package boot

import (
	"context"

	"recycle/internal/container"
	"recycle/internal/modkit"
	"recycle/internal/modkit/module"
	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	"recycle/internal/reset"
	"recycle/internal/reset/rules"
	"recycle/internal/worker"
)

// Runtime is one worker's object graph
type Runtime struct {
	ID        string
	Engine    *reset.Engine
	Container *container.Container
}

// RunCycle implements worker.Runtime
func (rt *Runtime) RunCycle(ctx context.Context) error { return rt.Engine.RunCycle(ctx) }

// Close implements worker.Runtime
func (rt *Runtime) Close() error { return rt.Container.Close() }

// App holds the process wide pieces. Rules, catalog and patcher are shared by
// every worker; everything else is per worker.
type App struct {
	Config  Config
	Rules   rules.Set
	Catalog *reset.Catalog
	Patcher *reset.Patcher
	Modules []modkit.Module
	Pool    *worker.Pool[*Runtime]

	log *logger.Logger
}

// Load registers mods, reads the rule set from the config dir and every
// module dir, and names module classes. A rule file that exists but cannot be
// read or parsed is fatal.
func Load(cfg Config, mods ...modkit.Module) (*App, error) {
	a := &App{
		Config:  cfg,
		Catalog: reset.NewCatalog(),
		Patcher: reset.NewPatcher(),
		Modules: mods,
		log:     logger.Named("boot"),
	}
	if err := modkit.Register(mods...); err != nil {
		return nil, err
	}
	set, err := rules.Load(rules.Paths(cfg.ConfigDir, module.Dirs()))
	if err != nil {
		return nil, err
	}
	a.Rules = set
	if err := modkit.ClassesAll(a.Catalog, mods...); err != nil {
		return nil, err
	}
	return a, nil
}

// Start builds the worker pool
func (a *App) Start(ctx context.Context) error {
	pool, err := worker.New(ctx, worker.Config{Size: a.Config.Workers}, a.BuildRuntime)
	if err != nil {
		return err
	}
	a.Pool = pool
	a.log.Info().
		Int("workers", a.Config.Workers).
		Int("classes", a.Rules.Len()).
		Int("modules", len(a.Modules)).
		Str("order", a.Config.Order).
		Msg("app started")
	return nil
}

// BuildRuntime wires one worker. The engine exists before the container and
// is told about it last; it looks its orderer up on the first cycle.
func (a *App) BuildRuntime(ctx context.Context, workerID string) (*Runtime, error) {
	eng := reset.New(a.Rules, reset.WithCatalog(a.Catalog), reset.WithPatcher(a.Patcher))
	c := container.New(container.WithTracker(eng))

	if err := container.Instance(c, eng); err != nil {
		return nil, err
	}
	var err error
	switch a.Config.Order {
	case OrderSequence:
		err = container.Instance(c, reset.SequenceOrder)
	default:
		err = container.ProvideGraphOrder(c)
	}
	if err != nil {
		return nil, err
	}
	if err := modkit.ProvideAll(c, a.Modules...); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, perr.WithOp(err, "boot.BuildRuntime")
	}
	eng.SetContainer(c)

	logger.Enrich(logger.WithWorker(ctx, workerID), a.log).Debug().Msg("runtime built")
	return &Runtime{ID: workerID, Engine: eng, Container: c}, nil
}

// Dispatch runs fn on a pool worker with that worker's container
func (a *App) Dispatch() modkit.Dispatch {
	return func(ctx context.Context, fn func(context.Context, *container.Container) error) error {
		return a.Pool.Do(ctx, func(ctx context.Context, rt *Runtime) error {
			return fn(ctx, rt.Container)
		})
	}
}

// WorkerStatus is one worker's engine counters
type WorkerStatus struct {
	ID     string      `json:"id"`
	Engine reset.Stats `json:"engine"`
}

// Status is the process snapshot served by the API
type Status struct {
	Pool    worker.Stats   `json:"pool"`
	Workers []WorkerStatus `json:"workers"`
	Classes []string       `json:"classes"`
	Modules []string       `json:"modules"`
	Order   string         `json:"order"`
}

// Status returns a snapshot of the pool and every worker's engine
func (a *App) Status() Status {
	st := Status{
		Classes: a.Rules.Classes(),
		Modules: module.Names(),
		Order:   a.Config.Order,
	}
	if a.Pool == nil {
		return st
	}
	st.Pool = a.Pool.Stats()
	a.Pool.Visit(func(id string, rt *Runtime) {
		st.Workers = append(st.Workers, WorkerStatus{ID: id, Engine: rt.Engine.Stats()})
	})
	return st
}

// Close stops the pool
func (a *App) Close() {
	if a.Pool != nil {
		a.Pool.Close()
	}
}
