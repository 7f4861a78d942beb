// Package modkit wires feature modules into a worker's container and the API router
package modkit

import (
	"context"

	"recycle/internal/container"
	"recycle/internal/modkit/module"
	perr "recycle/internal/platform/errors"
	phttp "recycle/internal/platform/net/http"
	"recycle/internal/reset"
)

// Module is a feature component. Its Dir holds the module's own etc/reset.json.
// keep this tiny so modules stay decoupled
type Module interface {
	Name() string
	Dir() string

	// Provide registers the module's services on a worker's container.
	// It runs once per worker runtime.
	Provide(c *container.Container) error

	// MountRoutes mounts HTTP routes; handlers reach services through d
	MountRoutes(r phttp.Router, d Dispatch)
}

// Classifier is implemented by modules that name their types for reset rules
type Classifier interface {
	Classes(cat *reset.Catalog) error
}

// Dispatch runs fn on a pool worker with that worker's container. The worker
// resets tracked instances once fn returns.
type Dispatch func(ctx context.Context, fn func(ctx context.Context, c *container.Container) error) error

// Call runs fn through d and hands back its value. The value travels over a
// channel filled by the job itself, so a caller whose ctx ended while the job
// is still running never touches memory the worker is writing.
func Call[T any](ctx context.Context, d Dispatch, fn func(ctx context.Context, c *container.Container) (T, error)) (T, error) {
	var zero T
	ch := make(chan T, 1)
	err := d(ctx, func(ctx context.Context, c *container.Container) error {
		v, err := fn(ctx, c)
		if err != nil {
			return err
		}
		ch <- v
		return nil
	})
	if err != nil {
		return zero, err
	}
	select {
	case v := <-ch:
		return v, nil
	default:
		return zero, perr.Internalf("modkit: dispatch returned without running the job")
	}
}

// Register records every module with the module registrar so their
// directories become rule sources
func Register(mods ...Module) error {
	for _, m := range mods {
		if err := module.Register(m.Name(), m.Dir()); err != nil {
			return err
		}
	}
	return nil
}

// ClassesAll registers the explicit class names of every module implementing Classifier
func ClassesAll(cat *reset.Catalog, mods ...Module) error {
	for _, m := range mods {
		cl, ok := m.(Classifier)
		if !ok {
			continue
		}
		if err := cl.Classes(cat); err != nil {
			return perr.WithOp(err, "modkit.ClassesAll")
		}
	}
	return nil
}

// ProvideAll runs Provide for each module in order
func ProvideAll(c *container.Container, mods ...Module) error {
	for _, m := range mods {
		if err := m.Provide(c); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeContainer, "modkit: %s provide", m.Name())
		}
	}
	return nil
}

// MountAll mounts each module's routes in order
func MountAll(r phttp.Router, d Dispatch, mods ...Module) {
	for _, m := range mods {
		m.MountRoutes(r, d)
	}
}
