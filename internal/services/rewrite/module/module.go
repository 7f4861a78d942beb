// Package module wires rewrites into workers and the API using modkit
package module

import (
	"context"
	"path/filepath"
	"reflect"

	"recycle/internal/container"
	"recycle/internal/modkit"
	"recycle/internal/services/rewrite/domain"
	rwhttp "recycle/internal/services/rewrite/http"
	"recycle/internal/services/rewrite/service"
)

// Name is the module name
const Name = "rewrite"

// Dir is the module directory relative to the module root
const Dir = "internal/services/rewrite"

// New constructs the rewrite module. Every worker container gets its own
// Resolver, History and Rewriter.
func New(deps modkit.Deps, opts ...modkit.Option) (modkit.Module, error) {
	cfg, err := FromConfig(deps.Cfg)
	if err != nil {
		return nil, err
	}
	// fail on a bad table at startup rather than in every worker
	if _, err := service.NewResolver(cfg.Table, cfg.MaxHops); err != nil {
		return nil, err
	}

	base := []modkit.Option{
		modkit.WithName(Name),
		modkit.WithDir(filepath.Join(deps.Root, Dir)),
		modkit.WithPrefix("/v1/rewrites"),
		modkit.WithClass("rewrite.Resolver", reflect.TypeFor[service.Resolver]()),
		modkit.WithProvide(func(c *container.Container) error { return provide(c, cfg) }),
		modkit.WithRoutes(rwhttp.Register),
	}
	return modkit.Build(append(base, opts...)...), nil
}

func provide(c *container.Container, cfg Options) error {
	if err := container.Provide(c, func(context.Context, *container.Container) (*service.Resolver, error) {
		return service.NewResolver(cfg.Table, cfg.MaxHops)
	}); err != nil {
		return err
	}
	if err := container.Provide(c, func(context.Context, *container.Container) (*service.History, error) {
		return service.NewHistory(cfg.TrailLimit), nil
	}); err != nil {
		return err
	}
	return container.Provide(c, func(ctx context.Context, c *container.Container) (domain.RewriterPort, error) {
		res, err := container.Get[*service.Resolver](ctx, c)
		if err != nil {
			return nil, err
		}
		hist, err := container.Get[*service.History](ctx, c)
		if err != nil {
			return nil, err
		}
		return service.NewRewriter(res, hist), nil
	}, container.DependsOn(container.Dep[*service.Resolver](), container.Dep[*service.History]()))
}

// Types lists the pointer types the module's providers build, for rule linting
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeFor[*service.Resolver](),
		reflect.TypeFor[*service.History](),
		reflect.TypeFor[*service.Rewriter](),
	}
}
