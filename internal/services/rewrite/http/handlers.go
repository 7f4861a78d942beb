// Package http provides http transport for rewrites
package http

import (
	"context"
	stdhttp "net/http"

	"recycle/internal/container"
	"recycle/internal/modkit"
	phttp "recycle/internal/platform/net/http"
	"recycle/internal/services/rewrite/domain"
)

// Register mounts rewrite endpoints on the given router. Every handler runs on
// a pool worker through d, so the worker resets the services it touched.
func Register(r phttp.Router, d modkit.Dispatch) {
	h := &handlers{dispatch: d}

	// resolve one path under an optional store scope
	phttp.PostJSON[domain.ResolveInput](r, "/resolve", h.resolve)

	// request scoped state of whichever worker serves the call
	phttp.GetJSON(r, "/state", h.state)

	// configured rules
	phttp.GetJSON(r, "/table", h.table)
}

type handlers struct{ dispatch modkit.Dispatch }

// withRewriter runs fn against the worker's rewriter and returns its value
func withRewriter[T any](h *handlers, ctx context.Context, fn func(context.Context, domain.RewriterPort) (T, error)) (T, error) {
	return modkit.Call(ctx, h.dispatch, func(ctx context.Context, c *container.Container) (T, error) {
		w, err := container.Get[domain.RewriterPort](ctx, c)
		if err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx, w)
	})
}

func (h *handlers) resolve(r *stdhttp.Request, in domain.ResolveInput) (any, error) {
	return withRewriter(h, r.Context(), func(ctx context.Context, w domain.RewriterPort) (domain.Result, error) {
		return w.Rewrite(ctx, in)
	})
}

func (h *handlers) state(r *stdhttp.Request) (any, error) {
	return withRewriter(h, r.Context(), func(_ context.Context, w domain.RewriterPort) (domain.State, error) {
		return w.State(), nil
	})
}

func (h *handlers) table(r *stdhttp.Request) (any, error) {
	return withRewriter(h, r.Context(), func(_ context.Context, w domain.RewriterPort) ([]domain.Rule, error) {
		return w.Table(), nil
	})
}
