package service

import (
	"context"

	"recycle/internal/platform/logger"
	"recycle/internal/services/rewrite/domain"
)

var _ domain.RewriterPort = (*Rewriter)(nil)

// Rewriter is the module facade over Resolver and History
type Rewriter struct {
	res  *Resolver
	hist *History

	requests int
}

// NewRewriter wires a rewriter
func NewRewriter(res *Resolver, hist *History) *Rewriter {
	return &Rewriter{res: res, hist: hist}
}

// Rewrite resolves in.Path under the requested scope
func (w *Rewriter) Rewrite(ctx context.Context, in domain.ResolveInput) (domain.Result, error) {
	w.requests++
	if err := w.res.Enter(in.Store, in.Locale); err != nil {
		return domain.Result{}, err
	}

	target, hops, cached, err := w.res.Resolve(in.Path)
	if err != nil {
		return domain.Result{}, err
	}
	w.hist.Record(hops...)

	logger.C(ctx).Debug().
		Str("path", in.Path).
		Str("target", target).
		Int("hops", len(hops)).
		Bool("cached", cached).
		Msg("rewrite resolved")

	return domain.Result{
		Path:    in.Path,
		Target:  target,
		Store:   w.res.Store,
		Locale:  w.res.Locale,
		Hops:    hops,
		Cached:  cached,
		Lookups: w.res.Lookups(),
	}, nil
}

// State reports the request scoped state of the worker's services
func (w *Rewriter) State() domain.State {
	return domain.State{
		Store:    w.res.Store,
		Locale:   w.res.Locale,
		Lookups:  w.res.Lookups(),
		Memo:     w.res.Memoized(),
		Trail:    w.hist.Len(),
		Requests: w.requests,
	}
}

// Table returns the configured rules
func (w *Rewriter) Table() []domain.Rule { return w.res.Rules() }

// ResetState clears the request counter. It has no error result, so the
// engine resets Rewriter by convention rather than as a reset.Resetter.
func (w *Rewriter) ResetState() { w.requests = 0 }
