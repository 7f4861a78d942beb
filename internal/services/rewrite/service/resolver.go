// Package service implements the rewrite module's per worker services
package service

import (
	"path"
	"slices"
	"strings"

	perr "recycle/internal/platform/errors"
	"recycle/internal/services/rewrite/domain"

	"golang.org/x/text/language"
)

// DefaultStore is the store whose targets carry no store prefix
const DefaultStore = "default"

// DefaultLocale is the locale a fresh resolver starts in. Scope baselines in
// reset.json must match it.
const DefaultLocale = "en-US"

// Scope is the store view a request runs under
type Scope struct {
	Store  string
	Locale string
}

// Key identifies the scope in memo keys
func (s Scope) Key() string { return s.Store + "/" + s.Locale }

// Resolver follows rewrite rules. Scope, memo and lookups are request state
// restored from reset rules between requests; the table is wiring and stays.
type Resolver struct {
	Scope

	table   map[string]string
	rules   []domain.Rule
	maxHops int

	memo    map[string]string
	lookups int
}

// NewResolver validates rules and builds a resolver over them
func NewResolver(rules []domain.Rule, maxHops int) (*Resolver, error) {
	if maxHops < 1 {
		return nil, perr.InvalidArgf("rewrite: max hops must be positive, got %d", maxHops)
	}
	table := make(map[string]string, len(rules))
	for _, r := range rules {
		if !strings.HasPrefix(r.From, "/") || !strings.HasPrefix(r.To, "/") {
			return nil, perr.InvalidArgf("rewrite: rule %s=%s must use absolute paths", r.From, r.To)
		}
		from := path.Clean(r.From)
		if _, dup := table[from]; dup {
			return nil, perr.Conflictf("rewrite: %s has two rules", from)
		}
		table[from] = path.Clean(r.To)
	}
	return &Resolver{
		Scope:   Scope{Store: DefaultStore, Locale: DefaultLocale},
		table:   table,
		rules:   slices.Clone(rules),
		maxHops: maxHops,
	}, nil
}

// Enter switches the scope; empty values keep the current one. Locales are
// stored as canonical BCP 47 tags so "en-us" and "en-US" share memo entries.
func (r *Resolver) Enter(store, locale string) error {
	if locale != "" {
		tag, err := language.Parse(locale)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeInvalidArgument, "rewrite: bad locale %q", locale)
		}
		r.Locale = tag.String()
	}
	if store != "" {
		r.Store = store
	}
	return nil
}

// Resolve follows rules from p until none applies. Results are memoized per
// scope for the rest of the request.
func (r *Resolver) Resolve(p string) (target string, hops []domain.Hop, cached bool, err error) {
	r.lookups++
	cur := path.Clean(p)
	key := r.Key() + "|" + cur
	if t, ok := r.memo[key]; ok {
		return t, nil, true, nil
	}

	seen := map[string]bool{cur: true}
	for {
		next, ok := r.table[cur]
		if !ok {
			break
		}
		if seen[next] {
			return "", hops, false, perr.Conflictf("rewrite: %s loops back to %s", p, next)
		}
		if len(hops) == r.maxHops {
			return "", hops, false, perr.InvalidArgf("rewrite: %s needs more than %d hops", p, r.maxHops)
		}
		hops = append(hops, domain.Hop{From: cur, To: next})
		seen[next] = true
		cur = next
	}

	target = cur
	if r.Store != "" && r.Store != DefaultStore {
		target = "/" + r.Store + target
	}
	if r.memo == nil {
		r.memo = map[string]string{}
	}
	r.memo[key] = target
	return target, hops, false, nil
}

// Rules returns the configured rules in order
func (r *Resolver) Rules() []domain.Rule { return slices.Clone(r.rules) }

// Lookups is the number of Resolve calls since the last reset
func (r *Resolver) Lookups() int { return r.lookups }

// Memoized is the number of memo entries since the last reset
func (r *Resolver) Memoized() int { return len(r.memo) }
