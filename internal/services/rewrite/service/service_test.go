package service

import (
	"context"
	"encoding/json"
	"reflect"
	"testing"

	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	"recycle/internal/reset"
	"recycle/internal/reset/rules"
	"recycle/internal/services/rewrite/domain"
)

var table = []domain.Rule{
	{From: "/old-home", To: "/"},
	{From: "/catalog/shoes", To: "/shoes"},
	{From: "/shoes", To: "/footwear"},
}

func newRewriter(t *testing.T) (*Rewriter, *Resolver, *History) {
	t.Helper()
	res, err := NewResolver(table, 4)
	if err != nil {
		t.Fatal(err)
	}
	hist := NewHistory(8)
	return NewRewriter(res, hist), res, hist
}

func TestResolver_FollowsChainAndMemoizes(t *testing.T) {
	_, res, _ := newRewriter(t)

	target, hops, cached, err := res.Resolve("/catalog/shoes/")
	if err != nil {
		t.Fatal(err)
	}
	if target != "/footwear" || cached || len(hops) != 2 {
		t.Fatalf("got %q cached=%v hops=%v", target, cached, hops)
	}

	target, hops, cached, err = res.Resolve("/catalog/shoes")
	if err != nil || target != "/footwear" || !cached || hops != nil {
		t.Fatalf("second lookup should hit memo: %q %v %v %v", target, cached, hops, err)
	}
	if res.Lookups() != 2 || res.Memoized() != 1 {
		t.Fatalf("lookups=%d memo=%d", res.Lookups(), res.Memoized())
	}

	if err := res.Enter("eu", ""); err != nil {
		t.Fatal(err)
	}
	target, _, cached, _ = res.Resolve("/catalog/shoes")
	if target != "/eu/footwear" || cached {
		t.Fatalf("store scope should prefix and miss the memo: %q %v", target, cached)
	}
}

func TestResolver_Errors(t *testing.T) {
	cases := []struct {
		name  string
		rules []domain.Rule
		hops  int
		path  string
		code  perr.ErrorCode
	}{
		{"relative rule", []domain.Rule{{From: "a", To: "/b"}}, 4, "", perr.ErrorCodeInvalidArgument},
		{"duplicate rule", []domain.Rule{{From: "/a", To: "/b"}, {From: "/a/", To: "/c"}}, 4, "", perr.ErrorCodeConflict},
		{"zero hops", nil, 0, "", perr.ErrorCodeInvalidArgument},
		{"loop", []domain.Rule{{From: "/a", To: "/b"}, {From: "/b", To: "/a"}}, 4, "/a", perr.ErrorCodeConflict},
		{"too deep", []domain.Rule{{From: "/a", To: "/b"}, {From: "/b", To: "/c"}, {From: "/c", To: "/d"}}, 2, "/a", perr.ErrorCodeInvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := NewResolver(tc.rules, tc.hops)
			if tc.path == "" {
				if !perr.IsCode(err, tc.code) {
					t.Fatalf("NewResolver err = %v, want %s", err, tc.code)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if _, _, _, err := res.Resolve(tc.path); !perr.IsCode(err, tc.code) {
				t.Fatalf("Resolve err = %v, want %s", err, tc.code)
			}
		})
	}
}

func TestResolver_EnterCanonicalizesLocale(t *testing.T) {
	res, err := NewResolver(table, 4)
	if err != nil {
		t.Fatal(err)
	}
	if err := res.Enter("", "en-us"); err != nil {
		t.Fatal(err)
	}
	if res.Locale != "en-US" || res.Store != DefaultStore {
		t.Fatalf("scope = %+v", res.Scope)
	}

	err = res.Enter("eu", "not a locale")
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if res.Store != DefaultStore || res.Locale != "en-US" {
		t.Fatalf("rejected Enter should leave scope alone: %+v", res.Scope)
	}
}

func TestHistory_KeepsNewestWithinLimit(t *testing.T) {
	h := NewHistory(2)
	h.Record(domain.Hop{From: "/a", To: "/b"}, domain.Hop{From: "/b", To: "/c"}, domain.Hop{From: "/c", To: "/d"})
	got := h.Trail()
	if len(got) != 2 || got[0].From != "/b" || got[1].From != "/c" {
		t.Fatalf("trail = %v", got)
	}
	if err := h.ResetState(); err != nil || h.Len() != 0 {
		t.Fatalf("reset left %d hops (%v)", h.Len(), err)
	}
}

func TestRewriter_StateRestoredByResetCycle(t *testing.T) {
	set, err := rules.Load([]string{"../etc/reset.json"})
	if err != nil {
		t.Fatal(err)
	}
	cat := reset.NewCatalog()
	if err := cat.Register("rewrite.Resolver", reflect.TypeFor[Resolver]()); err != nil {
		t.Fatal(err)
	}
	eng := reset.New(set,
		reset.WithCatalog(cat),
		reset.WithOrderer(reset.SequenceOrder),
		reset.WithCollector(func() {}),
		reset.WithLogger(logger.Nop()),
	)

	w, res, hist := newRewriter(t)
	for _, inst := range []any{res, hist, w} {
		eng.AddInstance(inst)
	}
	if got := eng.Stats().Tracked; got != 3 {
		t.Fatalf("tracked = %d", got)
	}
	if k := eng.PlanOf(reflect.TypeOf(res)); k.Kind != reset.KindRules || len(k.Matches) != 2 {
		t.Fatalf("resolver plan = %+v", k)
	}
	if k := eng.PlanOf(reflect.TypeOf(hist)).Kind; k != reset.KindSelf {
		t.Fatalf("history plan = %s", k)
	}
	if k := eng.PlanOf(reflect.TypeOf(w)).Kind; k != reset.KindConvention {
		t.Fatalf("rewriter plan = %s", k)
	}

	if _, err := w.Rewrite(context.Background(), domain.ResolveInput{Path: "/catalog/shoes", Store: "eu", Locale: "de"}); err != nil {
		t.Fatal(err)
	}
	dirty := w.State()
	if dirty.Store != "eu" || dirty.Lookups != 1 || dirty.Memo != 1 || dirty.Trail != 2 || dirty.Requests != 1 {
		t.Fatalf("unexpected state before reset %+v", dirty)
	}

	if err := eng.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := domain.State{Store: "default", Locale: "en-US"}
	if got := w.State(); got != want {
		t.Fatalf("state after reset = %+v, want %+v", got, want)
	}
	if len(w.Table()) != len(table) {
		t.Fatal("wiring should survive the reset")
	}
}

func TestScopeBaselinesMatchFreshResolver(t *testing.T) {
	fresh, err := NewResolver(table, 4)
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"../etc/reset.json", "../../../../etc/reset.json"} {
		set, err := rules.Load([]string{p})
		if err != nil {
			t.Fatal(err)
		}
		fields, ok := set.Fields("service.Scope")
		if !ok {
			t.Fatalf("%s: no service.Scope rule", p)
		}
		var base Scope
		for _, f := range fields {
			var v string
			if err := json.Unmarshal(f.Value, &v); err != nil {
				t.Fatalf("%s: %s: %v", p, f.Name, err)
			}
			switch f.Name {
			case "Store":
				base.Store = v
			case "Locale":
				base.Locale = v
			}
		}
		if base != fresh.Scope {
			t.Fatalf("%s: baseline %+v differs from a fresh resolver %+v", p, base, fresh.Scope)
		}
	}
}
