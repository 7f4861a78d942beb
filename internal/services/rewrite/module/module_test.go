package module

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recycle/internal/container"
	"recycle/internal/modkit"
	"recycle/internal/platform/config"
	perr "recycle/internal/platform/errors"
	"recycle/internal/platform/logger"
	phttp "recycle/internal/platform/net/http"
	"recycle/internal/reset"
	"recycle/internal/reset/rules"
	"recycle/internal/services/rewrite/domain"

	"github.com/go-chi/chi/v5"
)

func cfg() config.Conf { return config.New().Prefix("RECYCLE_") }

func TestFromConfig_DefaultsAndOverrides(t *testing.T) {
	o, err := FromConfig(cfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Table) != 3 || o.MaxHops != 8 || o.TrailLimit != 32 {
		t.Fatalf("defaults = %+v", o)
	}

	t.Setenv("RECYCLE_REWRITE_TABLE", "/a=/b, /b=/c")
	t.Setenv("RECYCLE_REWRITE_MAX_HOPS", "2")
	o, err = FromConfig(cfg())
	if err != nil {
		t.Fatal(err)
	}
	if len(o.Table) != 2 || o.Table[1] != (domain.Rule{From: "/b", To: "/c"}) || o.MaxHops != 2 {
		t.Fatalf("overrides = %+v", o)
	}
}

func TestNew_RejectsBadTable(t *testing.T) {
	t.Setenv("RECYCLE_REWRITE_TABLE", "/a")
	if _, err := New(modkit.Deps{Cfg: cfg()}); !perr.IsCode(err, perr.ErrorCodeConfig) {
		t.Fatalf("expected config error, got %v", err)
	}

	t.Setenv("RECYCLE_REWRITE_TABLE", "/a=/b,/a=/c")
	if _, err := New(modkit.Deps{Cfg: cfg()}); !perr.IsCode(err, perr.ErrorCodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

// runtime is a one-worker stand-in: a container tracked by an engine, and a
// dispatch that runs a reset cycle after every call
type runtime struct {
	eng *reset.Engine
	c   *container.Container
}

func newRuntime(t *testing.T, m modkit.Module) *runtime {
	t.Helper()
	set, err := rules.Load([]string{"../etc/reset.json"})
	if err != nil {
		t.Fatal(err)
	}
	cat := reset.NewCatalog()
	if err := modkit.ClassesAll(cat, m); err != nil {
		t.Fatal(err)
	}
	eng := reset.New(set, reset.WithCatalog(cat), reset.WithCollector(func() {}), reset.WithLogger(logger.Nop()))
	c := container.New(container.WithTracker(eng), container.WithLogger(logger.Nop()))
	if err := container.ProvideGraphOrder(c); err != nil {
		t.Fatal(err)
	}
	if err := modkit.ProvideAll(c, m); err != nil {
		t.Fatal(err)
	}
	eng.SetContainer(c)
	return &runtime{eng: eng, c: c}
}

func (rt *runtime) dispatch(ctx context.Context, fn func(context.Context, *container.Container) error) error {
	err := fn(ctx, rt.c)
	if cerr := rt.eng.RunCycle(ctx); cerr != nil {
		return cerr
	}
	return err
}

func do(t *testing.T, h http.Handler, method, path, body string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	if out != nil {
		env := struct {
			Data json.RawMessage `json:"data"`
		}{}
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode %s: %v", rec.Body.String(), err)
		}
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, out); err != nil {
				t.Fatal(err)
			}
		}
	}
	return rec.Code
}

func TestModule_RequestsDoNotLeakState(t *testing.T) {
	m, err := New(modkit.Deps{Cfg: cfg(), Root: "/srv/app"})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "rewrite" || m.Dir() != "/srv/app/internal/services/rewrite" {
		t.Fatalf("name=%q dir=%q", m.Name(), m.Dir())
	}

	rt := newRuntime(t, m)
	r := phttp.AdaptChi(chi.NewRouter())
	m.MountRoutes(r, rt.dispatch)
	h := r.Mux()

	var res domain.Result
	code := do(t, h, http.MethodPost, "/v1/rewrites/resolve", `{"path":"/catalog/shoes","store":"eu","locale":"de"}`, &res)
	if code != http.StatusOK || res.Target != "/eu/footwear" || len(res.Hops) != 2 {
		t.Fatalf("resolve = %d %+v", code, res)
	}

	// the next request sees the baseline, not the previous request's scope
	var st domain.State
	if code := do(t, h, http.MethodGet, "/v1/rewrites/state", "", &st); code != http.StatusOK {
		t.Fatalf("state = %d", code)
	}
	if want := (domain.State{Store: "default", Locale: "en-US"}); st != want {
		t.Fatalf("state = %+v, want %+v", st, want)
	}

	var table []domain.Rule
	do(t, h, http.MethodGet, "/v1/rewrites/table", "", &table)
	if len(table) != 3 {
		t.Fatalf("table = %v", table)
	}

	if s := rt.eng.Stats(); s.Cycles != 3 || s.Failed != 0 || s.Tracked != 3 {
		t.Fatalf("engine stats = %+v", s)
	}
}

func TestModule_ValidatesBody(t *testing.T) {
	m, err := New(modkit.Deps{Cfg: cfg(), Root: "."})
	if err != nil {
		t.Fatal(err)
	}
	rt := newRuntime(t, m)
	r := phttp.AdaptChi(chi.NewRouter())
	m.MountRoutes(r, rt.dispatch)

	cases := []string{
		`{"path":""}`,
		`{"path":"no-slash"}`,
		`{"path":"/a","store":"e u"}`,
		`{"path":"/a","extra":1}`,
	}
	for _, body := range cases {
		code := do(t, r.Mux(), http.MethodPost, "/v1/rewrites/resolve", body, nil)
		if code != http.StatusBadRequest && code != http.StatusUnprocessableEntity {
			t.Fatalf("%s: got %d", body, code)
		}
	}
	if got := rt.eng.Stats().Cycles; got != 0 {
		t.Fatalf("rejected bodies should never reach a worker, cycles=%d", got)
	}
}
