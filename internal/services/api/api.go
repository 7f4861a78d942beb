// Package api mounts the HTTP surface: process status, the worker object
// graph, and every module's routes, all behind the common middleware stack
package api

import (
	"context"
	stdhttp "net/http"
	"time"

	"recycle/internal/boot"
	"recycle/internal/container"
	"recycle/internal/modkit"
	"recycle/internal/platform/config"
	phttp "recycle/internal/platform/net/http"
	"recycle/internal/platform/net/middleware"
	"recycle/internal/version"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Timeout        time.Duration
	CORSOrigins    []string
	EnableProfiler bool

	// Service and StartedAt feed /v1/version
	Service   string
	StartedAt time.Time
}

// FromConfig reads API_* settings
func FromConfig(cfg config.Conf) Options {
	return Options{
		Config:         cfg,
		Timeout:        cfg.MayDuration("API_TIMEOUT", 15*time.Second),
		CORSOrigins:    cfg.MayCSV("CORS_ORIGINS", nil),
		EnableProfiler: cfg.MayBool("API_PPROF", false),
		Service:        cfg.MayString("SERVICE_NAME", "recycle-api"),
		StartedAt:      time.Now(),
	}
}

// Mount mounts the API onto r. Module handlers reach worker services through
// app.Dispatch, so each request is followed by a reset cycle on its worker.
func Mount(r phttp.Router, app *boot.App, opt Options) {
	if opt.StartedAt.IsZero() {
		opt.StartedAt = time.Now()
	}
	r.Use(middleware.Heartbeat("/healthz"))
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	r.Group(func(g phttp.Router) {
		for _, mw := range middleware.Defaults(opt.Timeout) {
			g.Use(mw)
		}
		g.Use(middleware.CORS(middleware.CORSOptions{AllowedOrigins: opt.CORSOrigins}))

		g.Route("/v1", func(v1 phttp.Router) {
			phttp.GetJSON(v1, "/status", func(*stdhttp.Request) (any, error) {
				return app.Status(), nil
			})
			phttp.GetJSON(v1, "/version", func(*stdhttp.Request) (any, error) {
				return version.Since(opt.Service, opt.StartedAt, time.Now()), nil
			})
			v1.Get("/graph", graphHandler(app.Dispatch()))
		})

		modkit.MountAll(g, app.Dispatch(), app.Modules...)
	})
}

// graphHandler serves one worker's container graph as JSON, or as DOT or
// Mermaid text with ?format=dot|mermaid
func graphHandler(d modkit.Dispatch) phttp.Handler {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		g, err := modkit.Call(r.Context(), d, func(_ context.Context, c *container.Container) (container.Graph, error) {
			return c.Graph()
		})
		if err != nil {
			phttp.RespondError(w, r, err)
			return
		}
		switch r.URL.Query().Get("format") {
		case "dot":
			w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
			_, _ = w.Write([]byte(g.DOT()))
		case "mermaid":
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte(g.Mermaid()))
		default:
			phttp.Handle(func(*stdhttp.Request) phttp.Response { return phttp.OK(g) })(w, r)
		}
	}
}
