// Command recycle-api serves requests on a pool of reusable workers
package main

import (
	"context"
	"os/signal"
	"syscall"

	"recycle/internal/boot"
	"recycle/internal/modkit"
	"recycle/internal/platform/config"
	"recycle/internal/platform/logger"
	phttp "recycle/internal/platform/net/http"

	"recycle/internal/services/api"
	rewrite "recycle/internal/services/rewrite/module"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// everything lives under RECYCLE_*
	cfg := config.New().Prefix("RECYCLE_")
	l := logger.Get()

	bc := boot.FromConfig(cfg)
	deps := modkit.Deps{Log: l, Cfg: cfg, Root: bc.ModuleRoot}

	rw, err := rewrite.New(deps)
	if err != nil {
		l.Fatal().Err(err).Msg("rewrite module")
	}

	// rule files are read once here; a broken one stops the process
	app, err := boot.Load(bc, rw)
	if err != nil {
		l.Fatal().Err(err).Msg("load reset rules")
	}
	if err := app.Start(ctx); err != nil {
		l.Fatal().Err(err).Msg("start workers")
	}
	defer app.Close()

	// http server (reads RECYCLE_API_PORT)
	srv := phttp.NewServer(cfg)
	api.Mount(srv.Router(), app, api.FromConfig(cfg))

	if err := srv.Run(ctx); err != nil {
		l.Error().Err(err).Msg("http server stopped")
	}
}
