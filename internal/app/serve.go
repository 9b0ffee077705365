package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vk/merlin/internal/config"
	"github.com/vk/merlin/internal/devserver"
	"github.com/vk/merlin/internal/discovery"
	"github.com/vk/merlin/internal/optimize"
)

// Serve builds once, then serves the artifact on the configured address and
// rebuilds whenever a watched source changes. A failed initial build is
// logged; the server keeps answering 503 until a later build succeeds. Serve
// returns when ctx is cancelled or a component fails.
func (a *App) Serve(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	cfg := a.config

	reloadPath := ""
	if cfg.Dev.LiveReload {
		reloadPath = devserver.EventsPath
	}
	srv := devserver.New(func(ctx context.Context) (*optimize.Artifact, error) {
		return a.build(ctx, reloadPath)
	}, devserver.Options{LiveReload: cfg.Dev.LiveReload})

	w, err := discovery.NewWatcher(discovery.WatchConfig{
		Roots:      cfg.Roots,
		Extensions: cfg.Extensions,
		Ignore:     ignorePatterns(cfg),
		Debounce:   cfg.Dev.Debounce,
		OnChange: func(ctx context.Context, changed []string) {
			a.logger.Info("Sources changed.", "count", len(changed), "first", changed[0])
			srv.Notify(changed)
		},
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return w.Run(ctx) })
	g.Go(func() error { return srv.ListenAndServe(ctx, cfg.Dev.Address) })
	g.Go(func() error {
		// Failures are recorded by the server and reported in its status.
		_ = srv.Rebuild(ctx)
		return srv.Run(ctx)
	})
	return g.Wait()
}

// ignorePatterns turns ignored directory names into watcher patterns and
// adds the output directory wherever it sits under a root, so writing an
// artifact never triggers another build.
func ignorePatterns(cfg *config.Model) []string {
	out := make([]string, 0, len(cfg.IgnoreDirs)+1)
	for _, d := range cfg.IgnoreDirs {
		out = append(out, "**/"+d+"/**")
	}
	for _, root := range cfg.Roots {
		rel, err := filepath.Rel(root, cfg.Output.Dir)
		switch {
		case err != nil || strings.HasPrefix(rel, ".."):
		case rel == ".":
			// Output shares the root with sources; skip only hashed artifacts.
			base, _, _ := optimize.ParseBundle(cfg.Output.Bundle)
			out = append(out, base+".*.*")
		default:
			out = append(out, filepath.ToSlash(rel)+"/**")
		}
	}
	return out
}
