package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/merlin/internal/assemble"
	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/discovery"
	"github.com/vk/merlin/internal/graph"
	"github.com/vk/merlin/internal/optimize"
	"github.com/vk/merlin/internal/resolver"
	"github.com/vk/merlin/internal/transform"
)

// Build runs one production build and, when a publish target is configured,
// uploads the written artifact.
func (a *App) Build(ctx context.Context) (*optimize.Artifact, error) {
	ctx = a.withLogger(ctx)
	art, err := a.build(ctx, "")
	if err != nil {
		return nil, err
	}
	if a.publisher != nil {
		if err := a.publisher.Publish(ctx, art); err != nil {
			return nil, err
		}
	}
	return art, nil
}

// build runs discovery, graph, transform, assembly and optimization once.
// Each call rescans the roots, so it reflects the filesystem at call time.
func (a *App) build(ctx context.Context, reloadPath string) (*optimize.Artifact, error) {
	logger := ctxlog.FromContext(ctx)
	cfg := a.config
	start := time.Now()

	svc, err := discovery.New(cfg.Roots, cfg.Extensions, cfg.IgnoreDirs)
	if err != nil {
		return nil, err
	}
	files, err := svc.Enumerate(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover sources: %w", err)
	}

	g, err := graph.Build(ctx, cfg.Entry, files, resolver.New(cfg.Extensions, files))
	if err != nil {
		return nil, err
	}

	mods, err := transform.NewCoordinator(a.transformer, a.pool, a.cache).Transform(ctx, g)
	if err != nil {
		return nil, err
	}
	bundle := assemble.Assemble(mods)

	p := optimize.New(optimize.Options{
		Extensions: cfg.Extensions,
		Title:      cfg.Output.Title,
		ReloadPath: reloadPath,
	}, a.minifier, a.compressor)
	art, err := p.Optimize(ctx, bundle, optimize.OutputSpec{
		Dir:    cfg.Output.Dir,
		Bundle: cfg.Output.Bundle,
		HTML:   cfg.Output.HTML,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("🏁 Build finished.",
		"modules", g.Len(),
		"bundle", art.Bundle.Name,
		"bytes", len(art.Bundle.Content),
		"compressed", len(art.Bundle.Compressed),
		"duration", time.Since(start))
	return art, nil
}
