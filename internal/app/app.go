package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/merlin/internal/cache"
	"github.com/vk/merlin/internal/config"
	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/executor"
	"github.com/vk/merlin/internal/optimize"
	"github.com/vk/merlin/internal/publish"
	"github.com/vk/merlin/internal/transform"
)

// Options are the process-level settings that do not come from merlin.hcl.
type Options struct {
	LogFormat string
	LogLevel  string
	// Publisher overrides the publisher built from the publish block.
	Publisher *publish.Publisher
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	config *config.Model

	pool        *executor.Pool
	cache       *cache.Transforms
	transformer *transform.Esbuild
	minifier    optimize.Minifier
	compressor  optimize.Compressor
	publisher   *publish.Publisher
}

// New validates cfg and builds the long-lived collaborators. It returns a
// configuration error for anything the pipeline would reject later.
func New(outW io.Writer, cfg *config.Model, opts Options) (*App, error) {
	logger := newLogger(opts.LogLevel, opts.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, _, err := optimize.ParseBundle(cfg.Output.Bundle); err != nil {
		return nil, err
	}

	tr, err := transform.NewEsbuild(cfg.Transform.Target)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.Transform.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create transform cache: %w", err)
	}

	var m optimize.Minifier = optimize.Esbuild{}
	if !cfg.Transform.Minify {
		m = optimize.Passthrough{}
	}

	pub := opts.Publisher
	if pub == nil && cfg.Publish != nil {
		pub, err = publish.New(publish.Config{
			Endpoint:  cfg.Publish.Endpoint,
			Bucket:    cfg.Publish.Bucket,
			Prefix:    cfg.Publish.Prefix,
			AccessKey: cfg.Publish.AccessKey,
			SecretKey: cfg.Publish.SecretKey,
			Region:    cfg.Publish.Region,
			UseSSL:    cfg.Publish.UseSSL,
		})
		if err != nil {
			return nil, err
		}
	}

	a := &App{
		outW:        outW,
		logger:      logger,
		config:      cfg,
		pool:        executor.New(cfg.Workers),
		cache:       c,
		transformer: tr,
		minifier:    m,
		compressor:  optimize.NewBrotli(cfg.Transform.BrotliLevel),
		publisher:   pub,
	}
	logger.Debug("App initialized.", "config", cfg.String(), "workers", a.pool.Workers())
	return a, nil
}

// Config returns the validated configuration.
func (a *App) Config() *config.Model { return a.config }

// Logger returns the app's logger.
func (a *App) Logger() *slog.Logger { return a.logger }

func (a *App) withLogger(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}
