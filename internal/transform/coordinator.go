package transform

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/cache"
	"github.com/vk/merlin/internal/ctxlog"
	"github.com/vk/merlin/internal/executor"
	"github.com/vk/merlin/internal/graph"
)

// Coordinator fans module transforms out over a worker pool and rewrites each
// result against its own module's name to id table.
type Coordinator struct {
	transformer Transformer
	pool        *executor.Pool
	cache       Cache
	fingerprint string
}

// NewCoordinator creates a coordinator. c may be nil to disable caching.
func NewCoordinator(t Transformer, pool *executor.Pool, c Cache) *Coordinator {
	co := &Coordinator{transformer: t, pool: pool, cache: c}
	if fp, ok := t.(Fingerprinter); ok {
		co.fingerprint = fp.Fingerprint()
	}
	return co
}

// Transform returns every module of g transformed and rewritten, in reverse
// discovery order. A failing module aborts the whole batch with a transform
// error naming its path; failures are not retried.
func (c *Coordinator) Transform(ctx context.Context, g *graph.Graph) ([]Module, error) {
	logger := ctxlog.FromContext(ctx)

	order := g.Modules()
	slices.Reverse(order)
	out := make([]Module, len(order))
	var hits atomic.Int64

	err := c.pool.Map(ctx, len(order), func(ctx context.Context, i int) error {
		m := order[i]
		ctx = ctxlog.With(ctx, "module", m.ID, "path", m.Path)
		code, cached, err := c.transformOne(ctx, m)
		if err != nil {
			return builderr.Transform(m.Path, err)
		}
		if cached {
			hits.Add(1)
		}
		out[i] = Module{ID: m.ID, Path: m.Path, Source: Rewrite(code, g.IDs(m))}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Modules transformed.", "count", len(out), "cacheHits", hits.Load())
	return out, nil
}

func (c *Coordinator) transformOne(ctx context.Context, m *graph.ModuleRecord) (string, bool, error) {
	if c.cache == nil {
		code, err := c.transformer.Transform(ctx, m.Path, m.RawSource)
		return code, false, err
	}
	// esbuild derives helper names from the source path, so the path is part
	// of the key.
	key := cache.Key(c.fingerprint+"\x00"+m.Path, m.RawSource)
	if code, ok := c.cache.Get(key); ok {
		return code, true, nil
	}
	code, err := c.transformer.Transform(ctx, m.Path, m.RawSource)
	if err != nil {
		return "", false, err
	}
	c.cache.Add(key, code)
	return code, false, nil
}
