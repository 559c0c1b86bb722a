package plan

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/komposer/komposer/internal/media"
	"github.com/komposer/komposer/internal/store"
)

// Catalog resolves logical source references to probed Source records.
// Resolutions are memoized for the lifetime of one planning request; a
// Catalog must not be shared across concurrent requests.
type Catalog struct {
	files  store.FileStore
	engine media.Engine
	logger *slog.Logger
	cache  map[string]*Source
}

func NewCatalog(files store.FileStore, engine media.Engine, logger *slog.Logger) *Catalog {
	return &Catalog{
		files:  files,
		engine: engine,
		logger: logger,
		cache:  make(map[string]*Source),
	}
}

// Resolve maps one source reference to a Source, probing metadata on first
// use. A missing file or failed probe aborts the plan build; probing is
// deterministic, so there is no retry.
func (c *Catalog) Resolve(ctx context.Context, ref string) (*Source, error) {
	if src, ok := c.cache[ref]; ok {
		return src, nil
	}

	file, err := c.files.ResolveByName(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("file store lookup for %q: %w", ref, err)
	}
	if file == nil {
		return nil, planErr(ErrSourceNotFound, "", "no registered file named %q", ref)
	}

	probe, err := c.engine.Probe(ctx, file.Path)
	if err != nil {
		return nil, planErr(ErrProbeFailed, "", "probing %q: %v", ref, err)
	}

	src := &Source{
		ID:              file.ID,
		Name:            ref,
		Path:            file.Path,
		MediaType:       probe.MediaType,
		DurationSeconds: probe.DurationSeconds,
		Width:           probe.Width,
		Height:          probe.Height,
	}
	c.cache[ref] = src

	if c.logger != nil {
		c.logger.Debug("resolved source", "ref", ref, "type", src.MediaType, "duration", src.DurationSeconds)
	}
	return src, nil
}

// Resolved returns all sources resolved so far. Order is not guaranteed;
// callers sort if they need stable output.
func (c *Catalog) Resolved() []Source {
	sources := make([]Source, 0, len(c.cache))
	for _, s := range c.cache {
		sources = append(sources, *s)
	}
	return sources
}
