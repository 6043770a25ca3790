package workspace

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/vanderheijden86/peektree/pkg/config"
	"github.com/vanderheijden86/peektree/pkg/loader"

	"golang.org/x/sync/errgroup"
)

// maxParallel bounds concurrent loads (file descriptors, SQLite handles).
const maxParallel = 16

// Loader loads many hierarchies concurrently.
type Loader struct {
	logger *log.Logger
}

// NewLoader creates a loader that is silent by default, so robot output on
// stdout stays clean.
func NewLoader() *Loader {
	return &Loader{logger: log.New(io.Discard, "", 0)}
}

// SetLogger sets a custom logger for per-hierarchy failures.
func (l *Loader) SetLogger(logger *log.Logger) {
	l.logger = logger
}

// LoadAll loads every hierarchy in parallel. Results keep the input order.
// Individual failures are reported in their result and never abort the run;
// the returned error is only set when nothing was given to load.
func (l *Loader) LoadAll(ctx context.Context, hierarchies []config.Hierarchy) ([]LoadResult, error) {
	if len(hierarchies) == 0 {
		return nil, fmt.Errorf("no hierarchies to load")
	}

	results := make([]LoadResult, len(hierarchies))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, h := range hierarchies {
		g.Go(func() error {
			path := h.ResolvedPath()
			results[i] = LoadResult{Name: h.Name, Path: path}

			select {
			case <-ctx.Done():
				results[i].Error = ctx.Err()
				results[i].Message = ctx.Err().Error()
				return nil
			default:
			}

			t, err := loader.Load(path)
			if err != nil {
				results[i].Error = err
				results[i].Message = err.Error()
				l.logger.Printf("Failed to load hierarchy %s: %v", h.Name, err)
				return nil
			}
			results[i].Tree = t
			results[i].Stats = t.Stats()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	l.logger.Printf("Finished parallel loading of %d hierarchies", len(hierarchies))
	return results, nil
}

// LoadAll is a convenience wrapper around a silent Loader.
func LoadAll(ctx context.Context, hierarchies []config.Hierarchy) ([]LoadResult, error) {
	return NewLoader().LoadAll(ctx, hierarchies)
}
