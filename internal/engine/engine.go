package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/go-multierror"

	"github.com/lazypower/mnemo/internal/embed"
	"github.com/lazypower/mnemo/internal/store"
)

// ErrInvalidArgument marks caller errors such as missing content or an
// unknown relation type.
var ErrInvalidArgument = errors.New("invalid argument")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// Options holds the tunables the engine applies when callers leave a value
// unset.
type Options struct {
	SearchLimit     int
	SearchThreshold float64
	ListLimit       int
	GraphDepth      int
	MaxGraphDepth   int
}

// DefaultOptions returns the stock defaults.
func DefaultOptions() Options {
	return Options{
		SearchLimit:     5,
		SearchThreshold: 0.7,
		ListLimit:       50,
		GraphDepth:      2,
		MaxGraphDepth:   10,
	}
}

// Engine orchestrates embedding, storage, similarity search and the relation
// graph.
type Engine struct {
	DB       *store.DB
	Embedder embed.Embedder
	Log      *log.Logger
	Opts     Options
}

// New creates a new Engine.
func New(db *store.DB, embedder embed.Embedder, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		DB:       db,
		Embedder: embedder,
		Log:      logger,
		Opts:     DefaultOptions(),
	}
}

func (e *Engine) vectorize(ctx context.Context, text string) (store.Vector, error) {
	vec, err := e.Embedder.Embed(ctx, text)
	if err != nil {
		return store.Vector{}, fmt.Errorf("embed: %w", err)
	}
	return store.Vector{Embedding: vec, Model: e.Embedder.Model()}, nil
}

// Reembed regenerates vectors for memories whose stored vector is missing or
// was produced by a different model or dimension count. Failures are logged
// and skipped.
func (e *Engine) Reembed(ctx context.Context) (int, error) {
	stale, err := e.DB.StaleMemories(ctx, e.Embedder.Model(), e.Embedder.Dimensions())
	if err != nil {
		return 0, err
	}

	embedded := 0
	for _, m := range stale {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}
		v, err := e.vectorize(ctx, m.Content)
		if err != nil {
			e.Log.Warn("reembed failed", "id", m.ID, "err", err)
			continue
		}
		if err := e.DB.SaveVector(ctx, m.ID, v); err != nil {
			e.Log.Warn("reembed failed", "id", m.ID, "err", err)
			continue
		}
		embedded++
	}
	if embedded > 0 {
		e.Log.Info("reembedded memories", "count", embedded, "model", e.Embedder.Model())
	}
	return embedded, nil
}

// Close releases the embedder (when it holds resources) and the database.
func (e *Engine) Close() error {
	var result *multierror.Error
	if c, ok := e.Embedder.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close embedder: %w", err))
		}
	}
	if err := e.DB.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("close db: %w", err))
	}
	return result.ErrorOrNil()
}
