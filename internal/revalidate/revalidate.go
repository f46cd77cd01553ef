// Package revalidate invalidates cached rendered views by path.
package revalidate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/invoicer/internal/cache"
)

var tracer = otel.Tracer("github.com/Additional-Code/invoicer/revalidate")

const (
	keyPrefix = "page:"
	genSuffix = ":gen"
)

// Module provides the cache-backed path invalidator to Fx.
var Module = fx.Provide(New)

// Key returns the cache key a view rendered at path is stored under.
func Key(path string) string {
	if path != "/" {
		path = strings.TrimRight(path, "/")
	}
	return keyPrefix + path
}

// GenerationKey holds the version counter of the view at path.
func GenerationKey(path string) string {
	return Key(path) + genSuffix
}

func versioned(path string, gen int64) string {
	return Key(path) + "@" + strconv.FormatInt(gen, 10)
}

// Paths versions cached views in a cache.Store. A view is written under the
// key of the generation current when its read began, and each invalidation
// moves the path to a new generation, so a read that raced a mutation can
// never publish its result to later readers.
type Paths struct {
	store  cache.Store
	logger *zap.Logger
}

// New builds a Paths invalidator over store.
func New(store cache.Store, logger *zap.Logger) *Paths {
	return &Paths{store: store, logger: logger}
}

// ViewKey returns the cache key for the current generation of the view at
// path. Read it once, before loading the data the view is built from.
func (p *Paths) ViewKey(ctx context.Context, path string) (string, error) {
	raw, err := p.store.Get(ctx, GenerationKey(path))
	if errors.Is(err, cache.ErrCacheMiss) {
		return versioned(path, 0), nil
	}
	if err != nil {
		return "", err
	}
	gen, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return "", fmt.Errorf("generation of %s: %w", path, err)
	}
	return versioned(path, gen), nil
}

// Invalidate marks the view at path stale so the next read regenerates it.
func (p *Paths) Invalidate(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Revalidate.Invalidate", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	gen, err := p.store.Incr(ctx, GenerationKey(path))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cache generation bump failed")
		return err
	}
	span.SetAttributes(attribute.Int64("generation", gen))

	// The superseded entry is unreachable from here on.
	if err := p.store.Delete(ctx, versioned(path, gen-1)); err != nil && p.logger != nil {
		p.logger.Warn("drop superseded view", zap.String("path", path), zap.Error(err))
	}
	if p.logger != nil {
		p.logger.Debug("path revalidated", zap.String("path", path), zap.Int64("generation", gen))
	}
	return nil
}
