// Package source holds the set of loaded source databases.
package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"dbunify/internal/domain"
)

// Registry holds loaded source databases in insertion order. Each source
// keeps its raw image so the set can be persisted and reopened.
type Registry struct {
	engine domain.Engine
	logger *slog.Logger

	mu      sync.RWMutex
	sources []domain.SourceDatabase
	images  []domain.SourceImage
}

// NewRegistry creates an empty registry whose sources are opened by eng.
func NewRegistry(eng domain.Engine, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{engine: eng, logger: logger}
}

// Add opens raw as a database and appends it. An image that cannot be opened
// yields a *domain.LoadError and leaves the registry unchanged.
func (r *Registry) Add(ctx context.Context, name string, raw []byte) (domain.SourceDatabase, error) {
	added, err := r.AddAll(ctx, []domain.SourceImage{{Name: name, Data: raw}})
	if err != nil {
		return domain.SourceDatabase{}, err
	}
	return added[0], nil
}

// AddAll opens every image and appends them in order. If any image fails to
// load, the handles opened so far are closed and nothing is added.
func (r *Registry) AddAll(ctx context.Context, images []domain.SourceImage) ([]domain.SourceDatabase, error) {
	conns := make([]domain.Conn, 0, len(images))
	for _, img := range images {
		conn, err := r.engine.OpenImage(ctx, img.Name, img.Data)
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}
			return nil, err
		}
		conns = append(conns, conn)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := make([]domain.SourceDatabase, len(images))
	for i, img := range images {
		src := domain.SourceDatabase{
			Index: len(r.sources),
			Name:  img.Name,
			Size:  len(img.Data),
			Conn:  conns[i],
		}
		r.sources = append(r.sources, src)
		r.images = append(r.images, img)
		added[i] = src
		r.logger.Info("source added", "index", src.Index, "name", src.Name, "bytes", src.Size)
	}
	return added, nil
}

// RemoveAll closes and drops every source.
func (r *Registry) RemoveAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, src := range r.sources {
		if err := src.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source %q: %w", src.Name, err))
		}
	}
	if n := len(r.sources); n > 0 {
		r.logger.Info("sources removed", "count", n)
	}
	r.sources = nil
	r.images = nil
	return errors.Join(errs...)
}

// Truncate closes and drops every source after the first n. It undoes an
// AddAll whose sources could not be unified.
func (r *Registry) Truncate(n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n < 0 {
		n = 0
	}
	if n >= len(r.sources) {
		return nil
	}
	var errs []error
	for _, src := range r.sources[n:] {
		if err := src.Conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close source %q: %w", src.Name, err))
		}
	}
	r.logger.Info("sources rolled back", "count", len(r.sources)-n)
	r.sources = r.sources[:n:n]
	r.images = r.images[:n:n]
	return errors.Join(errs...)
}

// List returns the sources in insertion order.
func (r *Registry) List() []domain.SourceDatabase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SourceDatabase(nil), r.sources...)
}

// Images returns the raw images in insertion order.
func (r *Registry) Images() []domain.SourceImage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.SourceImage(nil), r.images...)
}

// Len returns the number of loaded sources.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}
