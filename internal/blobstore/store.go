package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"golang.org/x/sync/errgroup"

	"dbunify/internal/domain"
)

// ErrManifestMismatch means the manifest and the stored objects disagree.
var ErrManifestMismatch = errors.New("source manifest does not match stored objects")

const (
	manifestKey     = "manifest.json"
	manifestVersion = 1
	fetchLimit      = 4
)

type manifest struct {
	Version int             `json:"version"`
	SavedAt time.Time       `json:"saved_at"`
	Sources []manifestEntry `json:"sources"`
}

type manifestEntry struct {
	Name   string `json:"name"`
	Key    string `json:"key"`
	Size   int    `json:"size"`
	SHA256 string `json:"sha256"`
}

var _ domain.SourceStore = (*Store)(nil)

// Store persists an ordered set of source images over an ObjectStore. Images
// are stored content-addressed; a JSON manifest records names and order.
type Store struct {
	objects ObjectStore
	prefix  string
	logger  *slog.Logger
}

// NewStore creates a Store that keeps its keys under prefix.
func NewStore(objects ObjectStore, prefix string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{objects: objects, prefix: prefix, logger: logger}
}

func (s *Store) key(parts ...string) string {
	return path.Join(append([]string{s.prefix}, parts...)...)
}

// Save replaces the stored set with sources. Objects are written before the
// manifest, so an interrupted save leaves the previous set readable.
func (s *Store) Save(ctx context.Context, sources []domain.SourceImage) error {
	prev, err := s.readManifest(ctx)
	switch {
	case err == nil, errors.Is(err, ErrObjectNotFound):
	case errors.Is(err, ErrManifestMismatch):
		s.logger.Warn("replacing unreadable manifest", "error", err)
	default:
		return err
	}

	m := manifest{Version: manifestVersion, SavedAt: time.Now().UTC()}
	for _, src := range sources {
		sum := sha256.Sum256(src.Data)
		digest := hex.EncodeToString(sum[:])
		m.Sources = append(m.Sources, manifestEntry{
			Name:   src.Name,
			Key:    s.key("sources", digest+".db"),
			Size:   len(src.Data),
			SHA256: digest,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, src := range sources {
		key, data := m.Sources[i].Key, src.Data
		g.Go(func() error {
			return s.objects.Put(gctx, key, data)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("save sources: %w", err)
	}

	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := s.objects.Put(ctx, s.key(manifestKey), raw); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}

	if prev != nil {
		keep := make(map[string]bool, len(m.Sources))
		for _, e := range m.Sources {
			keep[e.Key] = true
		}
		for _, e := range prev.Sources {
			if keep[e.Key] {
				continue
			}
			if err := s.objects.Delete(ctx, e.Key); err != nil {
				s.logger.Warn("remove stale source object", "key", e.Key, "error", err)
			}
		}
	}

	s.logger.Info("sources saved", "count", len(sources))
	return nil
}

// Load returns the stored set in saved order. Nothing stored yields an empty
// slice. Missing objects, or objects whose size or checksum differ from the
// manifest, fail with ErrManifestMismatch.
func (s *Store) Load(ctx context.Context) ([]domain.SourceImage, error) {
	m, err := s.readManifest(ctx)
	if errors.Is(err, ErrObjectNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	images := make([]domain.SourceImage, len(m.Sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchLimit)
	for i, e := range m.Sources {
		g.Go(func() error {
			data, err := s.objects.Get(gctx, e.Key)
			if errors.Is(err, ErrObjectNotFound) {
				return fmt.Errorf("%w: source %q: object %s is missing", ErrManifestMismatch, e.Name, e.Key)
			}
			if err != nil {
				return err
			}
			if len(data) != e.Size {
				return fmt.Errorf("%w: source %q: size %d, expected %d", ErrManifestMismatch, e.Name, len(data), e.Size)
			}
			sum := sha256.Sum256(data)
			if hex.EncodeToString(sum[:]) != e.SHA256 {
				return fmt.Errorf("%w: source %q: checksum differs", ErrManifestMismatch, e.Name)
			}
			images[i] = domain.SourceImage{Name: e.Name, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load sources: %w", err)
	}

	s.logger.Info("sources loaded", "count", len(images))
	return images, nil
}

// Clear removes the manifest and every object it references. An unreadable
// manifest is removed on its own.
func (s *Store) Clear(ctx context.Context) error {
	m, err := s.readManifest(ctx)
	if errors.Is(err, ErrObjectNotFound) {
		return nil
	}
	if errors.Is(err, ErrManifestMismatch) {
		// Objects it referenced can no longer be enumerated; dropping the
		// manifest is enough for Load to see an empty store.
		s.logger.Warn("clearing unreadable manifest", "error", err)
		if err := s.objects.Delete(ctx, s.key(manifestKey)); err != nil {
			return fmt.Errorf("clear manifest: %w", err)
		}
		return nil
	}
	if err != nil {
		return err
	}

	// Manifest first: a partial clear must not leave a manifest pointing at
	// deleted objects.
	if err := s.objects.Delete(ctx, s.key(manifestKey)); err != nil {
		return fmt.Errorf("clear manifest: %w", err)
	}
	var errs []error
	for _, e := range m.Sources {
		if err := s.objects.Delete(ctx, e.Key); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear sources: %w", err)
	}
	s.logger.Info("stored sources cleared", "count", len(m.Sources))
	return nil
}

func (s *Store) readManifest(ctx context.Context) (*manifest, error) {
	raw, err := s.objects.Get(ctx, s.key(manifestKey))
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", ErrManifestMismatch, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: unsupported manifest version %d", ErrManifestMismatch, m.Version)
	}
	return &m, nil
}
