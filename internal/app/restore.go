package app

import (
	"context"
	"errors"
	"fmt"

	"dbunify/internal/blobstore"
)

// restore reloads the images persisted by a previous session and builds the
// first unified database. A stored set that is corrupt, no longer opens or no
// longer unifies is dropped from the registry and the store, and the session
// starts empty. Callers hold mu.
func (s *Session) restore(ctx context.Context) error {
	err := s.restoreSources(ctx)
	if err == nil {
		err = s.rebuild(ctx)
		if err == nil {
			return nil
		}
		err = fmt.Errorf("unify stored sources: %w", err)
	}

	var transient *loadError
	if errors.As(err, &transient) {
		s.logger.Warn("restore sources failed; starting empty", "error", err)
	} else {
		s.logger.Warn("discarding stored sources", "error", err)
		if rerr := s.registry.RemoveAll(); rerr != nil {
			s.logger.Warn("close restored sources", "error", rerr)
		}
		if s.store != nil {
			if cerr := s.store.Clear(ctx); cerr != nil {
				s.logger.Warn("clear stored sources failed", "error", cerr)
			}
		}
	}
	return s.rebuild(ctx)
}

// loadError marks a store read failure that says nothing about the stored
// set itself, such as an unreachable bucket. The set is kept for next time.
type loadError struct{ err error }

func (e *loadError) Error() string { return "load stored sources: " + e.err.Error() }
func (e *loadError) Unwrap() error { return e.err }

// restoreSources opens the stored images. Callers hold mu.
func (s *Session) restoreSources(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	images, err := s.store.Load(ctx)
	if err != nil {
		if errors.Is(err, blobstore.ErrManifestMismatch) {
			return fmt.Errorf("load stored sources: %w", err)
		}
		return &loadError{err: err}
	}
	if len(images) == 0 {
		return nil
	}
	if _, err := s.registry.AddAll(ctx, images); err != nil {
		return fmt.Errorf("open stored sources: %w", err)
	}
	s.logger.Info("restored sources", "count", len(images))
	return nil
}
