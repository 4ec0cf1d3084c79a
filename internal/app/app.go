// Package app wires the unification pipeline into a single session: sources
// are registered, unified, queried, recorded and exported through one value.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"dbunify/internal/domain"
	"dbunify/internal/service/export"
	"dbunify/internal/service/history"
	"dbunify/internal/service/query"
	"dbunify/internal/service/source"
	"dbunify/internal/service/unify"
	"dbunify/internal/sqltext"
)

// ErrGeneratorDisabled is returned by Ask when no text generator is configured.
var ErrGeneratorDisabled = errors.New("natural-language queries are not configured")

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session is closed")

// Deps holds the collaborators a Session is built from. Engine is required;
// every other field is optional.
type Deps struct {
	Engine          domain.Engine
	Policy          unify.CollisionPolicy
	History         domain.QueryHistoryRepository // nil keeps history in memory
	Sources         domain.SourceStore            // nil disables persistence
	Generator       domain.SQLGenerator           // nil disables Ask
	ExportTableName string
	Logger          *slog.Logger
}

// Session owns a source registry and the unified database built from it.
// Rebuilds and query execution are serialized by one mutex, so a batch never
// observes a half-built database.
type Session struct {
	registry  *source.Registry
	unifier   *unify.Unifier
	executor  *query.Executor
	ledger    *history.Ledger
	exporter  *export.Exporter
	store     domain.SourceStore
	generator domain.SQLGenerator
	logger    *slog.Logger

	mu      sync.Mutex
	unified *domain.UnifiedDatabase
	closers []io.Closer
}

// New wires a Session from deps, restores persisted sources and builds the
// first unified database. A stored set that cannot be restored is discarded
// and the session starts empty; only a failure to build an empty unified
// database is returned.
func New(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Engine == nil {
		return nil, domain.ErrValidation("engine is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		registry:  source.NewRegistry(deps.Engine, logger.With("component", "registry")),
		unifier:   unify.NewUnifier(deps.Engine, deps.Policy, logger.With("component", "unifier")),
		executor:  query.NewExecutor(logger.With("component", "executor")),
		ledger:    history.NewLedger(deps.History, logger.With("component", "history")),
		exporter:  export.NewExporter(deps.ExportTableName),
		store:     deps.Sources,
		generator: deps.Generator,
		logger:    logger,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.restore(ctx); err != nil {
		_ = s.registry.RemoveAll()
		return nil, err
	}
	return s, nil
}

// rebuild unifies the current sources and swaps the result in. The previous
// unified database is closed only after the new one is ready. Callers hold mu.
func (s *Session) rebuild(ctx context.Context) error {
	udb, err := s.unifier.Unify(ctx, s.registry.List())
	if err != nil {
		return err
	}
	old := s.unified
	s.unified = udb
	if err := old.Close(); err != nil {
		s.logger.Warn("close previous unified database", "error", err)
	}
	s.logger.Info("unified database ready", "sources", s.registry.Len(), "tables", len(udb.Tables))
	return nil
}

// AddSources loads a batch of uploaded images and rebuilds the unified
// database. If any image fails to load, or the batch cannot be unified, none
// of it is added and the previous unified database stays current. The set is
// persisted only after a successful rebuild.
func (s *Session) AddSources(ctx context.Context, images []domain.SourceImage) ([]domain.SourceDatabase, error) {
	if len(images) == 0 {
		return nil, domain.ErrValidation("no sources to add")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unified == nil {
		return nil, ErrClosed
	}

	before := s.registry.Len()
	added, err := s.registry.AddAll(ctx, images)
	if err != nil {
		return nil, err
	}
	if err := s.rebuild(ctx); err != nil {
		if terr := s.registry.Truncate(before); terr != nil {
			s.logger.Warn("roll back sources failed", "error", terr)
		}
		return nil, err
	}
	if s.store != nil {
		if err := s.store.Save(ctx, s.registry.Images()); err != nil {
			s.logger.Warn("persist sources failed", "error", err)
		}
	}
	return added, nil
}

// Reset drops every source, clears the blob store and rebuilds an empty
// unified database. The query history is kept; see ClearHistory.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unified == nil {
		return ErrClosed
	}

	var errs []error
	if err := s.registry.RemoveAll(); err != nil {
		errs = append(errs, err)
	}
	if s.store != nil {
		if err := s.store.Clear(ctx); err != nil {
			errs = append(errs, fmt.Errorf("clear stored sources: %w", err))
		}
	}
	if err := s.rebuild(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Schema returns the current schema snapshot.
func (s *Session) Schema() []domain.TableDescriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unified == nil {
		return nil
	}
	return append([]domain.TableDescriptor(nil), s.unified.Tables...)
}

// Report returns the merge report of the last rebuild.
func (s *Session) Report() domain.MergeReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unified == nil {
		return domain.MergeReport{}
	}
	return s.unified.Report
}

// Sources returns the loaded sources in registration order.
func (s *Session) Sources() []domain.SourceDatabase {
	return s.registry.List()
}

// Run executes a batch against the unified database and records it in the
// history, successful or not. Batches that may change the catalog or row
// counts refresh the schema snapshot.
func (s *Session) Run(ctx context.Context, sqlText string) (*domain.ResultSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unified == nil {
		return nil, ErrClosed
	}

	start := time.Now()
	rs, err := s.executor.Execute(ctx, s.unified.Conn, sqlText)
	elapsed := time.Since(start)

	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		if _, herr := s.ledger.Record(ctx, sqlText, rs.RowCount(), elapsed, err); herr != nil {
			s.logger.Warn("record query history failed", "error", herr)
		}
	}
	if mutates(sqlText) {
		s.refreshSnapshot(ctx)
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// mutates reports whether any statement of the batch is not a plain query.
func mutates(sqlText string) bool {
	for _, stmt := range sqltext.Split(sqlText) {
		if sqltext.Classify(stmt) != sqltext.StmtSelect {
			return true
		}
	}
	return false
}

func (s *Session) refreshSnapshot(ctx context.Context) {
	tables, err := s.unifier.Snapshot(ctx, s.unified)
	if err != nil {
		s.logger.Warn("refresh schema snapshot failed", "error", err)
		return
	}
	s.unified.Tables = tables
}

// Ask turns a natural-language prompt into SQL for the current schema. The
// result is cleaned but not executed.
func (s *Session) Ask(ctx context.Context, prompt string) (string, error) {
	if s.generator == nil {
		return "", ErrGeneratorDisabled
	}
	sql, err := s.generator.GenerateSQL(ctx, prompt, s.Schema())
	if err != nil {
		return "", err
	}
	sql = sqltext.CleanGenerated(sql)
	if sql == "" {
		return "", errors.New("generated SQL is empty")
	}
	return sql, nil
}

// Export renders rs in format.
func (s *Session) Export(rs *domain.ResultSet, format export.Format) (string, error) {
	return s.exporter.Export(rs, format)
}

// History lists recorded batches, newest first.
func (s *Session) History(ctx context.Context, page domain.PageRequest) ([]domain.QueryRecord, int64, error) {
	return s.ledger.List(ctx, page)
}

// ClearHistory empties the history.
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.ledger.Clear(ctx)
}

// Close releases the unified database, every source and any resources
// acquired by Open.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.unified.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close unified database: %w", err))
	}
	s.unified = nil
	if err := s.registry.RemoveAll(); err != nil {
		errs = append(errs, err)
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
