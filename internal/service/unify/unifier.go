package unify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"dbunify/internal/ddl"
	"dbunify/internal/domain"
)

// Unifier merges sources into a fresh unified database.
type Unifier struct {
	engine    domain.Engine
	extractor *Extractor
	policy    CollisionPolicy
	logger    *slog.Logger
}

// NewUnifier creates a Unifier. An empty policy means PolicySkip.
func NewUnifier(eng domain.Engine, policy CollisionPolicy, logger *slog.Logger) *Unifier {
	if policy == "" {
		policy = PolicySkip
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Unifier{
		engine:    eng,
		extractor: NewExtractor(eng),
		policy:    policy,
		logger:    logger,
	}
}

// Policy returns the collision policy in effect.
func (u *Unifier) Policy() CollisionPolicy { return u.policy }

// run carries the state of one unification.
type run struct {
	target  domain.Conn
	report  domain.MergeReport
	origins map[string]domain.SourceRef // lower-cased table name -> provenance
	created map[string]string           // lower-cased table name -> creating source name
}

// Unify builds a new unified database from sources, processed in order.
//
// Schema-read failures, table-creation failures and row-level insertion
// failures are isolated and recorded in the returned report. Only failures of
// the target database itself, or a collision under PolicyError, are returned
// as a *domain.MergeError. The caller owns the result and must Close it.
func (u *Unifier) Unify(ctx context.Context, sources []domain.SourceDatabase) (*domain.UnifiedDatabase, error) {
	target, err := u.engine.OpenTarget(ctx)
	if err != nil {
		return nil, &domain.MergeError{Message: "open unified database", Err: err}
	}

	r := &run{
		target:  target,
		report:  domain.MergeReport{Sources: make([]domain.SourceReport, len(sources))},
		origins: make(map[string]domain.SourceRef),
		created: make(map[string]string),
	}

	for i, src := range sources {
		if err := u.mergeSource(ctx, r, src, &r.report.Sources[i]); err != nil {
			_ = target.Close()
			return nil, err
		}
	}

	udb := &domain.UnifiedDatabase{Conn: target, Report: r.report, Origins: r.origins}
	tables, err := u.Snapshot(ctx, udb)
	if err != nil {
		_ = target.Close()
		return nil, err
	}
	udb.Tables = tables

	u.logger.Info("unified database built",
		"sources", len(sources), "tables", len(tables), "rows_failed", r.report.RowsFailed())
	return udb, nil
}

// mergeSource applies one source's tables and rows. Only fatal errors are
// returned.
func (u *Unifier) mergeSource(ctx context.Context, r *run, src domain.SourceDatabase, rep *domain.SourceReport) error {
	rep.Index = src.Index
	rep.Name = src.Name

	tables, err := u.extractor.Extract(ctx, src)
	if err != nil {
		rep.SchemaError = err
		u.logger.Warn("skipping source", "source", src.Name, "index", src.Index, "error", err)
		return nil
	}

	// First declaration wins provenance, independent of the collision outcome.
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		if _, ok := r.origins[key]; !ok {
			r.origins[key] = domain.SourceRef{Index: src.Index, Name: src.Name}
		}
	}

	for _, tbl := range tables {
		physical, err := u.createTable(ctx, r, src, tbl, rep)
		if err != nil {
			var me *domain.MergeError
			if errors.As(err, &me) {
				return err
			}
			rep.TablesFailed++
			u.logger.Warn("create table failed", "source", src.Name, "table", tbl.Name, "error", err)
			continue
		}
		u.copyRows(ctx, r.target, src, tbl, physical, rep)
	}
	return nil
}

// createTable makes sure a table for tbl exists in the target and returns its
// physical name.
func (u *Unifier) createTable(ctx context.Context, r *run, src domain.SourceDatabase, tbl domain.SourceTable, rep *domain.SourceReport) (string, error) {
	exists, err := u.engine.HasTable(ctx, r.target, tbl.Name)
	if err != nil {
		return "", &domain.MergeError{Message: "inspect unified database", Err: err}
	}

	key := strings.ToLower(tbl.Name)
	if !exists {
		if err := u.replay(ctx, r.target, tbl.CreateSQL); err != nil {
			return "", err
		}
		r.created[key] = src.Name
		rep.TablesCreated++
		return tbl.Name, nil
	}

	switch u.policy {
	case PolicyError:
		return "", &domain.MergeError{Message: fmt.Sprintf(
			"table %q of source %q collides with the table from source %q", tbl.Name, src.Name, r.created[key])}
	case PolicyRename:
		name, err := u.freeName(ctx, r.target, tbl.Name, src.Index)
		if err != nil {
			return "", err
		}
		stmt, err := ddl.RenameCreateTable(tbl.CreateSQL, name)
		if err != nil {
			return "", err
		}
		if err := u.replay(ctx, r.target, stmt); err != nil {
			return "", err
		}
		r.created[strings.ToLower(name)] = src.Name
		r.origins[strings.ToLower(name)] = domain.SourceRef{Index: src.Index, Name: src.Name}
		rep.TablesRenamed++
		u.logger.Info("renamed colliding table", "source", src.Name, "table", tbl.Name, "as", name)
		return name, nil
	default:
		rep.TablesReused++
		u.logger.Debug("reusing existing table", "source", src.Name, "table", tbl.Name)
		return tbl.Name, nil
	}
}

func (u *Unifier) replay(ctx context.Context, target domain.Conn, createSQL string) error {
	if strings.TrimSpace(createSQL) == "" {
		return errors.New("no table definition in catalog")
	}
	if _, err := target.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("replay definition: %w", err)
	}
	return nil
}

// freeName returns <name>_<index>, adding _2, _3, ... until no table uses it.
func (u *Unifier) freeName(ctx context.Context, target domain.Conn, name string, index int) (string, error) {
	base := fmt.Sprintf("%s_%d", name, index)
	candidate := base
	for n := 2; ; n++ {
		exists, err := u.engine.HasTable(ctx, target, candidate)
		if err != nil {
			return "", &domain.MergeError{Message: "inspect unified database", Err: err}
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, n)
	}
}

// copyRows inserts every row of tbl into the physical target table. Rows that
// violate a uniqueness constraint are dropped by the insert itself; any other
// row failure is counted and logged without stopping the copy.
func (u *Unifier) copyRows(ctx context.Context, target domain.Conn, src domain.SourceDatabase, tbl domain.SourceTable, physical string, rep *domain.SourceReport) {
	cols := make([]string, len(tbl.Columns))
	for i, c := range tbl.Columns {
		cols[i] = c.Name
	}
	log := u.logger.With("source", src.Name, "table", tbl.Name)

	rows, err := src.Conn.QueryContext(ctx, u.engine.SelectRowsSQL(tbl.Name, cols))
	if err != nil {
		log.Warn("read rows failed", "error", err)
		return
	}
	defer rows.Close() //nolint:errcheck

	insert, err := u.engine.InsertIgnoreSQL(ctx, target, physical, cols)
	if err != nil {
		log.Warn("build insert failed", "error", err)
		return
	}
	stmt, prepErr := target.PrepareContext(ctx, insert)
	if prepErr != nil {
		log.Warn("prepare insert failed", "error", prepErr)
	} else {
		defer stmt.Close() //nolint:errcheck
	}

	var inserted, ignored, failed int64
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if prepErr != nil {
			failed++
			continue
		}
		if err := rows.Scan(ptrs...); err != nil {
			failed++
			log.Debug("scan row failed", "error", err)
			continue
		}
		res, err := stmt.ExecContext(ctx, vals...)
		if err != nil {
			failed++
			log.Debug("insert row failed", "error", err)
			continue
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			ignored++
		} else {
			inserted++
		}
	}
	if err := rows.Err(); err != nil {
		log.Warn("read rows failed", "error", err)
	}

	rep.RowsInserted += inserted
	rep.RowsIgnored += ignored
	rep.RowsFailed += failed
	if failed > 0 {
		log.Warn("rows dropped during import", "failed", failed, "inserted", inserted)
	}
}

// Snapshot reads the unified catalog: every table with its columns, row
// count and provenance. It is also used to refresh the schema after a batch
// that ran DDL.
func (u *Unifier) Snapshot(ctx context.Context, udb *domain.UnifiedDatabase) ([]domain.TableDescriptor, error) {
	catalog, err := u.engine.ListTables(ctx, udb.Conn)
	if err != nil {
		return nil, &domain.MergeError{Message: "read unified catalog", Err: err}
	}

	tables := make([]domain.TableDescriptor, 0, len(catalog))
	for _, ct := range catalog {
		cols, err := u.engine.ListColumns(ctx, udb.Conn, ct.Name)
		if err != nil {
			return nil, &domain.MergeError{Message: "read unified catalog", Err: err}
		}
		var count int64
		if err := udb.Conn.QueryRowContext(ctx, "SELECT count(*) FROM "+ddl.QuoteIdentifier(ct.Name)).Scan(&count); err != nil {
			return nil, &domain.MergeError{Message: fmt.Sprintf("count rows of %q", ct.Name), Err: err}
		}
		origin := udb.Origin(ct.Name)
		tables = append(tables, domain.TableDescriptor{
			ID:          domain.TableID(origin.Index, ct.Name),
			Name:        ct.Name,
			SourceIndex: origin.Index,
			SourceName:  origin.Name,
			Columns:     cols,
			RowCount:    count,
		})
	}
	return tables, nil
}
