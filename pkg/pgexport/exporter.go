package pgexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/elastic/go-ingest/pkg/ingest"
)

// Outcome classifies a COPYExporter.Export result.
type Outcome int

const (
	// OutcomeSuccess means every row in the batch was staged and
	// inserted (duplicates silently skipped by ON CONFLICT DO NOTHING).
	OutcomeSuccess Outcome = iota
	// OutcomeConstraintViolation means the batch violated a constraint
	// other than the conflict target itself (e.g. a NOT NULL or check
	// constraint) and is permanently rejected.
	OutcomeConstraintViolation
	// OutcomeConnectionError means the batch failed for a transient,
	// connection-level reason and should be retried as-is.
	OutcomeConnectionError
)

// Response is the value ingest.Channel passes to pgexport's Classifier.
type Response struct {
	Outcome  Outcome
	Inserted int64
}

// RowMapper converts one event into a row of column values, positional
// and ordered to match Config.Columns.
type RowMapper[E any] func(e E) []any

// Config describes the staging table, target table, and row shape for
// one COPYExporter.
type Config[E any] struct {
	Pool *pgxpool.Pool

	// StagingTable is a bare identifier (no schema) used for a session-
	// scoped ON COMMIT DROP temp table.
	StagingTable string
	// StagingDDL is the column definition list for the temp table, e.g.
	// "time TIMESTAMPTZ NOT NULL, target_id UUID NOT NULL".
	StagingDDL string
	// Columns are the staging table's column names, in the order Mapper
	// produces values.
	Columns []string

	// InsertSelect is the full "INSERT INTO target (...) SELECT ... FROM
	// <StagingTable> ... ON CONFLICT (...) DO NOTHING" statement run
	// after the COPY. Left as a caller-supplied statement, rather than
	// generated, because real target inserts commonly join staged rows
	// against other tables to compute derived columns.
	InsertSelect string

	Mapper RowMapper[E]
}

// COPYExporter implements ingest.Exporter[E, Response] via the
// stage-then-insert pattern.
type COPYExporter[E any] struct {
	cfg    Config[E]
	logger *slog.Logger
}

// NewCOPYExporter builds a COPYExporter from cfg.
func NewCOPYExporter[E any](cfg Config[E], logger *slog.Logger) *COPYExporter[E] {
	if logger == nil {
		logger = slog.Default()
	}
	return &COPYExporter[E]{cfg: cfg, logger: logger.With("component", "pg_copy_exporter")}
}

var _ ingest.Exporter[struct{}, Response] = (*COPYExporter[struct{}])(nil)

// Export runs the whole stage-copy-insert sequence in one transaction.
// Constraint violations and connection failures are reported through
// Response rather than as an error, since the Classifier can act on them;
// anything else (a malformed InsertSelect, a dropped connection pool) is
// returned as a fatal error.
func (x *COPYExporter[E]) Export(ctx context.Context, batch ingest.Batch[E]) (Response, error) {
	tx, err := x.cfg.Pool.Begin(ctx)
	if err != nil {
		if resp, ok := classifyPgError(err); ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ddl := fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", x.cfg.StagingTable, x.cfg.StagingDDL)
	if _, err := tx.Exec(ctx, ddl); err != nil {
		if resp, ok := classifyPgError(err); ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("create staging table: %w", err)
	}

	rows := make([][]any, len(batch.Items))
	for i, e := range batch.Items {
		rows[i] = x.cfg.Mapper(e)
	}

	if _, err := tx.CopyFrom(ctx, pgx.Identifier{x.cfg.StagingTable}, x.cfg.Columns, pgx.CopyFromRows(rows)); err != nil {
		if resp, ok := classifyPgError(err); ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("copy into staging table: %w", err)
	}

	tag, err := tx.Exec(ctx, x.cfg.InsertSelect)
	if err != nil {
		if resp, ok := classifyPgError(err); ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("insert from staging table: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		if resp, ok := classifyPgError(err); ok {
			return resp, nil
		}
		return Response{}, fmt.Errorf("commit: %w", err)
	}

	return Response{Outcome: OutcomeSuccess, Inserted: tag.RowsAffected()}, nil
}

// classifyPgError maps a driver error onto a non-fatal Response when it
// represents a constraint violation or a transient connection problem,
// reporting ok=false for anything it doesn't recognize.
func classifyPgError(err error) (Response, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) == 5 {
		switch pgErr.Code[:2] {
		case "23": // integrity_constraint_violation
			return Response{Outcome: OutcomeConstraintViolation}, true
		case "08": // connection_exception
			return Response{Outcome: OutcomeConnectionError}, true
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Response{Outcome: OutcomeConnectionError}, true
	}

	return Response{}, false
}
