package partition

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
	"github.com/rzpsarthak13/table-partitioner/internal/plan"
	"github.com/rzpsarthak13/table-partitioner/internal/schema"
)

// MigratorConfig contains configuration for the migrator.
type MigratorConfig struct {
	// BatchSize is the number of rows moved per transaction.
	BatchSize int

	// AbortOnBatchFailure stops the window, and the run, on the first
	// failed batch instead of logging it and moving on.
	AbortOnBatchFailure bool

	// BatchesPerSecond limits how fast batches are flushed. Zero disables
	// throttling.
	BatchesPerSecond float64
}

// DefaultMigratorConfig returns the defaults: 100-row batches, continue
// after a failed batch, no throttling.
func DefaultMigratorConfig() MigratorConfig {
	return MigratorConfig{
		BatchSize: DefaultBatchSize,
	}
}

// WindowResult describes how one window was processed.
type WindowResult struct {
	Window plan.Window

	// Created reports whether the partition table was created by this run.
	Created bool

	// Cursor is the lower bound migration resumed from.
	Cursor time.Time

	// Pending is the source row count observed before streaming.
	Pending int64

	// Moved counts rows in committed batches, Inserted the rows the
	// partition table actually accepted.
	Moved    int64
	Inserted int64

	Batches       int
	FailedBatches int

	Err error
}

// Migrator moves the rows of one window at a time from the source table
// into its partition table.
type Migrator struct {
	db      core.Database
	mapper  *schema.TypeMapper
	sink    core.EventSink
	config  MigratorConfig
	limiter *rate.Limiter
	log     *logrus.Entry
}

// NewMigrator creates a migrator. sink may be nil.
func NewMigrator(db core.Database, mapper *schema.TypeMapper, sink core.EventSink, config MigratorConfig, log *logrus.Logger) *Migrator {
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	m := &Migrator{
		db:     db,
		mapper: mapper,
		sink:   sink,
		config: config,
		log:    logger.Component(log, "migrator"),
	}
	if config.BatchesPerSecond > 0 {
		m.limiter = rate.NewLimiter(rate.Limit(config.BatchesPerSecond), 1)
	}
	return m
}

// windowRun is the working state of a single window.
type windowRun struct {
	plan    MigrationPlan
	window  plan.Window
	result  WindowResult
	log     *logrus.Entry
	dialect core.Dialect
}

// MigrateWindow runs ENSURE_TABLE, COMPUTE_CURSOR, COUNT_PENDING and
// STREAM_AND_BATCH for w. The returned error is non-nil when the window
// failed; failed batches alone do not fail a window unless
// AbortOnBatchFailure is set or the failure broke the connection.
func (m *Migrator) MigrateWindow(ctx context.Context, p MigrationPlan, w plan.Window) (WindowResult, error) {
	run := &windowRun{
		plan:    p,
		window:  w,
		result:  WindowResult{Window: w},
		dialect: m.db.Dialect(),
		log: m.log.WithFields(logger.Fields{
			"run_id":    p.RunID,
			"table":     p.Source.TableName,
			"partition": w.Table,
		}),
	}

	err := m.migrateWindow(ctx, run)
	if err != nil {
		run.result.Err = err
		run.log.WithError(err).WithField("kind", core.KindOf(err)).Error("window failed")
		m.publish(ctx, run, core.Event{Type: core.EventWindowFailed, Error: err.Error()})
		return run.result, err
	}

	run.log.WithFields(logger.Fields{
		"moved":          run.result.Moved,
		"batches":        run.result.Batches,
		"failed_batches": run.result.FailedBatches,
	}).Info("window done")
	m.publish(ctx, run, core.Event{Type: core.EventWindowDone, Pending: run.result.Pending, Rows: run.result.Moved})
	return run.result, nil
}

func (m *Migrator) migrateWindow(ctx context.Context, run *windowRun) error {
	if err := m.ensureTable(ctx, run); err != nil {
		return err
	}

	cursorArg := m.mapper.CursorArg(run.result.Cursor, run.plan.Source.StampDomain, run.plan.Source.StampZoned)
	endArg := m.mapper.BoundaryArg(run.window.End, run.plan.Source.StampDomain, run.plan.Source.StampZoned)
	run.log = run.log.WithField("cursor", cursorArg)

	pending, err := m.countPending(ctx, run, cursorArg, endArg)
	if err != nil {
		return err
	}
	run.result.Pending = pending
	m.publish(ctx, run, core.Event{Type: core.EventWindowStarted, Pending: pending})

	if pending == 0 {
		run.log.Info("nothing to move")
		return nil
	}
	run.log.WithField("pending", pending).Info("moving rows")

	return m.streamAndBatch(ctx, run, cursorArg, endArg)
}

// ensureTable creates the partition table when missing and derives the
// resume cursor from its contents otherwise.
func (m *Migrator) ensureTable(ctx context.Context, run *windowRun) error {
	run.result.Cursor = run.window.Start

	exists, err := m.db.TableExists(ctx, run.window.Table)
	if err != nil {
		return core.NewError(core.KindDDL, run.window.Table, "failed to check partition table", err)
	}
	if !exists {
		err := m.db.CreateTable(ctx, run.window.Table, &run.plan.Source)
		switch {
		case err == nil:
			run.result.Created = true
			return nil
		case errors.Is(err, core.ErrTableExists):
			// Created concurrently; resume from its contents.
		default:
			return err
		}
	}

	cursor, err := m.maxStamp(ctx, run)
	if err != nil {
		return err
	}
	if cursor != nil && cursor.After(run.window.Start) {
		run.result.Cursor = *cursor
	}
	return nil
}

func (m *Migrator) maxStamp(ctx context.Context, run *windowRun) (*time.Time, error) {
	query := fmt.Sprintf("SELECT MAX(%s) FROM %s",
		run.dialect.QuoteIdentifier(run.plan.Source.StampColumn),
		run.dialect.QuoteIdentifier(run.window.Table))

	var value interface{}
	if err := queryOne(ctx, m.db, query, nil, &value); err != nil {
		return nil, fmt.Errorf("failed to read cursor from %s: %w", run.window.Table, err)
	}
	if value == nil {
		return nil, nil
	}
	t, err := m.mapper.ToStamp(value, run.plan.Source.StampDomain, run.plan.Source.StampZoned)
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor from %s: %w", run.window.Table, err)
	}
	return &t, nil
}

func (m *Migrator) countPending(ctx context.Context, run *windowRun, cursorArg, endArg interface{}) (int64, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s",
		run.dialect.QuoteIdentifier(run.plan.Source.TableName), m.windowPredicate(run))

	var count int64
	if err := queryOne(ctx, m.db, query, []interface{}{cursorArg, endArg}, &count); err != nil {
		return 0, fmt.Errorf("failed to count pending rows: %w", err)
	}
	return count, nil
}

// windowPredicate renders "stamp >= cursor AND stamp < end".
func (m *Migrator) windowPredicate(run *windowRun) string {
	stamp := run.dialect.QuoteIdentifier(run.plan.Source.StampColumn)
	return fmt.Sprintf("%s >= %s AND %s < %s", stamp, run.dialect.Placeholder(1), stamp, run.dialect.Placeholder(2))
}

func (m *Migrator) streamAndBatch(ctx context.Context, run *windowRun, cursorArg, endArg interface{}) error {
	src := &run.plan.Source
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
		quoteColumns(run.dialect, src.ColumnNames()),
		run.dialect.QuoteIdentifier(src.TableName),
		m.windowPredicate(run))

	rows, err := m.db.Query(ctx, query, cursorArg, endArg)
	if err != nil {
		return fmt.Errorf("failed to stream source rows: %w", err)
	}
	defer rows.Close()

	translator := schema.NewTranslator(src)
	batcher := NewRowBatcher(m.config.BatchSize, run.result.Pending)

	for rows.Next() {
		row, err := translator.FromDB(rows)
		if err != nil {
			return err
		}
		if batcher.Add(row) == ReadyToFlush {
			if err := m.flush(ctx, run, batcher); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to stream source rows: %w", err)
	}

	// The pending count may be stale; move whatever is left.
	return m.flush(ctx, run, batcher)
}

// flush moves the current batch. A failed batch is rolled back and only
// returned as an error when the run must stop.
func (m *Migrator) flush(ctx context.Context, run *windowRun, batcher *RowBatcher) error {
	rows, keys := batcher.Drain()
	if len(rows) == 0 {
		return nil
	}

	if m.limiter != nil {
		if err := m.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	run.result.Batches++
	inserted, err := m.moveBatch(ctx, run, rows, keys)
	if err != nil {
		run.result.FailedBatches++
		run.log.WithError(err).WithField("rows", len(rows)).Warn("batch move failed, rolled back")
		m.publish(ctx, run, core.Event{Type: core.EventBatchFailed, Rows: int64(len(rows)), Error: err.Error()})
		if m.config.AbortOnBatchFailure || IsConnectivityFault(err) {
			return err
		}
		return nil
	}

	run.result.Moved += int64(len(rows))
	run.result.Inserted += inserted
	run.log.WithFields(logger.Fields{
		"rows":     len(rows),
		"inserted": inserted,
		"moved":    run.result.Moved,
	}).Debug("batch moved")
	m.publish(ctx, run, core.Event{Type: core.EventBatchMoved, Rows: int64(len(rows))})
	return nil
}

// moveBatch inserts rows into the partition table and deletes their keys
// from the source in one transaction.
func (m *Migrator) moveBatch(ctx context.Context, run *windowRun, rows, keys [][]interface{}) (inserted int64, err error) {
	src := &run.plan.Source

	tx, err := m.db.BeginTx(ctx)
	if err != nil {
		return 0, core.NewError(core.KindBatchMove, src.TableName, "failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			// A cancelled context has already rolled the transaction back.
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				run.log.WithError(rbErr).Error("rollback failed")
			}
		}
	}()

	res, err := tx.Exec(ctx, run.dialect.InsertIgnore(run.window.Table, src.ColumnNames(), len(rows)), flatten(rows)...)
	if err != nil {
		return 0, core.NewError(core.KindBatchMove, src.TableName,
			fmt.Sprintf("failed to insert %d rows into %s", len(rows), run.window.Table), err)
	}
	inserted, raErr := res.RowsAffected()
	if raErr != nil {
		run.log.WithError(raErr).Warn("driver did not report inserted rows")
		inserted = int64(len(rows))
	}

	if _, err = tx.Exec(ctx, run.dialect.DeleteByKeys(src.TableName, src.PrimaryKey, len(keys)), flatten(keys)...); err != nil {
		return 0, core.NewError(core.KindBatchMove, src.TableName,
			fmt.Sprintf("failed to delete %d moved rows", len(keys)), err)
	}

	if err = tx.Commit(); err != nil {
		return 0, core.NewError(core.KindBatchMove, src.TableName, "failed to commit batch", err)
	}
	return inserted, nil
}

func (m *Migrator) publish(ctx context.Context, run *windowRun, ev core.Event) {
	if m.sink == nil {
		return
	}
	ev.RunID = run.plan.RunID
	ev.Table = run.plan.Source.TableName
	ev.Partition = run.window.Table
	ev.WindowStart = run.window.Start
	ev.WindowEnd = run.window.End
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if err := m.sink.Publish(ctx, ev); err != nil {
		run.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish event")
	}
}

// queryOne runs a single-row, single-column query and scans it into dest.
func queryOne(ctx context.Context, db core.Database, query string, args []interface{}, dest interface{}) error {
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return err
		}
		return fmt.Errorf("query returned no rows")
	}
	if err := rows.Scan(dest); err != nil {
		return err
	}
	return rows.Err()
}

func flatten(tuples [][]interface{}) []interface{} {
	if len(tuples) == 0 {
		return nil
	}
	out := make([]interface{}, 0, len(tuples)*len(tuples[0]))
	for _, t := range tuples {
		out = append(out, t...)
	}
	return out
}

func quoteColumns(d core.Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = d.QuoteIdentifier(name)
	}
	return strings.Join(quoted, ", ")
}
