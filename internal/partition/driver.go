package partition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rzpsarthak13/table-partitioner/internal/core"
	"github.com/rzpsarthak13/table-partitioner/internal/logger"
	"github.com/rzpsarthak13/table-partitioner/internal/plan"
	"github.com/rzpsarthak13/table-partitioner/internal/schema"
)

// Request names what to migrate. Mode and Cutoff are parsed by the driver.
type Request struct {
	Table       string
	Mode        string
	StampColumn string
	Cutoff      string
}

// MigrationPlan is the immutable outcome of planning. It is passed by
// value to every window.
type MigrationPlan struct {
	// RunID identifies the run executing the plan. Empty for dry runs.
	RunID string

	// Source is the source schema bound to the stamp column.
	Source core.Schema

	Mode   plan.Mode
	Cutoff time.Time

	// Bound is the exclusive upper limit of rows considered for migration:
	// the cutoff floored to its period.
	Bound time.Time

	// Observed is the stamp range of rows below Bound, nil when there are none.
	Observed *plan.Range

	Windows []plan.Window
}

// Report summarizes a migration run.
type Report struct {
	Plan     MigrationPlan
	Windows  []WindowResult
	Started  time.Time
	Finished time.Time

	// Empty reports that no row was older than the cutoff.
	Empty bool

	// Aborted reports that remaining windows were skipped.
	Aborted bool
}

// Moved returns the number of rows moved across all windows.
func (r *Report) Moved() int64 {
	var n int64
	for _, w := range r.Windows {
		n += w.Moved
	}
	return n
}

// FailedBatches returns the number of rolled back batches across all windows.
func (r *Report) FailedBatches() int {
	n := 0
	for _, w := range r.Windows {
		n += w.FailedBatches
	}
	return n
}

// FailedWindows returns the windows that ended in WINDOW_FAILED.
func (r *Report) FailedWindows() []WindowResult {
	var failed []WindowResult
	for _, w := range r.Windows {
		if w.Err != nil {
			failed = append(failed, w)
		}
	}
	return failed
}

// DriverConfig contains configuration for the driver.
type DriverConfig struct {
	Migrator MigratorConfig

	// EmptyRangeIsError makes a run with nothing older than the cutoff fail
	// instead of succeeding as a no-op.
	EmptyRangeIsError bool

	// Location is the time zone cutoffs and temporal stamps are read in.
	Location *time.Location

	// LockTTL is the lease duration of the per-table run lock.
	LockTTL time.Duration

	// LockKeyPrefix is prepended to the source table name to form the lock key.
	LockKeyPrefix string
}

// DefaultDriverConfig returns sensible defaults for the driver.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Migrator:      DefaultMigratorConfig(),
		Location:      time.UTC,
		LockTTL:       5 * time.Minute,
		LockKeyPrefix: "partitioner:lock:",
	}
}

// Driver validates a request, plans its windows and migrates them one
// after another.
type Driver struct {
	db       core.Database
	locker   core.Locker
	sink     core.EventSink
	mapper   *schema.TypeMapper
	migrator *Migrator
	config   DriverConfig
	log      *logrus.Entry
}

// NewDriver creates a driver. locker and sink may be nil.
func NewDriver(db core.Database, locker core.Locker, sink core.EventSink, config DriverConfig, log *logrus.Logger) *Driver {
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultDriverConfig().LockTTL
	}
	mapper := schema.NewTypeMapper(config.Location)
	return &Driver{
		db:       db,
		locker:   locker,
		sink:     sink,
		mapper:   mapper,
		migrator: NewMigrator(db, mapper, sink, config.Migrator, log),
		config:   config,
		log:      logger.Component(log, "driver"),
	}
}

// ValidateRequest parses the mode and the cutoff (read in loc) of req and
// checks its identifiers. It never touches a database.
func ValidateRequest(req Request, loc *time.Location) (plan.Mode, time.Time, error) {
	mode, err := plan.ParseMode(req.Mode)
	if err != nil {
		return "", time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	cutoff, err := plan.ParseCutoff(req.Cutoff, loc)
	if err != nil {
		return "", time.Time{}, err
	}
	if err := schema.ValidateIdentifier(req.Table); err != nil {
		return "", time.Time{}, err
	}
	if err := schema.ValidateIdentifier(req.StampColumn); err != nil {
		return "", time.Time{}, err
	}
	return mode, cutoff, nil
}

// Plan validates req, reads the source schema and its observed stamp
// range, and computes the windows to migrate. Nothing is written.
// When no row is older than the cutoff, the returned plan has no windows
// and the error matches core.ErrEmptyRange.
func (d *Driver) Plan(ctx context.Context, req Request) (MigrationPlan, error) {
	mode, cutoff, err := ValidateRequest(req, d.config.Location)
	if err != nil {
		return MigrationPlan{}, err
	}

	src, err := d.db.DescribeTable(ctx, req.Table)
	if err != nil {
		return MigrationPlan{}, err
	}
	bound, err := schema.NewSchemaValidator(src, d.mapper).BindStamp(req.StampColumn)
	if err != nil {
		return MigrationPlan{}, err
	}

	p := MigrationPlan{
		Source: bound,
		Mode:   mode,
		Cutoff: cutoff,
		Bound:  plan.Bound(mode, cutoff),
	}

	p.Observed, err = d.observedRange(ctx, &p)
	if err != nil {
		return MigrationPlan{}, err
	}

	p.Windows, err = plan.Plan(req.Table, mode, cutoff, p.Observed)
	if err != nil {
		return p, err
	}
	for _, w := range p.Windows {
		if err := schema.ValidateIdentifier(w.Table); err != nil {
			return MigrationPlan{}, err
		}
	}
	return p, nil
}

// observedRange reads MIN and MAX of the stamp column below the plan bound.
func (d *Driver) observedRange(ctx context.Context, p *MigrationPlan) (*plan.Range, error) {
	dialect := d.db.Dialect()
	stamp := dialect.QuoteIdentifier(p.Source.StampColumn)
	query := fmt.Sprintf("SELECT MIN(%s), MAX(%s) FROM %s WHERE %s < %s",
		stamp, stamp, dialect.QuoteIdentifier(p.Source.TableName), stamp, dialect.Placeholder(1))

	rows, err := d.db.Query(ctx, query, d.mapper.BoundaryArg(p.Bound, p.Source.StampDomain, p.Source.StampZoned))
	if err != nil {
		return nil, fmt.Errorf("failed to read stamp range: %w", err)
	}
	defer rows.Close()

	var minValue, maxValue interface{}
	if rows.Next() {
		if err := rows.Scan(&minValue, &maxValue); err != nil {
			return nil, fmt.Errorf("failed to read stamp range: %w", err)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stamp range: %w", err)
	}
	if minValue == nil || maxValue == nil {
		return nil, nil
	}

	minStamp, err := d.mapper.ToStamp(minValue, p.Source.StampDomain, p.Source.StampZoned)
	if err != nil {
		return nil, core.NewError(core.KindUnsupportedStampType, p.Source.TableName, "cannot read minimum stamp", err)
	}
	maxStamp, err := d.mapper.ToStamp(maxValue, p.Source.StampDomain, p.Source.StampZoned)
	if err != nil {
		return nil, core.NewError(core.KindUnsupportedStampType, p.Source.TableName, "cannot read maximum stamp", err)
	}
	return &plan.Range{Min: minStamp, Max: maxStamp}, nil
}

// Migrate plans req and moves every planned window while holding the table
// lock, refreshed in the background. Window failures are collected and
// returned joined; a connectivity fault, a lost lock or a batch failure
// under AbortOnBatchFailure stops the run early.
func (d *Driver) Migrate(ctx context.Context, req Request) (*Report, error) {
	report := &Report{Started: time.Now()}
	defer func() { report.Finished = time.Now() }()

	p, err := d.Plan(ctx, req)
	report.Plan = p
	if errors.Is(err, core.ErrEmptyRange) && !d.config.EmptyRangeIsError {
		report.Empty = true
		d.log.WithFields(logger.Fields{
			"table":  req.Table,
			"cutoff": p.Cutoff,
		}).Info("no rows older than cutoff, nothing to migrate")
		return report, nil
	}
	if err != nil {
		return report, err
	}

	p.RunID = uuid.NewString()
	report.Plan = p
	log := d.log.WithFields(logger.Fields{
		"run_id":  p.RunID,
		"table":   p.Source.TableName,
		"mode":    p.Mode,
		"stamp":   p.Source.StampColumn,
		"domain":  p.Source.StampDomain,
		"windows": len(p.Windows),
	})

	lease, err := d.acquire(ctx, p.Source.TableName)
	if err != nil {
		return report, err
	}
	if lease != nil {
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				log.WithError(err).Warn("failed to release lock")
			}
		}()
	}

	runCtx, stopKeepAlive := d.keepAlive(ctx, lease, log)
	defer stopKeepAlive()

	log.Info("migration started")
	d.publish(ctx, core.Event{Type: core.EventRunStarted, RunID: p.RunID, Table: p.Source.TableName, Windows: len(p.Windows)})

	var errs []error
	for _, w := range p.Windows {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			report.Aborted = true
			break
		}
		if runCtx.Err() != nil {
			report.Aborted = true
			break
		}

		result, err := d.migrator.MigrateWindow(runCtx, p, w)
		report.Windows = append(report.Windows, result)
		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("window %s: %w", w.Table, err))
		if IsConnectivityFault(err) || (d.config.Migrator.AbortOnBatchFailure && errors.Is(err, core.ErrBatchMove)) {
			report.Aborted = true
			break
		}
	}
	if cause := context.Cause(runCtx); errors.Is(cause, core.ErrLocked) {
		errs = append(errs, cause)
	}

	log.WithFields(logger.Fields{
		"moved":          report.Moved(),
		"failed_batches": report.FailedBatches(),
		"failed_windows": len(report.FailedWindows()),
		"aborted":        report.Aborted,
	}).Info("migration finished")
	d.publish(ctx, core.Event{Type: core.EventRunDone, RunID: p.RunID, Table: p.Source.TableName, Windows: len(report.Windows), Rows: report.Moved()})

	return report, errors.Join(errs...)
}

func (d *Driver) acquire(ctx context.Context, table string) (core.Lease, error) {
	if d.locker == nil {
		return nil, nil
	}
	lease, err := d.locker.Acquire(ctx, d.config.LockKeyPrefix+table, d.config.LockTTL)
	if err != nil {
		return nil, err
	}
	return lease, nil
}

// keepAlive refreshes lease every third of the lock TTL until the returned
// stop function is called. Once the lease is lost the returned context is
// cancelled with the lock error as its cause, which stops the run at the
// next statement.
func (d *Driver) keepAlive(ctx context.Context, lease core.Lease, log *logrus.Entry) (context.Context, func()) {
	if lease == nil {
		return ctx, func() {}
	}
	runCtx, cancel := context.WithCancelCause(ctx)
	interval := max(d.config.LockTTL/3, time.Millisecond)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-runCtx.Done():
				return
			case <-ticker.C:
			}
			err := lease.Refresh(runCtx)
			switch {
			case err == nil:
			case runCtx.Err() != nil:
				return
			case errors.Is(err, core.ErrLocked):
				log.WithError(err).Error("lock lost, stopping migration")
				cancel(err)
				return
			default:
				// Transient; the next tick retries while the lease is still valid.
				log.WithError(err).Warn("failed to refresh lock")
			}
		}
	}()

	return runCtx, func() {
		close(done)
		wg.Wait()
		cancel(nil)
	}
}

func (d *Driver) publish(ctx context.Context, ev core.Event) {
	if d.sink == nil {
		return
	}
	ev.Timestamp = time.Now()
	if err := d.sink.Publish(ctx, ev); err != nil {
		d.log.WithError(err).WithField("event", ev.Type).Warn("failed to publish event")
	}
}
