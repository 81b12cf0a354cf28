// Package pipeline loads datasets into the snapshot store: parse, recompute
// derived fields, audit the input, swap the served snapshot and publish the
// monthly balances.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/couchcryptid/water-balance-service/internal/domain"
	"github.com/couchcryptid/water-balance-service/internal/ingest"
	"github.com/couchcryptid/water-balance-service/internal/observability"
	"github.com/couchcryptid/water-balance-service/internal/store"
	"github.com/google/uuid"
)

// DefaultSource names the snapshot built from the fixture bundled with the binary.
const DefaultSource = "embedded:" + ingest.DefaultFixtureName

const (
	publishAttempts   = 3
	initialBackoff    = 200 * time.Millisecond
	maxPublishBackoff = 5 * time.Second
)

// Publisher forwards the monthly balances of a freshly loaded snapshot.
type Publisher interface {
	PublishBalances(ctx context.Context, snap *store.Snapshot) error
}

// Loader runs the load cycle and owns writes to the store.
type Loader struct {
	store     *store.Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Loader. Pass a nil publisher to disable balance publishing.
func New(st *store.Store, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		store:     st,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness returns nil once a snapshot is being served.
func (l *Loader) CheckReadiness(_ context.Context) error {
	if _, ok := l.store.Current(); !ok {
		return errors.New("no dataset loaded yet")
	}
	return nil
}

// Load parses r as the file named source and, on success, replaces the
// served snapshot. Consistency warnings never fail a load; malformed input
// does, and leaves the previous snapshot in place.
func (l *Loader) Load(ctx context.Context, source string, r io.Reader) (*store.Snapshot, error) {
	start := clock.Now()

	res, err := ingest.Parse(source, r)
	if err != nil {
		format := "unknown"
		if f, ferr := ingest.DetectFormat(source); ferr == nil {
			format = string(f)
		}
		l.metrics.DatasetLoads.WithLabelValues(format, "error").Inc()
		l.logger.Warn("dataset rejected", "source", source, "error", err)
		return nil, fmt.Errorf("load %s: %w", source, err)
	}

	return l.install(ctx, source, res, start), nil
}

// LoadFile loads the dataset at path.
func (l *Loader) LoadFile(ctx context.Context, path string) (*store.Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return l.Load(ctx, path, f)
}

// LoadDefault loads path, or the bundled fixture when path is empty.
func (l *Loader) LoadDefault(ctx context.Context, path string) (*store.Snapshot, error) {
	if path != "" {
		return l.LoadFile(ctx, path)
	}

	start := clock.Now()
	res, err := ingest.DefaultFixture()
	if err != nil {
		l.metrics.DatasetLoads.WithLabelValues(string(ingest.FormatYAML), "error").Inc()
		return nil, fmt.Errorf("load bundled dataset: %w", err)
	}
	return l.install(ctx, DefaultSource, res, start), nil
}

func (l *Loader) install(ctx context.Context, source string, res ingest.Result, start time.Time) *store.Snapshot {
	repaired, report := res.Audit()

	snap := &store.Snapshot{
		ID:       uuid.NewString(),
		Source:   source,
		Format:   string(res.Format),
		LoadedAt: clock.Now().UTC(),
		Dataset:  repaired,
		Report:   report,
	}
	l.store.Replace(snap)

	l.recordLoad(snap)
	l.metrics.LoadDuration.Observe(clock.Since(start).Seconds())

	if report.Valid {
		l.logger.Info("dataset loaded",
			"source", source,
			"snapshot_id", snap.ID,
			"months", len(repaired.Periods),
		)
	} else {
		l.logger.Warn("dataset loaded with consistency warnings",
			"source", source,
			"snapshot_id", snap.ID,
			"months", len(repaired.Periods),
			"mismatches", len(report.Errors),
		)
		for _, msg := range report.Errors {
			l.logger.Debug("consistency mismatch", "snapshot_id", snap.ID, "detail", msg)
		}
	}

	l.publish(ctx, snap)
	return snap
}

func (l *Loader) recordLoad(snap *store.Snapshot) {
	l.metrics.DatasetLoads.WithLabelValues(snap.Format, "success").Inc()
	l.metrics.ConsistencyMismatches.Add(float64(len(snap.Report.Errors)))
	l.metrics.MonthsLoaded.Set(float64(len(snap.Dataset.Periods)))
	if snap.Report.Valid {
		l.metrics.DatasetValid.Set(1)
	} else {
		l.metrics.DatasetValid.Set(0)
	}

	latest := domain.LatestMonth(snap.Dataset)
	if latest == "" {
		l.metrics.LatestTotalLoss.Set(0)
		l.metrics.LatestLossPercentage.Set(0)
		return
	}
	if kpis, err := domain.MonthlyKPIs(snap.Dataset, latest); err == nil {
		l.metrics.LatestTotalLoss.Set(kpis.TotalLoss)
		l.metrics.LatestLossPercentage.Set(kpis.LossPercentage)
	}
}

// publish retries with exponential backoff. A publish failure is logged and
// counted but does not undo the load.
func (l *Loader) publish(ctx context.Context, snap *store.Snapshot) {
	if l.publisher == nil || len(snap.Dataset.Periods) == 0 {
		return
	}

	backoff := initialBackoff
	for attempt := 1; ; attempt++ {
		err := l.publisher.PublishBalances(ctx, snap)
		if err == nil {
			l.metrics.BalancesPublished.Add(float64(len(snap.Dataset.Periods)))
			return
		}
		l.metrics.PublishErrors.Inc()
		l.logger.Error("publish balances failed",
			"error", err,
			"snapshot_id", snap.ID,
			"attempt", attempt,
		)
		if attempt == publishAttempts || !sleepWithContext(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, maxPublishBackoff)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
