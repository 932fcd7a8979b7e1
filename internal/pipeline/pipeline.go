package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
)

// Stage names, used in errors, logs and metric labels.
const (
	StageFetch        = "fetch"
	StageExtract      = "extract"
	StageClean        = "clean"
	StageAggregate    = "aggregate"
	StageLoadGeometry = "load_geometry"
	StageMerge        = "merge"
)

// Fetcher retrieves the source page.
type Fetcher interface {
	Fetch(ctx context.Context) ([]byte, error)
	URL() string
}

// Extractor locates the plant table in a fetched page.
type Extractor interface {
	Extract(html []byte) (domain.Table, error)
}

// GeometryLoader reads the country boundary dataset.
type GeometryLoader interface {
	Load(ctx context.Context) ([]domain.CountryGeometry, error)
	CheckReadiness(ctx context.Context) error
}

// Publisher receives every successful snapshot.
type Publisher interface {
	Publish(ctx context.Context, snap domain.Snapshot) error
}

// StageError records which stage aborted a run.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Pipeline runs fetch → extract → clean → aggregate → load geometry → merge.
// It keeps no state between runs.
type Pipeline struct {
	fetcher   Fetcher
	extractor Extractor
	loader    GeometryLoader
	publisher Publisher
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Pipeline. publisher may be nil.
func New(f Fetcher, e Extractor, g GeometryLoader, pub Publisher, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		fetcher:   f,
		extractor: e,
		loader:    g,
		publisher: pub,
		logger:    logger,
		metrics:   metrics,
	}
}

// CheckReadiness reports whether the boundary dataset can be read.
func (p *Pipeline) CheckReadiness(ctx context.Context) error {
	return p.loader.CheckReadiness(ctx)
}

// Run executes every stage once and returns the merged snapshot. Any stage
// failure aborts the run with a *StageError.
func (p *Pipeline) Run(ctx context.Context) (domain.Snapshot, error) {
	start := time.Now()
	snap := domain.Snapshot{SourceURL: p.fetcher.URL()}

	var (
		html  []byte
		table domain.Table
		raw   []domain.RawPlantRecord
		geoms []domain.CountryGeometry
	)

	err := p.stage(StageFetch, func() (err error) {
		html, err = p.fetcher.Fetch(ctx)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	err = p.stage(StageExtract, func() (err error) {
		table, err = p.extractor.Extract(html)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	err = p.stage(StageClean, func() (err error) {
		raw, err = domain.PlantRecords(table)
		if err != nil {
			return err
		}
		snap.Records, snap.Rejected = domain.CleanRecords(raw)
		if len(snap.Records) == 0 {
			return fmt.Errorf("%d rows, %d rejected: %w", len(raw), len(snap.Rejected), domain.ErrNoRecords)
		}
		return nil
	})
	if err != nil {
		return domain.Snapshot{}, err
	}
	p.reportRejected(snap.Rejected)
	p.metrics.PlantsParsed.Set(float64(len(snap.Records)))

	_ = p.stage(StageAggregate, func() error {
		snap.Aggregates = domain.Aggregate(snap.Records)
		return nil
	})

	err = p.stage(StageLoadGeometry, func() (err error) {
		geoms, err = p.loader.Load(ctx)
		return err
	})
	if err != nil {
		return domain.Snapshot{}, err
	}

	_ = p.stage(StageMerge, func() error {
		snap.Rows, snap.Report = domain.Merge(geoms, snap.Aggregates)
		return nil
	})
	p.reportMerge(snap.Report)

	snap.GeneratedAt = domain.Now()
	p.logger.Info("pipeline run complete",
		"plants", len(snap.Records),
		"rejected", len(snap.Rejected),
		"countries", len(snap.Aggregates),
		"geometries", len(snap.Rows),
		"duration", time.Since(start),
	)

	p.publish(ctx, snap)
	return snap, nil
}

// stage times fn and wraps its error.
func (p *Pipeline) stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.PipelineFailures.WithLabelValues(name).Inc()
		p.logger.Error("pipeline stage failed", "stage", name, "error", err)
		return &StageError{Stage: name, Err: err}
	}
	return nil
}

func (p *Pipeline) reportRejected(rejected []domain.RejectedRow) {
	if len(rejected) == 0 {
		return
	}
	p.metrics.CapacityRejected.Add(float64(len(rejected)))
	p.logger.Warn("rejected plant rows", "count", len(rejected))
	for _, r := range rejected {
		p.logger.Debug("rejected plant row",
			"row", r.Row,
			"country", r.Record.Country,
			"name", r.Record.Name,
			"capacity", r.Record.Capacity,
			"reason", r.Reason,
		)
	}
}

func (p *Pipeline) reportMerge(report domain.MergeReport) {
	p.metrics.UnmatchedAggregates.Set(float64(len(report.UnmatchedAggregates)))
	p.metrics.EmptyGeometries.Set(float64(report.EmptyGeometries))
	if len(report.UnmatchedAggregates) > 0 {
		p.logger.Warn("aggregates without a boundary row", "countries", report.UnmatchedAggregates)
	}
	p.logger.Debug("boundary rows without statistics", "count", report.EmptyGeometries)
}

// publish hands the snapshot to the publisher. Failures are logged and
// counted; the run still succeeds.
func (p *Pipeline) publish(ctx context.Context, snap domain.Snapshot) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, snap); err != nil {
		p.metrics.PublishErrors.Inc()
		p.logger.Error("publish aggregates failed", "error", err, "countries", len(snap.Aggregates))
	}
}
