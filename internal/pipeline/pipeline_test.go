package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/desalination-map/internal/adapter/wikipedia"
	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/couchcryptid/desalination-map/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockFetcher struct {
	html  string
	err   error
	calls int
}

func (m *mockFetcher) Fetch(_ context.Context) ([]byte, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []byte(m.html), nil
}

func (m *mockFetcher) URL() string { return "https://example.org/wiki/Desalination_by_country" }

type mockLoader struct {
	geoms    []domain.CountryGeometry
	err      error
	readyErr error
}

func (m *mockLoader) Load(_ context.Context) ([]domain.CountryGeometry, error) {
	return m.geoms, m.err
}

func (m *mockLoader) CheckReadiness(_ context.Context) error { return m.readyErr }

type mockPublisher struct {
	snaps []domain.Snapshot
	err   error
}

func (m *mockPublisher) Publish(_ context.Context, snap domain.Snapshot) error {
	m.snaps = append(m.snaps, snap)
	return m.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const plantsPage = `<html><body>
<table class="wikitable sortable">
<tr><th>Country</th><th>Territory</th><th>City</th><th>Name</th><th>Completion</th><th>Coordinates</th><th>Capacity (per day)</th></tr>
<tr><td>USA</td><td></td><td>CityA</td><td>PlantA</td><td>2001</td><td></td><td>1,000 m3/d</td></tr>
<tr><td>USA</td><td></td><td>CityB</td><td>PlantB</td><td>2003</td><td></td><td>2,000 m3/d</td></tr>
<tr><td></td><td>Baja California</td><td>Rosarito</td><td>Rosarito</td><td>2020</td><td></td><td>5,000 m3/d</td></tr>
<tr><td>Spain</td><td></td><td>Torrevieja</td><td>Torrevieja</td><td>2013</td><td></td><td>unknown</td></tr>
</table>
</body></html>`

func square(x, y float64) orb.MultiPolygon {
	return orb.MultiPolygon{{{{x, y}, {x, y + 1}, {x + 1, y + 1}, {x + 1, y}, {x, y}}}}
}

var testGeoms = []domain.CountryGeometry{
	{Country: "Spain", CountryCode: "ESP", Geometry: square(0, 0)},
	{Country: "USA", CountryCode: "USA", Geometry: square(2, 0)},
	{Country: "Chad", CountryCode: "TCD", Geometry: square(4, 0)},
}

func newPipeline(f *mockFetcher, l *mockLoader, pub pipeline.Publisher, metrics *observability.Metrics) *pipeline.Pipeline {
	return pipeline.New(f, wikipedia.TableExtractor{Class: "wikitable sortable"}, l, pub, discardLogger(), metrics)
}

func fixClock(t *testing.T) time.Time {
	t.Helper()
	at := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(clockwork.NewRealClock()) })
	return at
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	at := fixClock(t)
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{}
	p := newPipeline(&mockFetcher{html: plantsPage}, &mockLoader{geoms: testGeoms}, pub, metrics)

	snap, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://example.org/wiki/Desalination_by_country", snap.SourceURL)
	assert.Equal(t, at, snap.GeneratedAt)
	assert.Len(t, snap.Records, 3)
	require.Len(t, snap.Rejected, 1)
	assert.Equal(t, "Spain", snap.Rejected[0].Record.Country)

	assert.Equal(t, []domain.CountryAggregate{
		{Country: domain.MissingCountry, Capacity: 5000, Plants: 1},
		{Country: "USA", Capacity: 3000, Plants: 2},
	}, snap.Aggregates)

	require.Len(t, snap.Rows, len(testGeoms))
	assert.False(t, snap.Rows[0].HasData(), "Spain's only row was rejected")
	require.True(t, snap.Rows[1].HasData())
	assert.Equal(t, int64(3000), *snap.Rows[1].Capacity)
	assert.Equal(t, 2, *snap.Rows[1].Plants)
	assert.Equal(t, []string{domain.MissingCountry}, snap.Report.UnmatchedAggregates)
	assert.Equal(t, 2, snap.Report.EmptyGeometries)

	assert.InDelta(t, 3, testutil.ToFloat64(metrics.PlantsParsed), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CapacityRejected), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.UnmatchedAggregates), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.EmptyGeometries), 0)

	require.Len(t, pub.snaps, 1)
	assert.Equal(t, snap.Aggregates, pub.snaps[0].Aggregates)
}

func TestPipeline_Run_Idempotent(t *testing.T) {
	fixClock(t)
	p := newPipeline(&mockFetcher{html: plantsPage}, &mockLoader{geoms: testGeoms}, nil, observability.NewMetricsForTesting())

	first, err := p.Run(context.Background())
	require.NoError(t, err)
	second, err := p.Run(context.Background())
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("repeated runs differ (-first +second):\n%s", diff)
	}
}

func TestPipeline_Run_StageErrors(t *testing.T) {
	tests := []struct {
		name    string
		fetcher *mockFetcher
		loader  *mockLoader
		stage   string
		target  error
	}{
		{
			name:    "upstream unreachable",
			fetcher: &mockFetcher{err: domain.ErrUpstream},
			loader:  &mockLoader{geoms: testGeoms},
			stage:   pipeline.StageFetch,
			target:  domain.ErrUpstream,
		},
		{
			name:    "table missing",
			fetcher: &mockFetcher{html: `<html><body><p>moved</p></body></html>`},
			loader:  &mockLoader{geoms: testGeoms},
			stage:   pipeline.StageExtract,
			target:  domain.ErrNotFound,
		},
		{
			name:    "columns missing",
			fetcher: &mockFetcher{html: `<table class="wikitable sortable"><tr><th>Country</th><th>Capacity</th></tr><tr><td>USA</td><td>1 m3/d</td></tr></table>`},
			loader:  &mockLoader{geoms: testGeoms},
			stage:   pipeline.StageClean,
			target:  domain.ErrNotFound,
		},
		{
			name: "every row rejected",
			fetcher: &mockFetcher{html: `<table class="wikitable sortable">
<tr><th>Country</th><th>Territory</th><th>City</th><th>Name</th><th>Capacity</th></tr>
<tr><td>USA</td><td></td><td>A</td><td>B</td><td>n/a</td></tr></table>`},
			loader: &mockLoader{geoms: testGeoms},
			stage:  pipeline.StageClean,
			target: domain.ErrNoRecords,
		},
		{
			name:    "geometry missing",
			fetcher: &mockFetcher{html: plantsPage},
			loader:  &mockLoader{err: domain.ErrGeometryMissing},
			stage:   pipeline.StageLoadGeometry,
			target:  domain.ErrGeometryMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := observability.NewMetricsForTesting()
			pub := &mockPublisher{}
			p := newPipeline(tt.fetcher, tt.loader, pub, metrics)

			_, err := p.Run(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)

			var stageErr *pipeline.StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, tt.stage, stageErr.Stage)
			assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineFailures.WithLabelValues(tt.stage)), 0)
			assert.Empty(t, pub.snaps, "failed runs are not published")
		})
	}
}

func TestPipeline_Run_PublishErrorDoesNotFail(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	pub := &mockPublisher{err: errors.New("broker down")}
	p := newPipeline(&mockFetcher{html: plantsPage}, &mockLoader{geoms: testGeoms}, pub, metrics)

	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestPipeline_Run_FetchesEveryTime(t *testing.T) {
	f := &mockFetcher{html: plantsPage}
	p := newPipeline(f, &mockLoader{geoms: testGeoms}, nil, observability.NewMetricsForTesting())

	for range 3 {
		_, err := p.Run(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.calls)
}

func TestPipeline_CheckReadiness(t *testing.T) {
	metrics := observability.NewMetricsForTesting()

	ready := newPipeline(&mockFetcher{}, &mockLoader{}, nil, metrics)
	assert.NoError(t, ready.CheckReadiness(context.Background()))

	notReady := newPipeline(&mockFetcher{}, &mockLoader{readyErr: domain.ErrGeometryMissing}, nil, metrics)
	assert.ErrorIs(t, notReady.CheckReadiness(context.Background()), domain.ErrGeometryMissing)
}

func TestStageError(t *testing.T) {
	err := &pipeline.StageError{Stage: pipeline.StageFetch, Err: domain.ErrUpstream}
	assert.Equal(t, "fetch: upstream fetch failed", err.Error())
	assert.ErrorIs(t, err, domain.ErrUpstream)
}
