//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/desalination-map/internal/adapter/geometry"
	"github.com/couchcryptid/desalination-map/internal/adapter/kafka"
	"github.com/couchcryptid/desalination-map/internal/adapter/wikipedia"
	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/couchcryptid/desalination-map/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tckafka "github.com/testcontainers/testcontainers-go/modules/kafka"
)

const testTopic = "test-aggregates"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startKafka runs a single-node KRaft broker for the duration of the test.
func startKafka(ctx context.Context, t *testing.T) string {
	t.Helper()
	ctr, err := tckafka.Run(ctx, "confluentinc/confluent-local:7.5.0", tckafka.WithClusterID("desal-test"))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start kafka container")

	brokers, err := ctr.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	return brokers[0]
}

func createTopic(t *testing.T, broker, topic string) {
	t.Helper()
	conn, err := kafkago.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)
	ctrl, err := kafkago.Dial("tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	require.NoError(t, err)
	defer ctrl.Close()

	require.NoError(t, ctrl.CreateTopics(kafkago.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))
}

// publishedAggregate holds a deserialized message read from the topic.
type publishedAggregate struct {
	Aggregate domain.CountryAggregate
	Key       string
	Headers   map[string]string
}

func readAggregates(ctx context.Context, t *testing.T, broker string, n int) []publishedAggregate {
	t.Helper()
	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	out := make([]publishedAggregate, 0, n)
	for len(out) < n {
		msg, err := consumer.ReadMessage(readCtx)
		require.NoError(t, err, "read aggregate message")

		headers := make(map[string]string, len(msg.Headers))
		for _, h := range msg.Headers {
			headers[h.Key] = string(h.Value)
		}
		var agg domain.CountryAggregate
		require.NoError(t, json.Unmarshal(msg.Value, &agg))
		out = append(out, publishedAggregate{Aggregate: agg, Key: string(msg.Key), Headers: headers})
	}
	return out
}

// TestKafkaWriter verifies that kafka.Writer publishes one keyed message per
// country with snapshot headers.
func TestKafkaWriter(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	snap := domain.Snapshot{
		SourceURL: "https://example.org/wiki",
		Aggregates: []domain.CountryAggregate{
			{Country: "Spain", Capacity: 5000, Plants: 1},
			{Country: "USA", Capacity: 3000, Plants: 2},
		},
		GeneratedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, writer.Publish(ctx, snap))

	got := readAggregates(ctx, t, broker, 2)
	assert.Equal(t, "Spain", got[0].Key)
	assert.Equal(t, snap.Aggregates[0], got[0].Aggregate)
	assert.Equal(t, "USA", got[1].Key)
	assert.Equal(t, snap.Aggregates[1], got[1].Aggregate)
	for _, m := range got {
		assert.Equal(t, "2024-03-01T12:00:00Z", m.Headers[kafka.HeaderSnapshotAt])
		assert.Equal(t, "https://example.org/wiki", m.Headers[kafka.HeaderSourceURL])
	}
}

const sourcePage = `<html><body><table class="wikitable sortable">
<tr><th>Country</th><th>Territory</th><th>City</th><th>Name</th><th>Completion</th><th>Capacity (per day)</th></tr>
<tr><td rowspan="2">USA</td><td></td><td>CityA</td><td>PlantA</td><td>2001</td><td>1,000 m3/d</td></tr>
<tr><td></td><td>CityB</td><td>PlantB</td><td>2003</td><td>2,000 m3/d</td></tr>
<tr><td>Spain</td><td></td><td>Torrevieja</td><td>Torrevieja</td><td>2013</td><td>240,000 m3/d</td></tr>
</table></body></html>`

const boundaries = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"ADMIN":"Spain","ADM0_A3":"ESP"},"geometry":{"type":"Polygon","coordinates":[[[0,0],[0,1],[1,1],[1,0],[0,0]]]}},
{"type":"Feature","properties":{"ADMIN":"USA","ADM0_A3":"USA"},"geometry":{"type":"Polygon","coordinates":[[[2,0],[2,1],[3,1],[3,0],[2,0]]]}}
]}`

// TestPipelinePublishesAggregates wires fetch → merge with a fake upstream,
// a GeoJSON boundary file and a real broker.
func TestPipelinePublishesAggregates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(sourcePage))
	}))
	t.Cleanup(upstream.Close)

	geomPath := filepath.Join(t.TempDir(), "countries.geojson")
	require.NoError(t, os.WriteFile(geomPath, []byte(boundaries), 0o600))

	cfg := &config.Config{KafkaBrokers: []string{broker}, KafkaTopic: testTopic}
	metrics := observability.NewMetricsForTesting()
	writer := kafka.NewWriter(cfg, metrics, discardLogger())
	t.Cleanup(func() { _ = writer.Close() })

	p := pipeline.New(
		wikipedia.NewFetcher(upstream.URL, 5*time.Second, metrics, discardLogger()),
		wikipedia.TableExtractor{Class: "wikitable sortable"},
		geometry.NewFileLoader(geomPath),
		writer,
		discardLogger(),
		metrics,
	)

	snap, err := p.Run(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)
	assert.Empty(t, snap.Report.UnmatchedAggregates)

	got := readAggregates(ctx, t, broker, 2)
	byKey := map[string]domain.CountryAggregate{}
	for _, m := range got {
		byKey[m.Key] = m.Aggregate
		assert.Equal(t, upstream.URL, m.Headers[kafka.HeaderSourceURL])
	}
	assert.Equal(t, domain.CountryAggregate{Country: "USA", Capacity: 3000, Plants: 2}, byKey["USA"])
	assert.Equal(t, domain.CountryAggregate{Country: "Spain", Capacity: 240000, Plants: 1}, byKey["Spain"])
}
