// Package app wires the pipeline adapters from configuration. Both the HTTP
// service and the snapshot CLI build their pipeline here.
package app

import (
	"log/slog"

	"github.com/couchcryptid/desalination-map/internal/adapter/geometry"
	kafkaadapter "github.com/couchcryptid/desalination-map/internal/adapter/kafka"
	"github.com/couchcryptid/desalination-map/internal/adapter/wikipedia"
	"github.com/couchcryptid/desalination-map/internal/config"
	"github.com/couchcryptid/desalination-map/internal/observability"
	"github.com/couchcryptid/desalination-map/internal/pipeline"
)

// NewPipeline builds a pipeline for cfg. The returned close function releases
// the Kafka writer and is safe to call when publishing is disabled.
func NewPipeline(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*pipeline.Pipeline, func() error) {
	fetcher := wikipedia.NewFetcher(cfg.SourceURL, cfg.SourceTimeout, metrics, logger)
	extractor := wikipedia.TableExtractor{Class: cfg.TableClass}

	fileLoader := geometry.NewFileLoader(cfg.GeometryPath)
	var loader pipeline.GeometryLoader = fileLoader
	if cfg.GeometryCache {
		loader = geometry.NewCachedLoader(fileLoader, metrics)
		logger.Info("geometry cache enabled", "path", cfg.GeometryPath)
	}

	var publisher pipeline.Publisher
	closeFn := func() error { return nil }
	if cfg.PublishEnabled() {
		writer := kafkaadapter.NewWriter(cfg, metrics, logger)
		publisher = writer
		closeFn = writer.Close
		logger.Info("aggregate publishing enabled", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("aggregate publishing disabled")
	}

	return pipeline.New(fetcher, extractor, loader, publisher, logger, metrics), closeFn
}
