package geometry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/couchcryptid/desalination-map/internal/domain"
	"github.com/couchcryptid/desalination-map/internal/observability"
)

// CachedLoader wraps a FileLoader and keeps the last dataset it read. The
// entry is keyed by path, size and modification time, so a replaced file is
// reread on the next call and the old rows are dropped.
type CachedLoader struct {
	inner   *FileLoader
	metrics *observability.Metrics

	mu   sync.Mutex
	key  string
	rows []domain.CountryGeometry
}

// NewCachedLoader creates a cache decorator around a file loader.
func NewCachedLoader(inner *FileLoader, metrics *observability.Metrics) *CachedLoader {
	return &CachedLoader{inner: inner, metrics: metrics}
}

// CheckReadiness delegates to the wrapped loader.
func (c *CachedLoader) CheckReadiness(ctx context.Context) error {
	return c.inner.CheckReadiness(ctx)
}

// Load returns the cached rows when the dataset is unchanged since it was last
// read. Callers must not modify the returned slice.
func (c *CachedLoader) Load(ctx context.Context) ([]domain.CountryGeometry, error) {
	info, err := os.Stat(c.inner.Path())
	if err != nil {
		// Let the inner loader classify the failure.
		return c.inner.Load(ctx)
	}
	key := fmt.Sprintf("%s|%d|%d", c.inner.Path(), info.Size(), info.ModTime().UnixNano())

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rows != nil && c.key == key {
		c.metrics.GeometryCache.WithLabelValues("hit").Inc()
		return c.rows, nil
	}
	c.metrics.GeometryCache.WithLabelValues("miss").Inc()

	rows, err := c.inner.Load(ctx)
	if err != nil {
		return nil, err
	}
	c.key, c.rows = key, rows
	return rows, nil
}
