package assets

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"cutroom/internal/cache"
)

// Library ties the prober and the registry together and fronts lookups
// with a TTL cache, since the same assets get resolved on every trim.
type Library struct {
	registry *Registry
	prober   *Prober
	cache    *cache.MemoryCache
	logger   *logrus.Logger
}

// NewLibrary creates the asset library service.
func NewLibrary(registry *Registry, prober *Prober, probeCacheTTL time.Duration) *Library {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	if probeCacheTTL <= 0 {
		probeCacheTTL = 5 * time.Minute
	}
	return &Library{
		registry: registry,
		prober:   prober,
		cache:    cache.NewMemoryCache(probeCacheTTL),
		logger:   logger,
	}
}

// Resolve looks an asset up by id, through the cache.
func (l *Library) Resolve(assetID string) (*Asset, error) {
	if v, ok := l.cache.Get(assetID); ok {
		if a, ok := v.(*Asset); ok {
			return a, nil
		}
	}
	a, err := l.registry.Get(assetID)
	if err != nil {
		return nil, err
	}
	l.cache.Set(assetID, a)
	return a, nil
}

// List returns all registered assets.
func (l *Library) List() ([]Asset, error) {
	return l.registry.List()
}

// AddFile probes one media file and registers it.
func (l *Library) AddFile(filePath string) (*Asset, error) {
	if !l.prober.IsSupported(filePath) {
		return nil, fmt.Errorf("unsupported format: %s", filepath.Ext(filePath))
	}
	stat, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat media file: %w", err)
	}
	result, err := l.prober.Probe(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", filePath, err)
	}

	stored, err := l.registry.Upsert(Asset{
		Type:       result.Type,
		FilePath:   filePath,
		FileSize:   stat.Size(),
		DurationMs: result.DurationMs,
		Width:      result.Width,
		Height:     result.Height,
		Title:      result.Title,
		Artist:     result.Artist,
	})
	if err != nil {
		return nil, err
	}
	l.cache.Set(stored.ID, &stored)
	return &stored, nil
}

// RemoveFile drops the asset registered at the given path, typically
// because the watcher saw the file disappear.
func (l *Library) RemoveFile(filePath string) error {
	if a, err := l.registry.GetByPath(filePath); err == nil {
		l.cache.Delete(a.ID)
	}
	return l.registry.DeleteByPath(filePath)
}

// ContentType exposes the prober's MIME mapping for streaming handlers.
func (l *Library) ContentType(filePath string) string {
	return l.prober.ContentType(filePath)
}

// IsSupported reports whether the library accepts this file.
func (l *Library) IsSupported(filePath string) bool {
	return l.prober.IsSupported(filePath)
}

// Scan walks the library directory and registers every supported media
// file using a small worker pool.
func (l *Library) Scan(libraryPath string) error {
	l.logger.WithField("path", libraryPath).Info("Scanning asset library")

	var wg sync.WaitGroup
	var assetCount int64
	jobs := make(chan string, 100)

	numWorkers := runtime.NumCPU()
	for i := 0; i < numWorkers; i++ {
		go func() {
			for path := range jobs {
				if _, err := l.AddFile(path); err != nil {
					l.logger.WithError(err).WithField("path", path).Error("Failed to register asset")
				} else {
					atomic.AddInt64(&assetCount, 1)
				}
				wg.Done()
			}
		}()
	}

	walkErr := filepath.Walk(libraryPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && l.prober.IsSupported(path) {
			wg.Add(1)
			jobs <- path
		}
		return nil
	})

	close(jobs)
	wg.Wait()

	l.logger.WithField("count", atomic.LoadInt64(&assetCount)).Info("Asset library scan complete")
	return walkErr
}
