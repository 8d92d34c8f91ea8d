package server

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// startFileWatcher initializes fsnotify watcher for recursive media dir monitoring.
func (ms *EditorServer) startFileWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	ms.watcher = watcher

	// Start monitoring in a goroutine
	go ms.watchFiles()

	// Add the media directory to the watcher
	err = ms.addDirectoryToWatcher(ms.config.Assets.LibraryPath)
	if err != nil {
		return err
	}

	ms.logger.WithField("library_path", ms.config.Assets.LibraryPath).Info("File watcher started")
	return nil
}

// addDirectoryToWatcher recursively walks and adds subdirectories to watcher.
func (ms *EditorServer) addDirectoryToWatcher(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return ms.watcher.Add(path)
		}
		return nil
	})
}

// watchFiles selects on watcher channels and dispatches events.
func (ms *EditorServer) watchFiles() {
	defer ms.watcher.Close()

	for {
		select {
		case event, ok := <-ms.watcher.Events:
			if !ok {
				return
			}
			ms.handleFileEvent(event)

		case err, ok := <-ms.watcher.Errors:
			if !ok {
				return
			}
			ms.logger.WithError(err).Error("File watcher error")
		}
	}
}

// handleFileEvent applies filtering & delegates creation/removal actions.
func (ms *EditorServer) handleFileEvent(event fsnotify.Event) {
	// Ignore temporary files and hidden files
	fileName := filepath.Base(event.Name)
	if strings.HasPrefix(fileName, ".") || strings.HasSuffix(fileName, ".tmp") {
		return
	}

	isMediaFile := ms.library.IsSupported(event.Name)

	switch {
	case event.Has(fsnotify.Create) && isMediaFile:
		// Dispatch new file processing asynchronously
		go func(name string) {
			time.Sleep(500 * time.Millisecond) // Ensure file is fully written
			ms.handleNewFile(name)
		}(event.Name)

	case event.Has(fsnotify.Remove) && isMediaFile:
		// Dispatch removal processing asynchronously
		go ms.handleRemovedFile(event.Name)

	case event.Has(fsnotify.Create):
		// Check if it's a new directory
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			ms.watcher.Add(event.Name)
			ms.logger.WithField("directory", event.Name).Info("Watching new directory")
		}
	}
}

// handleNewFile probes and registers a media file that appeared in the
// library directory.
func (ms *EditorServer) handleNewFile(filePath string) {
	ms.logger.WithField("file_path", filePath).Info("New media file detected")

	asset, err := ms.library.AddFile(filePath)
	if err != nil {
		ms.logger.WithError(err).WithField("file_path", filePath).Error("Error registering media file")
		return
	}

	ms.logger.WithFields(logrus.Fields{
		"id":          asset.ID,
		"type":        asset.Type,
		"duration_ms": asset.DurationMs,
	}).Info("Added new asset")
}

// handleRemovedFile drops registry rows referencing deleted media files.
func (ms *EditorServer) handleRemovedFile(filePath string) {
	ms.logger.WithField("file_path", filePath).Info("Media file removed")

	if err := ms.library.RemoveFile(filePath); err != nil {
		ms.logger.WithError(err).WithField("file_path", filePath).Error("Error removing asset from registry")
		return
	}

	ms.logger.WithField("file_path", filePath).Info("Removed asset from registry")
}

// stopFileWatcher closes the watcher (idempotent).
func (ms *EditorServer) stopFileWatcher() {
	if ms.watcher != nil {
		ms.watcher.Close()
	}
}
