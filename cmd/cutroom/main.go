package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"cutroom/internal/assets"
	"cutroom/internal/auth"
	"cutroom/internal/config"
	"cutroom/internal/project"
	"cutroom/internal/server"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "./config.toml"

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	configureLogger(logger, &cfg.Logging)

	// Check if media directory exists
	if _, err := os.Stat(cfg.Assets.LibraryPath); os.IsNotExist(err) {
		logger.WithField("library_path", cfg.Assets.LibraryPath).Fatal("Media directory does not exist. Please create it and add your media files.")
	}

	// Initialize project store
	store, err := project.NewStore(cfg.Database.Path)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing project store")
	}
	defer store.Close()

	// Asset registry shares the project store's database
	registry, err := assets.NewRegistry(store.Conn())
	if err != nil {
		logger.WithError(err).Fatal("Error initializing asset registry")
	}
	defer registry.Close()

	prober := assets.NewProber(cfg.Assets.SupportedFormats)
	library := assets.NewLibrary(registry, prober, time.Duration(cfg.Assets.ProbeCacheTTL)*time.Second)

	// Initialize authentication
	authService, err := auth.NewService(&cfg.Auth)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing authentication")
	}

	// Create and configure the editor server
	editorServer, err := server.NewEditorServer(cfg, store, library, authService, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error creating editor server")
	}

	// Scan the asset library
	if err := editorServer.ScanAssetLibrary(); err != nil {
		logger.WithError(err).Fatal("Error scanning asset library")
	}

	// Check asset count and warn if empty
	if cfg.Assets.ScanOnStartup {
		found, err := library.List()
		if err != nil {
			logger.WithError(err).Warn("Could not get asset count")
		} else if len(found) == 0 {
			logger.WithField("supported_formats", cfg.Assets.SupportedFormats).Warn("No supported media files found in media directory")
		}
	}

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	// Start the server in a goroutine
	go func() {
		editorServer.Start()
	}()

	// Wait for shutdown signal
	<-c

	logger.Info("Received shutdown signal")
	editorServer.Shutdown()
}

// configureLogger applies the configured level, format and output file.
func configureLogger(logger *logrus.Logger, cfg *config.LoggingConfig) {
	if level, err := logrus.ParseLevel(cfg.Level); err == nil {
		logger.SetLevel(level)
	}

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.WithError(err).Warn("Could not open log file, using stderr")
		} else {
			logger.SetOutput(f)
		}
	}
}
