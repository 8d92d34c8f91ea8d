package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"cutroom/internal/assets"
	"cutroom/internal/auth"
	"cutroom/internal/cache"
	"cutroom/internal/config"
	"cutroom/internal/editlock"
	"cutroom/internal/engine"
	"cutroom/internal/project"
	"cutroom/internal/share"
	"cutroom/pkg/timeline"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// EditorServer is the HTTP host for the timeline editor: project
// storage, the asset library, edit locking and one editing engine per
// open project.
type EditorServer struct {
	config       *config.Config
	store        *project.Store
	library      *assets.Library
	locks        *editlock.Manager
	authService  *auth.Service
	shareService *share.Service
	snapshots    *cache.SnapshotCache
	watcher      *fsnotify.Watcher
	logger       *logrus.Logger
	httpServer   *http.Server

	enginesMu sync.Mutex
	engines   map[string]*projectEngine
}

// projectEngine bundles one project's engine with the preview scheduler
// that throttles drag recomputation. The scheduler's callback refreshes
// lastPreview, which the preview endpoint serves without recomputing.
type projectEngine struct {
	eng   *engine.Engine
	sched *engine.Scheduler

	mu          sync.Mutex
	lastPreview *engine.Preview
}

func (pe *projectEngine) refreshPreview() {
	preview := pe.eng.Tick()
	pe.mu.Lock()
	pe.lastPreview = preview
	pe.mu.Unlock()
}

func (pe *projectEngine) preview() *engine.Preview {
	pe.mu.Lock()
	defer pe.mu.Unlock()
	return pe.lastPreview
}

// libraryResolver adapts the asset library to the engine's read-only
// metadata interface.
type libraryResolver struct {
	library *assets.Library
}

func (r libraryResolver) ResolveAsset(assetID string) (engine.AssetInfo, error) {
	asset, err := r.library.Resolve(assetID)
	if err != nil {
		return engine.AssetInfo{}, err
	}
	return engine.AssetInfo{
		Type:       asset.Type,
		DurationMs: asset.DurationMs,
		Width:      asset.Width,
		Height:     asset.Height,
	}, nil
}

// NewEditorServer creates a new editor server instance
func NewEditorServer(cfg *config.Config, store *project.Store, library *assets.Library, authService *auth.Service, logger *logrus.Logger) (*EditorServer, error) {
	shareSvc, err := share.NewService(&cfg.Ngrok)
	if err != nil {
		log.Printf("Warning: Share tunnel not available: %v", err)
		shareSvc = nil
	}

	lockTimeout := time.Duration(cfg.Editing.LockTimeoutSeconds) * time.Second

	server := &EditorServer{
		config:       cfg,
		store:        store,
		library:      library,
		locks:        editlock.NewManager(lockTimeout),
		authService:  authService,
		shareService: shareSvc,
		snapshots:    cache.NewSnapshotCache(),
		logger:       logger,
		engines:      make(map[string]*projectEngine),
	}

	return server, nil
}

// ScanAssetLibrary walks the configured media directory and registers
// every supported file.
func (ms *EditorServer) ScanAssetLibrary() error {
	if !ms.config.Assets.ScanOnStartup {
		log.Println("Skipping asset scan (disabled in config)")
		return nil
	}

	log.Printf("Scanning asset library in: %s", ms.config.Assets.LibraryPath)
	return ms.library.Scan(ms.config.Assets.LibraryPath)
}

// engineFor returns the editing engine for a project, creating it on
// first access from the stored timeline snapshot.
func (ms *EditorServer) engineFor(projectID string) (*projectEngine, error) {
	ms.enginesMu.Lock()
	defer ms.enginesMu.Unlock()

	if pe, ok := ms.engines[projectID]; ok {
		return pe, nil
	}

	proj, err := ms.store.Get(projectID)
	if err != nil {
		return nil, err
	}

	persist := func(ctx context.Context, timelineID string, snapshot *timeline.Timeline) error {
		ms.snapshots.SetSnapshot(timelineID, snapshot)
		return ms.store.SaveTimeline(timelineID, snapshot)
	}

	// Mutations stay enabled only while some session holds a live edit
	// lock on the project; an expired lock degrades the engine to
	// read-only until the next acquisition.
	guard := func() bool {
		return ms.locks.Holder(projectID) != nil
	}

	eng := engine.New(projectID, proj.Timeline, libraryResolver{library: ms.library}, persist, engine.Options{
		SnapThresholdMs: ms.config.Editing.SnapThresholdMs,
		Logger:          ms.logger,
		Guard:           guard,
	})

	pe := &projectEngine{eng: eng}
	pe.sched = engine.NewScheduler(0, pe.refreshPreview)
	go pe.sched.Run()

	ms.engines[projectID] = pe
	return pe, nil
}

// dropEngine evicts a project's engine, stopping its preview scheduler.
// Called when the project is deleted.
func (ms *EditorServer) dropEngine(projectID string) {
	ms.enginesMu.Lock()
	pe, ok := ms.engines[projectID]
	if ok {
		delete(ms.engines, projectID)
	}
	ms.enginesMu.Unlock()

	if ok {
		pe.sched.Stop()
	}
	ms.snapshots.Delete(projectID)
}

// Start starts the editor server
func (ms *EditorServer) Start() {
	// Start file watcher if enabled
	if ms.config.Assets.WatchForChanges {
		if err := ms.startFileWatcher(); err != nil {
			log.Printf("Warning: Could not start file watcher: %v", err)
		} else {
			defer ms.stopFileWatcher()
		}
	}

	handler := ms.buildHandler()

	projects, err := ms.store.List()
	projectCount := 0
	if err == nil {
		projectCount = len(projects)
	}

	localAddress := fmt.Sprintf("http://%s", ms.config.GetAddress())

	log.Printf("Cutroom server starting on port %s", ms.config.Server.Port)
	log.Printf("Project store contains %d projects", projectCount)
	if ms.config.Assets.WatchForChanges {
		log.Printf("File watcher monitoring: %s", ms.config.Assets.LibraryPath)
	}
	log.Printf("Local access: %s", localAddress)

	// Start share tunnel if enabled
	if ms.shareService != nil {
		ctx := context.Background()
		if err := ms.shareService.StartTunnel(ctx, localAddress); err != nil {
			log.Printf("Warning: Could not start share tunnel: %v", err)
		} else {
			defer ms.shareService.Stop()
		}
	}

	ms.httpServer = &http.Server{
		Addr:        ms.config.GetAddress(),
		Handler:     handler,
		ReadTimeout: time.Duration(ms.config.Server.ReadTimeout) * time.Second,
	}

	if err := ms.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server failed to start:", err)
	}
}

// buildHandler assembles the route table and wraps it with the
// middleware chain (outermost first: panic recovery, logging, CORS,
// auth).
func (ms *EditorServer) buildHandler() http.Handler {
	mux := http.NewServeMux()
	ms.setupRoutes(mux)

	var handler http.Handler = mux
	handler = ms.authMiddleware(handler)
	handler = ms.corsMiddleware(handler)
	handler = ms.requestLoggingMiddleware(handler)
	handler = ms.panicRecoveryMiddleware(handler)
	return handler
}

func (ms *EditorServer) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", ms.handleHome)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir(ms.config.Server.StaticDir))))
	mux.HandleFunc("/health", ms.handleHealthCheck)
	mux.HandleFunc("/api/config", ms.handleGetConfig)

	// Auth routes
	mux.HandleFunc("/login", ms.handleLogin)
	mux.HandleFunc("/api/auth/login", ms.handleAuthLogin)
	mux.HandleFunc("/api/auth/logout", ms.handleAuthLogout)
	mux.HandleFunc("/api/auth/register", ms.handleAuthRegister)
	mux.HandleFunc("/api/auth/me", ms.handleAuthMe)

	// Asset routes
	mux.HandleFunc("/api/assets", ms.handleGetAssets)
	mux.HandleFunc("/api/assets/scan", ms.handleScanAssets)
	mux.HandleFunc("/api/assets/upload", ms.handleUploadAsset)
	mux.HandleFunc("/media/", ms.handleStreamAsset)

	// Project routes
	mux.HandleFunc("/api/projects", ms.handleProjects)
	mux.HandleFunc("/api/projects/", ms.handleProjectSubroutes)
}

// handleProjectSubroutes dispatches /api/projects/{id}/... by path
// segment. Gesture and edit operations live under the project they
// mutate.
func (ms *EditorServer) handleProjectSubroutes(w http.ResponseWriter, r *http.Request) {
	projectID, rest, verr := ms.validateProjectPath(r.URL.Path)
	if verr != nil {
		ms.respondWithValidationError(w, r, []ValidationError{*verr})
		return
	}

	switch {
	case rest == "":
		ms.handleProjectByID(w, r, projectID)
	case rest == "timeline":
		ms.handleGetTimeline(w, r, projectID)
	case rest == "lock":
		ms.handleLock(w, r, projectID)
	case rest == "lock/heartbeat":
		ms.handleLockHeartbeat(w, r, projectID)
	case rest == "gesture/start":
		ms.handleGestureStart(w, r, projectID)
	case rest == "gesture/move":
		ms.handleGestureMove(w, r, projectID)
	case rest == "gesture/preview":
		ms.handleGesturePreview(w, r, projectID)
	case rest == "gesture/commit":
		ms.handleGestureCommit(w, r, projectID)
	case rest == "gesture/cancel":
		ms.handleGestureCancel(w, r, projectID)
	case rest == "split":
		ms.handleSplitClip(w, r, projectID)
	case rest == "snap-previous":
		ms.handleSnapToPrevious(w, r, projectID)
	case rest == "clips":
		ms.handleInsertClip(w, r, projectID)
	case rest == "audio-clips":
		ms.handleInsertAudioClip(w, r, projectID)
	case len(rest) > len("clips/") && rest[:len("clips/")] == "clips/":
		ms.handleDeleteClip(w, r, projectID, rest[len("clips/"):])
	case rest == "groups":
		ms.handleCreateGroup(w, r, projectID)
	case rest == "ungroup":
		ms.handleUngroup(w, r, projectID)
	case rest == "selection":
		ms.handleSetSelection(w, r, projectID)
	default:
		ms.respondWithError(w, r, http.StatusNotFound, "Unknown project endpoint", nil)
	}
}

// Shutdown gracefully shuts down the editor server
func (ms *EditorServer) Shutdown() {
	log.Println("Shutting down editor server...")

	// Stop file watcher
	ms.stopFileWatcher()

	// Stop per-project preview schedulers
	ms.enginesMu.Lock()
	engines := make([]*projectEngine, 0, len(ms.engines))
	for id, pe := range ms.engines {
		engines = append(engines, pe)
		delete(ms.engines, id)
	}
	ms.enginesMu.Unlock()
	for _, pe := range engines {
		pe.sched.Stop()
	}

	if ms.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		ms.httpServer.Shutdown(ctx)
	}

	log.Println("Editor server shutdown complete")
}
