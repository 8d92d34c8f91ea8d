package project

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"cutroom/pkg/timeline"
)

// Project is a stored editing project. The timeline rides along as a
// whole snapshot; every save is a full replacement, last submitted wins.
type Project struct {
	ID         string             `json:"id"`
	Name       string             `json:"name"`
	Owner      string             `json:"owner,omitempty"`
	DurationMs int64              `json:"durationMs"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
	Timeline   *timeline.Timeline `json:"timeline,omitempty"`
}

// Store wraps a *sql.DB providing higher-level helper methods for the
// project snapshot store. It is safe for concurrent use because the
// underlying *sql.DB is concurrency-safe.
type Store struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for better performance
	insertProjectStmt  *sql.Stmt
	updateTimelineStmt *sql.Stmt
	renameProjectStmt  *sql.Stmt
	getProjectStmt     *sql.Stmt
	listProjectsStmt   *sql.Stmt
	deleteProjectStmt  *sql.Stmt
}

// NewStore opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewStore(dbPath string) (*Store, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool - adjusted for SQLite
	conn.SetMaxOpenConns(5) // SQLite works better with fewer connections
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	// Enable WAL mode for better concurrency
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=2000;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA auto_vacuum=INCREMENTAL;",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	s := &Store{
		conn:   conn,
		logger: logger,
	}

	if err := s.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := s.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Project store initialized successfully")
	return s, nil
}

// Conn exposes the underlying connection so collaborators (the asset
// registry) can share the same database file and pragmas.
func (s *Store) Conn() *sql.DB {
	return s.conn
}

// createTables creates tables and indices if they do not already exist, then
// executes any migrations. This is idempotent and safe to call multiple times.
func (s *Store) createTables() error {
	projectsTable := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		timeline TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`

	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_projects_name ON projects(name);",
		"CREATE INDEX IF NOT EXISTS idx_projects_updated ON projects(updated_at);",
	}

	if _, err := s.conn.Exec(projectsTable); err != nil {
		return err
	}
	for _, index := range indices {
		if _, err := s.conn.Exec(index); err != nil {
			return err
		}
	}

	// Run migrations
	if err := s.runMigrations(); err != nil {
		return err
	}

	return nil
}

// runMigrations performs incremental schema updates in-place. Each migration
// should be idempotent and safe to re-run; keep them lightweight.
func (s *Store) runMigrations() error {
	// Migration 1: add a denormalized duration_ms column so listings do
	// not have to decode every snapshot.
	var durationExists bool
	err := s.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('projects')
		WHERE name = 'duration_ms'`).Scan(&durationExists)
	if err != nil {
		return err
	}
	if !durationExists {
		if _, err = s.conn.Exec("ALTER TABLE projects ADD COLUMN duration_ms INTEGER DEFAULT 0"); err != nil {
			return err
		}
	}

	// Migration 2: add an owner column for multi-user installs.
	var ownerExists bool
	err = s.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM pragma_table_info('projects')
		WHERE name = 'owner'`).Scan(&ownerExists)
	if err != nil {
		return err
	}
	if !ownerExists {
		if _, err = s.conn.Exec("ALTER TABLE projects ADD COLUMN owner TEXT"); err != nil {
			return err
		}
		if _, err = s.conn.Exec("CREATE INDEX IF NOT EXISTS idx_projects_owner ON projects(owner)"); err != nil {
			return err
		}
		s.logger.Info("Added owner column and index to projects table")
	}

	return nil
}

// prepareStatements prepares commonly used SQL statements for better performance
func (s *Store) prepareStatements() error {
	var err error

	s.insertProjectStmt, err = s.conn.Prepare(`
		INSERT INTO projects (id, name, timeline, duration_ms, owner, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert project statement: %w", err)
	}

	s.updateTimelineStmt, err = s.conn.Prepare(`
		UPDATE projects SET timeline = ?, duration_ms = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare update timeline statement: %w", err)
	}

	s.renameProjectStmt, err = s.conn.Prepare(`
		UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare rename project statement: %w", err)
	}

	s.getProjectStmt, err = s.conn.Prepare(`
		SELECT id, name, timeline, duration_ms, COALESCE(owner, ''), created_at, updated_at
		FROM projects WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare get project statement: %w", err)
	}

	s.listProjectsStmt, err = s.conn.Prepare(`
		SELECT id, name, duration_ms, COALESCE(owner, ''), created_at, updated_at
		FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return fmt.Errorf("failed to prepare list projects statement: %w", err)
	}

	s.deleteProjectStmt, err = s.conn.Prepare(`DELETE FROM projects WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete project statement: %w", err)
	}

	return nil
}

// Create stores a new project with an empty (or provided) timeline and
// returns it. A nil timeline gets a single default layer and narration
// track so the editor has somewhere to drop clips.
func (s *Store) Create(name, owner string, tl *timeline.Timeline) (*Project, error) {
	if tl == nil {
		tl = defaultTimeline()
	}
	tl.Recalculate()

	blob, err := json.Marshal(tl)
	if err != nil {
		return nil, fmt.Errorf("failed to encode timeline: %w", err)
	}

	p := &Project{
		ID:         uuid.New().String(),
		Name:       name,
		Owner:      owner,
		DurationMs: tl.DurationMs,
		Timeline:   tl,
	}
	if _, err := s.insertProjectStmt.Exec(p.ID, p.Name, string(blob), p.DurationMs, p.Owner); err != nil {
		return nil, fmt.Errorf("failed to insert project: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"project_id": p.ID,
		"name":       p.Name,
	}).Info("Created project")
	return p, nil
}

// SaveTimeline replaces a project's timeline snapshot wholesale.
func (s *Store) SaveTimeline(projectID string, tl *timeline.Timeline) error {
	blob, err := json.Marshal(tl)
	if err != nil {
		return fmt.Errorf("failed to encode timeline: %w", err)
	}
	res, err := s.updateTimelineStmt.Exec(string(blob), tl.DurationMs, projectID)
	if err != nil {
		return fmt.Errorf("failed to save timeline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}

// Rename updates a project's display name.
func (s *Store) Rename(projectID, name string) error {
	res, err := s.renameProjectStmt.Exec(name, projectID)
	if err != nil {
		return fmt.Errorf("failed to rename project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}

// Get loads a project including its decoded timeline snapshot.
func (s *Store) Get(projectID string) (*Project, error) {
	var (
		p    Project
		blob string
	)
	err := s.getProjectStmt.QueryRow(projectID).Scan(
		&p.ID, &p.Name, &blob, &p.DurationMs, &p.Owner, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("project %s not found", projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	tl := &timeline.Timeline{}
	if err := json.Unmarshal([]byte(blob), tl); err != nil {
		return nil, fmt.Errorf("failed to decode timeline for project %s: %w", projectID, err)
	}
	p.Timeline = tl
	return &p, nil
}

// List returns all projects without their timeline snapshots, newest first.
func (s *Store) List() ([]Project, error) {
	rows, err := s.listProjectsStmt.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.ID, &p.Name, &p.DurationMs, &p.Owner, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Delete removes a project and its snapshot.
func (s *Store) Delete(projectID string) error {
	res, err := s.deleteProjectStmt.Exec(projectID)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s not found", projectID)
	}
	return nil
}

// Close releases prepared statements and the database connection.
func (s *Store) Close() error {
	stmts := []*sql.Stmt{
		s.insertProjectStmt,
		s.updateTimelineStmt,
		s.renameProjectStmt,
		s.getProjectStmt,
		s.listProjectsStmt,
		s.deleteProjectStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.conn.Close()
}

func defaultTimeline() *timeline.Timeline {
	return &timeline.Timeline{
		Layers: []timeline.Layer{
			{ID: uuid.New().String(), Name: "Layer 1", Order: 0, Visible: true},
		},
		AudioTracks: []timeline.AudioTrack{
			{ID: uuid.New().String(), Name: "Narration", Type: timeline.TrackNarration, Volume: 1},
		},
	}
}
