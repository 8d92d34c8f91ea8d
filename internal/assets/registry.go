package assets

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Asset is one registered media file in the library.
type Asset struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	FilePath   string    `json:"filePath"`
	FileSize   int64     `json:"fileSize"`
	DurationMs int64     `json:"durationMs"`
	Width      int       `json:"width,omitempty"`
	Height     int       `json:"height,omitempty"`
	Title      string    `json:"title,omitempty"`
	Artist     string    `json:"artist,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Registry is the sqlite-backed asset catalog. It shares the project
// store's connection so both live in one database file.
type Registry struct {
	conn *sql.DB

	insertAssetStmt  *sql.Stmt
	getAssetStmt     *sql.Stmt
	getByPathStmt    *sql.Stmt
	listAssetsStmt   *sql.Stmt
	deleteByPathStmt *sql.Stmt
}

// NewRegistry ensures the assets table exists on the given connection
// and prepares its statements.
func NewRegistry(conn *sql.DB) (*Registry, error) {
	table := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		file_path TEXT NOT NULL UNIQUE,
		file_size INTEGER NOT NULL,
		duration_ms INTEGER DEFAULT 0,
		width INTEGER DEFAULT 0,
		height INTEGER DEFAULT 0,
		title TEXT,
		artist TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);`
	indices := []string{
		"CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(type);",
		"CREATE INDEX IF NOT EXISTS idx_assets_file_path ON assets(file_path);",
	}

	if _, err := conn.Exec(table); err != nil {
		return nil, fmt.Errorf("failed to create assets table: %w", err)
	}
	for _, index := range indices {
		if _, err := conn.Exec(index); err != nil {
			return nil, fmt.Errorf("failed to create asset index: %w", err)
		}
	}

	r := &Registry{conn: conn}
	var err error

	r.insertAssetStmt, err = conn.Prepare(`
		INSERT INTO assets (id, type, file_path, file_size, duration_ms, width, height, title, artist)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			type = excluded.type,
			file_size = excluded.file_size,
			duration_ms = excluded.duration_ms,
			width = excluded.width,
			height = excluded.height,
			title = excluded.title,
			artist = excluded.artist`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert asset statement: %w", err)
	}

	r.getAssetStmt, err = conn.Prepare(`
		SELECT id, type, file_path, file_size, duration_ms, width, height,
		       COALESCE(title, ''), COALESCE(artist, ''), created_at
		FROM assets WHERE id = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get asset statement: %w", err)
	}

	r.getByPathStmt, err = conn.Prepare(`
		SELECT id, type, file_path, file_size, duration_ms, width, height,
		       COALESCE(title, ''), COALESCE(artist, ''), created_at
		FROM assets WHERE file_path = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare get asset by path statement: %w", err)
	}

	r.listAssetsStmt, err = conn.Prepare(`
		SELECT id, type, file_path, file_size, duration_ms, width, height,
		       COALESCE(title, ''), COALESCE(artist, ''), created_at
		FROM assets ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare list assets statement: %w", err)
	}

	r.deleteByPathStmt, err = conn.Prepare(`DELETE FROM assets WHERE file_path = ?`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare delete asset statement: %w", err)
	}

	return r, nil
}

// Upsert registers an asset, replacing any previous record for the same
// file path while keeping that record's id.
func (r *Registry) Upsert(a Asset) (Asset, error) {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if _, err := r.insertAssetStmt.Exec(
		a.ID, a.Type, a.FilePath, a.FileSize, a.DurationMs, a.Width, a.Height, a.Title, a.Artist); err != nil {
		return Asset{}, fmt.Errorf("failed to upsert asset: %w", err)
	}
	// The conflict path keeps the original row id; read it back.
	stored, err := r.GetByPath(a.FilePath)
	if err != nil {
		return Asset{}, err
	}
	return *stored, nil
}

// Get loads an asset by id.
func (r *Registry) Get(assetID string) (*Asset, error) {
	return r.scanOne(r.getAssetStmt.QueryRow(assetID), assetID)
}

// GetByPath loads an asset by its library file path.
func (r *Registry) GetByPath(filePath string) (*Asset, error) {
	return r.scanOne(r.getByPathStmt.QueryRow(filePath), filePath)
}

func (r *Registry) scanOne(row *sql.Row, key string) (*Asset, error) {
	var a Asset
	err := row.Scan(&a.ID, &a.Type, &a.FilePath, &a.FileSize, &a.DurationMs,
		&a.Width, &a.Height, &a.Title, &a.Artist, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("asset %s not found", key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	return &a, nil
}

// List returns all registered assets, newest first.
func (r *Registry) List() ([]Asset, error) {
	rows, err := r.listAssetsStmt.Query()
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var a Asset
		if err := rows.Scan(&a.ID, &a.Type, &a.FilePath, &a.FileSize, &a.DurationMs,
			&a.Width, &a.Height, &a.Title, &a.Artist, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan asset row: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// DeleteByPath removes the asset registered at the given file path.
func (r *Registry) DeleteByPath(filePath string) error {
	if _, err := r.deleteByPathStmt.Exec(filePath); err != nil {
		return fmt.Errorf("failed to delete asset: %w", err)
	}
	return nil
}

// Close releases the registry's prepared statements. The shared
// connection is owned by the project store and closed there.
func (r *Registry) Close() {
	stmts := []*sql.Stmt{
		r.insertAssetStmt,
		r.getAssetStmt,
		r.getByPathStmt,
		r.listAssetsStmt,
		r.deleteByPathStmt,
	}
	for _, stmt := range stmts {
		if stmt != nil {
			stmt.Close()
		}
	}
}
