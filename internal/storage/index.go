/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gocaptioner/internal/domain"
	applog "gocaptioner/internal/log"
	"gocaptioner/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-library ephemeral/index data under the image folder.
	IndexDirName  = ".gocaptioner"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// CaptionLoader reads the sidecar caption for an image path. A missing sidecar
// yields ("", nil). captions.FileStore satisfies this.
type CaptionLoader interface {
	Load(imagePath string) (string, error)
}

// IndexPath returns the full path to the library's embedded index database file.
func IndexPath(libraryRoot string) string {
	return filepath.Join(libraryRoot, IndexDirName, IndexFileName)
}

// BackupsDir returns the folder that holds index backups and crash reports
// for a library.
func BackupsDir(libraryRoot string) string {
	return filepath.Join(libraryRoot, IndexDirName, "backups")
}

// InitOrOpenIndex ensures that the per-library SQLite index exists at
// .gocaptioner/index.sqlite, opens the database, enables WAL mode, and ensures
// the meta/version tables exist. The returned *sql.DB is ready for use.
// Callers may close it when no longer needed.
func InitOrOpenIndex(libraryRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", libraryRoot),
	)
	if strings.TrimSpace(libraryRoot) == "" {
		return nil, errors.New("library root is required")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Join(libraryRoot, IndexDirName), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}

	path := IndexPath(libraryRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enforce foreign keys; captions cascade when an image row goes away.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	// Ensure core index schema exists (images, captions, FTS, previews)
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	// Run migrations to bring DB schema up to date
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	// Create tables if not exist
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	// Check if a version row exists
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Insert new row with current schemaVersion for a fresh DB
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just log and continue
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add lookup indexes for caption freshness queries and optimize FTS
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_captions_updated ON captions(updated_at);`,
				`CREATE INDEX IF NOT EXISTS idx_images_mtime ON images(mtime);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_captions(fts_captions) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Images catalog: one row per image file in the library, keyed by path.
		`CREATE TABLE IF NOT EXISTS images (
			image_id INTEGER PRIMARY KEY,
			name     TEXT    NOT NULL,
			path     TEXT    NOT NULL UNIQUE,
			mtime    INTEGER NOT NULL DEFAULT 0,
			size     INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE INDEX IF NOT EXISTS idx_images_name ON images(name);`,

		// Sidecar caption text per image. rowid of fts_captions == image_id.
		`CREATE TABLE IF NOT EXISTS captions (
			image_id   INTEGER PRIMARY KEY,
			text       TEXT    NOT NULL,
			updated_at TEXT    NOT NULL,
			FOREIGN KEY(image_id) REFERENCES images(image_id) ON DELETE CASCADE
		);`,

		// Contentless FTS5 index fed from captions via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_captions USING fts5(
			text,
			content='',
			tokenize = 'unicode61'
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with captions.text
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS captions_ai AFTER INSERT ON captions BEGIN
			INSERT INTO fts_captions(rowid, text) VALUES (new.image_id, new.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS captions_ad AFTER DELETE ON captions BEGIN
			INSERT INTO fts_captions(fts_captions, rowid, text) VALUES ('delete', old.image_id, old.text);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS captions_au AFTER UPDATE OF text ON captions BEGIN
			INSERT INTO fts_captions(fts_captions, rowid, text) VALUES ('delete', old.image_id, old.text);
			INSERT INTO fts_captions(rowid, text) VALUES (new.image_id, new.text);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	// Previews cache schema lives alongside the index (thumbnail blobs, LRU metadata).
	if err := EnsurePreviewsMigrated(ctx, db); err != nil {
		return err
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, libraryRoot string, entries []domain.ImageEntry, store CaptionLoader) (bool, error) {
	path := IndexPath(libraryRoot)
	// Try to open DB; if fails, attempt backup+delete+rebuild
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, libraryRoot, entries, store); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	// quick_check for corruption
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	// Probe core table
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM images LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	// Backup and remove existing DB file
	backupIndexFile(path)
	_ = os.Remove(path)
	// Rebuild
	if err := RebuildIndex(ctx, libraryRoot, entries, store); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .gocaptioner/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty ensures the DB exists and, if the images table is empty,
// populates it from the given library entries and their sidecar captions.
func BuildIndexIfEmpty(ctx context.Context, libraryRoot string, entries []domain.ImageEntry, store CaptionLoader) error {
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Check if images has any rows
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM images;").Scan(&cnt); err != nil {
		return fmt.Errorf("check images count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildRowsFromLibrary(ctx, db, entries, store)
}

// UpdateIndex updates the embedded index with the current library contents.
// Minimal safe implementation: replace the images/captions content from the entries.
func UpdateIndex(ctx context.Context, libraryRoot string, entries []domain.ImageEntry, store CaptionLoader) error {
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildRowsFromLibrary(ctx, db, entries, store)
}

// RebuildIndex drops and recreates core index tables and rebuilds content from the library.
// It preserves meta/version tables. This is a safe operation; the index is
// derived from the image files and their sidecars.
func RebuildIndex(ctx context.Context, libraryRoot string, entries []domain.ImageEntry, store CaptionLoader) error {
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Drop core tables inside a transaction and recreate schema
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS previews;",
		"DROP TRIGGER IF EXISTS captions_ai;",
		"DROP TRIGGER IF EXISTS captions_ad;",
		"DROP TRIGGER IF EXISTS captions_au;",
		"DROP TABLE IF EXISTS captions;",
		"DROP TABLE IF EXISTS images;",
		"DROP TABLE IF EXISTS fts_captions;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	// Recreate schema and populate
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildRowsFromLibrary(ctx, db, entries, store)
}

// rebuildRowsFromLibrary replaces the images and captions table content from
// the given entries. Caption text comes from the sidecar files; an image with
// no sidecar gets an images row but no captions row. Unreadable sidecars are
// logged and skipped.
func rebuildRowsFromLibrary(ctx context.Context, db *sql.DB, entries []domain.ImageEntry, store CaptionLoader) error {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_rebuild")
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	// Clearing captions first fires the FTS delete triggers per row.
	if _, err := tx.ExecContext(ctx, "DELETE FROM captions;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear captions: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM images;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear images: %w", err)
	}
	insImg, err := tx.PrepareContext(ctx, "INSERT INTO images(name, path, mtime, size) VALUES(?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert images: %w", err)
	}
	defer insImg.Close()
	insCap, err := tx.PrepareContext(ctx, "INSERT INTO captions(image_id, text, updated_at) VALUES(?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert captions: %w", err)
	}
	defer insCap.Close()
	for _, e := range entries {
		var mtime, size int64
		if fi, err := os.Stat(e.Path); err == nil {
			mtime = fi.ModTime().Unix()
			size = fi.Size()
		}
		res, err := insImg.ExecContext(ctx, e.Name, e.Path, mtime, size)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert image %s: %w", e.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("image id %s: %w", e.Name, err)
		}
		text, err := store.Load(e.Path)
		if err != nil {
			l.Warn("sidecar unreadable, skipping", slog.String("path", e.Path), slog.Any("err", err))
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := insCap.ExecContext(ctx, id, text, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert caption %s: %w", e.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpsertCaption refreshes a single image's index row after a caption save.
// The image row is created on demand so a save before the first full index
// build still lands in the FTS table.
func UpsertCaption(ctx context.Context, db *sql.DB, name, path, text string) error {
	var mtime, size int64
	if fi, err := os.Stat(path); err == nil {
		mtime = fi.ModTime().Unix()
		size = fi.Size()
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO images(name, path, mtime, size) VALUES(?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET name=excluded.name, mtime=excluded.mtime, size=excluded.size`, name, path, mtime, size); err != nil {
		return fmt.Errorf("upsert image: %w", err)
	}
	var id int64
	if err := db.QueryRowContext(ctx, `SELECT image_id FROM images WHERE path=?`, path).Scan(&id); err != nil {
		return fmt.Errorf("image id: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if strings.TrimSpace(text) == "" {
		if _, err := db.ExecContext(ctx, `DELETE FROM captions WHERE image_id=?`, id); err != nil {
			return fmt.Errorf("delete caption: %w", err)
		}
		return nil
	}
	// The captions_au trigger only fires on UPDATE OF text, so the upsert is
	// split into explicit update-or-insert to keep FTS in sync.
	res, err := db.ExecContext(ctx, `UPDATE captions SET text=?, updated_at=? WHERE image_id=?`, text, now, id)
	if err != nil {
		return fmt.Errorf("update caption: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.ExecContext(ctx, `INSERT INTO captions(image_id, text, updated_at) VALUES(?,?,?)`, id, text, now); err != nil {
			return fmt.Errorf("insert caption: %w", err)
		}
	}
	return nil
}

// CountImages returns the number of indexed images, for status reporting.
func CountImages(ctx context.Context, db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM images`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count images: %w", err)
	}
	return n, nil
}
