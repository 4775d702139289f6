/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes a caption search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT).
// NameContains restricts matches to images whose file name contains the
// substring (case-insensitive). Uncaptioned selects images without a caption
// instead of full-text matching; it ignores Text.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text         string
	NameContains string
	Uncaptioned  bool
	Limit        int
	Offset       int
}

// SearchResult represents a single match row.
// Snippet is a highlighted excerpt using [ ] markers when FTS text is used.
type SearchResult struct {
	ImageID int64
	Name    string
	Path    string
	Snippet string
}

// Search performs full-text search over the caption index with optional
// filters. When q.Text is empty, it falls back to a non-FTS scan over captions
// with filters applied.
func Search(ctx context.Context, libraryRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(libraryRoot) == "" {
		return nil, errors.New("library root is required")
	}
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	if q.Uncaptioned {
		return uncaptionedDB(ctx, db, q)
	}
	// Build dynamic SQL
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT i.image_id, i.name, i.path, snippet(fts_captions, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_captions JOIN images i ON fts_captions.rowid = i.image_id\n")
		sb.WriteString("WHERE fts_captions MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT i.image_id, i.name, i.path, substr(c.text, 1, 80)\n")
		sb.WriteString("FROM images i JOIN captions c ON c.image_id = i.image_id\nWHERE 1=1\n")
	}
	if s := strings.TrimSpace(q.NameContains); s != "" {
		sb.WriteString(" AND lower(i.name) LIKE ?\n")
		args = append(args, likeContains(strings.ToLower(s)))
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY i.name, i.image_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.ImageID, &r.Name, &r.Path, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// uncaptionedDB lists indexed images that have no caption row, i.e. the work
// still remaining in a labeling pass.
func uncaptionedDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	var args []any
	var sb strings.Builder
	sb.WriteString(`SELECT i.image_id, i.name, i.path, ''
		FROM images i
		LEFT JOIN captions c ON c.image_id = i.image_id
		WHERE c.image_id IS NULL
`)
	if s := strings.TrimSpace(q.NameContains); s != "" {
		sb.WriteString(" AND lower(i.name) LIKE ?\n")
		args = append(args, likeContains(strings.ToLower(s)))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY i.name, i.image_id\nLIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)
	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("uncaptioned query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ImageID, &r.Name, &r.Path, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CaptionForPath returns the indexed caption text for an image path.
// The second return reports whether a caption row exists.
func CaptionForPath(ctx context.Context, libraryRoot string, path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		return "", false, errors.New("path is required")
	}
	db, err := InitOrOpenIndex(libraryRoot)
	if err != nil {
		return "", false, err
	}
	defer db.Close()
	var text string
	err = db.QueryRowContext(ctx, `SELECT c.text FROM captions c JOIN images i ON i.image_id = c.image_id WHERE i.path=?`, path).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return text, true, nil
}

func likeContains(s string) string { return "%" + s + "%" }
