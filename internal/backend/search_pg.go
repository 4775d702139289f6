/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"gocaptioner/internal/storage"
)

// SearchPG executes a caption search over the Postgres captions table using
// tsvector and returns results mapped to storage.SearchResult so the local
// SQLite index and the server stay comparable in parity tests.
func SearchPG(ctx context.Context, db *sql.DB, libraryID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)

	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	useFTS := !q.Uncaptioned && strings.TrimSpace(q.Text) != ""
	switch {
	case q.Uncaptioned:
		// The desktop index models "uncaptioned" as a missing caption row;
		// pushed records carry an empty string instead.
		b.WriteString("SELECT c.id, c.name, c.path, '' AS snippet FROM captions c ")
		b.WriteString("WHERE c.library_id = " + place(libraryID) + " AND c.caption = '' ")
	case useFTS:
		b.WriteString("SELECT c.id, c.name, c.path, ")
		b.WriteString("COALESCE(ts_headline('simple', c.caption, plainto_tsquery('simple', " + place(q.Text) + "), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=12'), '') AS snippet ")
		b.WriteString("FROM captions c WHERE c.library_id = " + place(libraryID) + " ")
		b.WriteString("AND c.search_vector @@ plainto_tsquery('simple', $1) ")
	default:
		b.WriteString("SELECT c.id, c.name, c.path, left(c.caption, 80) AS snippet FROM captions c ")
		b.WriteString("WHERE c.library_id = " + place(libraryID) + " AND c.caption <> '' ")
	}

	if s := strings.TrimSpace(q.NameContains); s != "" {
		b.WriteString(" AND lower(c.name) LIKE " + place("%"+strings.ToLower(s)+"%") + " ")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY c.name, c.id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.ImageID, &r.Name, &r.Path, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
