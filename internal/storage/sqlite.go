package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sharckhai/neo-command/internal/graph"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite export of a built graph.
type DB struct {
	db *sql.DB
}

// OpenDB opens or creates a SQLite database at the given path.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if err := createGraphSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createGraphSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS nodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			name TEXT NOT NULL,
			region TEXT,
			attrs_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type);

		CREATE TABLE IF NOT EXISTS edges (
			id INTEGER PRIMARY KEY,
			source TEXT NOT NULL,
			target TEXT NOT NULL,
			type TEXT NOT NULL,
			confidence REAL,
			attrs_json TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_edges_type ON edges(type);
		CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source);
		CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target);

		-- Facility free text for ad hoc inspection
		CREATE VIRTUAL TABLE IF NOT EXISTS facility_fts USING fts5(
			id,
			name,
			raw_text,
			description
		);
	`
	_, err := db.Exec(schema)
	return err
}

// ExportStats reports what WriteGraph stored.
type ExportStats struct {
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`
}

// WriteGraph replaces the database contents with g in one transaction.
func (d *DB) WriteGraph(g *graph.Graph) (ExportStats, error) {
	var stats ExportStats

	tx, err := d.db.Begin()
	if err != nil {
		return stats, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "facility_fts"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return stats, fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	nodeStmt, err := tx.Prepare(`INSERT INTO nodes (id, type, name, region, attrs_json) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("preparing node insert: %w", err)
	}
	defer nodeStmt.Close()

	ftsStmt, err := tx.Prepare(`INSERT INTO facility_fts (id, name, raw_text, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for _, n := range g.Nodes("") {
		attrs, region := nodeAttrs(n)
		attrsJSON, err := json.Marshal(attrs)
		if err != nil {
			return stats, fmt.Errorf("marshaling node %s: %w", n.ID, err)
		}
		if _, err := nodeStmt.Exec(n.ID, string(n.Type), n.Name(), nullableStringValue(region), string(attrsJSON)); err != nil {
			return stats, fmt.Errorf("inserting node %s: %w", n.ID, err)
		}
		if f := n.Facility; f != nil {
			raw := strings.Join(append(append(append([]string{}, f.RawProcedures...), f.RawCapabilities...), f.RawEquipment...), "\n")
			if _, err := ftsStmt.Exec(n.ID, f.Name, raw, f.Description); err != nil {
				return stats, fmt.Errorf("inserting fts for %s: %w", n.ID, err)
			}
		}
		stats.Nodes++
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges (id, source, target, type, confidence, attrs_json) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return stats, fmt.Errorf("preparing edge insert: %w", err)
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges("") {
		attrsJSON, err := json.Marshal(edgeAttrs(e))
		if err != nil {
			return stats, fmt.Errorf("marshaling edge %d: %w", e.ID, err)
		}
		var conf sql.NullFloat64
		if e.Confidence > 0 {
			conf = sql.NullFloat64{Float64: e.Confidence, Valid: true}
		}
		if _, err := edgeStmt.Exec(e.ID, e.From, e.To, string(e.Type), conf, string(attrsJSON)); err != nil {
			return stats, fmt.Errorf("inserting edge %d: %w", e.ID, err)
		}
		stats.Edges++
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("committing export: %w", err)
	}
	return stats, nil
}

func nodeAttrs(n *graph.Node) (any, string) {
	switch {
	case n.Region != nil:
		return n.Region, graph.KeyOf(n.ID)
	case n.Facility != nil:
		return n.Facility, n.Facility.Region
	case n.NGO != nil:
		return n.NGO, n.NGO.Region
	case n.Vocab != nil:
		return n.Vocab, ""
	}
	return struct{}{}, ""
}

func edgeAttrs(e *graph.Edge) map[string]any {
	attrs := make(map[string]any)
	set := func(k, v string) {
		if v != "" {
			attrs[k] = v
		}
	}
	set("source", e.Source)
	set("source_field", e.SourceField)
	set("raw_text", e.RawText)
	set("city", e.City)
	if e.Lacks != nil {
		attrs["lacks"] = e.Lacks
	}
	if e.Support != nil {
		attrs["support"] = e.Support
	}
	if e.Desert != nil {
		attrs["desert"] = e.Desert
	}
	return attrs
}

// CountByType returns the number of stored rows per node or edge type.
// table must be "nodes" or "edges".
func (d *DB) CountByType(table string) (map[string]int, error) {
	if table != "nodes" && table != "edges" {
		return nil, fmt.Errorf("unknown table: %s", table)
	}
	rows, err := d.db.Query(`SELECT type, COUNT(*) FROM ` + table + ` GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

// TextHit is one full-text search result.
type TextHit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SearchText runs a full-text query over facility names, raw claims and
// descriptions.
func (d *DB) SearchText(query string, limit int) ([]TextHit, error) {
	q := prepareFTSQuery(query)
	if q == "" {
		return nil, nil
	}
	rows, err := d.db.Query(`SELECT id, name FROM facility_fts WHERE facility_fts MATCH ? ORDER BY rank LIMIT ?`, q, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	var hits []TextHit
	for rows.Next() {
		var h TextHit
		if err := rows.Scan(&h.ID, &h.Name); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// nullableStringValue converts a string to sql.NullString, treating empty as NULL.
func nullableStringValue(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// prepareFTSQuery escapes special characters for FTS5 queries.
func prepareFTSQuery(query string) string {
	query = strings.TrimSpace(query)
	if query == "" {
		return query
	}

	if strings.ContainsAny(query, "\"*+-:(){}[]^~") {
		query = strings.ReplaceAll(query, "\"", "\"\"")
		return "\"" + query + "\""
	}

	return query
}
