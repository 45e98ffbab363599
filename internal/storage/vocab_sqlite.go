package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sharckhai/neo-command/internal/vocab"
	_ "modernc.org/sqlite"
)

// VocabCache persists classifier answers. Rows are only ever inserted; an
// existing answer for the same text is never overwritten.
type VocabCache struct {
	db *sql.DB
}

var _ vocab.Cache = (*VocabCache)(nil)

// OpenVocabCache opens or creates the classification cache at path.
func OpenVocabCache(path string) (*VocabCache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening vocab cache: %w", err)
	}
	db.SetMaxOpenConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS classifications (
			version TEXT NOT NULL,
			domain TEXT NOT NULL,
			text_key TEXT NOT NULL,
			raw_text TEXT NOT NULL,
			canonical_key TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			PRIMARY KEY (version, domain, text_key)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vocab cache schema: %w", err)
	}
	return &VocabCache{db: db}, nil
}

// Close closes the database connection.
func (c *VocabCache) Close() error {
	return c.db.Close()
}

// Lookup returns the cached key for textKey. An empty key with found set
// is an explicit no-match.
func (c *VocabCache) Lookup(ctx context.Context, version string, d vocab.Domain, textKey string) (string, bool, error) {
	var key string
	err := c.db.QueryRowContext(ctx,
		`SELECT canonical_key FROM classifications WHERE version = ? AND domain = ? AND text_key = ?`,
		version, string(d), textKey,
	).Scan(&key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up %s: %w", textKey, err)
	}
	return key, true, nil
}

// Store records an answer. An empty key records an explicit no-match.
func (c *VocabCache) Store(ctx context.Context, version string, d vocab.Domain, textKey, raw, key string) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO classifications (version, domain, text_key, raw_text, canonical_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		version, string(d), textKey, raw, key, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("storing %s: %w", textKey, err)
	}
	return nil
}

// CacheStats summarizes the cache contents for one vocabulary version.
type CacheStats struct {
	Version  string         `json:"version"`
	Total    int            `json:"total"`
	NoMatch  int            `json:"no_match"`
	ByDomain map[string]int `json:"by_domain"`
}

// Stats returns counts for version.
func (c *VocabCache) Stats(ctx context.Context, version string) (CacheStats, error) {
	stats := CacheStats{Version: version, ByDomain: make(map[string]int)}
	rows, err := c.db.QueryContext(ctx,
		`SELECT domain, COUNT(*), SUM(CASE WHEN canonical_key = '' THEN 1 ELSE 0 END)
		 FROM classifications WHERE version = ? GROUP BY domain`, version)
	if err != nil {
		return stats, fmt.Errorf("reading cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var domain string
		var n, none int
		if err := rows.Scan(&domain, &n, &none); err != nil {
			return stats, err
		}
		stats.ByDomain[domain] = n
		stats.Total += n
		stats.NoMatch += none
	}
	return stats, rows.Err()
}
