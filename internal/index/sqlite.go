// Package index maintains the SQLite citation cache: indexed bibliography
// entries with full-text search plus the citation sites found across the
// document tree. The cache is derived state, rebuilt on demand and checked
// for staleness against a content hash of the bibliography.
package index

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/bibtidy/bibtidy/internal/bibtex"
	"github.com/bibtidy/bibtidy/internal/rewrite"
)

// schemaVersion is folded into the stored hash so old caches read as stale
// after a schema change.
const schemaVersion = "1"

// DB wraps the SQLite connection to one index file.
type DB struct {
	db *sql.DB
}

// Open opens or creates the index database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite doesn't support concurrent writes
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			key TEXT PRIMARY KEY,
			entry_type TEXT NOT NULL,
			author TEXT,
			year TEXT,
			title TEXT
		);

		CREATE VIRTUAL TABLE IF NOT EXISTS entries_fts USING fts5(
			key,
			author,
			title
		);

		CREATE TABLE IF NOT EXISTS sites (
			path TEXT NOT NULL,
			line INTEGER NOT NULL,
			col INTEGER NOT NULL,
			key TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_sites_key ON sites(key);

		CREATE TABLE IF NOT EXISTS _meta (
			key TEXT PRIMARY KEY,
			value TEXT
		);
	`

	_, err := db.Exec(schema)
	return err
}

// ContentHash returns the staleness hash for bibliography bytes. The
// schema version is folded in so a version bump invalidates old caches.
func ContentHash(data []byte) string {
	h := sha256.New()
	h.Write(data)
	h.Write([]byte("\x00" + schemaVersion))
	return hex.EncodeToString(h.Sum(nil))
}

// StoredHash retrieves the bibliography hash recorded by the last rebuild.
// Returns "" when the index has never been built.
func (d *DB) StoredHash() (string, error) {
	var hash sql.NullString
	err := d.db.QueryRow("SELECT value FROM _meta WHERE key = 'bib_hash'").Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash.String, nil
}

// Rebuild clears the index and repopulates it from the parsed entries and
// citation sites, then records the content hash. Returns the number of
// entries indexed.
func (d *DB) Rebuild(entries []bibtex.Entry, sites []rewrite.Site, hash string) (int, error) {
	for _, table := range []string{"entries", "entries_fts", "sites"} {
		if _, err := d.db.Exec("DELETE FROM " + table); err != nil {
			return 0, fmt.Errorf("clearing %s table: %w", table, err)
		}
	}

	entryStmt, err := d.db.Prepare(`
		INSERT INTO entries (key, entry_type, author, year, title)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing entries insert: %w", err)
	}
	defer entryStmt.Close()

	ftsStmt, err := d.db.Prepare(`
		INSERT INTO entries_fts (key, author, title)
		VALUES (?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing fts insert: %w", err)
	}
	defer ftsStmt.Close()

	for i := range entries {
		e := &entries[i]
		author := e.Field("author")
		if author == "" {
			author = e.Field("editor")
		}
		if _, err := entryStmt.Exec(e.Key, e.Type, author, e.Field("year"), e.Field("title")); err != nil {
			return 0, fmt.Errorf("inserting entry %s: %w", e.Key, err)
		}
		if _, err := ftsStmt.Exec(e.Key, author, e.Field("title")); err != nil {
			return 0, fmt.Errorf("inserting fts for %s: %w", e.Key, err)
		}
	}

	siteStmt, err := d.db.Prepare(`
		INSERT INTO sites (path, line, col, key) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("preparing sites insert: %w", err)
	}
	defer siteStmt.Close()

	for _, s := range sites {
		if _, err := siteStmt.Exec(s.Path, s.Line, s.Col, s.Key); err != nil {
			return 0, fmt.Errorf("inserting site %s:%d: %w", s.Path, s.Line, err)
		}
	}

	if _, err := d.db.Exec(`INSERT OR REPLACE INTO _meta (key, value) VALUES ('bib_hash', ?)`, hash); err != nil {
		return 0, fmt.Errorf("recording hash: %w", err)
	}

	return len(entries), nil
}

// Hit is one indexed entry returned by a search.
type Hit struct {
	Key    string `json:"key"`
	Type   string `json:"type"`
	Author string `json:"author,omitempty"`
	Year   string `json:"year,omitempty"`
	Title  string `json:"title,omitempty"`
	Cites  int    `json:"cites"`
}

const selectHitFields = `e.key, e.entry_type, e.author, e.year, e.title,
	(SELECT COUNT(*) FROM sites s WHERE s.key = e.key) AS cites`

// Search performs a full-text search over keys, authors, and titles.
func (d *DB) Search(query string, limit int) ([]Hit, error) {
	ftsQuery := prepareFTSQuery(query)

	rows, err := d.db.Query(`
		SELECT `+selectHitFields+`
		FROM entries e
		WHERE e.key IN (SELECT key FROM entries_fts WHERE entries_fts MATCH ?)
		ORDER BY e.key
		LIMIT ?`, ftsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("searching: %w", err)
	}
	defer rows.Close()

	return scanHits(rows)
}

// Get retrieves one indexed entry by key. Returns nil when absent.
func (d *DB) Get(key string) (*Hit, error) {
	row := d.db.QueryRow(`SELECT `+selectHitFields+` FROM entries e WHERE e.key = ?`, key)
	var h Hit
	var author, year, title sql.NullString
	err := row.Scan(&h.Key, &h.Type, &author, &year, &title, &h.Cites)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	h.Author, h.Year, h.Title = author.String, year.String, title.String
	return &h, nil
}

// Sites returns the indexed citation sites for a key in path order.
func (d *DB) Sites(key string) ([]rewrite.Site, error) {
	rows, err := d.db.Query(`
		SELECT path, line, col FROM sites WHERE key = ?
		ORDER BY path, line, col`, key)
	if err != nil {
		return nil, fmt.Errorf("listing sites: %w", err)
	}
	defer rows.Close()

	sites := []rewrite.Site{}
	for rows.Next() {
		s := rewrite.Site{Key: key}
		if err := rows.Scan(&s.Path, &s.Line, &s.Col); err != nil {
			return nil, err
		}
		sites = append(sites, s)
	}
	return sites, rows.Err()
}

// Uncited returns keys of indexed entries with no citation site.
func (d *DB) Uncited() ([]string, error) {
	rows, err := d.db.Query(`
		SELECT e.key FROM entries e
		WHERE NOT EXISTS (SELECT 1 FROM sites s WHERE s.key = e.key)
		ORDER BY e.key`)
	if err != nil {
		return nil, fmt.Errorf("listing uncited: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Count returns the number of indexed entries.
func (d *DB) Count() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM entries").Scan(&count)
	return count, err
}

// SiteCount returns the number of indexed citation sites.
func (d *DB) SiteCount() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM sites").Scan(&count)
	return count, err
}

func scanHits(rows *sql.Rows) ([]Hit, error) {
	hits := []Hit{}
	for rows.Next() {
		var h Hit
		var author, year, title sql.NullString
		if err := rows.Scan(&h.Key, &h.Type, &author, &year, &title, &h.Cites); err != nil {
			return nil, err
		}
		h.Author, h.Year, h.Title = author.String, year.String, title.String
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// prepareFTSQuery turns free text into a sanitized FTS5 prefix query: each
// term is quoted (internal quotes doubled) and given a trailing * so
// partial words match.
func prepareFTSQuery(query string) string {
	terms := strings.Fields(strings.TrimSpace(query))
	if len(terms) == 0 {
		return "\"\""
	}
	quoted := make([]string, len(terms))
	for i, term := range terms {
		escaped := strings.ReplaceAll(term, "\"", "\"\"")
		quoted[i] = "\"" + escaped + "\"*"
	}
	return strings.Join(quoted, " AND ")
}
