package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage persists analyzed crawl snapshots to SQLite
type Storage struct {
	db *sql.DB
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"
	if dbPath == ":memory:" {
		dsn = ":memory:?_foreign_keys=on"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database is private to its connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{db: db}

	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawls (
		crawl_id TEXT PRIMARY KEY,
		root_url TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		total_pages INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS pages (
		crawl_id TEXT NOT NULL,
		url TEXT NOT NULL,
		status_code INTEGER NOT NULL,
		depth INTEGER NOT NULL,
		body_size INTEGER DEFAULT 0,
		response_time_ms REAL DEFAULT 0,
		redirect_target TEXT,
		alias_of TEXT,
		fetch_error TEXT,
		position INTEGER NOT NULL,
		FOREIGN KEY (crawl_id) REFERENCES crawls(crawl_id),
		PRIMARY KEY (crawl_id, url)
	);

	CREATE TABLE IF NOT EXISTS links (
		crawl_id TEXT NOT NULL,
		from_url TEXT NOT NULL,
		to_url TEXT NOT NULL,
		position INTEGER NOT NULL,
		FOREIGN KEY (crawl_id) REFERENCES crawls(crawl_id),
		UNIQUE(crawl_id, from_url, to_url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_status ON pages(crawl_id, status_code);
	CREATE INDEX IF NOT EXISTS idx_links_to ON links(crawl_id, to_url);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginCrawl registers a crawl run
func (s *Storage) BeginCrawl(crawlID, rootURL string, startedAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO crawls (crawl_id, root_url, started_at)
		VALUES (?, ?, ?)
		ON CONFLICT(crawl_id) DO UPDATE SET
			root_url = EXCLUDED.root_url,
			started_at = EXCLUDED.started_at
	`, crawlID, rootURL, startedAt)
	if err != nil {
		return fmt.Errorf("failed to begin crawl: %w", err)
	}
	return nil
}

// FinishCrawl stamps the end time and page count of a crawl run
func (s *Storage) FinishCrawl(crawlID string, endedAt time.Time, totalPages int) error {
	res, err := s.db.Exec("UPDATE crawls SET ended_at = ?, total_pages = ? WHERE crawl_id = ?",
		endedAt, totalPages, crawlID)
	if err != nil {
		return fmt.Errorf("failed to finish crawl: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish crawl: unknown crawl %s", crawlID)
	}
	return nil
}

// UpsertPage inserts or replaces a page row
func (s *Storage) UpsertPage(crawlID string, position int, p *Page) error {
	_, err := s.db.Exec(`
		INSERT INTO pages (crawl_id, url, status_code, depth, body_size, response_time_ms,
			redirect_target, alias_of, fetch_error, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(crawl_id, url) DO UPDATE SET
			status_code = EXCLUDED.status_code,
			depth = EXCLUDED.depth,
			body_size = EXCLUDED.body_size,
			response_time_ms = EXCLUDED.response_time_ms,
			redirect_target = EXCLUDED.redirect_target,
			alias_of = EXCLUDED.alias_of,
			fetch_error = EXCLUDED.fetch_error
	`, crawlID, p.URL, p.StatusCode, p.Depth, p.BodySize, p.ResponseTimeMs,
		p.RedirectTarget, p.AliasOf, p.FetchError, position)

	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	return nil
}

// UpsertLink records an edge, ignoring duplicates
func (s *Storage) UpsertLink(crawlID string, position int, from, to string) error {
	_, err := s.db.Exec(`
		INSERT INTO links (crawl_id, from_url, to_url, position)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(crawl_id, from_url, to_url) DO NOTHING
	`, crawlID, from, to, position)

	if err != nil {
		return fmt.Errorf("failed to upsert link: %w", err)
	}
	return nil
}

// LoadPages returns all pages of a crawl in insertion order
func (s *Storage) LoadPages(crawlID string) ([]*Page, error) {
	rows, err := s.db.Query(`
		SELECT url, status_code, depth, body_size, response_time_ms,
			COALESCE(redirect_target, ''), COALESCE(alias_of, ''), COALESCE(fetch_error, '')
		FROM pages
		WHERE crawl_id = ?
		ORDER BY position ASC
	`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages: %w", err)
	}
	defer rows.Close()

	var pages []*Page
	for rows.Next() {
		var p Page
		if err := rows.Scan(&p.URL, &p.StatusCode, &p.Depth, &p.BodySize, &p.ResponseTimeMs,
			&p.RedirectTarget, &p.AliasOf, &p.FetchError); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pages = append(pages, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pages: %w", err)
	}

	return pages, nil
}

// LoadLinks returns all edges of a crawl in recorded order
func (s *Storage) LoadLinks(crawlID string) ([]Link, error) {
	rows, err := s.db.Query(`
		SELECT from_url, to_url
		FROM links
		WHERE crawl_id = ?
		ORDER BY position ASC
	`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to load links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.From, &l.To); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}
