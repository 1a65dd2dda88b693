// Package cachestore persists verified torrent hashes so repeat searches can
// skip provider round-trips. Records are keyed by (service, hash), expire
// after a configurable TTL, and aggregate by release key for the quota model.
//
// The store is best-effort throughout: when disabled or broken, every
// operation degrades to its empty/false result instead of failing the caller.
package cachestore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"streamvault/config"
	"streamvault/models"
	"streamvault/services/quota"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Record is one verified-or-known torrent/file association.
type Record struct {
	Service    string
	Hash       string
	FileName   string
	SizeBytes  int64
	ReleaseKey string
	Category   models.Category
	Resolution models.Resolution
	Payload    json.RawMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ExpiresAt  time.Time
}

// Store is the sqlite-backed record store. A disabled store is a valid value
// whose operations all return empty results.
type Store struct {
	db    *sql.DB
	table string
	ttl   time.Duration
	now   func() time.Time
}

var tablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open connects to the configured sqlite database and applies migrations.
// A disabled or unconfigured store opens successfully in degraded mode.
func Open(cfg config.CacheStoreSettings) (*Store, error) {
	ttl := time.Duration(cfg.TTLDays) * 24 * time.Hour
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	if !cfg.Enabled || strings.TrimSpace(cfg.Path) == "" {
		log.Printf("[cachestore] disabled, operating in degraded mode")
		return &Store{ttl: ttl, now: time.Now}, nil
	}

	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		table = "cache_records"
	}
	if !tablePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid cache table name %q", table)
	}

	db, err := sql.Open("sqlite3", cfg.Path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open cache database: %w", err)
	}

	if err := migrate(db, table); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db, table: table, ttl: ttl, now: time.Now}
	if n := s.purgeExpired(context.Background()); n > 0 {
		log.Printf("[cachestore] purged %d expired records on open", n)
	}
	return s, nil
}

func migrate(db *sql.DB, table string) error {
	// The migration SQL names the table through goose's env substitution so
	// the collection name stays runtime configuration.
	if err := os.Setenv("STREAMVAULT_CACHE_TABLE", table); err != nil {
		return fmt.Errorf("set cache table env: %w", err)
	}

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("apply cache migrations: %w", err)
	}
	return nil
}

// Enabled reports whether the store has a live backing database.
func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if !s.Enabled() {
		return nil
	}
	return s.db.Close()
}

// UpsertOne inserts or updates a record by (service, hash). Missing service
// or hash makes the call a logged no-op. Never returns an error: transport
// failures are logged and reported as false.
func (s *Store) UpsertOne(ctx context.Context, rec Record) bool {
	return s.UpsertMany(ctx, []Record{rec})
}

// UpsertMany upserts a batch, skipping malformed records rather than failing
// the rest. Returns true when every well-formed record was written.
func (s *Store) UpsertMany(ctx context.Context, recs []Record) bool {
	if !s.Enabled() || len(recs) == 0 {
		return false
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[cachestore] begin upsert batch: %v", err)
		return false
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`INSERT INTO %s
		(service, hash, file_name, size_bytes, release_key, category, resolution, payload, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(service, hash) DO UPDATE SET
			file_name = excluded.file_name,
			size_bytes = excluded.size_bytes,
			release_key = excluded.release_key,
			category = excluded.category,
			resolution = excluded.resolution,
			payload = excluded.payload,
			updated_at = excluded.updated_at,
			expires_at = excluded.expires_at`, s.table)

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		log.Printf("[cachestore] prepare upsert: %v", err)
		return false
	}
	defer stmt.Close()

	now := s.now().UTC()
	wrote := 0
	for _, rec := range recs {
		service := strings.ToLower(strings.TrimSpace(rec.Service))
		hash := strings.ToLower(strings.TrimSpace(rec.Hash))
		if service == "" || hash == "" {
			log.Printf("[cachestore] skipping record without service/hash (service=%q)", service)
			continue
		}

		payload := ""
		if len(rec.Payload) > 0 {
			payload = string(rec.Payload)
		}

		if _, err := stmt.ExecContext(ctx,
			service, hash, rec.FileName, rec.SizeBytes, rec.ReleaseKey,
			string(rec.Category), string(rec.Resolution), payload,
			now, now, now.Add(s.ttl),
		); err != nil {
			log.Printf("[cachestore] upsert %s/%s: %v", service, hash, err)
			return false
		}
		wrote++
	}

	if wrote == 0 {
		return false
	}
	if err := tx.Commit(); err != nil {
		log.Printf("[cachestore] commit upsert batch: %v", err)
		return false
	}
	return true
}

// KnownHashes returns the subset of the given hashes already present and
// unexpired for the service. Empty input yields an empty set.
func (s *Store) KnownHashes(ctx context.Context, service string, hashes []string) map[string]struct{} {
	known := make(map[string]struct{})
	if !s.Enabled() || len(hashes) == 0 {
		return known
	}

	service = strings.ToLower(strings.TrimSpace(service))
	placeholders := make([]string, 0, len(hashes))
	args := make([]any, 0, len(hashes)+2)
	args = append(args, service, s.now().UTC())
	for _, h := range hashes {
		placeholders = append(placeholders, "?")
		args = append(args, strings.ToLower(strings.TrimSpace(h)))
	}

	query := fmt.Sprintf(`SELECT hash FROM %s WHERE service = ? AND expires_at > ? AND hash IN (%s)`,
		s.table, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("[cachestore] known hashes query: %v", err)
		return known
	}
	defer rows.Close()

	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			log.Printf("[cachestore] scan known hash: %v", err)
			return known
		}
		known[hash] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		log.Printf("[cachestore] known hashes rows: %v", err)
	}
	return known
}

// GetRecord point-looks-up an unexpired record. A disabled store or missing
// row reports not found, never an error.
func (s *Store) GetRecord(ctx context.Context, service, hash string) (Record, bool) {
	if !s.Enabled() {
		return Record{}, false
	}

	query := fmt.Sprintf(`SELECT service, hash, file_name, size_bytes, release_key, category, resolution, payload, created_at, updated_at, expires_at
		FROM %s WHERE service = ? AND hash = ? AND expires_at > ?`, s.table)

	row := s.db.QueryRowContext(ctx, query,
		strings.ToLower(strings.TrimSpace(service)),
		strings.ToLower(strings.TrimSpace(hash)),
		s.now().UTC())

	var rec Record
	var category, resolution, payload string
	err := row.Scan(&rec.Service, &rec.Hash, &rec.FileName, &rec.SizeBytes, &rec.ReleaseKey,
		&category, &resolution, &payload, &rec.CreatedAt, &rec.UpdatedAt, &rec.ExpiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("[cachestore] get %s/%s: %v", service, hash, err)
		}
		return Record{}, false
	}

	rec.Category = models.ParseCategory(category)
	rec.Resolution = models.ParseResolution(resolution)
	if payload != "" {
		rec.Payload = json.RawMessage(payload)
	}
	return rec, true
}

// ReleaseCounts aggregates unexpired records sharing a release key into
// quota counts. A disabled store returns empty counts.
func (s *Store) ReleaseCounts(ctx context.Context, service, releaseKey string) quota.Counts {
	counts := quota.NewCounts()
	if !s.Enabled() || strings.TrimSpace(releaseKey) == "" {
		return counts
	}

	query := fmt.Sprintf(`SELECT category, resolution, COUNT(*)
		FROM %s WHERE service = ? AND release_key = ? AND expires_at > ?
		GROUP BY category, resolution`, s.table)

	rows, err := s.db.QueryContext(ctx, query,
		strings.ToLower(strings.TrimSpace(service)), releaseKey, s.now().UTC())
	if err != nil {
		log.Printf("[cachestore] release counts query: %v", err)
		return counts
	}
	defer rows.Close()

	for rows.Next() {
		var category, resolution string
		var n int
		if err := rows.Scan(&category, &resolution, &n); err != nil {
			log.Printf("[cachestore] scan release counts: %v", err)
			return counts
		}
		cat := models.ParseCategory(category)
		res := models.ParseResolution(resolution)
		for i := 0; i < n; i++ {
			counts.Add(cat, res)
		}
	}
	if err := rows.Err(); err != nil {
		log.Printf("[cachestore] release counts rows: %v", err)
	}
	return counts
}

// purgeExpired physically removes records past their expiry.
func (s *Store) purgeExpired(ctx context.Context) int64 {
	if !s.Enabled() {
		return 0
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE expires_at <= ?`, s.table), s.now().UTC())
	if err != nil {
		log.Printf("[cachestore] purge expired: %v", err)
		return 0
	}
	n, _ := res.RowsAffected()
	return n
}

// StartPurgeLoop physically removes expired records on an interval until the
// context is cancelled. Logical expiry is enforced by the query predicates
// regardless.
func (s *Store) StartPurgeLoop(ctx context.Context, interval time.Duration) {
	if !s.Enabled() {
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.purgeExpired(ctx); n > 0 {
					log.Printf("[cachestore] purged %d expired records", n)
				}
			}
		}
	}()
}
