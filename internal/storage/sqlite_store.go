package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/homescout/match-engine/internal/domain"
	"github.com/homescout/match-engine/internal/ports"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

var (
	_ ports.ListingSource = (*SQLiteStore)(nil)
	_ ports.ResultStore   = (*SQLiteStore)(nil)
)

// SQLiteStore backs both the listings table and the cached-results table.
type SQLiteStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *SQLiteStore) EnsureSchema() error {
	const createListings = `
CREATE TABLE IF NOT EXISTS listings (
  mls_number TEXT PRIMARY KEY,
  price INTEGER NOT NULL,
  bedrooms INTEGER NOT NULL DEFAULT 0,
  bathrooms REAL NOT NULL DEFAULT 0,
  property_type TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  state TEXT NOT NULL DEFAULT '',
  square_feet INTEGER NOT NULL DEFAULT 0,
  year_built INTEGER NOT NULL DEFAULT 0,
  description TEXT NOT NULL DEFAULT '',
  features_json TEXT NOT NULL DEFAULT '[]',
  image_urls_json TEXT NOT NULL DEFAULT '[]',
  listed_at TIMESTAMP,
  status TEXT NOT NULL DEFAULT 'active'
);
`
	const createCachedResults = `
CREATE TABLE IF NOT EXISTS cached_results (
  profile_id TEXT NOT NULL,
  fingerprint TEXT NOT NULL,
  search_method TEXT NOT NULL,
  top_picks_json TEXT NOT NULL DEFAULT '[]',
  other_matches_json TEXT NOT NULL DEFAULT '[]',
  low_matches_json TEXT NOT NULL DEFAULT '[]',
  no_image_json TEXT NOT NULL DEFAULT '[]',
  summary_json TEXT NOT NULL DEFAULT '[]',
  created_at TIMESTAMP NOT NULL,
  expires_at TIMESTAMP NOT NULL,
  last_accessed_at TIMESTAMP NOT NULL,
  execution_time_ms INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (profile_id, fingerprint, search_method)
);
`
	if _, err := s.db.Exec(createListings); err != nil {
		return err
	}
	if _, err := s.db.Exec(createCachedResults); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_listings_price ON listings(price);`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_listings_city ON listings(city);`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cached_results_expires ON cached_results(expires_at);`); err != nil {
		return err
	}
	return nil
}

const listingColumns = `mls_number, price, bedrooms, bathrooms, property_type, address, city, state,
square_feet, year_built, description, features_json, image_urls_json, listed_at, status`

// UpsertListings inserts a dataset without duplicating by MLS number.
func (s *SQLiteStore) UpsertListings(listings []domain.Listing) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT OR IGNORE INTO listings (` + listingColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, l := range listings {
		features, _ := json.Marshal(l.Features)
		images, _ := json.Marshal(l.ImageURLs)
		if _, err := stmt.Exec(
			l.MLSNumber, l.Price, l.Bedrooms, l.Bathrooms, l.PropertyType,
			l.Address, l.City, l.State, l.SquareFeet, l.YearBuilt,
			l.Description, string(features), string(images), l.ListedAt, l.Status,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CountListings returns the total listing count.
func (s *SQLiteStore) CountListings() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM listings`).Scan(&n)
	return n, err
}

// Search implements ports.ListingSource over the local listings table.
// Zero-valued criteria fields are ignored; an empty result is valid.
func (s *SQLiteStore) Search(ctx context.Context, c domain.SearchCriteria) ([]domain.Listing, error) {
	q := s.sb.Select(
		"mls_number", "price", "bedrooms", "bathrooms", "property_type",
		"address", "city", "state", "square_feet", "year_built",
		"description", "features_json", "image_urls_json", "listed_at", "status",
	).From("listings").OrderBy("price ASC", "mls_number ASC")

	if c.MinPrice > 0 {
		q = q.Where(sq.GtOrEq{"price": c.MinPrice})
	}
	if c.MaxPrice > 0 {
		// Widen the ceiling so near-budget listings stay scoreable; the
		// calculator's tolerance band decides how hard to penalize them.
		q = q.Where(sq.LtOrEq{"price": int(float64(c.MaxPrice) * 1.25)})
	}
	if c.Bedrooms > 0 {
		q = q.Where(sq.GtOrEq{"bedrooms": c.Bedrooms - 2})
	}
	if c.PropertyType != "" {
		q = q.Where(sq.Eq{"property_type": c.PropertyType})
	}
	if c.Location != "" {
		like := "%" + c.Location + "%"
		q = q.Where(sq.Or{
			sq.Like{"city": like},
			sq.Like{"address": like},
		})
	}
	if c.Limit > 0 {
		q = q.Limit(uint64(c.Limit))
	}

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build listings query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanListing(rows *sql.Rows) (domain.Listing, error) {
	var l domain.Listing
	var featuresJSON, imagesJSON string
	var listedAt sql.NullTime

	if err := rows.Scan(
		&l.MLSNumber, &l.Price, &l.Bedrooms, &l.Bathrooms, &l.PropertyType,
		&l.Address, &l.City, &l.State, &l.SquareFeet, &l.YearBuilt,
		&l.Description, &featuresJSON, &imagesJSON, &listedAt, &l.Status,
	); err != nil {
		return domain.Listing{}, err
	}

	// Malformed JSON degrades to empty collections, never to an error.
	_ = json.Unmarshal([]byte(featuresJSON), &l.Features)
	_ = json.Unmarshal([]byte(imagesJSON), &l.ImageURLs)
	if listedAt.Valid {
		l.ListedAt = listedAt.Time
	}
	return l, nil
}
