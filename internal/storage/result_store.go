package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/homescout/match-engine/internal/domain"
)

// Get returns the cached row for key, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, key domain.CacheKey) (domain.CachedSearchResult, error) {
	q := s.sb.Select(
		"profile_id", "fingerprint", "search_method",
		"top_picks_json", "other_matches_json", "low_matches_json", "no_image_json", "summary_json",
		"created_at", "expires_at", "last_accessed_at", "execution_time_ms",
	).From("cached_results").Where(keyEq(key))

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return domain.CachedSearchResult{}, fmt.Errorf("build cache query: %w", err)
	}

	var row domain.CachedSearchResult
	var topJSON, otherJSON, lowJSON, noImageJSON, summaryJSON string
	err = s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&row.ProfileID, &row.Fingerprint, &row.SearchMethod,
		&topJSON, &otherJSON, &lowJSON, &noImageJSON, &summaryJSON,
		&row.CreatedAt, &row.ExpiresAt, &row.LastAccessedAt, &row.ExecutionTimeMs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CachedSearchResult{}, ErrNotFound
	}
	if err != nil {
		return domain.CachedSearchResult{}, fmt.Errorf("query cached result: %w", err)
	}

	// Malformed payloads degrade to empty buckets.
	_ = json.Unmarshal([]byte(topJSON), &row.TopPicks)
	_ = json.Unmarshal([]byte(otherJSON), &row.OtherMatches)
	_ = json.Unmarshal([]byte(lowJSON), &row.LowMatches)
	_ = json.Unmarshal([]byte(noImageJSON), &row.NoImage)
	_ = json.Unmarshal([]byte(summaryJSON), &row.Summary)
	return row, nil
}

// Put inserts the row, atomically replacing any existing row with the same
// (profile_id, fingerprint, search_method) key. The upsert keeps concurrent
// cache-miss pipelines from interleaving a delete and an insert; last write
// wins.
func (s *SQLiteStore) Put(ctx context.Context, row domain.CachedSearchResult) error {
	top, _ := json.Marshal(row.TopPicks)
	other, _ := json.Marshal(row.OtherMatches)
	low, _ := json.Marshal(row.LowMatches)
	noImage, _ := json.Marshal(row.NoImage)
	summary, _ := json.Marshal(row.Summary)

	q := s.sb.Insert("cached_results").
		Columns(
			"profile_id", "fingerprint", "search_method",
			"top_picks_json", "other_matches_json", "low_matches_json", "no_image_json", "summary_json",
			"created_at", "expires_at", "last_accessed_at", "execution_time_ms",
		).
		Values(
			row.ProfileID, row.Fingerprint, row.SearchMethod,
			string(top), string(other), string(low), string(noImage), string(summary),
			row.CreatedAt, row.ExpiresAt, row.LastAccessedAt, row.ExecutionTimeMs,
		).
		Suffix(`ON CONFLICT(profile_id, fingerprint, search_method) DO UPDATE SET
top_picks_json = excluded.top_picks_json,
other_matches_json = excluded.other_matches_json,
low_matches_json = excluded.low_matches_json,
no_image_json = excluded.no_image_json,
summary_json = excluded.summary_json,
created_at = excluded.created_at,
expires_at = excluded.expires_at,
last_accessed_at = excluded.last_accessed_at,
execution_time_ms = excluded.execution_time_ms`)

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build cache upsert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("upsert cached result: %w", err)
	}
	return nil
}

// Touch updates the last-accessed timestamp of an existing row.
func (s *SQLiteStore) Touch(ctx context.Context, key domain.CacheKey, at time.Time) error {
	sqlStr, args, err := s.sb.Update("cached_results").
		Set("last_accessed_at", at).
		Where(keyEq(key)).
		ToSql()
	if err != nil {
		return fmt.Errorf("build cache touch: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return fmt.Errorf("touch cached result: %w", err)
	}
	return nil
}

// DeleteByProfile removes every cached row for a profile.
func (s *SQLiteStore) DeleteByProfile(ctx context.Context, profileID string) (int64, error) {
	sqlStr, args, err := s.sb.Delete("cached_results").
		Where(sq.Eq{"profile_id": profileID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cache delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("delete cached results: %w", err)
	}
	return res.RowsAffected()
}

// DeleteExpired removes rows whose expiry is at or before now. Only touches
// already-expired rows, so it is safe alongside concurrent lookups.
func (s *SQLiteStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	sqlStr, args, err := s.sb.Delete("cached_results").
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build cleanup delete: %w", err)
	}
	res, err := s.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired results: %w", err)
	}
	return res.RowsAffected()
}

// CountCachedRows returns the current cache row count.
func (s *SQLiteStore) CountCachedRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cached_results`).Scan(&n)
	return n, err
}

func keyEq(key domain.CacheKey) sq.Eq {
	return sq.Eq{
		"profile_id":    key.ProfileID,
		"fingerprint":   key.Fingerprint,
		"search_method": key.SearchMethod,
	}
}
