package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// VersionEntry records a verified tool version keyed by binary path and
// modification time. A stale entry (path or mtime changed) must not be used.
type VersionEntry struct {
	Path      string
	Version   string
	ModTimeNS int64
}

// Preference returns the persisted source preference for a tool kind, or an
// empty string when none has been recorded.
func (s *Store) Preference(ctx context.Context, kind string) (string, error) {
	return s.readColumn(ctx, kind, "source_preference")
}

// SetPreference records the source preference for a tool kind.
func (s *Store) SetPreference(ctx context.Context, kind, source string) error {
	return s.execWithRetry(ctx, `
INSERT INTO tool_state (kind, source_preference, updated_at) VALUES (?, ?, ?)
ON CONFLICT(kind) DO UPDATE SET source_preference = excluded.source_preference, updated_at = excluded.updated_at`,
		kind, source, now())
}

// LastSystemPath returns the most recently discovered system copy for a tool
// kind, or an empty string when none has been recorded.
func (s *Store) LastSystemPath(ctx context.Context, kind string) (string, error) {
	return s.readColumn(ctx, kind, "last_system_path")
}

// SetLastSystemPath records the system copy path for a tool kind.
func (s *Store) SetLastSystemPath(ctx context.Context, kind, path string) error {
	return s.execWithRetry(ctx, `
INSERT INTO tool_state (kind, last_system_path, updated_at) VALUES (?, ?, ?)
ON CONFLICT(kind) DO UPDATE SET last_system_path = excluded.last_system_path, updated_at = excluded.updated_at`,
		kind, path, now())
}

// VersionEntry returns the cached version entry for a tool kind. The second
// return value reports whether an entry exists.
func (s *Store) VersionEntry(ctx context.Context, kind string) (VersionEntry, bool, error) {
	ctx = ensureContext(ctx)
	var entry VersionEntry
	err := s.db.QueryRowContext(ctx,
		"SELECT cached_path, cached_version, cached_mtime_ns FROM tool_state WHERE kind = ?", kind,
	).Scan(&entry.Path, &entry.Version, &entry.ModTimeNS)
	if errors.Is(err, sql.ErrNoRows) {
		return VersionEntry{}, false, nil
	}
	if err != nil {
		return VersionEntry{}, false, fmt.Errorf("read version entry: %w", err)
	}
	if entry.Path == "" || entry.Version == "" {
		return VersionEntry{}, false, nil
	}
	return entry, true, nil
}

// SaveVersionEntry records a verified version for a tool kind.
func (s *Store) SaveVersionEntry(ctx context.Context, kind string, entry VersionEntry) error {
	return s.execWithRetry(ctx, `
INSERT INTO tool_state (kind, cached_path, cached_version, cached_mtime_ns, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(kind) DO UPDATE SET
  cached_path = excluded.cached_path,
  cached_version = excluded.cached_version,
  cached_mtime_ns = excluded.cached_mtime_ns,
  updated_at = excluded.updated_at`,
		kind, entry.Path, entry.Version, entry.ModTimeNS, now())
}

// ClearVersionEntry drops the cached version for a tool kind. Used when an
// install is about to replace the binary the entry describes.
func (s *Store) ClearVersionEntry(ctx context.Context, kind string) error {
	return s.execWithRetry(ctx, `
UPDATE tool_state SET cached_path = '', cached_version = '', cached_mtime_ns = 0, updated_at = ? WHERE kind = ?`,
		now(), kind)
}

func (s *Store) readColumn(ctx context.Context, kind, column string) (string, error) {
	ctx = ensureContext(ctx)
	var value string
	// column is always a compile-time constant from this package.
	query := fmt.Sprintf("SELECT %s FROM tool_state WHERE kind = ?", column)
	err := s.db.QueryRowContext(ctx, query, kind).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", column, err)
	}
	return value, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
