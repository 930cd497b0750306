package outbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"reelbooth/internal/services"
)

const entryColumns = `id, session_id, path, filename, mime_type, profile, size, duration_ms,
    status, attempts, last_error, url, video_id, created_at, updated_at, next_attempt_at`

// Add records a new pending entry. ID and timestamps are assigned when empty.
func (s *Store) Add(ctx context.Context, entry Entry) (*Entry, error) {
	if strings.TrimSpace(entry.Path) == "" || strings.TrimSpace(entry.Filename) == "" {
		return nil, services.Wrap(services.ErrValidation, "outbox", "add", "entry needs a path and filename", nil)
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := s.now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	_, err := s.execWithRetry(ctx,
		`INSERT INTO outbox_entries (`+entryColumns+`)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, NULL, NULL, NULL, ?, ?, NULL)`,
		entry.ID, entry.SessionID, entry.Path, entry.Filename, entry.MIMEType, entry.Profile,
		entry.Size, entry.DurationMS, StatusPending,
		formatTime(entry.CreatedAt), formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("insert outbox entry: %w", err)
	}
	return s.Get(ctx, entry.ID)
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM outbox_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "outbox", "get", fmt.Sprintf("no entry %q", id), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("get outbox entry: %w", err)
	}
	return entry, nil
}

// List returns entries oldest first, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM outbox_entries`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + placeholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at, id`
	return s.query(ctx, query, args...)
}

// Due returns entries ready for an upload attempt: every pending entry and
// every failed entry whose next attempt has arrived.
func (s *Store) Due(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx,
		`SELECT `+entryColumns+` FROM outbox_entries
         WHERE status = ?
            OR (status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?)
         ORDER BY created_at, id
         LIMIT ?`,
		StatusPending, StatusFailed, formatTime(s.now()), limit,
	)
}

// Claim moves a due entry to uploading and counts the attempt. It reports
// false when another worker claimed it first.
func (s *Store) Claim(ctx context.Context, id string) (bool, error) {
	now := formatTime(s.now())
	res, err := s.execWithRetry(ctx,
		`UPDATE outbox_entries
         SET status = ?, attempts = attempts + 1, next_attempt_at = NULL, updated_at = ?
         WHERE id = ? AND (status = ? OR (status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?))`,
		StatusUploading, now, id, StatusPending, StatusFailed, now,
	)
	if err != nil {
		return false, fmt.Errorf("claim outbox entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordURL stores the sink URL ahead of metadata registration so a retry
// does not upload the artifact twice.
func (s *Store) RecordURL(ctx context.Context, id, url string) error {
	return s.update(ctx, "record url",
		`UPDATE outbox_entries SET url = ?, updated_at = ? WHERE id = ?`,
		url, formatTime(s.now()), id)
}

// MarkUploaded completes an entry.
func (s *Store) MarkUploaded(ctx context.Context, id, url, videoID string) error {
	return s.update(ctx, "mark uploaded",
		`UPDATE outbox_entries
         SET status = ?, url = ?, video_id = ?, last_error = NULL, next_attempt_at = NULL, updated_at = ?
         WHERE id = ?`,
		StatusUploaded, url, nullableString(videoID), formatTime(s.now()), id)
}

// MarkFailed records a failed attempt. A nil next leaves the entry failed
// until an operator retries it.
func (s *Store) MarkFailed(ctx context.Context, id, message string, next *time.Time) error {
	return s.update(ctx, "mark failed",
		`UPDATE outbox_entries
         SET status = ?, last_error = ?, next_attempt_at = ?, updated_at = ?
         WHERE id = ?`,
		StatusFailed, nullableString(message), nullableTime(next), formatTime(s.now()), id)
}

// Retry returns a failed entry to pending and restarts its attempt count.
func (s *Store) Retry(ctx context.Context, id string) (*Entry, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch entry.Status {
	case StatusUploaded:
		return nil, services.Wrap(services.ErrValidation, "outbox", "retry", fmt.Sprintf("entry %s is already uploaded", id), nil)
	case StatusUploading:
		return nil, services.Wrap(services.ErrValidation, "outbox", "retry", fmt.Sprintf("entry %s is uploading", id), nil)
	}
	if err := s.update(ctx, "retry",
		`UPDATE outbox_entries
         SET status = ?, attempts = 0, next_attempt_at = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusPending, formatTime(s.now()), id, StatusPending, StatusFailed); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// ResetStuck returns entries left uploading by a crash to pending.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE outbox_entries SET status = ?, updated_at = ? WHERE status = ?`,
		StatusPending, formatTime(s.now()), StatusUploading)
	if err != nil {
		return 0, fmt.Errorf("reset stuck entries: %w", err)
	}
	return res.RowsAffected()
}

// Prune deletes uploaded entries last updated before cutoff and returns
// them so their files can be removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) ([]*Entry, error) {
	entries, err := s.query(ctx,
		`SELECT `+entryColumns+` FROM outbox_entries WHERE status = ? AND updated_at < ? ORDER BY created_at, id`,
		StatusUploaded, formatTime(cutoff))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	args := make([]any, 0, len(entries))
	for _, e := range entries {
		args = append(args, e.ID)
	}
	if _, err := s.execWithRetry(ctx,
		`DELETE FROM outbox_entries WHERE id IN (`+placeholders(len(args))+`)`, args...); err != nil {
		return nil, fmt.Errorf("prune outbox: %w", err)
	}
	return entries, nil
}

// Stats counts entries by status.
func (s *Store) Stats(ctx context.Context) (Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM outbox_entries GROUP BY status`)
	if err != nil {
		return Summary{}, fmt.Errorf("outbox stats: %w", err)
	}
	defer rows.Close()

	var summary Summary
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Summary{}, err
		}
		summary.Total += count
		switch status {
		case StatusPending:
			summary.Pending = count
		case StatusUploading:
			summary.Uploading = count
		case StatusUploaded:
			summary.Uploaded = count
		case StatusFailed:
			summary.Failed = count
		}
	}
	return summary, rows.Err()
}

func (s *Store) update(ctx context.Context, op, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return services.Wrap(services.ErrNotFound, "outbox", op, "entry not found", nil)
	}
	return nil
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]*Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		entry                   Entry
		lastError, url, videoID sql.NullString
		createdAt, updatedAt    string
		nextAttempt             sql.NullString
	)
	if err := scanner.Scan(
		&entry.ID, &entry.SessionID, &entry.Path, &entry.Filename, &entry.MIMEType, &entry.Profile,
		&entry.Size, &entry.DurationMS, &entry.Status, &entry.Attempts,
		&lastError, &url, &videoID, &createdAt, &updatedAt, &nextAttempt,
	); err != nil {
		return nil, err
	}
	entry.LastError = lastError.String
	entry.URL = url.String
	entry.VideoID = videoID.String
	entry.CreatedAt = parseTime(createdAt)
	entry.UpdatedAt = parseTime(updatedAt)
	if nextAttempt.Valid {
		t := parseTime(nextAttempt.String)
		entry.NextAttemptAt = &t
	}
	return &entry, nil
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}
