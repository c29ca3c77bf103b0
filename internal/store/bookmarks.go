package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateBookmark signals that a user already saved the URL.
var ErrDuplicateBookmark = errors.New("bookmark already exists for user and url")

const bookmarkColumns = "id, user_id, url, title, summary, markdown, status, error_message, created_at, updated_at"

// CreateBookmark inserts a new bookmark in the pending state.
func (s *Store) CreateBookmark(ctx context.Context, userID, url string) (*Bookmark, error) {
	timestamp := formatTime(time.Now())

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bookmarks (user_id, url, status, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?)`,
		userID,
		url,
		StatusPending,
		timestamp,
		timestamp,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateBookmark
		}
		return nil, fmt.Errorf("insert bookmark: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetBookmark(ctx, id)
}

// GetBookmark fetches a bookmark by identifier. Returns nil when not found.
func (s *Store) GetBookmark(ctx context.Context, id int64) (*Bookmark, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookmarkColumns+` FROM bookmarks WHERE id = ?`, id)
	bookmark, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get bookmark: %w", err)
	}
	return bookmark, nil
}

// FindBookmarkByURL returns the bookmark a user saved for a URL, or nil.
func (s *Store) FindBookmarkByURL(ctx context.Context, userID, url string) (*Bookmark, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+bookmarkColumns+` FROM bookmarks WHERE user_id = ? AND url = ? LIMIT 1`,
		userID,
		url,
	)
	bookmark, err := scanBookmark(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bookmark by url: %w", err)
	}
	return bookmark, nil
}

// UpdateBookmark persists changes to an existing bookmark.
func (s *Store) UpdateBookmark(ctx context.Context, bookmark *Bookmark) error {
	if bookmark == nil {
		return errors.New("bookmark is nil")
	}
	bookmark.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE bookmarks
         SET title = ?, summary = ?, markdown = ?, status = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(bookmark.Title),
		nullableString(bookmark.Summary),
		nullableString(bookmark.Markdown),
		bookmark.Status,
		nullableString(bookmark.ErrorMessage),
		formatTime(bookmark.UpdatedAt),
		bookmark.ID,
	)
	if err != nil {
		return fmt.Errorf("update bookmark: %w", err)
	}
	return nil
}

// ListBookmarks returns a user's bookmarks filtered by status set (or all
// bookmarks for the user when no status is provided), newest first.
func (s *Store) ListBookmarks(ctx context.Context, userID string, statuses ...BookmarkStatus) ([]*Bookmark, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + bookmarkColumns + ` FROM bookmarks WHERE user_id = ?`
	orderClause := ` ORDER BY created_at DESC, id DESC`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause, userID)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, 0, len(statuses)+1)
		args = append(args, userID)
		for _, status := range statuses {
			args = append(args, status)
		}
		query := baseQuery + ` AND status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list bookmarks: %w", err)
	}
	defer rows.Close()

	var bookmarks []*Bookmark
	for rows.Next() {
		bookmark, err := scanBookmark(rows)
		if err != nil {
			return nil, err
		}
		bookmarks = append(bookmarks, bookmark)
	}
	return bookmarks, rows.Err()
}

// BookmarkStats returns a count of a user's bookmarks grouped by status.
func (s *Store) BookmarkStats(ctx context.Context, userID string) (map[BookmarkStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM bookmarks WHERE user_id = ? GROUP BY status`, userID)
	if err != nil {
		return nil, fmt.Errorf("bookmark stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[BookmarkStatus]int)
	for rows.Next() {
		var status BookmarkStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ResetForRetry moves a failed bookmark back to pending so it can be
// re-enqueued. Returns false when the bookmark is missing or not failed.
func (s *Store) ResetForRetry(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE bookmarks SET status = ?, error_message = NULL, updated_at = ? WHERE id = ? AND status = ?`,
		StatusPending,
		formatTime(time.Now()),
		id,
		StatusFailed,
	)
	if err != nil {
		return false, fmt.Errorf("reset bookmark for retry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func scanBookmark(scanner interface{ Scan(dest ...any) error }) (*Bookmark, error) {
	var (
		id           int64
		userID       string
		url          string
		title        sql.NullString
		summary      sql.NullString
		markdown     sql.NullString
		statusStr    string
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&userID,
		&url,
		&title,
		&summary,
		&markdown,
		&statusStr,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	bookmark := &Bookmark{
		ID:           id,
		UserID:       userID,
		URL:          url,
		Title:        title.String,
		Summary:      summary.String,
		Markdown:     markdown.String,
		Status:       BookmarkStatus(statusStr),
		ErrorMessage: errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		bookmark.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		bookmark.UpdatedAt = updated
	}
	return bookmark, nil
}
