package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const linkColumns = "entity_id, bookmark_id, confidence, source, source_image_id, context_snippet, hints_json, created_at"

// EnsureLink records evidence that an entity was found in a bookmark. Links
// are first-write-wins: when a row for the pair already exists the call is a
// no-op and reports created=false, leaving the original evidence intact.
func (s *Store) EnsureLink(ctx context.Context, link *EntityBookmarkLink) (bool, error) {
	if link == nil {
		return false, errors.New("link is nil")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO entity_bookmark_links (
            entity_id, bookmark_id, confidence, source,
            source_image_id, context_snippet, hints_json, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		link.EntityID,
		link.BookmarkID,
		link.Confidence,
		link.Source,
		nullableString(link.SourceImageID),
		nullableString(link.ContextSnippet),
		nullableString(link.HintsJSON),
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert link: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetLink fetches the link row for an entity-bookmark pair, or nil.
func (s *Store) GetLink(ctx context.Context, entityID, bookmarkID int64) (*EntityBookmarkLink, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_bookmark_links WHERE entity_id = ? AND bookmark_id = ?`,
		entityID,
		bookmarkID,
	)
	link, err := scanLink(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get link: %w", err)
	}
	return link, nil
}

// LinksForBookmark returns all entity links recorded against a bookmark.
func (s *Store) LinksForBookmark(ctx context.Context, bookmarkID int64) ([]*EntityBookmarkLink, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_bookmark_links WHERE bookmark_id = ? ORDER BY created_at, entity_id`,
		bookmarkID,
	)
	if err != nil {
		return nil, fmt.Errorf("links for bookmark: %w", err)
	}
	defer rows.Close()

	var links []*EntityBookmarkLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// LinksForEntity returns all bookmark links recorded against an entity.
func (s *Store) LinksForEntity(ctx context.Context, entityID int64) ([]*EntityBookmarkLink, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+linkColumns+` FROM entity_bookmark_links WHERE entity_id = ? ORDER BY created_at, bookmark_id`,
		entityID,
	)
	if err != nil {
		return nil, fmt.Errorf("links for entity: %w", err)
	}
	defer rows.Close()

	var links []*EntityBookmarkLink
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, err
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func scanLink(scanner interface{ Scan(dest ...any) error }) (*EntityBookmarkLink, error) {
	var (
		entityID       int64
		bookmarkID     int64
		confidence     float64
		sourceStr      string
		sourceImageID  sql.NullString
		contextSnippet sql.NullString
		hintsJSON      sql.NullString
		createdRaw     string
	)

	if err := scanner.Scan(
		&entityID,
		&bookmarkID,
		&confidence,
		&sourceStr,
		&sourceImageID,
		&contextSnippet,
		&hintsJSON,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	link := &EntityBookmarkLink{
		EntityID:       entityID,
		BookmarkID:     bookmarkID,
		Confidence:     confidence,
		Source:         LinkSource(sourceStr),
		SourceImageID:  sourceImageID.String,
		ContextSnippet: contextSnippet.String,
		HintsJSON:      hintsJSON.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		link.CreatedAt = created
	}
	return link, nil
}
