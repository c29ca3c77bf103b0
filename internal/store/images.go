package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const imageColumns = "id, bookmark_id, url, alt_text, position, nearby_text, heuristic_score, estimated_type, created_at"

// AddImage persists a discovered image. Re-running extraction for the same
// bookmark is idempotent: an image with an already-recorded URL is skipped and
// reports created=false.
func (s *Store) AddImage(ctx context.Context, image *BookmarkImage) (bool, error) {
	if image == nil {
		return false, errors.New("image is nil")
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT OR IGNORE INTO bookmark_images (
            id, bookmark_id, url, alt_text, position,
            nearby_text, heuristic_score, estimated_type, created_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		image.ID,
		image.BookmarkID,
		image.URL,
		nullableString(image.AltText),
		image.Position,
		nullableString(image.NearbyText),
		image.HeuristicScore,
		nullableString(image.EstimatedType),
		formatTime(time.Now()),
	)
	if err != nil {
		return false, fmt.Errorf("insert image: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// GetImage fetches an image by identifier. Returns nil when not found.
func (s *Store) GetImage(ctx context.Context, id string) (*BookmarkImage, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM bookmark_images WHERE id = ?`, id)
	image, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return image, nil
}

// ImagesForBookmark returns a bookmark's discovered images in page order.
func (s *Store) ImagesForBookmark(ctx context.Context, bookmarkID int64) ([]*BookmarkImage, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+imageColumns+` FROM bookmark_images WHERE bookmark_id = ? ORDER BY position, id`,
		bookmarkID,
	)
	if err != nil {
		return nil, fmt.Errorf("images for bookmark: %w", err)
	}
	defer rows.Close()

	var images []*BookmarkImage
	for rows.Next() {
		image, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, image)
	}
	return images, rows.Err()
}

func scanImage(scanner interface{ Scan(dest ...any) error }) (*BookmarkImage, error) {
	var (
		id             string
		bookmarkID     int64
		url            string
		altText        sql.NullString
		position       int
		nearbyText     sql.NullString
		heuristicScore sql.NullFloat64
		estimatedType  sql.NullString
		createdRaw     string
	)

	if err := scanner.Scan(
		&id,
		&bookmarkID,
		&url,
		&altText,
		&position,
		&nearbyText,
		&heuristicScore,
		&estimatedType,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	image := &BookmarkImage{
		ID:             id,
		BookmarkID:     bookmarkID,
		URL:            url,
		AltText:        altText.String,
		Position:       position,
		NearbyText:     nearbyText.String,
		HeuristicScore: heuristicScore.Float64,
		EstimatedType:  estimatedType.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		image.CreatedAt = created
	}
	return image, nil
}
