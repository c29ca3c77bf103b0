package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const entityColumns = "id, user_id, type, name, normalized_name, status, created_at"

// EnsureEntity returns the entity for (user, type, normalized name), creating
// it when absent. Insertion is optimistic: on a unique violation from a
// concurrent writer the existing row is refetched. The display name of the
// first writer wins.
func (s *Store) EnsureEntity(ctx context.Context, userID string, entityType EntityType, name, normalizedName string) (*Entity, bool, error) {
	if existing, err := s.FindEntity(ctx, userID, entityType, normalizedName); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO entities (user_id, type, name, normalized_name, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		userID,
		entityType,
		name,
		normalizedName,
		"pending",
		formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			existing, findErr := s.FindEntity(ctx, userID, entityType, normalizedName)
			if findErr != nil {
				return nil, false, findErr
			}
			if existing != nil {
				return existing, false, nil
			}
			return nil, false, fmt.Errorf("insert entity: %w", err)
		}
		return nil, false, fmt.Errorf("insert entity: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	entity, err := s.GetEntity(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return entity, true, nil
}

// GetEntity fetches an entity by identifier. Returns nil when not found.
func (s *Store) GetEntity(ctx context.Context, id int64) (*Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = ?`, id)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entity: %w", err)
	}
	return entity, nil
}

// FindEntity returns the entity matching the catalog identity key, or nil.
func (s *Store) FindEntity(ctx context.Context, userID string, entityType EntityType, normalizedName string) (*Entity, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+entityColumns+` FROM entities WHERE user_id = ? AND type = ? AND normalized_name = ? LIMIT 1`,
		userID,
		entityType,
		normalizedName,
	)
	entity, err := scanEntity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return entity, nil
}

// ListEntities returns a user's catalog entities ordered by creation time,
// optionally filtered by type.
func (s *Store) ListEntities(ctx context.Context, userID string, types ...EntityType) ([]*Entity, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + entityColumns + ` FROM entities WHERE user_id = ?`
	orderClause := ` ORDER BY created_at, id`

	if len(types) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause, userID)
	} else {
		placeholders := makePlaceholders(len(types))
		args := make([]any, 0, len(types)+1)
		args = append(args, userID)
		for _, entityType := range types {
			args = append(args, entityType)
		}
		query := baseQuery + ` AND type IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list entities: %w", err)
	}
	defer rows.Close()

	var entities []*Entity
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
	return entities, rows.Err()
}

// CountEntityLinks returns the number of bookmarks linked to an entity.
func (s *Store) CountEntityLinks(ctx context.Context, entityID int64) (int, error) {
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM entity_bookmark_links WHERE entity_id = ?`, entityID)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count entity links: %w", err)
	}
	return count, nil
}

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*Entity, error) {
	var (
		id             int64
		userID         string
		typeStr        string
		name           string
		normalizedName string
		status         string
		createdRaw     string
	)

	if err := scanner.Scan(&id, &userID, &typeStr, &name, &normalizedName, &status, &createdRaw); err != nil {
		return nil, err
	}

	entity := &Entity{
		ID:             id,
		UserID:         userID,
		Type:           EntityType(typeStr),
		Name:           name,
		NormalizedName: normalizedName,
		Status:         status,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		entity.CreatedAt = created
	}
	return entity, nil
}
