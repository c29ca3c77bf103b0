package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const messageColumns = "id, type, payload, status, attempts, available_at, last_error, created_at, updated_at"

// Enqueue inserts a new queue message available for immediate delivery.
func (s *Store) Enqueue(ctx context.Context, messageType, payload string) (*Message, error) {
	now := time.Now()
	timestamp := formatTime(now)

	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO queue_messages (type, payload, status, attempts, available_at, created_at, updated_at)
         VALUES (?, ?, ?, 0, ?, ?, ?)`,
		messageType,
		payload,
		MessageQueued,
		timestamp,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("enqueue message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetMessage(ctx, id)
}

// GetMessage fetches a queue message by identifier. Returns nil when not found.
func (s *Store) GetMessage(ctx context.Context, id int64) (*Message, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM queue_messages WHERE id = ?`, id)
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return message, nil
}

// ClaimNext atomically claims the oldest deliverable message, moving it to
// processing and incrementing its attempt counter. Returns nil when nothing
// is due. The single UPDATE..RETURNING keeps concurrent workers from claiming
// the same message.
func (s *Store) ClaimNext(ctx context.Context) (*Message, error) {
	now := formatTime(time.Now())
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE queue_messages
         SET status = ?, attempts = attempts + 1, updated_at = ?
         WHERE id = (
            SELECT id FROM queue_messages
            WHERE status = ? AND available_at <= ?
            ORDER BY available_at, id
            LIMIT 1
         )
         RETURNING `+messageColumns,
		MessageProcessing,
		now,
		MessageQueued,
		now,
	)
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim message: %w", err)
	}
	return message, nil
}

// MarkDone records successful handling of a message.
func (s *Store) MarkDone(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages SET status = ?, last_error = NULL, updated_at = ? WHERE id = ?`,
		MessageDone,
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark message done: %w", err)
	}
	return nil
}

// Requeue returns a message to the queue for redelivery at availableAt,
// recording the failure that caused the retry.
func (s *Store) Requeue(ctx context.Context, id int64, availableAt time.Time, lastError string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages SET status = ?, available_at = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		MessageQueued,
		formatTime(availableAt),
		nullableString(lastError),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("requeue message: %w", err)
	}
	return nil
}

// MarkDead moves a message to the dead-letter state. Dead messages are kept
// for inspection and never redelivered.
func (s *Store) MarkDead(ctx context.Context, id int64, lastError string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		MessageDead,
		nullableString(lastError),
		formatTime(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("mark message dead: %w", err)
	}
	return nil
}

// ResetStuckProcessing returns messages left in processing by a previous
// daemon run back to queued for immediate redelivery.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	now := formatTime(time.Now())
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE queue_messages SET status = ?, available_at = ?, updated_at = ? WHERE status = ?`,
		MessageQueued,
		now,
		now,
		MessageProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck messages: %w", err)
	}
	return res.RowsAffected()
}

// QueueStats returns a count of messages grouped by status.
func (s *Store) QueueStats(ctx context.Context) (QueueHealth, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_messages GROUP BY status`)
	if err != nil {
		return QueueHealth{}, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	health := QueueHealth{}
	for rows.Next() {
		var status MessageStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return QueueHealth{}, err
		}
		switch status {
		case MessageQueued:
			health.Queued += count
		case MessageProcessing:
			health.Processing += count
		case MessageDone:
			health.Done += count
		case MessageDead:
			health.Dead += count
		}
	}
	return health, rows.Err()
}

// ClearDone removes handled messages from the queue.
func (s *Store) ClearDone(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queue_messages WHERE status = ?`, MessageDone)
	if err != nil {
		return 0, fmt.Errorf("clear done messages: %w", err)
	}
	return res.RowsAffected()
}

func scanMessage(scanner interface{ Scan(dest ...any) error }) (*Message, error) {
	var (
		id           int64
		messageType  string
		payload      string
		statusStr    string
		attempts     int
		availableRaw string
		lastError    sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&id,
		&messageType,
		&payload,
		&statusStr,
		&attempts,
		&availableRaw,
		&lastError,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	message := &Message{
		ID:        id,
		Type:      messageType,
		Payload:   payload,
		Status:    MessageStatus(statusStr),
		Attempts:  attempts,
		LastError: lastError.String,
	}
	if available, err := parseTimeString(availableRaw); err == nil {
		message.AvailableAt = available
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		message.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		message.UpdatedAt = updated
	}
	return message, nil
}
