package repository

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/event-rsvp/internal/model"
)

// IsBlocked reports whether a block record exists for (event, user).
func (s *Store) IsBlocked(ctx context.Context, eventID, userID string) (bool, error) {
	var blocked bool
	if err := s.q(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM event_blocks WHERE event_id = $1 AND user_id = $2)`,
		eventID, userID,
	).Scan(&blocked); err != nil {
		if isInvalidUUID(err) {
			return false, model.ErrNotFound
		}
		return false, fmt.Errorf("check block: %w", err)
	}
	return blocked, nil
}

// InsertBlock stores a block record or returns model.ErrAlreadyBlocked.
func (s *Store) InsertBlock(ctx context.Context, b *model.BlockRecord) error {
	_, err := s.q(ctx).Exec(ctx,
		`INSERT INTO event_blocks (event_id, user_id, blocked_by, created_at)
		 VALUES ($1, $2, $3, $4)`,
		b.EventID, b.UserID, b.BlockedBy, b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.ErrAlreadyBlocked
		}
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

// DeleteBlock removes a block record or returns model.ErrNotFound.
func (s *Store) DeleteBlock(ctx context.Context, eventID, userID string) error {
	tag, err := s.q(ctx).Exec(ctx,
		`DELETE FROM event_blocks WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ListBlocks returns the block records of an event, newest first.
func (s *Store) ListBlocks(ctx context.Context, eventID string) ([]model.BlockRecord, error) {
	rows, err := s.q(ctx).Query(ctx,
		`SELECT event_id, user_id, blocked_by, created_at
		 FROM event_blocks
		 WHERE event_id = $1
		 ORDER BY created_at DESC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var out []model.BlockRecord
	for rows.Next() {
		var b model.BlockRecord
		if err := rows.Scan(&b.EventID, &b.UserID, &b.BlockedBy, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
