package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/travelbuddy/internal/logger"
	"github.com/travelbuddy/internal/model"
)

type MessageRepository struct {
	pool *pgxpool.Pool
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{pool: pool}
}

// Append persists a message. The bigserial seq column assigned here is the
// ordering authority for history reads; created_at is informational.
func (r *MessageRepository) Append(ctx context.Context, m *model.Message) error {
	defer logger.DeferLogDuration("msg.Append", time.Now())()
	err := r.pool.QueryRow(ctx,
		`INSERT INTO messages (id, room_id, sender_id, content, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING seq`,
		m.ID, m.RoomID, m.SenderID, m.Text, m.CreatedAt,
	).Scan(&m.Seq)
	if err != nil {
		return fmt.Errorf("msgRepo.Append: %w", err)
	}
	return nil
}

// History returns the room's messages ascending by seq. limit <= 0 returns
// the full log; a positive limit returns the most recent limit messages,
// still oldest first.
func (r *MessageRepository) History(ctx context.Context, roomID string, limit int) ([]model.Message, error) {
	defer logger.DeferLogDuration("msg.History", time.Now())()
	q := `SELECT m.id, m.seq, m.room_id, m.sender_id, m.content, m.created_at,
	             u.id, u.username, u.avatar_url
	      FROM messages m
	      JOIN users u ON u.id = m.sender_id
	      WHERE m.room_id = $1
	      ORDER BY m.seq`
	args := []any{roomID}
	if limit > 0 {
		q = `SELECT * FROM (` + q + ` DESC LIMIT $2) tail ORDER BY seq`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.History query: %w", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0, 32)
	for rows.Next() {
		var m model.Message
		sender := &model.UserPublic{}
		if err := rows.Scan(&m.ID, &m.Seq, &m.RoomID, &m.SenderID, &m.Text, &m.CreatedAt,
			&sender.ID, &sender.Username, &sender.AvatarURL); err != nil {
			return nil, fmt.Errorf("msgRepo.History scan: %w", err)
		}
		m.Sender = sender
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("msgRepo.History rows: %w", err)
	}
	return messages, nil
}
