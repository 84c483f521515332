package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/travelbuddy/internal/logger"
	"github.com/travelbuddy/internal/model"
)

type RoomRepository struct {
	pool *pgxpool.Pool
}

func NewRoomRepository(pool *pgxpool.Pool) *RoomRepository {
	return &RoomRepository{pool: pool}
}

// uniqueViolation reports whether err is a Postgres unique-constraint error.
func uniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// CreateRoom inserts the room and its initial members in one transaction.
// The unique index on rooms.activity_id makes the second creator for the same
// activity lose with ErrDuplicate regardless of interleaving.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *model.Room, members []model.Membership) error {
	defer logger.DeferLogDuration("room.CreateRoom", time.Now())()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("roomRepo.CreateRoom begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO rooms (id, activity_id, name, description, avatar_url, visibility, created_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		room.ID, room.ActivityID, room.Name, room.Description, room.AvatarURL,
		room.Visibility, room.CreatedBy, room.CreatedAt, room.UpdatedAt,
	)
	if uniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("roomRepo.CreateRoom insert room: %w", err)
	}

	for _, m := range members {
		_, err = tx.Exec(ctx,
			`INSERT INTO room_members (room_id, user_id, role, joined_at)
			 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
			room.ID, m.UserID, m.Role, m.JoinedAt,
		)
		if err != nil {
			return fmt.Errorf("roomRepo.CreateRoom insert member: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if uniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("roomRepo.CreateRoom commit: %w", err)
	}
	return nil
}

func (r *RoomRepository) GetByID(ctx context.Context, id string) (*model.Room, error) {
	defer logger.DeferLogDuration("room.GetByID", time.Now())()
	room := &model.Room{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, activity_id, name, COALESCE(description,''), avatar_url, visibility, created_by, created_at, updated_at
		 FROM rooms WHERE id = $1`, id,
	).Scan(&room.ID, &room.ActivityID, &room.Name, &room.Description, &room.AvatarURL,
		&room.Visibility, &room.CreatedBy, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetByID: %w", err)
	}
	return room, nil
}

func (r *RoomRepository) GetByActivity(ctx context.Context, activityID string) (*model.Room, error) {
	defer logger.DeferLogDuration("room.GetByActivity", time.Now())()
	room := &model.Room{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, activity_id, name, COALESCE(description,''), avatar_url, visibility, created_by, created_at, updated_at
		 FROM rooms WHERE activity_id = $1`, activityID,
	).Scan(&room.ID, &room.ActivityID, &room.Name, &room.Description, &room.AvatarURL,
		&room.Visibility, &room.CreatedBy, &room.CreatedAt, &room.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetByActivity: %w", err)
	}
	return room, nil
}

// AddMember is idempotent: the (room_id, user_id) primary key plus
// ON CONFLICT DO NOTHING absorbs concurrent joins for the same pair.
func (r *RoomRepository) AddMember(ctx context.Context, m *model.Membership) error {
	defer logger.DeferLogDuration("room.AddMember", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO room_members (room_id, user_id, role, joined_at)
		 VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING`,
		m.RoomID, m.UserID, m.Role, m.JoinedAt,
	)
	if err != nil {
		return fmt.Errorf("roomRepo.AddMember: %w", err)
	}
	return nil
}

// ListMembers returns memberships in join order with display fields resolved.
func (r *RoomRepository) ListMembers(ctx context.Context, roomID string) ([]model.Membership, error) {
	defer logger.DeferLogDuration("room.ListMembers", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT rm.room_id, rm.user_id, rm.role, rm.joined_at, u.id, u.username, u.avatar_url
		 FROM room_members rm
		 JOIN users u ON u.id = rm.user_id
		 WHERE rm.room_id = $1
		 ORDER BY rm.joined_at, rm.user_id`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.ListMembers query: %w", err)
	}
	defer rows.Close()

	members := make([]model.Membership, 0, 8)
	for rows.Next() {
		var m model.Membership
		u := &model.UserPublic{}
		if err := rows.Scan(&m.RoomID, &m.UserID, &m.Role, &m.JoinedAt, &u.ID, &u.Username, &u.AvatarURL); err != nil {
			return nil, fmt.Errorf("roomRepo.ListMembers scan: %w", err)
		}
		m.User = u
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.ListMembers rows: %w", err)
	}
	return members, nil
}

func (r *RoomRepository) MemberIDs(ctx context.Context, roomID string) ([]string, error) {
	defer logger.DeferLogDuration("room.MemberIDs", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM room_members WHERE room_id = $1`, roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.MemberIDs query: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0, 8)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("roomRepo.MemberIDs scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.MemberIDs rows: %w", err)
	}
	return ids, nil
}

// GetUserRooms returns every room where the user holds a membership.
func (r *RoomRepository) GetUserRooms(ctx context.Context, userID string) ([]model.Room, error) {
	defer logger.DeferLogDuration("room.GetUserRooms", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT rm2.id, rm2.activity_id, rm2.name, COALESCE(rm2.description,''), rm2.avatar_url, rm2.visibility, rm2.created_by, rm2.created_at, rm2.updated_at
		 FROM rooms rm2
		 JOIN room_members rm ON rm.room_id = rm2.id
		 WHERE rm.user_id = $1
		 ORDER BY rm2.created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("roomRepo.GetUserRooms query: %w", err)
	}
	defer rows.Close()

	rooms := make([]model.Room, 0, 16)
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.ActivityID, &room.Name, &room.Description, &room.AvatarURL,
			&room.Visibility, &room.CreatedBy, &room.CreatedAt, &room.UpdatedAt); err != nil {
			return nil, fmt.Errorf("roomRepo.GetUserRooms scan: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("roomRepo.GetUserRooms rows: %w", err)
	}
	return rooms, nil
}
