package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/travelbuddy/internal/logger"
	"github.com/travelbuddy/internal/model"
)

// ActivityRepository is the chat core's view of the activity service: creator,
// participants and the has_room flag. Activity CRUD lives elsewhere.
type ActivityRepository struct {
	pool *pgxpool.Pool
}

func NewActivityRepository(pool *pgxpool.Pool) *ActivityRepository {
	return &ActivityRepository{pool: pool}
}

func (r *ActivityRepository) GetByID(ctx context.Context, id string) (*model.Activity, error) {
	defer logger.DeferLogDuration("activity.GetByID", time.Now())()
	a := &model.Activity{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, creator_id, has_room, created_at
		 FROM activities WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.CreatorID, &a.HasRoom, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("activityRepo.GetByID: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT user_id FROM activity_participants WHERE activity_id = $1`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("activityRepo.GetByID participants query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return nil, fmt.Errorf("activityRepo.GetByID participants scan: %w", err)
		}
		a.Participants = append(a.Participants, uid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activityRepo.GetByID participants rows: %w", err)
	}
	return a, nil
}

func (r *ActivityRepository) SetHasRoom(ctx context.Context, id string, has bool) error {
	defer logger.DeferLogDuration("activity.SetHasRoom", time.Now())()
	_, err := r.pool.Exec(ctx,
		`UPDATE activities SET has_room = $1 WHERE id = $2`, has, id,
	)
	if err != nil {
		return fmt.Errorf("activityRepo.SetHasRoom: %w", err)
	}
	return nil
}
