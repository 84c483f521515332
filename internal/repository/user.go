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

// UserRepository is a read-only projection of the user directory, used to
// resolve display fields on messages and memberships.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.UserPublic, error) {
	defer logger.DeferLogDuration("user.GetByID", time.Now())()
	u := &model.UserPublic{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, avatar_url FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.AvatarURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}
	return u, nil
}
