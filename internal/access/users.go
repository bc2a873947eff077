package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/plantnet-orders/internal/orders"
	"github.com/ariefcatur/plantnet-orders/internal/redisx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// UserRepo reads users from Postgres.
type UserRepo struct{ DB *pgxpool.Pool }

func (r *UserRepo) FindUser(ctx context.Context, email string) (User, error) {
	var u User
	err := r.DB.QueryRow(ctx, `SELECT email, name, image, role, status, created_at FROM users WHERE email=$1`, email).
		Scan(&u.Email, &u.Name, &u.Image, &u.Role, &u.Status, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", email, orders.ErrNotFound)
	}
	return u, err
}

func (r *UserRepo) Role(ctx context.Context, email string) (Role, error) {
	u, err := r.FindUser(ctx, email)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

// CachedRoles fronts a RoleSource with a short-lived Redis entry per email.
// Redis errors fall through to the source.
type CachedRoles struct {
	Next  RoleSource
	Redis *redis.Client
	Log   *zap.Logger
}

func (c *CachedRoles) Role(ctx context.Context, email string) (Role, error) {
	key := fmt.Sprintf(redisx.KeyUserRole, email)
	if s, err := c.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		return Role(s), nil
	} else if err != nil && !errors.Is(err, redis.Nil) {
		c.Log.Warn("role cache read failed", zap.String("email", email), zap.Error(err))
	}

	role, err := c.Next.Role(ctx, email)
	if err != nil {
		return "", err
	}
	if err := c.Redis.Set(ctx, key, string(role), redisx.TTLUserRole).Err(); err != nil {
		c.Log.Warn("role cache write failed", zap.String("email", email), zap.Error(err))
	}
	return role, nil
}
