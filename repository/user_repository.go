package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"secureChatServer/entities"

	"github.com/jmoiron/sqlx"
)

type UserRepository interface {
	Create(ctx context.Context, user entities.User) error
	GetByUsername(ctx context.Context, username string) (*entities.User, error)
	GetByEmail(ctx context.Context, email string) (*entities.User, error)
	ListNonFriends(ctx context.Context, username string) ([]string, error)
}

type userRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *userRepo {
	return &userRepo{db: db}
}

func (ur *userRepo) Create(ctx context.Context, user entities.User) error {
	query := `INSERT INTO users (username, email, name, password_hash, avatar) VALUES ($1, $2, $3, $4, $5)`
	_, err := ur.db.ExecContext(ctx, query, user.Username, user.Email, user.Name, user.PasswordHash, user.Avatar)
	if err != nil {
		return fmt.Errorf("failed to insert user: %v", err)
	}
	return nil
}

func (ur *userRepo) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	var user entities.User
	query := `SELECT username, email, name, password_hash, avatar FROM users WHERE username = $1`

	err := ur.db.GetContext(ctx, &user, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user by username: %v", err)
	}
	return &user, nil
}

func (ur *userRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	var user entities.User
	query := `SELECT username, email, name, password_hash, avatar FROM users WHERE email = $1`

	err := ur.db.GetContext(ctx, &user, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("failed to get user by email: %v", err)
	}
	return &user, nil
}

// ListNonFriends returns usernames with no friendship edge (confirmed or
// pending) towards the given user. Used to populate the "people you can add"
// listing.
func (ur *userRepo) ListNonFriends(ctx context.Context, username string) ([]string, error) {
	query := `
	SELECT u.username FROM users u
	WHERE u.username != $1
	AND u.username NOT IN (
		SELECT CASE WHEN friend1 = $1 THEN friend2 ELSE friend1 END
		FROM friendships
		WHERE friend1 = $1 OR friend2 = $1
	)`

	var usernames []string
	if err := ur.db.SelectContext(ctx, &usernames, query, username); err != nil {
		return nil, fmt.Errorf("failed to list non-friends: %v", err)
	}

	return usernames, nil
}
