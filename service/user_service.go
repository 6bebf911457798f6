package service

import (
	"context"
	"database/sql"
	"errors"
	"secureChatServer/apperrors"
	"secureChatServer/entities"
	"secureChatServer/repository"
	"secureChatServer/utils"

	"github.com/sirupsen/logrus"
)

type UserService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) *UserService {
	return &UserService{repo: repo}
}

// RegisterCommand carries the already-decrypted registration fields.
type RegisterCommand struct {
	Name     string
	Email    string
	Password string
	Username string
	Avatar   []byte
}

func (us *UserService) Register(ctx context.Context, cmd RegisterCommand) error {
	if cmd.Username == "" || cmd.Email == "" || cmd.Password == "" {
		return apperrors.InvalidParameters("username, email and password are required")
	}

	if user, err := us.lookup(func() (*entities.User, error) { return us.repo.GetByUsername(ctx, cmd.Username) }); err != nil {
		return err
	} else if user != nil {
		return apperrors.AlreadyExists("username already taken")
	}

	if user, err := us.lookup(func() (*entities.User, error) { return us.repo.GetByEmail(ctx, cmd.Email) }); err != nil {
		return err
	} else if user != nil {
		return apperrors.AlreadyExists("email already registered")
	}

	passwordHash, err := utils.HashPassword(cmd.Password)
	if err != nil {
		return apperrors.Internal("failed to hash password")
	}

	user := entities.User{
		Username:     cmd.Username,
		Email:        cmd.Email,
		Name:         cmd.Name,
		PasswordHash: passwordHash,
		Avatar:       cmd.Avatar,
	}

	if err := us.repo.Create(ctx, user); err != nil {
		return apperrors.PersistenceUnavailable("failed to create user", err)
	}

	logrus.WithField("username", cmd.Username).Info("User registered")
	return nil
}

// Login checks the credentials and returns the user identity. Credential
// failures are never degraded to an empty result.
func (us *UserService) Login(ctx context.Context, email, password string) (*entities.User, error) {
	user, err := us.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.PersistenceUnavailable("failed to look up user", err)
	}

	if err := utils.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, apperrors.NotAuthenticated("invalid credentials")
	}

	return user, nil
}

// ListNonFriends returns usernames the user has no edge with yet. Best-effort
// display listing, callers may degrade a failure to an empty list.
func (us *UserService) ListNonFriends(ctx context.Context, username string) ([]string, error) {
	usernames, err := us.repo.ListNonFriends(ctx, username)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to list users", err)
	}

	return usernames, nil
}

func (us *UserService) lookup(get func() (*entities.User, error)) (*entities.User, error) {
	user, err := get()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.PersistenceUnavailable("failed to check existing user", err)
	}
	return user, nil
}
