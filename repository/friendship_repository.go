package repository

import (
	"context"
	"database/sql"
	"fmt"
	"secureChatServer/entities"

	"github.com/jmoiron/sqlx"
)

// FriendshipRepository stores friendship edges together with the DH key
// material the two friends use for their own end-to-end exchange. Both rows
// share the same lifecycle: created by a request, completed on accept,
// deleted on reject.
type FriendshipRepository interface {
	// CreateRequest inserts an unconfirmed edge plus the requester's DH parameters.
	CreateRequest(ctx context.Context, requester, recipient, p, g, requesterPublic string) error

	// Accept confirms the edge and stores the acceptor's public value.
	Accept(ctx context.Context, requester, recipient, acceptorPublic string) error

	// Reject deletes the edge and its key material.
	Reject(ctx context.Context, requester, recipient string) error

	// Get returns the edge between two users regardless of direction, nil if none.
	Get(ctx context.Context, user1, user2 string) (*entities.Friendship, error)

	// ListConfirmed returns all confirmed edges touching the user.
	ListConfirmed(ctx context.Context, username string) ([]entities.Friendship, error)

	// GetKeyMaterial returns the DH parameters for an edge, nil if none.
	GetKeyMaterial(ctx context.Context, user1, user2 string) (*entities.FriendKeyMaterial, error)

	// ListPendingRequests returns requests addressed to the user that are not
	// yet confirmed, with the requester's DH parameters attached.
	ListPendingRequests(ctx context.Context, username string) ([]entities.PendingFriendRequest, error)
}

type friendshipRepository struct {
	db *sqlx.DB
}

func NewFriendshipRepository(db *sqlx.DB) *friendshipRepository {
	return &friendshipRepository{db: db}
}

func (fr *friendshipRepository) CreateRequest(ctx context.Context, requester, recipient, p, g, requesterPublic string) error {
	tx, err := fr.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	edgeQuery := `INSERT INTO friendships (friend1, friend2, confirmed) VALUES ($1, $2, false)`
	if _, err := tx.ExecContext(ctx, edgeQuery, requester, recipient); err != nil {
		return fmt.Errorf("failed to insert friendship: %v", err)
	}

	keyQuery := `INSERT INTO friend_key_material (friend1, friend2, p_value, g_value, public_key1)
				 VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, keyQuery, requester, recipient, p, g, requesterPublic); err != nil {
		return fmt.Errorf("failed to insert key material: %v", err)
	}

	return tx.Commit()
}

func (fr *friendshipRepository) Accept(ctx context.Context, requester, recipient, acceptorPublic string) error {
	tx, err := fr.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	edgeQuery := `UPDATE friendships SET confirmed = true
				  WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`
	if _, err := tx.ExecContext(ctx, edgeQuery, requester, recipient); err != nil {
		return fmt.Errorf("failed to confirm friendship: %v", err)
	}

	keyQuery := `UPDATE friend_key_material SET public_key2 = $3
				 WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`
	if _, err := tx.ExecContext(ctx, keyQuery, requester, recipient, acceptorPublic); err != nil {
		return fmt.Errorf("failed to update key material: %v", err)
	}

	return tx.Commit()
}

func (fr *friendshipRepository) Reject(ctx context.Context, requester, recipient string) error {
	tx, err := fr.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	keyQuery := `DELETE FROM friend_key_material
				 WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`
	if _, err := tx.ExecContext(ctx, keyQuery, requester, recipient); err != nil {
		return fmt.Errorf("failed to delete key material: %v", err)
	}

	edgeQuery := `DELETE FROM friendships
				  WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`
	if _, err := tx.ExecContext(ctx, edgeQuery, requester, recipient); err != nil {
		return fmt.Errorf("failed to delete friendship: %v", err)
	}

	return tx.Commit()
}

func (fr *friendshipRepository) Get(ctx context.Context, user1, user2 string) (*entities.Friendship, error) {
	query := `SELECT friend1, friend2, confirmed FROM friendships
			  WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`

	var edge entities.Friendship
	err := fr.db.GetContext(ctx, &edge, query, user1, user2)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get friendship: %v", err)
	}

	return &edge, nil
}

func (fr *friendshipRepository) ListConfirmed(ctx context.Context, username string) ([]entities.Friendship, error) {
	query := `SELECT friend1, friend2, confirmed FROM friendships
			  WHERE (friend1 = $1 OR friend2 = $1) AND confirmed = true`

	var edges []entities.Friendship
	if err := fr.db.SelectContext(ctx, &edges, query, username); err != nil {
		return nil, fmt.Errorf("failed to list friends: %v", err)
	}

	return edges, nil
}

func (fr *friendshipRepository) GetKeyMaterial(ctx context.Context, user1, user2 string) (*entities.FriendKeyMaterial, error) {
	query := `SELECT friend1, friend2, p_value, g_value, public_key1, public_key2 FROM friend_key_material
			  WHERE (friend1 = $1 AND friend2 = $2) OR (friend1 = $2 AND friend2 = $1)`

	var material entities.FriendKeyMaterial
	err := fr.db.GetContext(ctx, &material, query, user1, user2)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key material: %v", err)
	}

	return &material, nil
}

func (fr *friendshipRepository) ListPendingRequests(ctx context.Context, username string) ([]entities.PendingFriendRequest, error) {
	query := `
	SELECT f.friend1, k.p_value, k.g_value, k.public_key1
	FROM friendships f
	JOIN friend_key_material k ON (f.friend1 = k.friend1 AND f.friend2 = k.friend2)
	WHERE f.friend2 = $1 AND f.confirmed = false`

	var requests []entities.PendingFriendRequest
	if err := fr.db.SelectContext(ctx, &requests, query, username); err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %v", err)
	}

	return requests, nil
}
