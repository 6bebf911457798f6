package service

import (
	"context"
	"database/sql"
	"errors"
	"secureChatServer/apperrors"
	"secureChatServer/entities"
	"secureChatServer/manager"
	"secureChatServer/repository"
)

// FriendService owns the friendship lifecycle: request, accept, reject, and
// the friend listings. The DH parameters riding on a request belong to the
// two friends' own exchange, the server only stores and forwards them.
type FriendService struct {
	friendRepo repository.FriendshipRepository
	userRepo   repository.UserRepository
	presence   manager.PresenceManager
	notifier   *NotificationService
}

func NewFriendService(
	friendRepo repository.FriendshipRepository,
	userRepo repository.UserRepository,
	presence manager.PresenceManager,
	notifier *NotificationService,
) *FriendService {
	return &FriendService{
		friendRepo: friendRepo,
		userRepo:   userRepo,
		presence:   presence,
		notifier:   notifier,
	}
}

func (fs *FriendService) Request(ctx context.Context, requester, recipient, p, g, requesterPublic string) error {
	if requester == recipient {
		return apperrors.InvalidParameters("cannot befriend yourself")
	}
	if p == "" || g == "" || requesterPublic == "" {
		return apperrors.InvalidParameters("missing Diffie-Hellman parameters")
	}

	if _, err := fs.userRepo.GetByUsername(ctx, recipient); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("user " + recipient + " not found")
		}
		return apperrors.PersistenceUnavailable("failed to look up recipient", err)
	}

	edge, err := fs.friendRepo.Get(ctx, requester, recipient)
	if err != nil {
		return apperrors.PersistenceUnavailable("failed to check existing friendship", err)
	}
	if edge != nil {
		return apperrors.AlreadyExists("friend request already sent")
	}

	if err := fs.friendRepo.CreateRequest(ctx, requester, recipient, p, g, requesterPublic); err != nil {
		return apperrors.PersistenceUnavailable("failed to store friend request", err)
	}

	notice := entities.PendingFriendRequest{
		Requester:  requester,
		PValue:     p,
		GValue:     g,
		PublicKey1: requesterPublic,
	}
	return fs.notifier.DeliverOrQueue(ctx, entities.EventFriendRequest, recipient, notice)
}

func (fs *FriendService) Accept(ctx context.Context, requester, recipient, acceptorPublic string) error {
	if acceptorPublic == "" {
		return apperrors.InvalidParameters("missing acceptor public key")
	}

	edge, err := fs.friendRepo.Get(ctx, requester, recipient)
	if err != nil {
		return apperrors.PersistenceUnavailable("failed to check friendship", err)
	}
	if edge == nil {
		return apperrors.NotFound("no pending friend request")
	}
	if edge.Confirmed {
		return apperrors.AlreadyExists("friendship already confirmed")
	}

	if err := fs.friendRepo.Accept(ctx, requester, recipient, acceptorPublic); err != nil {
		return apperrors.PersistenceUnavailable("failed to confirm friendship", err)
	}

	material, err := fs.friendRepo.GetKeyMaterial(ctx, requester, recipient)
	if err != nil || material == nil {
		return apperrors.PersistenceUnavailable("failed to load key material", err)
	}

	notice := FriendAcceptNotice{
		Acceptor:          recipient,
		PValue:            material.PValue,
		GValue:            material.GValue,
		AcceptorPublicKey: acceptorPublic,
	}
	return fs.notifier.DeliverOrQueue(ctx, entities.EventFriendAccept, requester, notice)
}

func (fs *FriendService) Reject(ctx context.Context, requester, recipient string) error {
	edge, err := fs.friendRepo.Get(ctx, requester, recipient)
	if err != nil {
		return apperrors.PersistenceUnavailable("failed to check friendship", err)
	}
	if edge == nil {
		return apperrors.NotFound("no pending friend request")
	}
	if edge.Confirmed {
		return apperrors.AlreadyExists("friendship already confirmed")
	}

	if err := fs.friendRepo.Reject(ctx, requester, recipient); err != nil {
		return apperrors.PersistenceUnavailable("failed to delete friend request", err)
	}

	return nil
}

func (fs *FriendService) ListFriends(ctx context.Context, username string) ([]entities.Friendship, error) {
	edges, err := fs.friendRepo.ListConfirmed(ctx, username)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to list friends", err)
	}

	return edges, nil
}

// ListOnlineFriends narrows the confirmed friends down to those with a live
// presence entry right now.
func (fs *FriendService) ListOnlineFriends(ctx context.Context, username string) ([]string, error) {
	edges, err := fs.friendRepo.ListConfirmed(ctx, username)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to list friends", err)
	}

	var online []string
	for _, edge := range edges {
		friend := edge.Friend1
		if friend == username {
			friend = edge.Friend2
		}
		if _, err := fs.presence.Lookup(friend); err == nil {
			online = append(online, friend)
		}
	}

	return online, nil
}
