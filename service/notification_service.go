package service

import (
	"context"
	"encoding/json"
	"secureChatServer/apperrors"
	"secureChatServer/broker"
	"secureChatServer/entities"
	"secureChatServer/manager"
	"secureChatServer/repository"

	"github.com/sirupsen/logrus"
)

// NotificationService decides how an event reaches its recipient: pushed to
// the live connection when the user is online, persisted for the next login
// otherwise. Live pushes travel through the broker and are encrypted by the
// recipient's own connection under its session secret; the sender's
// ciphertext is never relayed verbatim.
//
// The presence check and the publish are not atomic: a recipient
// disconnecting in between leaves the event parked in their durable broker
// queue, delivered on the next session rather than dropped.
type NotificationService struct {
	presence manager.PresenceManager
	broker   broker.PushBroker
	offline  repository.OfflineRepository
	friends  repository.FriendshipRepository
}

func NewNotificationService(
	presence manager.PresenceManager,
	pushBroker broker.PushBroker,
	offline repository.OfflineRepository,
	friends repository.FriendshipRepository,
) *NotificationService {
	return &NotificationService{
		presence: presence,
		broker:   pushBroker,
		offline:  offline,
		friends:  friends,
	}
}

// FriendAcceptNotice tells a requester their request was accepted, with
// everything needed to finish the friend-to-friend exchange.
type FriendAcceptNotice struct {
	Acceptor          string `json:"acceptor"`
	PValue            string `json:"p"`
	GValue            string `json:"g"`
	AcceptorPublicKey string `json:"acceptorPublicKey"`
}

// OfflineBundle is everything a user missed while offline, returned on
// announce-online in one batch.
type OfflineBundle struct {
	Messages        []entities.OfflineMessage       `json:"messages"`
	FriendRequests  []entities.PendingFriendRequest `json:"friendRequests"`
	AcceptedFriends []json.RawMessage               `json:"acceptedRequests"`
}

// DeliverOrQueue routes one event to a user.
func (ns *NotificationService) DeliverOrQueue(ctx context.Context, kind entities.EventKind, recipient string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Internal("failed to serialize notification payload")
	}

	if _, err := ns.presence.Lookup(recipient); err == nil {
		event := &entities.PushEvent{Kind: kind, Payload: raw}
		if err := ns.broker.Publish(recipient, event); err != nil {
			return apperrors.Wrap(apperrors.CodeInternal, "failed to publish push event", err)
		}
		logrus.WithFields(logrus.Fields{"kind": kind, "recipient": recipient}).Debug("Event pushed live")
		return nil
	}

	switch kind {
	case entities.EventMessage:
		msg, ok := payload.(*entities.OfflineMessage)
		if !ok {
			return apperrors.Internal("message payload has unexpected type")
		}
		if err := ns.offline.SaveMessage(ctx, msg); err != nil {
			return apperrors.PersistenceUnavailable("failed to queue message", err)
		}
	case entities.EventFriendAccept:
		event := &entities.QueuedFriendEvent{
			Recipient: recipient,
			Kind:      string(kind),
			Payload:   raw,
		}
		if err := ns.offline.SaveFriendEvent(ctx, event); err != nil {
			return apperrors.PersistenceUnavailable("failed to queue friend event", err)
		}
	case entities.EventFriendRequest:
		// The unconfirmed friendship edge and its key material already hold
		// everything the recipient sees on next login; queueing a second
		// copy would notify twice.
	default:
		return apperrors.Internal("unknown event kind " + string(kind))
	}

	logrus.WithFields(logrus.Fields{"kind": kind, "recipient": recipient}).Debug("Event queued for offline delivery")
	return nil
}

// CollectOfflineBundle fetches everything queued for the user and removes the
// consumed queue entries. Pending friend requests stay until they are
// answered, they are derived from the friendship table rather than consumed.
func (ns *NotificationService) CollectOfflineBundle(ctx context.Context, username string) (*OfflineBundle, error) {
	messages, err := ns.offline.TakeMessages(ctx, username)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to fetch offline messages", err)
	}

	requests, err := ns.friends.ListPendingRequests(ctx, username)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to fetch pending friend requests", err)
	}

	acceptEvents, err := ns.offline.TakeFriendEvents(ctx, username, entities.EventFriendAccept)
	if err != nil {
		return nil, apperrors.PersistenceUnavailable("failed to fetch friend events", err)
	}

	accepted := make([]json.RawMessage, 0, len(acceptEvents))
	for _, event := range acceptEvents {
		accepted = append(accepted, json.RawMessage(event.Payload))
	}

	return &OfflineBundle{
		Messages:        messages,
		FriendRequests:  requests,
		AcceptedFriends: accepted,
	}, nil
}
