package repository

import (
	"context"
	"fmt"
	"secureChatServer/entities"

	"github.com/jmoiron/sqlx"
)

// OfflineRepository is the store-and-forward queue: messages and friend
// events addressed to users who had no live connection at send time. Items
// are read and removed in a single statement on the recipient's next
// announce, so delivery is at most once: a crash between the delete and the
// websocket write loses the batch.
type OfflineRepository interface {
	SaveMessage(ctx context.Context, msg *entities.OfflineMessage) error
	TakeMessages(ctx context.Context, recipient string) ([]entities.OfflineMessage, error)

	SaveFriendEvent(ctx context.Context, event *entities.QueuedFriendEvent) error
	TakeFriendEvents(ctx context.Context, recipient string, kind entities.EventKind) ([]entities.QueuedFriendEvent, error)
}

type offlineRepository struct {
	db *sqlx.DB
}

func NewOfflineRepository(db *sqlx.DB) *offlineRepository {
	return &offlineRepository{db: db}
}

func (or *offlineRepository) SaveMessage(ctx context.Context, msg *entities.OfflineMessage) error {
	query := `INSERT INTO offline_messages (sender, recipient, sent_at, body) VALUES ($1, $2, $3, $4)`
	_, err := or.db.ExecContext(ctx, query, msg.Sender, msg.Recipient, msg.SentAt, msg.Body)
	if err != nil {
		return fmt.Errorf("failed to save offline message: %v", err)
	}

	return nil
}

// TakeMessages returns all queued messages for the recipient and removes
// them from the queue.
func (or *offlineRepository) TakeMessages(ctx context.Context, recipient string) ([]entities.OfflineMessage, error) {
	query := `DELETE FROM offline_messages WHERE recipient = $1
			  RETURNING id, sender, recipient, sent_at, body`

	var messages []entities.OfflineMessage
	if err := or.db.SelectContext(ctx, &messages, query, recipient); err != nil {
		return nil, fmt.Errorf("failed to take offline messages: %v", err)
	}

	return messages, nil
}

func (or *offlineRepository) SaveFriendEvent(ctx context.Context, event *entities.QueuedFriendEvent) error {
	query := `INSERT INTO offline_friend_events (recipient, kind, payload) VALUES ($1, $2, $3)`
	_, err := or.db.ExecContext(ctx, query, event.Recipient, event.Kind, event.Payload)
	if err != nil {
		return fmt.Errorf("failed to save friend event: %v", err)
	}

	return nil
}

func (or *offlineRepository) TakeFriendEvents(ctx context.Context, recipient string, kind entities.EventKind) ([]entities.QueuedFriendEvent, error) {
	query := `DELETE FROM offline_friend_events WHERE recipient = $1 AND kind = $2
			  RETURNING id, recipient, kind, payload, created_at`

	var events []entities.QueuedFriendEvent
	if err := or.db.SelectContext(ctx, &events, query, recipient, string(kind)); err != nil {
		return nil, fmt.Errorf("failed to take friend events: %v", err)
	}

	return events, nil
}
