package entities

import "time"

type OfflineMessage struct {
	ID        uint64    `db:"id" json:"-"`
	Sender    string    `db:"sender" json:"sender"`
	Recipient string    `db:"recipient" json:"recipient"`
	SentAt    time.Time `db:"sent_at" json:"timestamp"`
	Body      string    `db:"body" json:"body"`
}
