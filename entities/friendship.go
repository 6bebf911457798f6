package entities

import "database/sql"

type Friendship struct {
	Friend1   string `db:"friend1"`
	Friend2   string `db:"friend2"`
	Confirmed bool   `db:"confirmed"`
}

// PublicKey2 is filled in only once the request is accepted.
type FriendKeyMaterial struct {
	Friend1    string         `db:"friend1"`
	Friend2    string         `db:"friend2"`
	PValue     string         `db:"p_value"`
	GValue     string         `db:"g_value"`
	PublicKey1 string         `db:"public_key1"`
	PublicKey2 sql.NullString `db:"public_key2"`
}

type PendingFriendRequest struct {
	Requester  string `db:"friend1" json:"requester"`
	PValue     string `db:"p_value" json:"p"`
	GValue     string `db:"g_value" json:"g"`
	PublicKey1 string `db:"public_key1" json:"requesterPublicKey"`
}
