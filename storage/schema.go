package storage

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	username      VARCHAR(20) PRIMARY KEY,
	email         VARCHAR(255) UNIQUE NOT NULL,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	avatar        BYTEA
);

CREATE TABLE IF NOT EXISTS friendships (
	friend1   VARCHAR(20) REFERENCES users(username),
	friend2   VARCHAR(20) REFERENCES users(username),
	confirmed BOOLEAN NOT NULL,
	PRIMARY KEY (friend1, friend2)
);

CREATE TABLE IF NOT EXISTS friend_key_material (
	friend1     VARCHAR(20) REFERENCES users(username),
	friend2     VARCHAR(20) REFERENCES users(username),
	p_value     TEXT NOT NULL,
	g_value     TEXT NOT NULL,
	public_key1 TEXT NOT NULL,
	public_key2 TEXT,
	PRIMARY KEY (friend1, friend2)
);

CREATE TABLE IF NOT EXISTS offline_messages (
	id        SERIAL PRIMARY KEY,
	sender    VARCHAR(20) REFERENCES users(username),
	recipient VARCHAR(20) REFERENCES users(username),
	sent_at   TIMESTAMP NOT NULL,
	body      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS offline_friend_events (
	id         SERIAL PRIMARY KEY,
	recipient  VARCHAR(20) REFERENCES users(username),
	kind       VARCHAR(20) NOT NULL,
	payload    BYTEA NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT NOW()
);
`

// EnsureSchema creates the tables on startup if they do not exist yet.
func EnsureSchema(db *sqlx.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}
	return nil
}
