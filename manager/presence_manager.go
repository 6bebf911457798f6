package manager

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// PresenceManager tracks which users are online and on which connection.
type PresenceManager interface {
	SetOnline(username string, connID uuid.UUID) (displaced uuid.UUID, ok bool)
	Lookup(username string) (uuid.UUID, error)
	RemoveByConnection(connID uuid.UUID)
	OnlineUsers() []string
}

type presenceManager struct {
	mu          sync.RWMutex
	connections map[string]uuid.UUID
	users       map[uuid.UUID]string
}

func NewPresenceManager() *presenceManager {
	return &presenceManager{
		connections: make(map[string]uuid.UUID),
		users:       make(map[uuid.UUID]string),
	}
}

// SetOnline binds a user to a connection, last writer wins. It returns the
// connection that held the binding before, so the caller can shut down its
// push consumer.
func (pm *presenceManager) SetOnline(username string, connID uuid.UUID) (uuid.UUID, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	prev, existed := pm.connections[username]
	if existed {
		delete(pm.users, prev)
	}
	pm.connections[username] = connID
	pm.users[connID] = username

	return prev, existed && prev != connID
}

func (pm *presenceManager) Lookup(username string) (uuid.UUID, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	connID, exists := pm.connections[username]
	if !exists {
		return uuid.Nil, fmt.Errorf("user %s is not online", username)
	}

	return connID, nil
}

// RemoveByConnection clears the presence entry owned by a connection.
// Absence is not an error.
func (pm *presenceManager) RemoveByConnection(connID uuid.UUID) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	username, exists := pm.users[connID]
	if !exists {
		return
	}

	// A newer connection may have taken over the username entry already.
	if current, ok := pm.connections[username]; ok && current == connID {
		delete(pm.connections, username)
	}
	delete(pm.users, connID)
}

func (pm *presenceManager) OnlineUsers() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	users := make([]string, 0, len(pm.connections))
	for username := range pm.connections {
		users = append(users, username)
	}

	return users
}
