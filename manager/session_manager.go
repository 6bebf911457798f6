package manager

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SessionManager owns the per-connection shared secrets produced by the key
// exchange. Secrets are never persisted or logged.
type SessionManager interface {
	Put(connID uuid.UUID, secret []byte)
	Get(connID uuid.UUID) ([]byte, error)
	Remove(connID uuid.UUID)
}

type sessionManager struct {
	mu      sync.RWMutex
	secrets map[uuid.UUID][]byte
}

func NewSessionManager() *sessionManager {
	return &sessionManager{secrets: make(map[uuid.UUID][]byte)}
}

// Put overwrites any prior entry: a repeated exchange re-keys the connection
// immediately, requests in flight under the old secret fail to decrypt.
func (sm *sessionManager) Put(connID uuid.UUID, secret []byte) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	sm.secrets[connID] = secret
}

func (sm *sessionManager) Get(connID uuid.UUID) ([]byte, error) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	secret, exists := sm.secrets[connID]
	if !exists {
		return nil, fmt.Errorf("no session secret for connection %s", connID)
	}

	return secret, nil
}

// Remove is a no-op for connections that never completed an exchange.
func (sm *sessionManager) Remove(connID uuid.UUID) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.secrets, connID)
}
