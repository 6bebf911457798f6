package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"secureChatServer/broker"
	"secureChatServer/manager"
	"secureChatServer/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Handler hosts the websocket endpoint and spins up one connection handler
// per upgraded client.
type Handler struct {
	upgrader websocket.Upgrader
	sessions manager.SessionManager
	presence manager.PresenceManager
	exchange *service.KeyExchangeService
	users    *service.UserService
	friends  *service.FriendService
	notifier *service.NotificationService
	pushes   broker.PushBroker

	// requestTimeout bounds every persistence call so a stuck storage
	// backend cannot block unrelated connections.
	requestTimeout time.Duration

	// Push consumers are registered here by connection id so a presence
	// takeover can cancel the displaced connection's consumer. A stale
	// consumer left behind would keep competing for the user's queue.
	pushMu    sync.Mutex
	pushStops map[uuid.UUID]context.CancelFunc
}

func NewHandler(
	sessions manager.SessionManager,
	presence manager.PresenceManager,
	exchange *service.KeyExchangeService,
	users *service.UserService,
	friends *service.FriendService,
	notifier *service.NotificationService,
	pushes broker.PushBroker,
	requestTimeout time.Duration,
) *Handler {
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		sessions:       sessions,
		presence:       presence,
		exchange:       exchange,
		users:          users,
		friends:        friends,
		notifier:       notifier,
		pushes:         pushes,
		requestTimeout: requestTimeout,
		pushStops:      make(map[uuid.UUID]context.CancelFunc),
	}
}

// registerPushStop stores the cancel func for a connection's push consumer,
// cancelling any consumer the connection already had.
func (h *Handler) registerPushStop(connID uuid.UUID, cancel context.CancelFunc) {
	h.pushMu.Lock()
	prev := h.pushStops[connID]
	h.pushStops[connID] = cancel
	h.pushMu.Unlock()

	if prev != nil {
		prev()
	}
}

// stopPush cancels a connection's push consumer if it has one.
func (h *Handler) stopPush(connID uuid.UUID) {
	h.pushMu.Lock()
	cancel := h.pushStops[connID]
	delete(h.pushStops, connID)
	h.pushMu.Unlock()

	if cancel != nil {
		cancel()
	}
}

func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade to WebSocket")
		return
	}

	newConnection(h, ws).serve()
}
