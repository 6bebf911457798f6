package transport

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"secureChatServer/entities"
	"secureChatServer/manager"
	"secureChatServer/service"
)

// In-memory doubles for the persistence collaborator and the broker, plus a
// fully wired Handler over them.

type testEnv struct {
	handler  *Handler
	sessions manager.SessionManager
	presence manager.PresenceManager
	users    *stubUserRepo
	offline  *stubOfflineRepo
	broker   *stubBroker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	users := newStubUserRepo()
	friends := newStubFriendshipRepo()
	offline := newStubOfflineRepo()
	pushBroker := newStubBroker()

	sessions := manager.NewSessionManager()
	presence := manager.NewPresenceManager()

	exchange := service.NewKeyExchangeService(sessions, false)
	userService := service.NewUserService(users)
	notifier := service.NewNotificationService(presence, pushBroker, offline, friends)
	friendService := service.NewFriendService(friends, users, presence, notifier)

	handler := NewHandler(sessions, presence, exchange, userService, friendService, notifier, pushBroker, 5*time.Second)

	return &testEnv{
		handler:  handler,
		sessions: sessions,
		presence: presence,
		users:    users,
		offline:  offline,
		broker:   pushBroker,
	}
}

type stubUserRepo struct {
	mu    sync.Mutex
	users map[string]entities.User
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[string]entities.User)}
}

func (s *stubUserRepo) Create(ctx context.Context, user entities.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.Username] = user
	return nil
}

func (s *stubUserRepo) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubUserRepo) ListNonFriends(ctx context.Context, username string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var usernames []string
	for name := range s.users {
		if name != username {
			usernames = append(usernames, name)
		}
	}
	return usernames, nil
}

type stubFriendshipRepo struct {
	mu    sync.Mutex
	edges map[string]*entities.Friendship
	keys  map[string]*entities.FriendKeyMaterial
}

func newStubFriendshipRepo() *stubFriendshipRepo {
	return &stubFriendshipRepo{
		edges: make(map[string]*entities.Friendship),
		keys:  make(map[string]*entities.FriendKeyMaterial),
	}
}

func edgeKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (s *stubFriendshipRepo) CreateRequest(ctx context.Context, requester, recipient, p, g, requesterPublic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey(requester, recipient)
	s.edges[key] = &entities.Friendship{Friend1: requester, Friend2: recipient}
	s.keys[key] = &entities.FriendKeyMaterial{
		Friend1: requester, Friend2: recipient,
		PValue: p, GValue: g, PublicKey1: requesterPublic,
	}
	return nil
}

func (s *stubFriendshipRepo) Accept(ctx context.Context, requester, recipient, acceptorPublic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := edgeKey(requester, recipient)
	if edge, ok := s.edges[key]; ok {
		edge.Confirmed = true
	}
	if material, ok := s.keys[key]; ok {
		material.PublicKey2 = sql.NullString{String: acceptorPublic, Valid: true}
	}
	return nil
}

func (s *stubFriendshipRepo) Reject(ctx context.Context, requester, recipient string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.edges, edgeKey(requester, recipient))
	delete(s.keys, edgeKey(requester, recipient))
	return nil
}

func (s *stubFriendshipRepo) Get(ctx context.Context, user1, user2 string) (*entities.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge, ok := s.edges[edgeKey(user1, user2)]
	if !ok {
		return nil, nil
	}
	return edge, nil
}

func (s *stubFriendshipRepo) ListConfirmed(ctx context.Context, username string) ([]entities.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var edges []entities.Friendship
	for _, edge := range s.edges {
		if edge.Confirmed && (edge.Friend1 == username || edge.Friend2 == username) {
			edges = append(edges, *edge)
		}
	}
	return edges, nil
}

func (s *stubFriendshipRepo) GetKeyMaterial(ctx context.Context, user1, user2 string) (*entities.FriendKeyMaterial, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	material, ok := s.keys[edgeKey(user1, user2)]
	if !ok {
		return nil, nil
	}
	return material, nil
}

func (s *stubFriendshipRepo) ListPendingRequests(ctx context.Context, username string) ([]entities.PendingFriendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var requests []entities.PendingFriendRequest
	for key, edge := range s.edges {
		if edge.Friend2 == username && !edge.Confirmed {
			material := s.keys[key]
			requests = append(requests, entities.PendingFriendRequest{
				Requester:  edge.Friend1,
				PValue:     material.PValue,
				GValue:     material.GValue,
				PublicKey1: material.PublicKey1,
			})
		}
	}
	return requests, nil
}

type stubOfflineRepo struct {
	mu       sync.Mutex
	messages []entities.OfflineMessage
	events   []entities.QueuedFriendEvent
}

func newStubOfflineRepo() *stubOfflineRepo {
	return &stubOfflineRepo{}
}

func (s *stubOfflineRepo) SaveMessage(ctx context.Context, msg *entities.OfflineMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, *msg)
	return nil
}

func (s *stubOfflineRepo) TakeMessages(ctx context.Context, recipient string) ([]entities.OfflineMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var taken, kept []entities.OfflineMessage
	for _, msg := range s.messages {
		if msg.Recipient == recipient {
			taken = append(taken, msg)
		} else {
			kept = append(kept, msg)
		}
	}
	s.messages = kept
	return taken, nil
}

func (s *stubOfflineRepo) SaveFriendEvent(ctx context.Context, event *entities.QueuedFriendEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *stubOfflineRepo) TakeFriendEvents(ctx context.Context, recipient string, kind entities.EventKind) ([]entities.QueuedFriendEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var taken, kept []entities.QueuedFriendEvent
	for _, event := range s.events {
		if event.Recipient == recipient && event.Kind == string(kind) {
			taken = append(taken, event)
		} else {
			kept = append(kept, event)
		}
	}
	s.events = kept
	return taken, nil
}

func (s *stubOfflineRepo) messageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type brokerSub struct {
	id     int
	handle func(*entities.PushEvent)
}

// stubBroker mimics RabbitMQ's competing-consumer model: every subscription
// on a queue stays active until its own ctx is cancelled, and published
// events are dealt round-robin across the active consumers. A consumer left
// behind therefore steals deliveries, exactly as the real broker would.
type stubBroker struct {
	mu        sync.Mutex
	nextID    int
	published map[string][]*entities.PushEvent
	subs      map[string][]brokerSub
	next      map[string]int
}

func newStubBroker() *stubBroker {
	return &stubBroker{
		published: make(map[string][]*entities.PushEvent),
		subs:      make(map[string][]brokerSub),
		next:      make(map[string]int),
	}
}

func (s *stubBroker) Publish(username string, event *entities.PushEvent) error {
	s.mu.Lock()
	s.published[username] = append(s.published[username], event)

	var handle func(*entities.PushEvent)
	if active := s.subs[username]; len(active) > 0 {
		handle = active[s.next[username]%len(active)].handle
		s.next[username]++
	}
	s.mu.Unlock()

	if handle != nil {
		handle(event)
	}
	return nil
}

func (s *stubBroker) Subscribe(ctx context.Context, username string, handle func(*entities.PushEvent)) error {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[username] = append(s.subs[username], brokerSub{id: id, handle: handle})
	s.mu.Unlock()

	<-ctx.Done()

	s.mu.Lock()
	active := s.subs[username]
	for i, sub := range active {
		if sub.id == id {
			s.subs[username] = append(active[:i], active[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *stubBroker) Close() {}

func (s *stubBroker) subscriberCount(username string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs[username])
}

// subscriberIDs returns the ids of the active subscriptions in the order
// they were opened. Ids are assigned globally, starting at 1.
func (s *stubBroker) subscriberIDs(username string) []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.subs[username]))
	for _, sub := range s.subs[username] {
		ids = append(ids, sub.id)
	}
	return ids
}

func (s *stubBroker) hasSubscriber(username string) bool {
	return s.subscriberCount(username) > 0
}
