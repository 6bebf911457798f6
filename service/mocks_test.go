package service

import (
	"context"
	"database/sql"
	"sync"

	"secureChatServer/entities"
)

// In-memory doubles for the persistence collaborator and the broker.

type fakeUserRepo struct {
	users map[string]entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]entities.User)}
}

func (f *fakeUserRepo) Create(ctx context.Context, user entities.User) error {
	f.users[user.Username] = user
	return nil
}

func (f *fakeUserRepo) GetByUsername(ctx context.Context, username string) (*entities.User, error) {
	user, ok := f.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*entities.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeUserRepo) ListNonFriends(ctx context.Context, username string) ([]string, error) {
	var usernames []string
	for name := range f.users {
		if name != username {
			usernames = append(usernames, name)
		}
	}
	return usernames, nil
}

type fakeFriendshipRepo struct {
	edges map[string]*entities.Friendship
	keys  map[string]*entities.FriendKeyMaterial
}

func newFakeFriendshipRepo() *fakeFriendshipRepo {
	return &fakeFriendshipRepo{
		edges: make(map[string]*entities.Friendship),
		keys:  make(map[string]*entities.FriendKeyMaterial),
	}
}

func pairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

func (f *fakeFriendshipRepo) CreateRequest(ctx context.Context, requester, recipient, p, g, requesterPublic string) error {
	key := pairKey(requester, recipient)
	f.edges[key] = &entities.Friendship{Friend1: requester, Friend2: recipient}
	f.keys[key] = &entities.FriendKeyMaterial{
		Friend1:    requester,
		Friend2:    recipient,
		PValue:     p,
		GValue:     g,
		PublicKey1: requesterPublic,
	}
	return nil
}

func (f *fakeFriendshipRepo) Accept(ctx context.Context, requester, recipient, acceptorPublic string) error {
	key := pairKey(requester, recipient)
	if edge, ok := f.edges[key]; ok {
		edge.Confirmed = true
	}
	if material, ok := f.keys[key]; ok {
		material.PublicKey2 = sql.NullString{String: acceptorPublic, Valid: true}
	}
	return nil
}

func (f *fakeFriendshipRepo) Reject(ctx context.Context, requester, recipient string) error {
	key := pairKey(requester, recipient)
	delete(f.edges, key)
	delete(f.keys, key)
	return nil
}

func (f *fakeFriendshipRepo) Get(ctx context.Context, user1, user2 string) (*entities.Friendship, error) {
	edge, ok := f.edges[pairKey(user1, user2)]
	if !ok {
		return nil, nil
	}
	return edge, nil
}

func (f *fakeFriendshipRepo) ListConfirmed(ctx context.Context, username string) ([]entities.Friendship, error) {
	var edges []entities.Friendship
	for _, edge := range f.edges {
		if edge.Confirmed && (edge.Friend1 == username || edge.Friend2 == username) {
			edges = append(edges, *edge)
		}
	}
	return edges, nil
}

func (f *fakeFriendshipRepo) GetKeyMaterial(ctx context.Context, user1, user2 string) (*entities.FriendKeyMaterial, error) {
	material, ok := f.keys[pairKey(user1, user2)]
	if !ok {
		return nil, nil
	}
	return material, nil
}

func (f *fakeFriendshipRepo) ListPendingRequests(ctx context.Context, username string) ([]entities.PendingFriendRequest, error) {
	var requests []entities.PendingFriendRequest
	for key, edge := range f.edges {
		if edge.Friend2 == username && !edge.Confirmed {
			material := f.keys[key]
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

type fakeOfflineRepo struct {
	messages []entities.OfflineMessage
	events   []entities.QueuedFriendEvent
}

func newFakeOfflineRepo() *fakeOfflineRepo {
	return &fakeOfflineRepo{}
}

func (f *fakeOfflineRepo) SaveMessage(ctx context.Context, msg *entities.OfflineMessage) error {
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeOfflineRepo) TakeMessages(ctx context.Context, recipient string) ([]entities.OfflineMessage, error) {
	var taken, kept []entities.OfflineMessage
	for _, msg := range f.messages {
		if msg.Recipient == recipient {
			taken = append(taken, msg)
		} else {
			kept = append(kept, msg)
		}
	}
	f.messages = kept
	return taken, nil
}

func (f *fakeOfflineRepo) SaveFriendEvent(ctx context.Context, event *entities.QueuedFriendEvent) error {
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeOfflineRepo) TakeFriendEvents(ctx context.Context, recipient string, kind entities.EventKind) ([]entities.QueuedFriendEvent, error) {
	var taken, kept []entities.QueuedFriendEvent
	for _, event := range f.events {
		if event.Recipient == recipient && event.Kind == string(kind) {
			taken = append(taken, event)
		} else {
			kept = append(kept, event)
		}
	}
	f.events = kept
	return taken, nil
}

// fakeBroker delivers published events synchronously to a subscribed handler
// and records everything it saw.
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][]*entities.PushEvent
	handlers  map[string]func(*entities.PushEvent)
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{
		published: make(map[string][]*entities.PushEvent),
		handlers:  make(map[string]func(*entities.PushEvent)),
	}
}

func (f *fakeBroker) Publish(username string, event *entities.PushEvent) error {
	f.mu.Lock()
	f.published[username] = append(f.published[username], event)
	handle := f.handlers[username]
	f.mu.Unlock()

	if handle != nil {
		handle(event)
	}
	return nil
}

func (f *fakeBroker) Subscribe(ctx context.Context, username string, handle func(*entities.PushEvent)) error {
	f.mu.Lock()
	f.handlers[username] = handle
	f.mu.Unlock()

	<-ctx.Done()

	f.mu.Lock()
	delete(f.handlers, username)
	f.mu.Unlock()
	return nil
}

func (f *fakeBroker) Close() {}

func (f *fakeBroker) publishedTo(username string) []*entities.PushEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.published[username]
}
