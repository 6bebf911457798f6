package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"secureChatServer/apperrors"
	"secureChatServer/crypto"
	"secureChatServer/entities"
	"secureChatServer/service"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Connection lifecycle: Connected -> KeyExchanged -> Authenticated ->
// Disconnected. Requests that need a session secret fail with
// NoActiveSession before the exchange; identity-bearing requests fail with
// NotAuthenticated before login.
type connState int

const (
	stateConnected connState = iota
	stateKeyExchanged
	stateAuthenticated
	stateDisconnected
)

type connection struct {
	id uuid.UUID
	h  *Handler
	ws *websocket.Conn

	// The read loop's replies and the push consumer share the socket.
	writeMu sync.Mutex

	state    connState
	username string

	log *logrus.Entry
}

func newConnection(h *Handler, ws *websocket.Conn) *connection {
	id := uuid.New()
	return &connection{
		id:  id,
		h:   h,
		ws:  ws,
		log: logrus.WithField("connection", id),
	}
}

// serve processes the connection's requests strictly in receipt order; no
// ordering holds across different connections.
func (c *connection) serve() {
	defer c.teardown()
	c.log.Info("Connection established")

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.log.WithError(err).Debug("Read loop finished")
			return
		}

		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.write(&Response{Success: false, Message: "malformed request envelope"})
			continue
		}

		if resp := c.dispatch(&env); resp != nil {
			c.write(resp)
		}
	}
}

// teardown is the only mandatory cleanup: purge both registries and stop the
// push consumer. It is idempotent and tolerates connections that never made
// it past any given state.
func (c *connection) teardown() {
	c.state = stateDisconnected
	c.h.stopPush(c.id)
	c.h.sessions.Remove(c.id)
	c.h.presence.RemoveByConnection(c.id)
	if c.ws != nil {
		c.ws.Close()
	}
	c.log.Info("Connection closed")
}

func (c *connection) dispatch(env *Envelope) *Response {
	ctx, cancel := context.WithTimeout(context.Background(), c.h.requestTimeout)
	defer cancel()

	switch env.Op {
	case OpKeyExchange:
		return c.handleKeyExchange(env)
	case OpRegister:
		return c.handleRegister(ctx, env)
	case OpLogin:
		return c.handleLogin(ctx, env)
	case OpAnnounceOnline, OpListNonFriends, OpFriendRequest, OpAcceptFriend,
		OpRejectFriend, OpListFriends, OpOnlineFriends, OpSendMessage:
		if _, err := c.h.sessions.Get(c.id); err != nil {
			return failure(env.Op, apperrors.NoActiveSession("key exchange has not been completed"))
		}
		if c.state != stateAuthenticated {
			return failure(env.Op, apperrors.NotAuthenticated("login required"))
		}
		return c.dispatchAuthenticated(ctx, env)
	default:
		return failure(env.Op, apperrors.InvalidParameters("unknown operation"))
	}
}

func (c *connection) dispatchAuthenticated(ctx context.Context, env *Envelope) *Response {
	switch env.Op {
	case OpAnnounceOnline:
		return c.handleAnnounce(ctx, env)
	case OpListNonFriends:
		return c.handleListNonFriends(ctx, env)
	case OpFriendRequest:
		return c.handleFriendRequest(ctx, env)
	case OpAcceptFriend:
		return c.handleAcceptFriend(ctx, env)
	case OpRejectFriend:
		return c.handleRejectFriend(ctx, env)
	case OpListFriends:
		return c.handleListFriends(ctx, env)
	case OpOnlineFriends:
		return c.handleOnlineFriends(ctx, env)
	case OpSendMessage:
		return c.handleSendMessage(ctx, env)
	}
	return nil
}

func (c *connection) handleKeyExchange(env *Envelope) *Response {
	var req KeyExchangeRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return failure(env.Op, apperrors.InvalidParameters("malformed key-exchange request"))
	}

	serverPublic, err := c.h.exchange.StartExchange(c.id, req.P, req.G, req.PublicKey)
	if err != nil {
		// Exchange failure leaves the connection usable for a retry.
		return failure(env.Op, err)
	}

	if c.state == stateConnected {
		c.state = stateKeyExchanged
	}

	return &Response{
		Op:      env.Op,
		Success: true,
		Data:    KeyExchangeResponse{ServerPublicKey: serverPublic},
	}
}

func (c *connection) handleRegister(ctx context.Context, env *Envelope) *Response {
	var req RegisterRequest
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	cmd := service.RegisterCommand{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Username: req.Username,
		Avatar:   req.Avatar,
	}
	if err := c.h.users.Register(ctx, cmd); err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Message: "user registered"}
}

func (c *connection) handleLogin(ctx context.Context, env *Envelope) *Response {
	var req LoginRequest
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	user, err := c.h.users.Login(ctx, req.Email, req.Password)
	if err != nil {
		return failure(env.Op, err)
	}

	c.state = stateAuthenticated
	c.username = user.Username
	c.log = c.log.WithField("username", user.Username)

	token, err := c.encrypt(LoginResponse{Username: user.Username, Name: user.Name})
	if err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Data: token}
}

func (c *connection) handleAnnounce(ctx context.Context, env *Envelope) *Response {
	var req AnnounceRequest
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	if displaced, ok := c.h.presence.SetOnline(req.Username, c.id); ok {
		// The replaced connection's consumer would otherwise keep
		// competing for this user's queue and swallow pushes.
		c.h.stopPush(displaced)
	}

	// One push consumer per announce; announcing again replaces it.
	pushCtx, cancel := context.WithCancel(context.Background())
	c.h.registerPushStop(c.id, cancel)
	go func() {
		if err := c.h.pushes.Subscribe(pushCtx, req.Username, c.push); err != nil {
			c.log.WithError(err).Error("Push subscription failed")
		}
	}()

	bundle, err := c.h.notifier.CollectOfflineBundle(ctx, req.Username)
	if err != nil {
		return failure(env.Op, err)
	}

	token, err := c.encrypt(bundle)
	if err != nil {
		return failure(env.Op, err)
	}

	c.log.Info("User announced online")
	return &Response{Op: env.Op, Success: true, Message: "offline data recovered", Data: token}
}

func (c *connection) handleListNonFriends(ctx context.Context, env *Envelope) *Response {
	var req ListUsersRequest
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	usernames, err := c.h.users.ListNonFriends(ctx, req.Username)
	if err != nil {
		// Best-effort display listing degrades to an empty list.
		resp := failure(env.Op, err)
		resp.Data = []string{}
		return resp
	}
	if usernames == nil {
		usernames = []string{}
	}

	return &Response{Op: env.Op, Success: true, Data: usernames}
}

func (c *connection) handleFriendRequest(ctx context.Context, env *Envelope) *Response {
	var req FriendRequestPayload
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	if err := c.h.friends.Request(ctx, req.Requester, req.Recipient, req.P, req.G, req.PublicKey); err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Message: "friend request sent"}
}

func (c *connection) handleAcceptFriend(ctx context.Context, env *Envelope) *Response {
	var req AcceptFriendPayload
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	if err := c.h.friends.Accept(ctx, req.Requester, req.Recipient, req.PublicKey); err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Message: "friendship accepted"}
}

func (c *connection) handleRejectFriend(ctx context.Context, env *Envelope) *Response {
	var req RejectFriendPayload
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	if err := c.h.friends.Reject(ctx, req.Requester, req.Recipient); err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Message: "friend request rejected"}
}

func (c *connection) handleListFriends(ctx context.Context, env *Envelope) *Response {
	var req ListUsersRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		return failure(env.Op, apperrors.InvalidParameters("malformed request"))
	}

	edges, err := c.h.friends.ListFriends(ctx, req.Username)
	if err != nil {
		return failure(env.Op, err)
	}

	token, err := c.encrypt(edges)
	if err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Data: token}
}

func (c *connection) handleOnlineFriends(ctx context.Context, env *Envelope) *Response {
	var req ListUsersRequest
	if err := c.decrypt(env, &req); err != nil {
		return failure(env.Op, err)
	}

	online, err := c.h.friends.ListOnlineFriends(ctx, req.Username)
	if err != nil {
		return failure(env.Op, err)
	}
	if online == nil {
		online = []string{}
	}

	token, err := c.encrypt(online)
	if err != nil {
		return failure(env.Op, err)
	}

	return &Response{Op: env.Op, Success: true, Data: token}
}

// handleSendMessage is fire-and-forget: no response frame goes back to the
// sender, failures are only logged.
func (c *connection) handleSendMessage(ctx context.Context, env *Envelope) *Response {
	var req SendMessagePayload
	if err := c.decrypt(env, &req); err != nil {
		c.log.WithError(err).Warn("Dropping undecryptable message")
		return nil
	}

	msg := &entities.OfflineMessage{
		Sender:    req.Sender,
		Recipient: req.Recipient,
		SentAt:    req.Timestamp,
		Body:      req.Body,
	}
	if err := c.h.notifier.DeliverOrQueue(ctx, entities.EventMessage, req.Recipient, msg); err != nil {
		c.log.WithError(err).Error("Failed to route message")
	}

	return nil
}

// push re-encrypts a broker event under this connection's own session secret
// and writes it to the socket.
func (c *connection) push(event *entities.PushEvent) {
	secret, err := c.h.sessions.Get(c.id)
	if err != nil {
		c.log.Warn("Dropping push event, session secret is gone")
		return
	}

	token, err := crypto.Encrypt(event.Payload, secret)
	if err != nil {
		c.log.WithError(err).Error("Failed to encrypt push event")
		return
	}

	c.write(&Response{Op: pushOp(event.Kind), Success: true, Data: token})
}

func pushOp(kind entities.EventKind) string {
	switch kind {
	case entities.EventMessage:
		return OpReceiveMessage
	case entities.EventFriendRequest:
		return OpReceiveFriendRequest
	case entities.EventFriendAccept:
		return OpFriendshipAccepted
	}
	return "push"
}

func (c *connection) decrypt(env *Envelope, out interface{}) error {
	secret, err := c.h.sessions.Get(c.id)
	if err != nil {
		return apperrors.NoActiveSession("key exchange has not been completed")
	}

	var token string
	if err := json.Unmarshal(env.Data, &token); err != nil {
		return apperrors.InvalidParameters("expected an encrypted payload")
	}

	if err := crypto.Decrypt(token, secret, out); err != nil {
		return apperrors.DecryptionFailed("failed to decrypt request")
	}

	return nil
}

func (c *connection) encrypt(v interface{}) (string, error) {
	secret, err := c.h.sessions.Get(c.id)
	if err != nil {
		return "", apperrors.NoActiveSession("key exchange has not been completed")
	}

	token, err := crypto.Encrypt(v, secret)
	if err != nil {
		return "", apperrors.Internal("failed to encrypt response")
	}

	return token, nil
}

func (c *connection) write(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.WriteJSON(v); err != nil {
		c.log.WithError(err).Warn("Failed to write frame")
	}
}

func failure(op string, err error) *Response {
	msg := "internal error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}

	return &Response{Op: op, Success: false, Message: msg}
}
