package transport

import (
	"encoding/json"
	"time"
)

// Wire operation names. Each client request is an Envelope whose Data is
// either a plaintext JSON object (key-exchange, list-friends) or a base64
// ciphertext token holding one of the structs below. DH values are always
// hex, ciphertext is always base64.
const (
	OpKeyExchange    = "key-exchange"
	OpAnnounceOnline = "announce-online"
	OpRegister       = "register"
	OpLogin          = "login"
	OpListNonFriends = "list-non-friends"
	OpFriendRequest  = "friend-request"
	OpAcceptFriend   = "accept-friend"
	OpRejectFriend   = "reject-friend"
	OpListFriends    = "list-friends"
	OpOnlineFriends  = "list-online-friends"
	OpSendMessage    = "send-message"

	// Server-initiated pushes.
	OpReceiveMessage       = "receive-message"
	OpReceiveFriendRequest = "receive-friend-request"
	OpFriendshipAccepted   = "accepted-friendship"
)

type Envelope struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data,omitempty"`
}

type Response struct {
	Op      string      `json:"op"`
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type KeyExchangeRequest struct {
	P         string `json:"p"`
	G         string `json:"g"`
	PublicKey string `json:"publicKey"`
}

type KeyExchangeResponse struct {
	ServerPublicKey string `json:"serverPublicKey"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username"`
	Avatar   []byte `json:"avatar,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Username string `json:"username"`
	Name     string `json:"name"`
}

type AnnounceRequest struct {
	Username string `json:"username"`
}

type ListUsersRequest struct {
	Username string `json:"username"`
}

type FriendRequestPayload struct {
	Requester string `json:"requester"`
	Recipient string `json:"recipient"`
	P         string `json:"p"`
	G         string `json:"g"`
	PublicKey string `json:"publicKey"`
}

type AcceptFriendPayload struct {
	Requester string `json:"requester"`
	Recipient string `json:"recipient"`
	PublicKey string `json:"publicKey"`
}

type RejectFriendPayload struct {
	Requester string `json:"requester"`
	Recipient string `json:"recipient"`
}

type SendMessagePayload struct {
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
	Body      string    `json:"body"`
}
