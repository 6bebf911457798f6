package service

import (
	"secureChatServer/apperrors"
	"secureChatServer/crypto"
	"secureChatServer/manager"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// KeyExchangeService runs the per-connection Diffie-Hellman exchange. The
// client sends p, g and its public value; the server answers with its own
// public value and keeps the derived shared secret in the session manager,
// keyed by the connection id. Every later request on that connection is
// decrypted with this secret.
type KeyExchangeService struct {
	sessions manager.SessionManager

	// strictValidation additionally requires p to be a probable prime of a
	// sane size. Off by default: the wire protocol never validated this and
	// turning it on changes interoperability with existing clients.
	strictValidation bool
}

func NewKeyExchangeService(sessions manager.SessionManager, strictValidation bool) *KeyExchangeService {
	return &KeyExchangeService{
		sessions:         sessions,
		strictValidation: strictValidation,
	}
}

// StartExchange completes the server side of the exchange and returns the
// hex-encoded server public value. A repeated call on the same connection
// overwrites the previous secret immediately.
func (s *KeyExchangeService) StartExchange(connID uuid.UUID, pHex, gHex, clientPublicHex string) (string, error) {
	p, err := crypto.ParseDHValue(pHex)
	if err != nil {
		return "", apperrors.InvalidParameters("invalid modulus: " + err.Error())
	}
	g, err := crypto.ParseDHValue(gHex)
	if err != nil {
		return "", apperrors.InvalidParameters("invalid generator: " + err.Error())
	}
	clientPublic, err := crypto.ParseDHValue(clientPublicHex)
	if err != nil {
		return "", apperrors.InvalidParameters("invalid client public key: " + err.Error())
	}

	if s.strictValidation {
		if p.BitLen() < 512 || !p.ProbablyPrime(20) {
			return "", apperrors.InvalidParameters("modulus must be a prime of at least 512 bits")
		}
	}

	keys, err := crypto.GenerateKeys(p, g, clientPublic)
	if err != nil {
		return "", apperrors.InvalidParameters(err.Error())
	}

	s.sessions.Put(connID, crypto.SessionKey(keys.Shared))
	logrus.WithField("connection", connID).Info("Session key established")

	return crypto.FormatDHValue(keys.Public), nil
}
