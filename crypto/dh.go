package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
)

var (
	ErrInvalidModulus   = errors.New("modulus must be greater than 2")
	ErrInvalidPublicKey = errors.New("peer public key must be in [1, p)")
)

type DHKeys struct {
	Public *big.Int
	Shared *big.Int
}

// GenerateKeys picks a private exponent uniformly at random in [1, p-1) and
// derives the public value and the shared secret from the peer's public
// value. Primality of p is not checked here, strict validation is a
// service-level flag.
func GenerateKeys(p, g, peerPublic *big.Int) (*DHKeys, error) {
	if p == nil || p.Cmp(big.NewInt(2)) <= 0 {
		return nil, ErrInvalidModulus
	}

	// rand.Int returns [0, p-2), shift to [1, p-1)
	limit := new(big.Int).Sub(p, big.NewInt(2))
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to generate private exponent: %v", err)
	}
	priv := n.Add(n, big.NewInt(1))

	return DeriveKeys(p, g, peerPublic, priv)
}

// DeriveKeys computes g^priv mod p and peerPublic^priv mod p.
func DeriveKeys(p, g, peerPublic, priv *big.Int) (*DHKeys, error) {
	if p == nil || p.Cmp(big.NewInt(2)) <= 0 {
		return nil, ErrInvalidModulus
	}
	if g == nil || peerPublic == nil {
		return nil, ErrInvalidPublicKey
	}
	if peerPublic.Sign() <= 0 || peerPublic.Cmp(p) >= 0 {
		return nil, ErrInvalidPublicKey
	}

	return &DHKeys{
		Public: new(big.Int).Exp(g, priv, p),
		Shared: new(big.Int).Exp(peerPublic, priv, p),
	}, nil
}

// ParseDHValue decodes a hex-encoded exchange parameter.
func ParseDHValue(s string) (*big.Int, error) {
	if s == "" {
		return nil, errors.New("empty value")
	}
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		return nil, fmt.Errorf("value %q is not valid hex", s)
	}
	return v, nil
}

// FormatDHValue is the inverse of ParseDHValue.
func FormatDHValue(v *big.Int) string {
	return v.Text(16)
}

// SessionKey turns a shared secret into key material the cipher accepts.
// Blowfish keys are capped at 56 bytes.
func SessionKey(secret *big.Int) []byte {
	b := secret.Bytes()
	if len(b) == 0 {
		b = []byte{0}
	}
	if len(b) > 56 {
		b = b[:56]
	}
	return b
}
