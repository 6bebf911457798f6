package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

func HashPassword(password string) (string, error) {
	salt, err := GenerateSalt(16)
	if err != nil {
		return "", err
	}

	timeCost := uint32(1)
	memoryCost := uint32(64 * 1024)
	parallelism := uint8(1)
	hashLength := uint32(32)

	hash := argon2.IDKey([]byte(password), []byte(salt), timeCost, memoryCost, parallelism, hashLength)

	encodedHash := base64.StdEncoding.EncodeToString(hash)

	hashString := fmt.Sprintf("%s:%s", salt, encodedHash)

	return hashString, nil
}

// VerifyPassword checks a candidate password against a stored salt:hash pair.
func VerifyPassword(password, stored string) error {
	parts := strings.Split(stored, ":")
	if len(parts) != 2 {
		return errors.New("invalid hash format")
	}

	salt := parts[0]
	storedHash := parts[1]

	hash := argon2.IDKey([]byte(password), []byte(salt), 1, 64*1024, 1, 32)
	hashStr := base64.StdEncoding.EncodeToString(hash)

	if subtle.ConstantTimeCompare([]byte(storedHash), []byte(hashStr)) != 1 {
		return errors.New("incorrect password")
	}

	return nil
}

func GenerateSalt(length int) (string, error) {
	salt := make([]byte, length)
	_, err := rand.Read(salt)
	if err != nil {
		return "", fmt.Errorf("failed to generate salt: %v", err)
	}
	return base64.StdEncoding.EncodeToString(salt), nil
}
