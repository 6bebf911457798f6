package crypto

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"golang.org/x/crypto/blowfish"
)

// Session payloads are serialized to JSON, Blowfish-encrypted (ECB, PKCS#5
// padding) and base64-encoded for transport.

// ErrUndecodable is returned when a ciphertext does not decode to valid JSON
// under the given key.
var ErrUndecodable = errors.New("ciphertext does not decode to a valid value")

// jsonCharset keeps only characters that can appear in the JSON payloads we
// exchange; everything else is noise from a bad decryption.
var jsonCharset = regexp.MustCompile(`[^{}\[\]_@#!?":,a-zA-Z0-9\s.\-+/=]`)

// Encrypt serializes v to JSON and returns the base64 ciphertext token.
func Encrypt(v interface{}, key []byte) (string, error) {
	if len(key) == 0 {
		return "", errors.New("encryption key is empty")
	}

	plaintext, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %v", err)
	}

	c, err := blowfish.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("failed to init cipher: %v", err)
	}

	padded := pkcs5Pad(plaintext, blowfish.BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += blowfish.BlockSize {
		c.Encrypt(out[i:i+blowfish.BlockSize], padded[i:i+blowfish.BlockSize])
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt decodes a ciphertext token and unmarshals the plaintext into out.
// If the raw plaintext does not parse, characters outside the expected JSON
// charset are stripped and parsing is retried once.
func Decrypt(token string, key []byte, out interface{}) error {
	if len(key) == 0 {
		return errors.New("decryption key is empty")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return ErrUndecodable
	}
	if len(ciphertext) == 0 || len(ciphertext)%blowfish.BlockSize != 0 {
		return ErrUndecodable
	}

	c, err := blowfish.NewCipher(key)
	if err != nil {
		return fmt.Errorf("failed to init cipher: %v", err)
	}

	plaintext := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += blowfish.BlockSize {
		c.Decrypt(plaintext[i:i+blowfish.BlockSize], ciphertext[i:i+blowfish.BlockSize])
	}
	plaintext = pkcs5Unpad(plaintext, blowfish.BlockSize)

	if json.Unmarshal(plaintext, out) == nil {
		return nil
	}

	cleaned := jsonCharset.ReplaceAll(plaintext, nil)
	if json.Unmarshal(cleaned, out) == nil {
		return nil
	}

	return ErrUndecodable
}

func pkcs5Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs5Unpad(data []byte, blockSize int) []byte {
	if len(data) == 0 {
		return data
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return data
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return data
		}
	}
	return data[:len(data)-n]
}
