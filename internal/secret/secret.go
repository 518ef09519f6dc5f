// Package secret seals stored credentials with a key derived from an
// operator passphrase.
package secret

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keySize   = 32
	nonceSize = 24
	// SaltSize is the length of salts returned by NewSalt
	SaltSize = 16

	sealedPrefix = "sb1:"
)

// argon2id parameters
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var (
	// ErrEmptyPassphrase is returned when deriving a key from nothing
	ErrEmptyPassphrase = errors.New("passphrase is empty")
	// ErrDecrypt is returned when a sealed value fails authentication
	ErrDecrypt = errors.New("failed to open sealed value")
)

// Sealer encrypts and decrypts short secrets
type Sealer struct {
	key [keySize]byte
}

// NewSalt returns a random salt for DeriveKey
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// NewSealer derives a key from passphrase and salt with argon2id
func NewSealer(passphrase string, salt []byte) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	if len(salt) == 0 {
		return nil, errors.New("salt is empty")
	}
	s := &Sealer{}
	derived := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, keySize)
	copy(s.key[:], derived)
	return s, nil
}

// Seal encrypts plaintext. Empty input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	box := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return sealedPrefix + base64.StdEncoding.EncodeToString(box), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix
// are returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	box, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	if len(box) < nonceSize+secretbox.Overhead {
		return "", ErrDecrypt
	}
	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])
	plain, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

// IsSealed reports whether value was produced by Seal
func IsSealed(value string) bool {
	return strings.HasPrefix(value, sealedPrefix)
}
