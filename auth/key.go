package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// KeyPrefix starts every generated API key.
const KeyPrefix = "rg_"

// keyLength is the number of random bytes in a generated key.
const keyLength = 32

// GenerateKey returns a new random API key.
func GenerateKey() (string, error) {
	b := make([]byte, keyLength)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return KeyPrefix + base64.RawURLEncoding.EncodeToString(b), nil
}

// HashKey returns the hex keyed BLAKE2b-256 digest of key. Only digests are
// stored; secret is the server-wide hashing key.
func HashKey(secret []byte, key string) string {
	if len(secret) > blake2b.Size {
		sum := blake2b.Sum512(secret)
		secret = sum[:]
	}
	h, err := blake2b.New256(secret)
	if err != nil {
		// Unreachable: secret is at most blake2b.Size bytes.
		panic(err)
	}
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}

// KeyAuthenticator authenticates API keys issued by GenerateKey.
type KeyAuthenticator struct {
	secret   []byte
	projects ProjectStore
}

// NewKeyAuthenticator creates a KeyAuthenticator. secret must match the one
// used when the keys were hashed.
func NewKeyAuthenticator(secret []byte, projects ProjectStore) *KeyAuthenticator {
	return &KeyAuthenticator{secret: secret, projects: projects}
}

// Authenticate implements Authenticator.
func (a *KeyAuthenticator) Authenticate(ctx context.Context, token string) (*Project, error) {
	if token == "" {
		return nil, ErrUnknownCredential
	}
	p, err := a.projects.ProjectByKeyHash(ctx, HashKey(a.secret, token))
	if errors.Is(err, ErrProjectNotFound) {
		return nil, ErrUnknownCredential
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup key: %w", err)
	}
	return p, nil
}

var _ Authenticator = (*KeyAuthenticator)(nil)

// ByPrefix sends tokens that look like API keys to keys and everything else
// to tokens, so one route can accept both credential kinds.
func ByPrefix(keys, tokens Authenticator) Authenticator {
	return AuthenticatorFunc(func(ctx context.Context, token string) (*Project, error) {
		if strings.HasPrefix(token, KeyPrefix) {
			return keys.Authenticate(ctx, token)
		}
		return tokens.Authenticate(ctx, token)
	})
}
