// Package auth generates API keys and checks presented keys against the
// bcrypt hashes listed in the configuration file.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// APIKeyLength is the length of the random part of an API key
	APIKeyLength = 32
	// APIKeyPrefix is the standard prefix for all API keys
	APIKeyPrefix = "ps"

	// BcryptCost is the bcrypt cost for hashing API keys
	BcryptCost = 12
	// BcryptMaxInputLength is the maximum input length for bcrypt (72 bytes)
	BcryptMaxInputLength = 72

	minKeyLength = 15
	maxKeyLength = 50
)

// GeneratedAPIKey is a new key together with the hash to put in the config.
type GeneratedAPIKey struct {
	Key    string `json:"key"` // shown once
	Prefix string `json:"prefix"`
	Hash   string `json:"hash"`
}

// GenerateAPIKey creates a random API key and its bcrypt hash.
func GenerateAPIKey() (*GeneratedAPIKey, error) {
	randomBytes := make([]byte, APIKeyLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return nil, fmt.Errorf("failed to generate random key: %w", err)
	}

	// base32 avoids ambiguous characters
	randomPart := strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(randomBytes))
	randomPart = randomPart[:APIKeyLength]

	key := APIKeyPrefix + "_" + randomPart
	hash, err := HashAPIKey(key)
	if err != nil {
		return nil, err
	}

	return &GeneratedAPIKey{
		Key:    key,
		Prefix: CreateDisplayPrefix(key),
		Hash:   hash,
	}, nil
}

// HashAPIKey creates a bcrypt hash of an API key for the config file.
func HashAPIKey(apiKey string) (string, error) {
	if apiKey == "" {
		return "", fmt.Errorf("API key cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword(keyMaterial(apiKey), BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash API key: %w", err)
	}
	return string(hash), nil
}

// ValidateAPIKey checks if a provided API key matches the stored hash.
func ValidateAPIKey(apiKey, storedHash string) bool {
	if apiKey == "" || storedHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(storedHash), keyMaterial(apiKey)) == nil
}

// keyMaterial prehashes keys longer than bcrypt accepts.
func keyMaterial(apiKey string) []byte {
	b := []byte(apiKey)
	if len(b) > BcryptMaxInputLength {
		sum := sha256.Sum256(b)
		b = sum[:]
	}
	return b
}

// IsValidAPIKeyFormat checks if an API key has the correct format.
func IsValidAPIKeyFormat(apiKey string) bool {
	if !strings.HasPrefix(apiKey, APIKeyPrefix+"_") {
		return false
	}
	if len(apiKey) < minKeyLength || len(apiKey) > maxKeyLength {
		return false
	}
	for _, c := range apiKey {
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return false
		}
	}
	return true
}

// CreateDisplayPrefix returns a log-safe prefix such as "ps_abcd1234...".
func CreateDisplayPrefix(apiKey string) string {
	if !IsValidAPIKeyFormat(apiKey) {
		return "invalid_key"
	}
	random := strings.TrimPrefix(apiKey, APIKeyPrefix+"_")
	if len(random) > 8 {
		random = random[:8]
	}
	return APIKeyPrefix + "_" + random + "..."
}

// KeySet verifies presented keys against a fixed list of bcrypt hashes.
// Keys that verified once are remembered by digest so later requests skip
// the bcrypt comparison.
type KeySet struct {
	hashes   []string
	mu       sync.RWMutex
	verified map[[sha256.Size]byte]struct{}
}

// NewKeySet creates a key set from bcrypt hashes.
func NewKeySet(hashes []string) *KeySet {
	return &KeySet{
		hashes:   append([]string(nil), hashes...),
		verified: make(map[[sha256.Size]byte]struct{}),
	}
}

// Len returns the number of configured hashes.
func (k *KeySet) Len() int {
	return len(k.hashes)
}

// Valid reports whether apiKey matches one of the configured hashes.
func (k *KeySet) Valid(apiKey string) bool {
	if apiKey == "" {
		return false
	}
	digest := sha256.Sum256([]byte(apiKey))

	k.mu.RLock()
	_, ok := k.verified[digest]
	k.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range k.hashes {
		if ValidateAPIKey(apiKey, h) {
			k.mu.Lock()
			k.verified[digest] = struct{}{}
			k.mu.Unlock()
			return true
		}
	}
	return false
}
