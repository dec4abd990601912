package domain

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	tokenPrefix      = "rl_"
	tokenSecretBytes = 32
)

// NewToken generates a review token and its storable hash.
func NewToken() (plain, hash string, err error) {
	secret := make([]byte, tokenSecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", fmt.Errorf("generate review token: %w", err)
	}
	plain = tokenPrefix + hex.EncodeToString(secret)
	return plain, HashToken(plain), nil
}

// HashToken hashes a raw token using the same strategy as issuance.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(raw)))
	return hex.EncodeToString(sum[:])
}
