package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"
)

// TokenDigest is the SHA-256 of a bearer token. The server keeps only the digest.
type TokenDigest [sha256.Size]byte

// HashToken returns the digest of token.
func HashToken(token string) TokenDigest {
	return sha256.Sum256([]byte(token))
}

// String returns the lowercase hex form stored in the database.
func (d TokenDigest) String() string {
	return hex.EncodeToString(d[:])
}

// MatchesDigest reports whether token hashes to the hex digest stored.
func MatchesDigest(token, stored string) bool {
	got := HashToken(token).String()
	return subtle.ConstantTimeCompare([]byte(got), []byte(stored)) == 1
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// VerifyBearer reports whether r carries a bearer token matching want.
// Digests are compared in constant time.
func VerifyBearer(r *http.Request, want TokenDigest) bool {
	token, ok := BearerToken(r)
	if !ok {
		// Browsers cannot set headers on WebSocket upgrades.
		token = r.URL.Query().Get("token")
		if token == "" {
			return false
		}
	}
	got := HashToken(token)
	return subtle.ConstantTimeCompare(got[:], want[:]) == 1
}
