package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation
	"crypto/sha256" // SHA-256 digests of reset tokens
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
)

// Session token validation failures.  Callers map all three to the same
// client-facing message but can log which one happened.
var (
	ErrTokenExpired   = errors.New("session token expired")
	ErrTokenMalformed = errors.New("session token malformed")
	ErrTokenSignature = errors.New("session token signature invalid")
)

// SessionToken represents a signed JWT along with its expiry.  The Token
// field is sent by clients as "Authorization: Bearer <token>".
type SessionToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// sessionClaims carries the account email as the subject.  Tokens are
// stateless: there is no revocation list, a token is valid until exp.
type sessionClaims struct {
	jwt.RegisteredClaims
}

// NewSessionToken builds and signs an HS256 JWT whose subject is email and
// whose absolute expiry is now+ttl.
func NewSessionToken(secret, email string, ttl time.Duration, now time.Time) (SessionToken, error) {
	now = now.UTC()
	exp := now.Add(ttl)
	claims := sessionClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Token: signed, Exp: exp}, nil
}

// ParseSessionToken verifies raw and returns the subject email.  The
// signature is checked before any claim, so a forged token always fails
// with ErrTokenSignature and never yields a subject.  Strict decoding
// rejects signatures whose trailing padding bits were altered.
func ParseSessionToken(secret, raw string, now time.Time) (string, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(t *jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "", ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return "", ErrTokenExpired
	case badSignatureEncoding(raw):
		return "", ErrTokenSignature
	default:
		return "", ErrTokenMalformed
	}
	if claims.Subject == "" {
		return "", ErrTokenMalformed
	}
	return claims.Subject, nil
}

// badSignatureEncoding reports whether raw has a well-formed header and
// payload but a signature segment that is not canonical base64url.
func badSignatureEncoding(raw string) bool {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 || parts[2] == "" {
		return false
	}
	enc := base64.RawURLEncoding.Strict()
	for _, p := range parts[:2] {
		if _, err := enc.DecodeString(p); err != nil {
			return false
		}
	}
	_, err := enc.DecodeString(parts[2])
	return err != nil
}

// NewResetToken returns a URL-safe token carrying 32 bytes of entropy.
// Only its HashToken digest is persisted.
func NewResetToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.
// Storing only the hash keeps a leaked database row from being usable as
// a reset link.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
