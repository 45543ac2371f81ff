package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// SessionCookie is the name of the session cookie.
const SessionCookie = "sl_session"

var (
	ErrInvalidToken = errors.New("invalid session token")
	ErrTokenExpired = errors.New("session expired")
)

// Sessions mints and verifies signed session tokens. A token is
// base64url(payload) + "." + base64url(HMAC-SHA256(payload)); the payload
// names the user and the expiry, nothing is stored server side.
type Sessions struct {
	secret []byte
	ttl    time.Duration
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl}
}

type sessionPayload struct {
	UserID    int64 `json:"uid"`
	ExpiresAt int64 `json:"exp"`
}

// Issue returns a token for the user valid for the configured TTL.
func (s *Sessions) Issue(userID int64) (string, error) {
	payload, err := json.Marshal(sessionPayload{
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal session payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + s.sign(encoded), nil
}

// Verify checks the token signature and expiry and returns the user id.
func (s *Sessions) Verify(token string) (int64, error) {
	dot := strings.IndexByte(token, '.')
	if dot < 0 {
		return 0, ErrInvalidToken
	}
	encoded, sig := token[:dot], token[dot+1:]

	if !hmac.Equal([]byte(s.sign(encoded)), []byte(sig)) {
		return 0, ErrInvalidToken
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return 0, ErrInvalidToken
	}

	var payload sessionPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return 0, ErrInvalidToken
	}

	if time.Now().Unix() >= payload.ExpiresAt {
		return 0, ErrTokenExpired
	}
	return payload.UserID, nil
}

func (s *Sessions) sign(encoded string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Cookie wraps a token in the session cookie.
func (s *Sessions) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// UserFromRequest extracts and verifies the session cookie of a request.
func (s *Sessions) UserFromRequest(r *http.Request) (int64, error) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return s.Verify(cookie.Value)
}
