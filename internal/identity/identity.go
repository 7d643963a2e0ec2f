package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Identity is what the external identity provider vouches for.
type Identity struct {
	UID     string `json:"uid"`
	IsGuest bool   `json:"isGuest"`
}

type claims struct {
	UID   string `json:"uid"`
	Guest bool   `json:"guest"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

func (v *Verifier) Verify(token string) (Identity, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return Identity{}, ErrUnauthenticated
	}
	uid := c.UID
	if uid == "" {
		uid = c.Subject
	}
	if strings.TrimSpace(uid) == "" {
		return Identity{}, ErrUnauthenticated
	}
	return Identity{UID: uid, IsGuest: c.Guest}, nil
}

// Sign mints a bearer token. The server never issues identities itself; this
// is for tests and the presence bot.
func Sign(secret string, id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UID:   id.UID,
		Guest: id.IsGuest,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  id.UID,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
}

func BearerToken(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	// Browsers cannot set headers on EventSource or WebSocket requests.
	return strings.TrimSpace(r.URL.Query().Get("access_token"))
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}
