package access

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"wordduel/internal/apperr"
	"wordduel/internal/match"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const maxPasscodeLen = 72

// Grant is the result of a successful access check. Token can be presented
// instead of the passcode on later checks and joins for the same game.
type Grant struct {
	Granted bool   `json:"granted"`
	Token   string `json:"token,omitempty"`
}

type tokenClaims struct {
	GameID      string `json:"gid"`
	Fingerprint string `json:"fp"`
	jwt.RegisteredClaims
}

// Gate validates passcodes for private lobbies and issues access tokens.
type Gate struct {
	secret []byte
	cost   int
	now    func() time.Time
}

func NewGate(secret string, cost int) *Gate {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &Gate{secret: []byte(secret), cost: cost, now: time.Now}
}

func (g *Gate) HashPasscode(passcode string) (string, error) {
	passcode = strings.TrimSpace(passcode)
	if passcode == "" {
		return "", apperr.New(apperr.ErrInvalidRequest, "passcode must not be empty")
	}
	if len(passcode) > maxPasscodeLen {
		return "", apperr.New(apperr.ErrInvalidRequest, "passcode longer than %d bytes", maxPasscodeLen)
	}
	b, err := bcrypt.GenerateFromPassword([]byte(passcode), g.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Check grants access to game for userID with either a cached token or the
// passcode. Games without a passcode are always granted.
func (g *Gate) Check(game *match.Game, userID, passcode, token string) (Grant, error) {
	if !game.HasPasscode {
		return Grant{Granted: true}, nil
	}
	if token != "" && g.Verify(token, game, userID) {
		return Grant{Granted: true, Token: token}, nil
	}
	if passcode == "" {
		return Grant{}, apperr.New(apperr.ErrAccessDenied, "passcode required")
	}
	if bcrypt.CompareHashAndPassword([]byte(game.PasscodeHash), []byte(strings.TrimSpace(passcode))) != nil {
		return Grant{}, apperr.New(apperr.ErrAccessDenied, "wrong passcode")
	}
	issued, err := g.Issue(game, userID)
	if err != nil {
		return Grant{}, err
	}
	return Grant{Granted: true, Token: issued}, nil
}

// Authorized is the server-side join check; it never trusts anything but the
// stored hash and the token signature.
func (g *Gate) Authorized(game *match.Game, userID, passcode, token string) bool {
	grant, err := g.Check(game, userID, passcode, token)
	return err == nil && grant.Granted
}

func (g *Gate) Issue(game *match.Game, userID string) (string, error) {
	claims := tokenClaims{
		GameID:      game.ID,
		Fingerprint: fingerprint(game.PasscodeHash),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			IssuedAt: jwt.NewNumericDate(g.now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Verify reports whether token was issued for this game, user and the
// current passcode. Changing the passcode invalidates older tokens.
func (g *Gate) Verify(token string, game *match.Game, userID string) bool {
	var claims tokenClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return g.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.GameID == game.ID &&
		claims.Subject == userID &&
		claims.Fingerprint == fingerprint(game.PasscodeHash)
}

func fingerprint(hash string) string {
	sum := sha256.Sum256([]byte(hash))
	return hex.EncodeToString(sum[:8])
}
