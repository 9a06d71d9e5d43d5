// Package security issues and verifies the short-lived, single-use tokens that
// admit a participant to a channel's media and signaling planes.
package security

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or for another plane.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenReplayed is returned when a token's jti was already consumed.
	ErrTokenReplayed = errors.New("token already used")
)

type Plane string

const (
	PlaneMedia     Plane = "media"
	PlaneSignaling Plane = "signaling"
)

// ChannelClaims are the claims of a media or signaling token.
type ChannelClaims struct {
	jwt.RegisteredClaims
	AppID   string           `json:"app_id"`
	Channel domain.ChannelID `json:"channel"`
	Role    domain.Role      `json:"role"`
	Plane   Plane            `json:"plane"`
}

// TokenProvider issues and verifies HS256 channel tokens.
type TokenProvider struct {
	secret []byte
	appID  string
	ttl    time.Duration
	ledger *Ledger
	now    func() time.Time
}

func NewTokenProvider(secret, appID string, ttl time.Duration) *TokenProvider {
	return &TokenProvider{
		secret: []byte(secret),
		appID:  appID,
		ttl:    ttl,
		ledger: NewLedger(),
		now:    time.Now,
	}
}

func (p *TokenProvider) AppID() string { return p.appID }

// Issue returns a fresh media/signaling token pair for uid in channel.
func (p *TokenProvider) Issue(channel domain.ChannelID, uid domain.UserID, role domain.Role) (core.Tokens, error) {
	media, err := p.sign(channel, uid, role, PlaneMedia)
	if err != nil {
		return core.Tokens{}, err
	}
	sig, err := p.sign(channel, uid, role, PlaneSignaling)
	if err != nil {
		return core.Tokens{}, err
	}
	return core.Tokens{AppID: p.appID, Channel: channel, MediaToken: media, SignalingToken: sig}, nil
}

func (p *TokenProvider) sign(channel domain.ChannelID, uid domain.UserID, role domain.Role, plane Plane) (string, error) {
	now := p.now().UTC()
	claims := ChannelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   string(uid),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.ttl)),
		},
		AppID:   p.appID,
		Channel: channel,
		Role:    role,
		Plane:   plane,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

// Consume verifies a token for plane and marks it used. A second Consume of
// the same token returns ErrTokenReplayed.
func (p *TokenProvider) Consume(token string, plane Plane) (*ChannelClaims, error) {
	claims := &ChannelClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Plane != plane || claims.AppID != p.appID || claims.ID == "" || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	if !p.ledger.Consume(claims.ID, claims.ExpiresAt.Time) {
		return nil, ErrTokenReplayed
	}
	return claims, nil
}

// Ledger remembers consumed token ids until they expire.
type Ledger struct {
	mu   sync.Mutex
	seen map[string]time.Time
	now  func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{seen: make(map[string]time.Time), now: time.Now}
}

// Consume reports whether jti was unused and records it.
func (l *Ledger) Consume(jti string, exp time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for id, e := range l.seen {
		if now.After(e) {
			delete(l.seen, id)
		}
	}
	if _, ok := l.seen[jti]; ok {
		return false
	}
	l.seen[jti] = exp
	return true
}
