// Package auth implements the admin login that unlocks the workspace,
// upload and email routes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDisabled           = errors.New("admin access is not configured")
	ErrSessionNotFound    = errors.New("session not found or expired")
)

type Config struct {
	PasswordHash string
	TokenSecret  string
	SessionTTL   time.Duration
}

// Enabled reports whether both the password hash and the token secret are
// set.
func (c Config) Enabled() bool {
	return c.PasswordHash != "" && c.TokenSecret != ""
}

// Validate rejects a half-configured admin setup.
func (c Config) Validate() error {
	if (c.PasswordHash == "") != (c.TokenSecret == "") {
		return fmt.Errorf("ADMIN_PASSWORD_HASH and AUTH_TOKEN_SECRET must be set together")
	}
	if c.PasswordHash != "" {
		if _, err := bcrypt.Cost([]byte(c.PasswordHash)); err != nil {
			return fmt.Errorf("ADMIN_PASSWORD_HASH is not a bcrypt hash: %w", err)
		}
	}
	return nil
}

// LoginResult is returned to the client after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type Authenticator struct {
	passwordHash []byte
	tokens       TokenService
	sessions     *SessionStore
	now          func() time.Time
}

// New returns an Authenticator. When cfg is not enabled every login fails
// with ErrDisabled.
func New(cfg Config) *Authenticator {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Authenticator{
		passwordHash: []byte(cfg.PasswordHash),
		tokens: TokenService{
			Secret:   []byte(cfg.TokenSecret),
			Issuer:   tokenIssuer,
			Duration: ttl,
		},
		sessions: NewSessionStore(ttl),
		now:      time.Now,
	}
}

func (a *Authenticator) Enabled() bool {
	return len(a.passwordHash) > 0 && len(a.tokens.Secret) > 0
}

func (a *Authenticator) Sessions() *SessionStore {
	return a.sessions
}

// Login checks password against the configured hash and opens a session.
func (a *Authenticator) Login(password string) (*LoginResult, *Session, error) {
	if !a.Enabled() {
		return nil, nil, ErrDisabled
	}
	if password == "" {
		return nil, nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	session := a.sessions.Create()
	token, exp, err := a.tokens.Sign(session.ID, a.now())
	if err != nil {
		a.sessions.Delete(session.ID)
		return nil, nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp}, session, nil
}

// Authenticate resolves a bearer token to its live session.
func (a *Authenticator) Authenticate(token string) (*Session, error) {
	if !a.Enabled() {
		return nil, ErrDisabled
	}
	claims, err := a.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	session, ok := a.sessions.Get(claims.SessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (a *Authenticator) Logout(session *Session) {
	if session != nil {
		a.sessions.Delete(session.ID)
	}
}
