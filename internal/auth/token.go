// Package auth provides the bearer token sources used in server mode.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Static errors for err113 compliance.
var (
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
	ErrNoSessionToken           = errors.New("session has no token")
)

// TokenManager supplies bearer tokens.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// Token is an access token with its expiry.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Valid reports whether the token can still be used. A zero expiry never
// expires; otherwise the token must outlive the expiration buffer.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token.
type TokenStore struct {
	mutex sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the stored token or nil.
func (s *TokenStore) Get() *Token {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *TokenStore) Set(token *Token) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = token
}

// Clear drops the stored token.
func (s *TokenStore) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.token = nil
}

// StaticTokenManager always returns the same token.
type StaticTokenManager struct {
	mutex sync.RWMutex
	token string
}

// NewStaticTokenManager creates a manager for a fixed token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	return m.token, nil
}

func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.token = token
}

// SessionTokenManager reads the token of the current session on every call,
// so a session refreshed elsewhere is picked up immediately.
type SessionTokenManager struct {
	source func(ctx context.Context) (string, error)
}

// NewSessionTokenManager wraps a session token getter.
func NewSessionTokenManager(source func(ctx context.Context) (string, error)) *SessionTokenManager {
	return &SessionTokenManager{source: source}
}

func (m *SessionTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.source(ctx)
	if err != nil {
		return "", fmt.Errorf("reading session token: %w", err)
	}

	if token == "" {
		return "", ErrNoSessionToken
	}

	return token, nil
}

// RefreshToken is a no-op: the session owns token renewal.
func (m *SessionTokenManager) RefreshToken(ctx context.Context) error {
	return nil
}

// SetToken is a no-op: the session owns the token.
func (m *SessionTokenManager) SetToken(token string, expiresAt time.Time) {}

// OAuth2Config configures the client_credentials grant.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OAuth2TokenManager obtains tokens with the client_credentials grant and
// caches them until they near expiry.
type OAuth2TokenManager struct {
	config *clientcredentials.Config
	store  *TokenStore
	mutex  sync.Mutex
}

// NewOAuth2TokenManager creates a client_credentials token manager.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	return &OAuth2TokenManager{
		config: &clientcredentials.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			TokenURL:     config.TokenURL,
			Scopes:       config.Scopes,
			AuthStyle:    oauth2.AuthStyleInParams,
		},
		store: NewTokenStore(),
	}
}

func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	if token := m.store.Get(); token.Valid() {
		return token.AccessToken, nil
	}

	err := m.RefreshToken(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken always fetches a new token.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	token, err := m.config.Token(ctx)
	if err != nil {
		return fmt.Errorf("client credentials grant: %w", err)
	}

	m.store.Set(&Token{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry,
	})

	return nil
}

func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, ExpiresAt: expiresAt})
}

// Current returns the cached token, possibly nil.
func (m *OAuth2TokenManager) Current() *Token {
	return m.store.Get()
}
