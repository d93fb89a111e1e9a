package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Static errors for err113 compliance.
var (
	ErrNoConfigPersister = errors.New("no config persister configured")
)

// ConfigPersister saves a renewed token for an API endpoint.
type ConfigPersister interface {
	UpdateAPIToken(apiEndpoint, token string, expiresAt time.Time) error
}

// ConfigTokenManager wraps OAuth2TokenManager and persists every token it
// obtains, so later CLI invocations reuse it instead of running the grant.
type ConfigTokenManager struct {
	oauth2Manager   *OAuth2TokenManager
	configPersister ConfigPersister
	apiEndpoint     string
	onPersistError  func(error)

	mutex      sync.Mutex
	lastToken  string
	lastExpiry time.Time
}

// NewConfigTokenManager creates a config-persisting token manager. A non-empty
// initialToken is used until it nears initialExpiry.
func NewConfigTokenManager(config *OAuth2Config, persister ConfigPersister, apiEndpoint, initialToken string, initialExpiry time.Time) *ConfigTokenManager {
	oauth2Manager := NewOAuth2TokenManager(config)

	if initialToken != "" {
		oauth2Manager.SetToken(initialToken, initialExpiry)
	}

	return &ConfigTokenManager{
		oauth2Manager:   oauth2Manager,
		configPersister: persister,
		apiEndpoint:     apiEndpoint,
		lastToken:       initialToken,
		lastExpiry:      initialExpiry,
	}
}

// OnPersistError registers a callback for tokens that could not be saved.
// Persist failures never fail the request itself.
func (m *ConfigTokenManager) OnPersistError(fn func(error)) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.onPersistError = fn
}

// GetToken returns a valid access token, running the grant if necessary.
func (m *ConfigTokenManager) GetToken(ctx context.Context) (string, error) {
	token, err := m.oauth2Manager.GetToken(ctx)
	if err != nil {
		return "", err
	}

	m.persistIfChanged()

	return token, nil
}

// RefreshToken forces a new grant.
func (m *ConfigTokenManager) RefreshToken(ctx context.Context) error {
	err := m.oauth2Manager.RefreshToken(ctx)
	if err != nil {
		return err
	}

	m.persistIfChanged()

	return nil
}

// SetToken manually sets the access token without persisting it.
func (m *ConfigTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.oauth2Manager.SetToken(token, expiresAt)
	m.lastToken = token
	m.lastExpiry = expiresAt
}

// TokenExpiry returns the current token's expiration time.
func (m *ConfigTokenManager) TokenExpiry() time.Time {
	token := m.oauth2Manager.Current()
	if token == nil {
		return time.Time{}
	}

	return token.ExpiresAt
}

func (m *ConfigTokenManager) persistIfChanged() {
	current := m.oauth2Manager.Current()
	if current == nil {
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	if current.AccessToken == m.lastToken && current.ExpiresAt.Equal(m.lastExpiry) {
		return
	}

	m.lastToken = current.AccessToken
	m.lastExpiry = current.ExpiresAt

	err := m.persistToken(current)
	if err != nil && m.onPersistError != nil {
		m.onPersistError(err)
	}
}

func (m *ConfigTokenManager) persistToken(token *Token) error {
	if m.configPersister == nil {
		return ErrNoConfigPersister
	}

	err := m.configPersister.UpdateAPIToken(m.apiEndpoint, token.AccessToken, token.ExpiresAt)
	if err != nil {
		return fmt.Errorf("failed to update API token: %w", err)
	}

	return nil
}
