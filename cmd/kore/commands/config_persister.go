package commands

import (
	"sync"
	"time"
)

// ConfigPersister implements the auth.ConfigPersister interface.
type ConfigPersister struct {
	mutex sync.Mutex
}

// NewConfigPersister creates a new config persister.
func NewConfigPersister() *ConfigPersister {
	return &ConfigPersister{}
}

// UpdateAPIToken saves a renewed token when it belongs to the configured API.
func (p *ConfigPersister) UpdateAPIToken(apiEndpoint, token string, expiresAt time.Time) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	config := loadConfig()
	if config.API != "" && normalizeEndpoint(config.API) != normalizeEndpoint(apiEndpoint) {
		return nil
	}

	config.Token = token
	config.TokenExpiresAt = nil

	if !expiresAt.IsZero() {
		config.TokenExpiresAt = &expiresAt
	}

	now := time.Now()
	config.LastRefreshed = &now

	return saveConfigStruct(config)
}
