package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, accessToken string, calls *int32) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)

		err := r.ParseForm()
		require.NoError(t, err)
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "client-id", r.Form.Get("client_id"))
		assert.Equal(t, "client-secret", r.Form.Get("client_secret"))

		if calls != nil {
			atomic.AddInt32(calls, 1)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": accessToken,
			"token_type":   "bearer",
			"expires_in":   3600,
		})
	}))
}

func TestOAuth2TokenManager_GetToken(t *testing.T) {
	t.Run("returns existing valid token", func(t *testing.T) {
		manager := NewOAuth2TokenManager(&OAuth2Config{TokenURL: "http://127.0.0.1:0/oauth/token"})
		manager.SetToken("existing-token", time.Now().Add(time.Hour))

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "existing-token", token)
	})

	t.Run("runs the client credentials grant", func(t *testing.T) {
		var calls int32

		server := tokenServer(t, "client-token", &calls)
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "client-token", token)

		token, err = manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "client-token", token)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("replaces an expired token", func(t *testing.T) {
		server := tokenServer(t, "fresh-token", nil)
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		})
		manager.SetToken("expired-token", time.Now().Add(-time.Hour))

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "fresh-token", token)
	})

	t.Run("handles token request error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":             "invalid_client",
				"error_description": "Client authentication failed",
			})
		}))
		defer server.Close()

		manager := NewOAuth2TokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "bad-client",
			ClientSecret: "bad-secret",
		})

		token, err := manager.GetToken(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid_client")
		assert.Empty(t, token)
	})
}

func TestOAuth2TokenManager_RefreshToken(t *testing.T) {
	server := tokenServer(t, "refreshed-token", nil)
	defer server.Close()

	manager := NewOAuth2TokenManager(&OAuth2Config{
		TokenURL:     server.URL + "/oauth/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	manager.SetToken("current-token", time.Now().Add(time.Hour))

	err := manager.RefreshToken(context.Background())
	require.NoError(t, err)

	current := manager.Current()
	require.NotNil(t, current)
	assert.Equal(t, "refreshed-token", current.AccessToken)
	assert.True(t, current.ExpiresAt.After(time.Now()))
}

type recordingPersister struct {
	endpoint string
	token    string
	calls    int
	err      error
}

func (p *recordingPersister) UpdateAPIToken(apiEndpoint, token string, expiresAt time.Time) error {
	p.calls++
	p.endpoint = apiEndpoint
	p.token = token

	return p.err
}

func TestConfigTokenManager(t *testing.T) {
	t.Run("persists a newly granted token once", func(t *testing.T) {
		server := tokenServer(t, "granted-token", nil)
		defer server.Close()

		persister := &recordingPersister{}
		manager := NewConfigTokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		}, persister, "https://api.kore.test", "", time.Time{})

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "granted-token", token)

		_, err = manager.GetToken(context.Background())
		require.NoError(t, err)

		assert.Equal(t, 1, persister.calls)
		assert.Equal(t, "https://api.kore.test", persister.endpoint)
		assert.Equal(t, "granted-token", persister.token)
		assert.False(t, manager.TokenExpiry().IsZero())
	})

	t.Run("initial token is not persisted again", func(t *testing.T) {
		persister := &recordingPersister{}
		manager := NewConfigTokenManager(&OAuth2Config{}, persister, "https://api.kore.test",
			"saved-token", time.Now().Add(time.Hour))

		token, err := manager.GetToken(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "saved-token", token)
		assert.Equal(t, 0, persister.calls)
	})

	t.Run("persist failure is reported, not returned", func(t *testing.T) {
		server := tokenServer(t, "granted-token", nil)
		defer server.Close()

		persister := &recordingPersister{err: errors.New("disk full")}
		manager := NewConfigTokenManager(&OAuth2Config{
			TokenURL:     server.URL + "/oauth/token",
			ClientID:     "client-id",
			ClientSecret: "client-secret",
		}, persister, "https://api.kore.test", "", time.Time{})

		var reported error

		manager.OnPersistError(func(err error) { reported = err })

		err := manager.RefreshToken(context.Background())
		require.NoError(t, err)
		require.Error(t, reported)
		assert.Contains(t, reported.Error(), "disk full")
	})
}
