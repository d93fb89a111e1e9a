package koreclient_test

import (
	"context"
	"testing"

	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/koreclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()
	t.Run("creates client with config", func(t *testing.T) {
		t.Parallel()

		client, err := koreclient.New(context.Background(), &kore.Config{
			APIEndpoint: "https://api.kore.example.com",
		})
		require.NoError(t, err)
		assert.NotNil(t, client)
		assert.Nil(t, client.Operations())
	})

	t.Run("requires config", func(t *testing.T) {
		t.Parallel()

		_, err := koreclient.New(context.Background(), nil)
		require.ErrorIs(t, err, kore.ErrConfigRequired)
	})

	t.Run("requires endpoint", func(t *testing.T) {
		t.Parallel()

		_, err := koreclient.New(context.Background(), &kore.Config{})
		require.ErrorIs(t, err, kore.ErrAPIEndpointRequired)
	})

	t.Run("does not modify the caller's config", func(t *testing.T) {
		t.Parallel()

		config := &kore.Config{APIEndpoint: "api.kore.example.com/"}

		_, err := koreclient.New(context.Background(), config)
		require.NoError(t, err)
		assert.Equal(t, "api.kore.example.com/", config.APIEndpoint)
	})
}

func TestNewWithEndpoint(t *testing.T) {
	t.Parallel()

	client, err := koreclient.NewWithEndpoint(context.Background(), "https://api.kore.example.com")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithToken(t *testing.T) {
	t.Parallel()

	client, err := koreclient.NewWithToken(context.Background(), "https://api.kore.example.com", "test-token")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewWithClientCredentials(t *testing.T) {
	t.Parallel()

	client, err := koreclient.NewWithClientCredentials(context.Background(),
		"https://api.kore.example.com", "https://auth.kore.example.com/oauth/token", "client-id", "client-secret")
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestNewForSession(t *testing.T) {
	t.Parallel()

	client, err := koreclient.NewForSession(context.Background(),
		"https://api.kore.example.com", "https://console.kore.example.com", "kore-session=abc")
	require.NoError(t, err)
	assert.NotNil(t, client)

	_, err = koreclient.NewForSession(context.Background(), "https://api.kore.example.com", "", "")
	require.ErrorIs(t, err, kore.ErrProxyOriginRequired)
}
