// Package koreclient provides the main entry point for creating Kore API clients
package koreclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/client"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// New creates a new Kore API client. With LoadCatalogue set, the API
// description document is loaded through the process-wide SpecLoader and
// every operation it lists is exposed, decorated, via Operations().
func New(ctx context.Context, config *kore.Config) (kore.Client, error) {
	if config == nil {
		return nil, kore.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return nil, kore.ErrAPIEndpointRequired
	}

	cfg := *config
	cfg.APIEndpoint = normalizeOrigin(cfg.APIEndpoint)

	if cfg.ProxyOrigin != "" {
		cfg.ProxyOrigin = normalizeOrigin(cfg.ProxyOrigin)
	}

	c, err := client.New(ctx, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	if !cfg.LoadCatalogue {
		return c, nil
	}

	loader := DefaultSpecLoader(cfg.APIEndpoint, WithCacheConfig(cfg.Cache), WithSpecLogger(cfg.Logger))

	catalogue, err := loader.Load(ctx, c.FetchCatalogue)
	if err != nil {
		return nil, err
	}

	c.UseCatalogue(catalogue)

	return c, nil
}

// normalizeOrigin trims the trailing slash and defaults the scheme to https.
func normalizeOrigin(origin string) string {
	origin = strings.TrimSuffix(origin, "/")
	if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
		origin = "https://" + origin
	}

	return origin
}

// NewWithEndpoint creates a new client with just an endpoint (no auth).
func NewWithEndpoint(ctx context.Context, endpoint string) (kore.Client, error) {
	return New(ctx, &kore.Config{
		APIEndpoint: endpoint,
	})
}

// NewWithToken creates a new client with an access token.
func NewWithToken(ctx context.Context, endpoint, token string) (kore.Client, error) {
	return New(ctx, &kore.Config{
		APIEndpoint: endpoint,
		AccessToken: token,
	})
}

// NewWithClientCredentials creates a new client using OAuth2 client credentials.
func NewWithClientCredentials(ctx context.Context, endpoint, tokenURL, clientID, clientSecret string) (kore.Client, error) {
	return New(ctx, &kore.Config{
		APIEndpoint:  endpoint,
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
	})
}

// NewForSession creates a proxy-mode client acting for a browser session.
func NewForSession(ctx context.Context, endpoint, proxyOrigin, sessionCookie string) (kore.Client, error) {
	return New(ctx, &kore.Config{
		APIEndpoint:   endpoint,
		Mode:          kore.ModeProxy,
		ProxyOrigin:   proxyOrigin,
		SessionCookie: sessionCookie,
	})
}
