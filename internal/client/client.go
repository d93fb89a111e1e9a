package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fivetwenty-io/kore-client/internal/auth"
	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/internal/http"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
)

// Static errors for err113 compliance.
var (
	ErrUnsupportedMode = errors.New("unsupported execution mode")
)

// Client implements the kore.Client interface.
type Client struct {
	httpClient   *http.Client
	tokenManager auth.TokenManager
	hooks        kore.DecoratorHooks
	logger       kore.Logger
	req          *requester

	mutex      sync.RWMutex
	operations kore.OperationSet
	catalogue  *kore.Catalogue

	teams        kore.TeamsClient
	plans        kore.PlansClient
	planPolicies kore.PlanPoliciesClient
	security     kore.SecurityClient
	resources    kore.ResourcesClient
}

// createTokenManager picks the bearer token source for server mode.
func createTokenManager(config *kore.Config) auth.TokenManager {
	switch {
	case config.TokenSource != nil:
		return auth.NewSessionTokenManager(config.TokenSource)

	case config.AccessToken != "":
		return auth.NewStaticTokenManager(config.AccessToken)

	case config.ClientID != "" && config.ClientSecret != "":
		return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
			TokenURL:     getTokenURL(config),
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
		})

	default:
		return nil // No authentication
	}
}

// getTokenURL returns token URL from config or fallback.
func getTokenURL(config *kore.Config) string {
	if config.TokenURL != "" {
		return config.TokenURL
	}

	return strings.TrimSuffix(config.APIEndpoint, "/") + "/oauth/token"
}

// createHTTPClientOptions builds HTTP client options from config. The
// request chain runs metrics, custom headers, proxy rewriting and logging in
// that order, so the logged request is the one put on the wire.
func createHTTPClientOptions(config *kore.Config) []http.Option {
	var httpOpts []http.Option

	chain := kore.NewInterceptorChain()

	if config.Logger != nil {
		httpOpts = append(httpOpts, http.WithLogger(config.Logger))
	}

	if config.UserAgent != "" {
		httpOpts = append(httpOpts, http.WithUserAgent(config.UserAgent))
	}

	if config.HTTPTimeout > 0 {
		httpOpts = append(httpOpts, http.WithTimeout(config.HTTPTimeout))
	}

	if config.Metrics != nil {
		chain.AddRequestInterceptor(kore.MetricsRequestInterceptor(config.Metrics))
		chain.AddResponseInterceptor(kore.MetricsResponseInterceptor(config.Metrics))
	}

	if len(config.Headers) > 0 {
		chain.AddRequestInterceptor(kore.HeaderInterceptor(config.Headers))
	}

	if config.Mode == kore.ModeProxy {
		chain.AddRequestInterceptor(kore.ProxyRewriteInterceptor(
			config.APIEndpoint, constants.APIBasePath,
			config.ProxyOrigin, constants.ProxyBasePath,
			config.SessionCookie,
		))
	}

	if config.Debug && config.Logger != nil {
		chain.AddRequestInterceptor(kore.LoggingInterceptor(config.Logger))
		chain.AddResponseInterceptor(kore.LoggingResponseInterceptor(config.Logger))
	}

	httpOpts = append(httpOpts, http.WithInterceptors(chain))

	if config.RetryMax > 0 {
		retryWaitMin := constants.DefaultRetryWaitMin
		retryWaitMax := constants.DefaultRetryWaitMax

		if config.RetryWaitMin > 0 {
			retryWaitMin = config.RetryWaitMin
		}

		if config.RetryWaitMax > 0 {
			retryWaitMax = config.RetryWaitMax
		}

		httpOpts = append(httpOpts, http.WithRetryConfig(config.RetryMax, retryWaitMin, retryWaitMax))
	}

	return httpOpts
}

func validateConfig(config *kore.Config) error {
	if config == nil {
		return kore.ErrConfigRequired
	}

	if config.APIEndpoint == "" {
		return kore.ErrAPIEndpointRequired
	}

	switch config.Mode {
	case "", kore.ModeServer:
		return nil
	case kore.ModeProxy:
		if config.ProxyOrigin == "" {
			return kore.ErrProxyOriginRequired
		}

		return nil
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedMode, config.Mode)
	}
}

// New creates a new Kore API client. No request is made.
func New(ctx context.Context, config *kore.Config) (*Client, error) {
	err := validateConfig(config)
	if err != nil {
		return nil, err
	}

	var tokenManager auth.TokenManager
	if config.Mode != kore.ModeProxy {
		tokenManager = createTokenManager(config)
	}

	httpClient := http.NewClient(config.APIEndpoint, tokenManager, createHTTPClientOptions(config)...)

	hooks := kore.DecoratorHooks{
		Reauthenticate: config.Reauthenticate,
		Logger:         config.Logger,
	}

	req := &requester{httpClient: httpClient, hooks: hooks}

	client := &Client{
		httpClient:   httpClient,
		tokenManager: tokenManager,
		hooks:        hooks,
		logger:       config.Logger,
		req:          req,
		teams:        NewTeamsClient(req),
		plans:        NewPlansClient(req),
		planPolicies: NewPlanPoliciesClient(req),
		security:     NewSecurityClient(req),
		resources:    NewResourcesClient(req),
	}

	return client, nil
}

// Teams implements kore.Client.Teams.
func (c *Client) Teams() kore.TeamsClient {
	return c.teams
}

// Clusters implements kore.Client.Clusters.
func (c *Client) Clusters(team string) kore.ClustersClient {
	return NewClustersClient(c.req, team)
}

// Plans implements kore.Client.Plans.
func (c *Client) Plans() kore.PlansClient {
	return c.plans
}

// PlanPolicies implements kore.Client.PlanPolicies.
func (c *Client) PlanPolicies() kore.PlanPoliciesClient {
	return c.planPolicies
}

// Credentials implements kore.Client.Credentials.
func (c *Client) Credentials(team, kind string) kore.CredentialsClient {
	return NewCredentialsClient(c.req, team, kind)
}

// Allocations implements kore.Client.Allocations.
func (c *Client) Allocations(team string) kore.AllocationsClient {
	return NewAllocationsClient(c.req, team)
}

// Security implements kore.Client.Security.
func (c *Client) Security() kore.SecurityClient {
	return c.security
}

// Resources implements kore.Client.Resources.
func (c *Client) Resources() kore.ResourcesClient {
	return c.resources
}

// Operations implements kore.Client.Operations.
func (c *Client) Operations() kore.OperationSet {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.operations
}

// Catalogue returns the catalogue the operations were built from, or nil.
func (c *Client) Catalogue() *kore.Catalogue {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.catalogue
}

// UseCatalogue builds and decorates one operation per catalogue entry.
func (c *Client) UseCatalogue(catalogue *kore.Catalogue) {
	ops := NewCatalogueOperations(c.httpClient, catalogue)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.catalogue = catalogue
	c.operations = kore.WrapOperations(ops, c.hooks)
}

// FetchCatalogue downloads the API description document through the same
// request shaping as every other call. Errors are not translated: a missing
// document is a failure here.
func (c *Client) FetchCatalogue(ctx context.Context) ([]byte, error) {
	resp, err := c.httpClient.Get(ctx, constants.CataloguePath, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching API catalogue: %w", err)
	}

	return resp.Body, nil
}

// TokenManager returns the bearer token source, nil in proxy mode.
func (c *Client) TokenManager() auth.TokenManager {
	return c.tokenManager
}
