package kore

import (
	"context"
	"log/slog"
	"time"
)

// ExecutionMode selects how requests are authorised.
type ExecutionMode string

const (
	// ModeServer attaches a bearer token to every request and talks to the
	// API origin directly.
	ModeServer ExecutionMode = "server"

	// ModeProxy acts for a browser session: requests are rewritten to the
	// same-origin proxy path and carry the session cookie instead of a token.
	ModeProxy ExecutionMode = "proxy"
)

// TeamsClient manages teams.
type TeamsClient interface {
	List(ctx context.Context) ([]Resource, error)
	Get(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, team *Resource) (*Resource, error)
	Delete(ctx context.Context, name string) (*Resource, error)
}

// ClustersClient manages the clusters of a team.
type ClustersClient interface {
	List(ctx context.Context) ([]Resource, error)
	Get(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, cluster *Resource) (*Resource, error)
	Delete(ctx context.Context, name string) (*Resource, error)
}

// PlansClient manages cluster plans.
type PlansClient interface {
	List(ctx context.Context, kind string) ([]Resource, error)
	Get(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, plan *Resource) (*Resource, error)
	Delete(ctx context.Context, name string) (*Resource, error)
}

// PlanPoliciesClient manages plan policies.
type PlanPoliciesClient interface {
	List(ctx context.Context, kind string) ([]Resource, error)
	Get(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, policy *Resource) (*Resource, error)
	Delete(ctx context.Context, name string) (*Resource, error)
}

// CredentialsClient manages one kind of cloud credential owned by a team.
type CredentialsClient interface {
	List(ctx context.Context) ([]Resource, error)
	Get(ctx context.Context, name string) (*Resource, error)
	Update(ctx context.Context, credential *Resource) (*Resource, error)
	Delete(ctx context.Context, name string) (*Resource, error)
}

// AllocationsClient manages the allocations owned by a team.
type AllocationsClient interface {
	List(ctx context.Context) ([]Allocation, error)
	Get(ctx context.Context, name string) (*Allocation, error)
	Update(ctx context.Context, allocation *Allocation) (*Allocation, error)
	Delete(ctx context.Context, name string) (*Allocation, error)

	// AllocationFor looks up the allocation of a resource by its derived name.
	AllocationFor(ctx context.Context, kind, name string) (*Allocation, error)

	// Allocate writes the allocation for resource and returns the server copy.
	Allocate(ctx context.Context, resource *Resource, teams []string) (*Allocation, error)
}

// SecurityOverview summarises the security posture of the platform.
type SecurityOverview struct {
	Summary   map[string]int `json:"summary"   yaml:"summary"`
	Resources []SecurityScan `json:"resources" yaml:"resources"`
}

// SecurityScan is the result of scanning one resource against the rules.
type SecurityScan struct {
	ID              uint64      `json:"id"              yaml:"id"`
	Resource        ResourceRef `json:"resource"        yaml:"resource"`
	OverallStatus   string      `json:"overallStatus"   yaml:"overallStatus"`
	CheckedAt       time.Time   `json:"checkedAt"       yaml:"checkedAt"`
	ArchivedAt      *time.Time  `json:"archivedAt"      yaml:"archivedAt"`
	ResourceVersion string      `json:"resourceVersion" yaml:"resourceVersion"`
}

// SecurityClient reads the security posture.
type SecurityClient interface {
	Overview(ctx context.Context) (*SecurityOverview, error)
	ListScans(ctx context.Context, latestOnly bool) ([]SecurityScan, error)
	GetScan(ctx context.Context, id uint64) (*SecurityScan, error)
}

// ResourcesClient reads and writes resources by API path, used by pollers.
type ResourcesClient interface {
	Get(ctx context.Context, path string) (*Resource, error)
	Update(ctx context.Context, path string, resource *Resource) (*Resource, error)
}

// ResourceClients provides access to the typed resource groups.
type ResourceClients interface {
	Teams() TeamsClient
	Clusters(team string) ClustersClient
	Plans() PlansClient
	PlanPolicies() PlanPoliciesClient
	Credentials(team, kind string) CredentialsClient
	Allocations(team string) AllocationsClient
	Security() SecurityClient
	Resources() ResourcesClient
}

// Client is the Kore API client.
type Client interface {
	ResourceClients

	// Operations returns the catalogue-driven operations, decorated once at
	// construction. It is nil when the client was built without a catalogue.
	Operations() OperationSet
}

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// SlogLogger adapts a *slog.Logger to Logger.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps logger; a nil logger uses slog.Default().
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(msg string, fields map[string]interface{}) {
	l.logger.Debug(msg, attrs(fields)...)
}

func (l *SlogLogger) Info(msg string, fields map[string]interface{}) {
	l.logger.Info(msg, attrs(fields)...)
}

func (l *SlogLogger) Warn(msg string, fields map[string]interface{}) {
	l.logger.Warn(msg, attrs(fields)...)
}

func (l *SlogLogger) Error(msg string, fields map[string]interface{}) {
	l.logger.Error(msg, attrs(fields)...)
}

func attrs(fields map[string]interface{}) []any {
	out := make([]any, 0, len(fields)*2)
	for key, value := range fields {
		out = append(out, key, value)
	}

	return out
}

// Config represents client configuration.
//
// # Authentication
//
// In ModeServer the client attaches a bearer token taken, in order, from
// TokenSource, AccessToken, or an OAuth2 client_credentials grant against
// TokenURL with ClientID/ClientSecret. With none of these, requests are sent
// without authentication.
//
// In ModeProxy no token is attached. Requests addressed to
// APIEndpoint+"/api/v1alpha1" are rewritten to ProxyOrigin+"/apiproxy" and
// carry SessionCookie.
//
// # Catalogue
//
// The API description document is loaded once per process from
// APIEndpoint+"/swagger.json" and never invalidated; a change to the API's
// description needs a restart to be picked up.
type Config struct {
	// APIEndpoint: base origin of the Kore API (e.g., "https://api.kore.example.com").
	APIEndpoint string
	// Mode: ModeServer (default) or ModeProxy.
	Mode ExecutionMode
	// ProxyOrigin: origin of the console proxy, required in ModeProxy.
	ProxyOrigin string
	// SessionCookie: forwarded verbatim in ModeProxy.
	SessionCookie string

	// AccessToken: static bearer token.
	AccessToken string
	// TokenSource: returns the bearer token of the current session.
	TokenSource func(ctx context.Context) (string, error)
	// ClientID, ClientSecret, TokenURL: OAuth2 client_credentials grant.
	ClientID     string
	ClientSecret string
	TokenURL     string

	// Reauthenticate is invoked when the API answers 401, before the error
	// reaches the caller.
	Reauthenticate func(ctx context.Context)

	// RetryMax: maximum transport retries for 5xx, 429 and connection errors.
	RetryMax int
	// RetryWaitMin, RetryWaitMax bound the transport retry backoff.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// HTTPTimeout bounds each HTTP attempt; 30s when zero.
	HTTPTimeout time.Duration
	// Debug: enables request/response logging when a Logger is provided.
	Debug bool
	// Logger: optional structured logger.
	Logger Logger
	// UserAgent: overrides the default User-Agent header.
	UserAgent string
	// Headers are set on every request, after the built-in ones.
	Headers map[string]string
	// Metrics, when set, records per-endpoint call statistics.
	Metrics *MetricsCollector

	// Cache: backend for the catalogue document; memory when nil.
	Cache *CacheConfig
	// LoadCatalogue: when true, the client loads the catalogue on
	// construction and exposes decorated Operations.
	LoadCatalogue bool
}
