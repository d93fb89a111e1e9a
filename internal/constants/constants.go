package constants

import "time"

// File and directory permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for quick operations such as catalogue discovery.
	ShortHTTPTimeout = 10 * time.Second

	// TokenExpirationBuffer is how long before expiry a token is renewed.
	TokenExpirationBuffer = 30 * time.Second
)

// Retry limits for the transport layer.
const (
	// DefaultRetryMax is the default maximum number of transport retries.
	DefaultRetryMax = 3

	// DefaultRetryWaitMin is the minimum wait between transport retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum wait between transport retries.
	DefaultRetryWaitMax = 10 * time.Second
)

// Kore API layout.
const (
	// APIBasePath is the path prefix of every Kore API operation.
	APIBasePath = "/api/v1alpha1"

	// ProxyBasePath replaces APIBasePath when requests go through the
	// same-origin console proxy.
	ProxyBasePath = "/apiproxy"

	// CataloguePath is the well-known location of the API description document.
	CataloguePath = "/swagger.json"

	// AllTeams is the allocation sentinel meaning every team.
	AllTeams = "*"

	// AdminTeam owns plans, policies and shared credentials.
	AdminTeam = "kore-admin"
)

// Resource status values.
const (
	StatusSuccess  = "Success"
	StatusFailure  = "Failure"
	StatusPending  = "Pending"
	StatusDeleting = "Deleting"
)

// Polling.
const (
	// DefaultRefreshInterval is used by the auto-refresh poller when the
	// caller does not supply one.
	DefaultRefreshInterval = 5 * time.Second

	// MinRefreshInterval is the lower bound of the watch interval.
	MinRefreshInterval = 2 * time.Second

	// MaxRefreshInterval is the upper bound of the watch interval.
	MaxRefreshInterval = 30 * time.Second

	// VerificationMaxAttempts bounds the credential verification poller.
	VerificationMaxAttempts = 3

	// VerificationDelay is the fixed wait before each verification fetch.
	VerificationDelay = 2 * time.Second
)

// Caching.
const (
	// DefaultCacheSize is the default memory cache size limit.
	DefaultCacheSize = 100

	// DefaultNATSBucket is the JetStream KV bucket used for shared catalogues.
	DefaultNATSBucket = "kore_catalogue"
)

// Output formats.
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Display.
const (
	// NotAvailable is used when information is not available.
	NotAvailable = "N/A"

	// MaskedSecret is used to hide sensitive information.
	MaskedSecret = "***"

	// JSONIndentSize is the number of spaces for JSON indentation.
	JSONIndentSize = 2

	// TimestampFormat is used for table output.
	TimestampFormat = "2006-01-02 15:04:05"

	// KeyValueSplitParts is the number of parts when splitting key=value strings.
	KeyValueSplitParts = 2
)
