package constants

import "errors"

// Configuration errors.
var (
	ErrNoAPIConfigured     = errors.New("no API endpoint configured, use 'kore config set api <url>'")
	ErrNotAuthenticated    = errors.New("not authenticated, use 'kore login' first")
	ErrUnknownConfigKey    = errors.New("unknown configuration key")
	ErrInvalidOutputFormat = errors.New("invalid output format")
)

// Command errors.
var (
	ErrInvalidParamFormat   = errors.New("invalid parameter format, expected key=value")
	ErrUnknownOperation     = errors.New("unknown operation")
	ErrResourceNotFound     = errors.New("resource not found")
	ErrAccessDenied         = errors.New("access denied")
	ErrUnsupportedKind      = errors.New("unsupported resource kind")
	ErrManifestMissingName  = errors.New("manifest has no metadata.name")
	ErrManifestMissingKind  = errors.New("manifest has no kind")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrDirectoryTraversal   = errors.New("path contains directory traversal sequences")
	ErrTeamRequired         = errors.New("team is required (use --team or set a default team)")
	ErrAtLeastOneTeamNeeded = errors.New("at least one team must be specified")
)
