package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/auth"
	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/koreclient"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const userAgent = "kore-cli"

func newLogger(out io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// newClient builds an API client from the CLI configuration. Credentials
// are picked in order: a console session (proxy mode), client credentials,
// then a stored token.
func newClient(ctx context.Context, withCatalogue bool) (kore.Client, error) {
	config := loadConfig()
	if config.API == "" {
		return nil, constants.ErrNoAPIConfigured
	}

	logger := kore.NewSlogLogger(newLogger(os.Stderr))

	clientConfig := &kore.Config{
		APIEndpoint:   config.API,
		Logger:        logger,
		Debug:         viper.GetBool("verbose"),
		UserAgent:     userAgent,
		RetryMax:      constants.DefaultRetryMax,
		LoadCatalogue: withCatalogue,
		Cache:         cacheConfig(config),
		Reauthenticate: func(ctx context.Context) {
			logger.Warn("the API rejected the stored credentials, run 'kore login' again", nil)
		},
	}

	if viper.GetBool("verbose") {
		clientConfig.Metrics = callStats(logger)
	}

	switch {
	case config.ProxyOrigin != "" && config.SessionCookie != "":
		clientConfig.Mode = kore.ModeProxy
		clientConfig.ProxyOrigin = config.ProxyOrigin
		clientConfig.SessionCookie = config.SessionCookie

	case config.ClientID != "" && config.ClientSecret != "":
		manager := newConfigTokenManager(config)
		manager.OnPersistError(func(err error) {
			logger.Warn("failed to save renewed token", map[string]interface{}{"error": err.Error()})
		})

		clientConfig.TokenSource = manager.GetToken

	case config.Token != "":
		clientConfig.AccessToken = config.Token
	}

	client, err := koreclient.New(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return client, nil
}

// callStats returns a collector that logs the running statistics of each
// endpoint after every call.
func callStats(logger kore.Logger) *kore.MetricsCollector {
	collector := kore.NewMetricsCollector()
	collector.SetOnChange(func(endpoint string, metrics kore.Metrics) {
		logger.Debug("API call stats", map[string]interface{}{
			"endpoint":    endpoint,
			"requests":    metrics.TotalRequests,
			"errors":      metrics.TotalErrors,
			"avg_latency": metrics.AverageLatency.String(),
		})
	})

	return collector
}

func oauth2Config(config *Config) *auth.OAuth2Config {
	tokenURL := config.TokenURL
	if tokenURL == "" {
		tokenURL = normalizeEndpoint(config.API) + "/oauth/token"
	}

	return &auth.OAuth2Config{
		TokenURL:     tokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
	}
}

func newConfigTokenManager(config *Config) *auth.ConfigTokenManager {
	var expiry time.Time
	if config.TokenExpiresAt != nil {
		expiry = *config.TokenExpiresAt
	}

	return auth.NewConfigTokenManager(oauth2Config(config), NewConfigPersister(), config.API, config.Token, expiry)
}

func cacheConfig(config *Config) *kore.CacheConfig {
	switch kore.CacheType(config.Cache) {
	case kore.CacheTypeNATS:
		return &kore.CacheConfig{
			Type: kore.CacheTypeNATS,
			NATS: &kore.NATSKVConfig{URL: config.NATSURL},
		}
	case kore.CacheTypeNone:
		return &kore.CacheConfig{Type: kore.CacheTypeNone}
	default:
		return kore.DefaultCacheConfig()
	}
}

// normalizeEndpoint trims the trailing slash and defaults the scheme to https.
func normalizeEndpoint(endpoint string) string {
	endpoint = strings.TrimSuffix(strings.TrimSpace(endpoint), "/")
	if endpoint != "" && !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}

	return endpoint
}

func teamOrDefault(team string) string {
	if team != "" {
		return team
	}

	return viper.GetString("team")
}

// render writes value in the configured output format. Table output falls
// back to YAML when no table renderer is given.
func render(out io.Writer, value interface{}, table func() error) error {
	switch viper.GetString("output") {
	case constants.FormatJSON:
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(value)

	case constants.FormatYAML:
		return yaml.NewEncoder(out).Encode(value)

	case constants.FormatTable, "":
		if table != nil {
			return table()
		}

		return yaml.NewEncoder(out).Encode(value)

	default:
		return fmt.Errorf("%w: %s", constants.ErrInvalidOutputFormat, viper.GetString("output"))
	}
}

// renderRaw prints a raw API body as JSON or YAML.
func renderRaw(out io.Writer, body json.RawMessage) error {
	var value interface{}

	err := json.Unmarshal(body, &value)
	if err != nil {
		_, err = fmt.Fprintln(out, string(body))

		return err
	}

	if viper.GetString("output") == constants.FormatYAML {
		return yaml.NewEncoder(out).Encode(value)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

	return encoder.Encode(value)
}

// parseParams turns key=value pairs into a map.
func parseParams(pairs []string) (map[string]string, error) {
	params := make(map[string]string, len(pairs))

	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", constants.KeyValueSplitParts)
		if len(parts) != constants.KeyValueSplitParts || parts[0] == "" {
			return nil, fmt.Errorf("%w: %q", constants.ErrInvalidParamFormat, pair)
		}

		params[parts[0]] = parts[1]
	}

	return params, nil
}

// readDocument reads a YAML or JSON file into a generic JSON-compatible value.
func readDocument(path string) (interface{}, error) {
	if strings.Contains(path, "..") {
		return nil, fmt.Errorf("%w: %s", constants.ErrDirectoryTraversal, path)
	}

	// #nosec G304 -- the path is supplied by the user on purpose
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var value interface{}

	err = yaml.Unmarshal(data, &value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	return value, nil
}

// readManifest reads a resource manifest written in YAML or JSON.
func readManifest(path string) (*kore.Resource, error) {
	value, err := readDocument(path)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", path, err)
	}

	var resource kore.Resource

	err = json.Unmarshal(data, &resource)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	if resource.Kind == "" {
		return nil, constants.ErrManifestMissingKind
	}

	if resource.Metadata.Name == "" {
		return nil, constants.ErrManifestMissingName
	}

	return &resource, nil
}
