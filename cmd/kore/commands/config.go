package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the CLI configuration.
type Config struct {
	API            string     `json:"api,omitempty"              yaml:"api,omitempty"`
	ProxyOrigin    string     `json:"proxy_origin,omitempty"     yaml:"proxy_origin,omitempty"`
	SessionCookie  string     `json:"session_cookie,omitempty"   yaml:"session_cookie,omitempty"`
	Team           string     `json:"team,omitempty"             yaml:"team,omitempty"`
	Token          string     `json:"token,omitempty"            yaml:"token,omitempty"`
	TokenExpiresAt *time.Time `json:"token_expires_at,omitempty" yaml:"token_expires_at,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed,omitempty"   yaml:"last_refreshed,omitempty"`
	ClientID       string     `json:"client_id,omitempty"        yaml:"client_id,omitempty"`
	ClientSecret   string     `json:"client_secret,omitempty"    yaml:"client_secret,omitempty"`
	TokenURL       string     `json:"token_url,omitempty"        yaml:"token_url,omitempty"`
	Output         string     `json:"output,omitempty"           yaml:"output,omitempty"`
	Cache          string     `json:"cache,omitempty"            yaml:"cache,omitempty"`
	NATSURL        string     `json:"nats_url,omitempty"         yaml:"nats_url,omitempty"`
}

// configKeys maps settable keys onto their config fields.
var configKeys = map[string]func(*Config) *string{
	"api":            func(c *Config) *string { return &c.API },
	"proxy_origin":   func(c *Config) *string { return &c.ProxyOrigin },
	"session_cookie": func(c *Config) *string { return &c.SessionCookie },
	"team":           func(c *Config) *string { return &c.Team },
	"token":          func(c *Config) *string { return &c.Token },
	"client_id":      func(c *Config) *string { return &c.ClientID },
	"client_secret":  func(c *Config) *string { return &c.ClientSecret },
	"token_url":      func(c *Config) *string { return &c.TokenURL },
	"output":         func(c *Config) *string { return &c.Output },
	"cache":          func(c *Config) *string { return &c.Cache },
	"nats_url":       func(c *Config) *string { return &c.NATSURL },
}

var secretKeys = map[string]bool{
	"token":          true,
	"client_secret":  true,
	"session_cookie": true,
}

// NewConfigCommand creates the config command group.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  "Manage Kore CLI configuration stored in $HOME/.kore/config.yml",
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigSetCommand())

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  "Display the current CLI configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := maskSecrets(loadConfig())

			switch viper.GetString("output") {
			case constants.FormatJSON, constants.FormatYAML:
				return render(cmd.OutOrStdout(), config, nil)
			default:
				return displayConfigTable(cmd.OutOrStdout(), config)
			}
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Set a configuration value",
		Long:  "Set a configuration value and save it to the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			field, ok := configKeys[key]
			if !ok {
				return fmt.Errorf("%w: %s", constants.ErrUnknownConfigKey, key)
			}

			config := loadConfig()
			*field(config) = value

			if key == "token" {
				config.TokenExpiresAt = nil
			}

			err := saveConfigStruct(config)
			if err != nil {
				return err
			}

			viper.Set(key, value)

			if secretKeys[key] {
				value = constants.MaskedSecret
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s to %s\n", key, value)

			return nil
		},
	}
}

func loadConfig() *Config {
	config := &Config{
		API:           viper.GetString("api"),
		ProxyOrigin:   viper.GetString("proxy_origin"),
		SessionCookie: viper.GetString("session_cookie"),
		Team:          viper.GetString("team"),
		Token:         viper.GetString("token"),
		ClientID:      viper.GetString("client_id"),
		ClientSecret:  viper.GetString("client_secret"),
		TokenURL:      viper.GetString("token_url"),
		Output:        viper.GetString("output"),
		Cache:         viper.GetString("cache"),
		NATSURL:       viper.GetString("nats_url"),
	}

	config.TokenExpiresAt = parseTimestamp(viper.GetString("token_expires_at"))
	config.LastRefreshed = parseTimestamp(viper.GetString("last_refreshed"))

	return config
}

func parseTimestamp(value string) *time.Time {
	if value == "" {
		return nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil
	}

	return &t
}

func configFilePath() (string, error) {
	configFile := viper.ConfigFileUsed()
	if configFile != "" {
		return configFile, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".kore")

	err = os.MkdirAll(configDir, constants.ConfigDirPerm)
	if err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return filepath.Join(configDir, "config.yml"), nil
}

func saveConfigStruct(config *Config) error {
	configFile, err := configFilePath()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	err = os.WriteFile(configFile, data, constants.ConfigFilePerm)
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func maskSecrets(config *Config) *Config {
	masked := *config

	if masked.Token != "" {
		masked.Token = constants.MaskedSecret
	}

	if masked.ClientSecret != "" {
		masked.ClientSecret = constants.MaskedSecret
	}

	if masked.SessionCookie != "" {
		masked.SessionCookie = constants.MaskedSecret
	}

	return &masked
}

func displayConfigTable(out io.Writer, config *Config) error {
	data, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var values map[string]interface{}

	err = json.Unmarshal(data, &values)
	if err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	for _, key := range keys {
		_ = table.Append(key, fmt.Sprintf("%v", values[key]))
	}

	err = table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
