package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"syscall"

	"github.com/fivetwenty-io/kore-client/internal/auth"
	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

// NewLoginCommand creates the login command.
func NewLoginCommand() *cobra.Command {
	var (
		apiEndpoint  string
		token        string
		clientID     string
		clientSecret string
		tokenURL     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to Kore",
		Long: `Authenticate with a Kore API endpoint.

Either pass an access token, or client credentials for an OAuth2
client_credentials grant. Without either, the token is prompted for.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config := loadConfig()

			if apiEndpoint == "" {
				apiEndpoint = config.API
			}

			if apiEndpoint == "" {
				apiEndpoint = prompt(cmd.InOrStdin(), cmd.OutOrStdout(), "API endpoint: ")
			}

			if apiEndpoint == "" {
				return constants.ErrNoAPIConfigured
			}

			config.API = normalizeEndpoint(apiEndpoint)
			config.TokenExpiresAt = nil

			switch {
			case clientID != "" && clientSecret != "":
				config.ClientID = clientID
				config.ClientSecret = clientSecret
				config.TokenURL = tokenURL
				config.Token = ""

				manager := auth.NewOAuth2TokenManager(oauth2Config(config))

				err := manager.RefreshToken(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to obtain token: %w", err)
				}

				if current := manager.Current(); current != nil {
					config.Token = current.AccessToken

					if !current.ExpiresAt.IsZero() {
						expiresAt := current.ExpiresAt
						config.TokenExpiresAt = &expiresAt
					}
				}

			default:
				if token == "" {
					var err error

					token, err = readSecret(cmd.OutOrStdout(), "Token: ")
					if err != nil {
						return err
					}
				}

				if token == "" {
					return constants.ErrNotAuthenticated
				}

				config.Token = token
			}

			err := saveConfigStruct(config)
			if err != nil {
				return err
			}

			viper.Set("api", config.API)
			viper.Set("token", config.Token)

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", config.API)

			return nil
		},
	}

	cmd.Flags().StringVarP(&apiEndpoint, "api", "a", "", "API endpoint URL")
	cmd.Flags().StringVar(&token, "token", "", "access token")
	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth2 client secret")
	cmd.Flags().StringVar(&tokenURL, "token-url", "", "OAuth2 token URL (default is API endpoint + /oauth/token)")

	return cmd
}

func prompt(in io.Reader, out io.Writer, label string) string {
	_, _ = fmt.Fprint(out, label)

	line, _ := bufio.NewReader(in).ReadString('\n')

	return strings.TrimSpace(line)
}

func readSecret(out io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(out, label)

	secret, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // Windows Handle type
	if err != nil {
		return "", fmt.Errorf("failed to read token: %w", err)
	}

	_, _ = fmt.Fprintln(out)

	return strings.TrimSpace(string(secret)), nil
}
