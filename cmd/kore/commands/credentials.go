package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/poll"
	"github.com/spf13/cobra"
)

// verificationDelay is the wait before each verification read.
var verificationDelay = constants.VerificationDelay

// NewCredentialsCommand creates the credentials command group.
func NewCredentialsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Manage cloud credentials",
		Long:    "Apply GKE, EKS and AKS credentials, verify them and allocate them to teams",
	}

	cmd.AddCommand(newCredentialsApplyCommand())

	return cmd
}

func newCredentialsApplyCommand() *cobra.Command {
	var (
		file            string
		team            string
		allocateTo      []string
		skipVerifyCheck bool
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a credentials manifest",
		Long: `Create or update credentials from a manifest, then wait for the API
to verify them. Verified credentials are allocated to the teams given with
--allocate-to ("*" for every team).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			resource, err := readManifest(file)
			if err != nil {
				return err
			}

			if !isCredentialsKind(resource.Kind) {
				return fmt.Errorf("%w: %s", constants.ErrUnsupportedKind, resource.Kind)
			}

			team = teamOrDefault(team)
			if team == "" {
				team = constants.AdminTeam
			}

			client, err := newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			credentials := client.Credentials(team, resource.Kind)

			saved, err := credentials.Update(cmd.Context(), resource)
			if err != nil {
				printFieldErrors(cmd, err)

				return err
			}

			if saved.IsEmpty() {
				saved = resource
			}

			name := resource.Metadata.Name
			verifier := poll.NewVerifier(
				func(ctx context.Context) (*kore.Resource, error) { return credentials.Get(ctx, name) },
				poll.WithNotifier(&consoleNotifier{out: cmd.OutOrStdout()}),
				poll.WithDelay(verificationDelay),
				poll.WithVerifyLogger(kore.NewSlogLogger(newLogger(cmd.ErrOrStderr()))),
			)

			result, err := verifier.Verify(cmd.Context(), saved, 0)
			if err != nil {
				return err
			}

			accepted := result.Resource

			if !result.Verified {
				if !skipVerifyCheck {
					return fmt.Errorf("%w: %s %s", constants.ErrVerificationFailed, resource.Kind, name)
				}

				accepted, err = result.ContinueWithoutVerification(cmd.Context())
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Continuing without verification")
			}

			if !cmd.Flags().Changed("allocate-to") {
				return nil
			}

			if accepted.IsEmpty() {
				accepted = saved
			}

			allocation, err := client.Allocations(team).Allocate(cmd.Context(), accepted, allocationTeams(allocateTo))
			if err != nil {
				printFieldErrors(cmd, err)

				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Allocated %s to %s\n", name, allocation.TeamsSummary())

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "credentials manifest (YAML or JSON)")
	cmd.Flags().StringVar(&team, "team", "", "team owning the credentials (default kore-admin)")
	cmd.Flags().StringSliceVar(&allocateTo, "allocate-to", nil, "teams allowed to use the credentials")
	cmd.Flags().BoolVar(&skipVerifyCheck, "continue-without-verification", false,
		"save the credentials even when they cannot be verified")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func isCredentialsKind(kind string) bool {
	switch strings.ToLower(kind) {
	case "gkecredentials", "ekscredentials", "akscredentials":
		return true
	default:
		return false
	}
}

// allocationTeams maps the flag value onto an allocation team list; "*" or
// an empty list means every team.
func allocationTeams(teams []string) []string {
	var out []string

	for _, team := range teams {
		team = strings.TrimSpace(team)
		if team == kore.AllTeams {
			return nil
		}

		if team != "" {
			out = append(out, team)
		}
	}

	return out
}

// consoleNotifier prints verification progress.
type consoleNotifier struct {
	out io.Writer
}

func (n *consoleNotifier) Verifying(resource *kore.Resource) {
	_, _ = fmt.Fprintf(n.out, "Verifying %s %s...\n", resource.Kind, resource.Metadata.Name)
}

func (n *consoleNotifier) Verified(resource *kore.Resource) {
	_, _ = fmt.Fprintf(n.out, "%s %s verified\n", resource.Kind, resource.Metadata.Name)
}

func (n *consoleNotifier) Failed(resource *kore.Resource, message string, details []string) {
	_, _ = fmt.Fprintln(n.out, message)

	for _, detail := range details {
		_, _ = fmt.Fprintf(n.out, "  - %s\n", detail)
	}
}
