package commands

import (
	"fmt"
	"strings"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewAllocationsCommand creates the allocations command group.
func NewAllocationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "allocations",
		Aliases: []string{"allocation", "alloc"},
		Short:   "Manage resource allocations",
		Long:    "Show and change which teams may use a shared resource",
	}

	cmd.AddCommand(newAllocationsGetCommand())
	cmd.AddCommand(newAllocationsSetCommand())

	return cmd
}

func newAllocationsGetCommand() *cobra.Command {
	var team string

	cmd := &cobra.Command{
		Use:   "get KIND NAME",
		Short: "Show the allocation of a resource",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			allocation, err := client.Allocations(ownerTeam(team)).AllocationFor(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			if allocation == nil {
				return fmt.Errorf("%w: allocation %s", constants.ErrResourceNotFound, kore.AllocationName(args[0], args[1]))
			}

			return render(cmd.OutOrStdout(), allocation, func() error {
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Property", "Value")
				_ = table.Append("Name", allocation.Metadata.Name)
				_ = table.Append("Resource", allocation.Spec.Resource.Kind+"/"+allocation.Spec.Resource.Name)
				_ = table.Append("Summary", allocation.Spec.Summary)
				_ = table.Append("Teams", allocation.TeamsSummary())

				err := table.Render()
				if err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team owning the resource (default kore-admin)")

	return cmd
}

func newAllocationsSetCommand() *cobra.Command {
	var (
		team  string
		teams []string
	)

	cmd := &cobra.Command{
		Use:   "set KIND NAME",
		Short: "Allocate a resource to teams",
		Long:  `Allocate a resource to the given teams. Use --teams "*" for every team.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(teams) == 0 {
				return constants.ErrAtLeastOneTeamNeeded
			}

			owner := ownerTeam(team)

			client, err := newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			fetch, err := resourceFetcher(client, args[0], owner, args[1])
			if err != nil {
				return err
			}

			resource, err := fetch(cmd.Context())
			if err != nil {
				return err
			}

			if resource.IsEmpty() {
				return fmt.Errorf("%w: %s %s", constants.ErrResourceNotFound, args[0], args[1])
			}

			allocation, err := client.Allocations(owner).Allocate(cmd.Context(), resource, allocationTeams(teams))
			if err != nil {
				printFieldErrors(cmd, err)

				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Allocated %s %s to %s\n",
				resource.Kind, resource.Metadata.Name, allocation.TeamsSummary())

			return nil
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team owning the resource (default kore-admin)")
	cmd.Flags().StringSliceVar(&teams, "teams", nil, "teams allowed to use the resource")

	return cmd
}

func ownerTeam(team string) string {
	team = strings.TrimSpace(teamOrDefault(team))
	if team == "" {
		return constants.AdminTeam
	}

	return team
}
