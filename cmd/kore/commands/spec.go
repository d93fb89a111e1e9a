package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/koreclient"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// NewSpecCommand creates the spec command.
func NewSpecCommand() *cobra.Command {
	var tag string

	cmd := &cobra.Command{
		Use:   "spec",
		Short: "List API operations",
		Long:  "Load the API description document and list the operations it describes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), true)
			if err != nil {
				return err
			}

			catalogue, err := catalogueOf(client)
			if err != nil {
				return err
			}

			operations := make([]kore.OperationSpec, 0, len(catalogue.Operations))

			for _, id := range catalogue.OperationIDs() {
				op := catalogue.Operations[id]
				if tag != "" && !hasTag(op, tag) {
					continue
				}

				operations = append(operations, op)
			}

			return render(cmd.OutOrStdout(), operations, func() error {
				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("Operation", "Method", "Path", "Summary")

				for _, op := range operations {
					_ = table.Append(op.ID, op.Method, op.Path, op.Summary)
				}

				err := table.Render()
				if err != nil {
					return fmt.Errorf("failed to render table: %w", err)
				}

				return nil
			})
		},
	}

	cmd.Flags().StringVar(&tag, "tag", "", "only list operations with this tag")

	return cmd
}

// NewCallCommand creates the call command.
func NewCallCommand() *cobra.Command {
	var (
		params   []string
		bodyFile string
	)

	cmd := &cobra.Command{
		Use:   "call OPERATION_ID",
		Short: "Invoke an API operation",
		Long: `Invoke any operation listed by 'kore spec'.

Parameters fill path placeholders first; the rest are sent as query
parameters. A resource that does not exist prints "not found".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := &kore.OperationInput{}

			var err error

			input.Params, err = parseParams(params)
			if err != nil {
				return err
			}

			if bodyFile != "" {
				input.Body, err = readDocument(bodyFile)
				if err != nil {
					return err
				}
			}

			client, err := newClient(cmd.Context(), true)
			if err != nil {
				return err
			}

			body, err := client.Operations().Call(cmd.Context(), args[0], input)
			if err != nil {
				printFieldErrors(cmd, err)

				return err
			}

			if body == nil {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "not found")

				return nil
			}

			return renderRaw(cmd.OutOrStdout(), body)
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "operation parameter as key=value (repeatable)")
	cmd.Flags().StringVarP(&bodyFile, "body", "f", "", "request body file (YAML or JSON)")

	return cmd
}

func catalogueOf(client kore.Client) (*kore.Catalogue, error) {
	cataloguer, ok := client.(interface{ Catalogue() *kore.Catalogue })
	if !ok || cataloguer.Catalogue() == nil {
		return nil, fmt.Errorf("%w: %s", kore.ErrInvalidCatalogue, koreclient.CatalogueURL(loadConfig().API))
	}

	return cataloguer.Catalogue(), nil
}

func hasTag(op kore.OperationSpec, tag string) bool {
	for _, t := range op.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}

	return false
}

// printFieldErrors lists field-level validation failures on stderr.
func printFieldErrors(cmd *cobra.Command, err error) {
	var validationErr *kore.ValidationError
	if !errors.As(err, &validationErr) {
		return
	}

	for _, fe := range validationErr.FieldErrors {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %s\n", fe.Field, fe.Message)
	}
}
