package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fivetwenty-io/kore-client/internal/constants"
	"github.com/fivetwenty-io/kore-client/pkg/kore"
	"github.com/fivetwenty-io/kore-client/pkg/poll"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

// Bounds applied to the watch --interval flag.
var (
	minWatchInterval = constants.MinRefreshInterval
	maxWatchInterval = constants.MaxRefreshInterval
)

// clampInterval keeps a polling interval within the watch bounds.
func clampInterval(interval time.Duration) time.Duration {
	switch {
	case interval < minWatchInterval:
		return minWatchInterval
	case interval > maxWatchInterval:
		return maxWatchInterval
	default:
		return interval
	}
}

// resourceFetcher returns a FetchFunc reading one resource of the given kind.
// A 403 is reported as constants.ErrAccessDenied.
func resourceFetcher(client kore.Client, kind, team, name string) (poll.FetchFunc, error) {
	var get func(ctx context.Context, name string) (*kore.Resource, error)

	switch strings.ToLower(kind) {
	case "team", "teams":
		get = client.Teams().Get

	case "cluster", "clusters":
		if team == "" {
			return nil, constants.ErrTeamRequired
		}

		get = client.Clusters(team).Get

	case "plan", "plans":
		get = client.Plans().Get

	case "planpolicy", "planpolicies":
		get = client.PlanPolicies().Get

	case "gkecredentials", "ekscredentials", "akscredentials":
		if team == "" {
			team = constants.AdminTeam
		}

		get = client.Credentials(team, kind).Get

	default:
		return nil, fmt.Errorf("%w: %s", constants.ErrUnsupportedKind, kind)
	}

	return func(ctx context.Context) (*kore.Resource, error) {
		resource, err := get(ctx, name)
		if kore.IsForbidden(err) {
			return nil, fmt.Errorf("%w: %s %s: %w", constants.ErrAccessDenied, kind, name, err)
		}

		return resource, err
	}, nil
}

// NewGetCommand creates the get command.
func NewGetCommand() *cobra.Command {
	var team string

	cmd := &cobra.Command{
		Use:   "get KIND NAME",
		Short: "Show a resource",
		Long:  "Show a single resource: team, cluster, plan, planpolicy, gkecredentials, ekscredentials or akscredentials",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd.Context(), false)
			if err != nil {
				return err
			}

			fetch, err := resourceFetcher(client, args[0], teamOrDefault(team), args[1])
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

			return render(cmd.OutOrStdout(), resource, func() error {
				return renderResourceTable(cmd.OutOrStdout(), resource)
			})
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team owning the resource")

	return cmd
}

// NewWatchCommand creates the watch command.
func NewWatchCommand() *cobra.Command {
	var (
		team        string
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch KIND NAME",
		Short: "Watch a resource until it settles",
		Long: `Poll a resource on a fixed interval until its status is Success or
Failure, or until it is deleted. Interrupt to stop watching.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			client, err := newClient(ctx, false)
			if err != nil {
				return err
			}

			fetch, err := resourceFetcher(client, args[0], teamOrDefault(team), args[1])
			if err != nil {
				return err
			}

			resource, err := fetch(ctx)
			if err != nil {
				return err
			}

			if resource.IsEmpty() {
				return fmt.Errorf("%w: %s %s", constants.ErrResourceNotFound, args[0], args[1])
			}

			opts := []poll.RefreshOption{
				poll.WithInterval(clampInterval(interval)),
				poll.WithLogger(kore.NewSlogLogger(newLogger(cmd.ErrOrStderr()))),
				poll.OnUpdate(printStatus(cmd.OutOrStdout())),
				poll.OnComplete(printStatus(cmd.OutOrStdout())),
			}

			if metricsAddr != "" {
				metrics, shutdown, err := serveMetrics(metricsAddr, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				defer shutdown()

				opts = append(opts, poll.WithMetrics(metrics))
			}

			printStatus(cmd.OutOrStdout())(resource)

			refresher := poll.NewAutoRefresher(resource, fetch, opts...)
			refresher.Start(ctx)

			select {
			case <-refresher.Done():
			case <-ctx.Done():
				refresher.Stop()
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team owning the resource")
	cmd.Flags().DurationVar(&interval, "interval", constants.DefaultRefreshInterval, "polling interval, kept between 2s and 30s")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while watching")

	return cmd
}

func printStatus(out io.Writer) poll.Callback {
	return func(resource *kore.Resource) {
		status := resource.StatusValue()
		if resource.Deleted {
			status = "Deleted"
		}

		if status == "" {
			status = constants.NotAvailable
		}

		_, _ = fmt.Fprintf(out, "%s %s/%s: %s\n",
			time.Now().Format(constants.TimestampFormat), resource.Kind, resource.Metadata.Name, status)
	}
}

// serveMetrics exposes the poller counters on addr until shutdown is called.
func serveMetrics(addr string, errOut io.Writer) (*poll.Metrics, func(), error) {
	registry := prometheus.NewRegistry()

	metrics, err := poll.NewMetrics(registry)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: constants.ShortHTTPTimeout,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			_, _ = fmt.Fprintf(errOut, "metrics server: %v\n", err)
		}
	}()

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), constants.ShortHTTPTimeout)
		defer cancel()

		_ = server.Shutdown(ctx)
	}

	return metrics, shutdown, nil
}

func renderResourceTable(out io.Writer, resource *kore.Resource) error {
	table := tablewriter.NewWriter(out)
	table.Header("Property", "Value")

	_ = table.Append("Kind", resource.Kind)
	_ = table.Append("Name", resource.Metadata.Name)
	_ = table.Append("Namespace", resource.Metadata.Namespace)

	status := resource.StatusValue()
	if status == "" {
		status = constants.NotAvailable
	}

	_ = table.Append("Status", status)

	if resource.Metadata.CreationTimestamp != nil {
		_ = table.Append("Created", resource.Metadata.CreationTimestamp.Format(constants.TimestampFormat))
	}

	for _, detail := range resource.ConditionDetails() {
		_ = table.Append("Condition", detail)
	}

	err := table.Render()
	if err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}
