package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shelfkeep/internal/auth"
	"github.com/dukerupert/shelfkeep/internal/database"
	"github.com/dukerupert/shelfkeep/internal/queue"
	"github.com/dukerupert/shelfkeep/internal/reachability"
	"github.com/dukerupert/shelfkeep/internal/remote"
	"github.com/dukerupert/shelfkeep/internal/shopping"
	"github.com/dukerupert/shelfkeep/internal/store"
)

// syncEnv holds the components a one-shot command needs. Nothing is
// subscribed to the monitor, so sync work only happens when asked for.
type syncEnv struct {
	h        *database.Handle
	monitor  *reachability.Monitor
	queue    *queue.Queue
	shopping *shopping.Service
}

func openSyncEnv(ctx context.Context) (*syncEnv, error) {
	h := database.NewHandle(cfg.DBPath, logger)
	if err := h.Initialize(ctx); err != nil {
		h.Close()
		return nil, err
	}
	settings := store.NewSettingsStore(h)
	tokens := auth.NewTokenStore(settings)
	client := remote.NewClient(remote.Config{BaseURL: cfg.Remote.BaseURL, Timeout: cfg.Remote.Timeout}, tokens)

	var prober reachability.Prober = reachability.ProberFunc(func(context.Context) error {
		return errors.New("remote base URL not configured")
	})
	if url := cfg.ProbeURL(); url != "" {
		prober = reachability.NewHTTPProber(url, cfg.Reachability.Timeout)
	}
	monitor := reachability.NewMonitor(prober, cfg.Reachability.Interval, logger)

	q := queue.New(settings, client, monitor, logger)
	if err := q.Load(ctx); err != nil {
		q.Close()
		h.Close()
		return nil, err
	}
	svc := shopping.NewService(store.NewShoppingStore(h), client, monitor, tokens, logger)
	return &syncEnv{h: h, monitor: monitor, queue: q, shopping: svc}, nil
}

func (e *syncEnv) Close() {
	e.queue.Close()
	e.shopping.Close()
	e.h.Close()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the shopping list and drain the offline queue once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openSyncEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		online := env.monitor.Check(ctx)
		report, err := env.shopping.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile shopping list: %w", err)
		}
		drained, err := env.queue.Drain(ctx)
		if err != nil {
			return fmt.Errorf("drain queue: %w", err)
		}

		if flagJSON {
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"online":   online,
				"shopping": report,
				"queue":    drained,
			})
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "online: %v\n", online)
		if report.Skipped {
			fmt.Fprintf(out, "shopping: skipped (%s)\n", report.Reason)
		} else {
			fmt.Fprintf(out, "shopping: pulled %d, updated %d, pushed %d, unchanged %d, failed %d\n",
				report.Pulled, report.Updated, report.Pushed, report.Unchanged, len(report.Failures))
		}
		fmt.Fprintf(out, "queue: delivered %d, evicted %d, remaining %d\n",
			drained.Delivered, drained.Evicted, drained.Remaining)
		return nil
	},
}

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect or drain the offline mutation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending mutations in delivery order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := openSyncEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		pending := env.queue.Pending()
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), pending)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tKIND\tENDPOINT\tQUEUED\tRETRIES")
		for _, m := range pending {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", m.ID, m.Kind, m.Endpoint,
				time.UnixMilli(m.Timestamp).Format(time.RFC3339), m.RetryCount)
		}
		return tw.Flush()
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Deliver pending mutations if the remote is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := openSyncEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		env.monitor.Check(ctx)
		res, err := env.queue.Drain(ctx)
		if err != nil {
			return fmt.Errorf("drain queue: %w", err)
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), res)
		}
		if res.Offline {
			fmt.Fprintln(cmd.OutOrStdout(), "offline: nothing delivered")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "delivered %d, evicted %d, remaining %d\n",
			res.Delivered, res.Evicted, res.Remaining)
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueDrainCmd)
}
