package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/ariefcatur/go-storefront/internal/config"
	"github.com/ariefcatur/go-storefront/internal/invoice"
)

type queueAPI interface {
	Stats() (invoice.QueueStats, error)
	Dead(limit int) ([]invoice.DeadJob, error)
	Retry(id string) error
}

func openInspector() (queueAPI, func() error) {
	cfg := config.Load()
	in := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.QueueRedisAddr, Password: cfg.RedisPassword})
	return invoice.NewInspector(in), in.Close
}

func queueCmd(open func() (queueAPI, func() error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the invoice job queue",
	}
	cmd.PersistentFlags().BoolP("json", "j", false, "Output as JSON")

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show invoice queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeFn := open()
			defer closeFn()

			st, err := q.Stats()
			if err != nil {
				return fmt.Errorf("queue stats: %w", err)
			}
			if asJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), st)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "queue\t%s\n", st.Queue)
			fmt.Fprintf(tw, "pending\t%d\n", st.Pending)
			fmt.Fprintf(tw, "active\t%d\n", st.Active)
			fmt.Fprintf(tw, "scheduled\t%d\n", st.Scheduled)
			fmt.Fprintf(tw, "retry\t%d\n", st.Retry)
			fmt.Fprintf(tw, "dead\t%d\n", st.Archived)
			fmt.Fprintf(tw, "processed today\t%d\n", st.Processed)
			fmt.Fprintf(tw, "failed today\t%d\n", st.Failed)
			return tw.Flush()
		},
	})

	dead := &cobra.Command{
		Use:   "dead",
		Short: "List invoice jobs that exhausted their retries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			q, closeFn := open()
			defer closeFn()

			jobs, err := q.Dead(limit)
			if err != nil {
				return fmt.Errorf("dead jobs: %w", err)
			}
			if asJSON(cmd) {
				return printJSON(cmd.OutOrStdout(), jobs)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no dead jobs")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tORDER\tRETRIED\tLAST ERROR")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", j.ID, j.OrderID, j.Retried, j.MaxRetry, oneLine(j.LastError))
			}
			return tw.Flush()
		},
	}
	dead.Flags().IntP("limit", "n", 20, "Maximum results")
	cmd.AddCommand(dead)

	cmd.AddCommand(&cobra.Command{
		Use:   "retry [task-id]",
		Short: "Move a dead invoice job back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, closeFn := open()
			defer closeFn()

			if err := q.Retry(args[0]); err != nil {
				return fmt.Errorf("retry %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s\n", args[0])
			return nil
		},
	})
	return cmd
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 80 {
		return s[:77] + "..."
	}
	return s
}
