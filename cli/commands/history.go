package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"imageConverter/internal/jobs"
	"imageConverter/worker/repository"
)

type outcomeLister interface {
	ListOutcomes(ctx context.Context, status jobs.Status, limit int) ([]repository.Outcome, error)
}

func newHistoryCmd(a *app) *cobra.Command {
	var (
		databaseURL string
		status      string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished jobs from the Postgres archive",
		Args:  cobra.NoArgs,
		// reads Postgres only
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			lister := a.archive
			if lister == nil {
				if databaseURL == "" {
					return fmt.Errorf("--database-url or DATABASE_URL is required")
				}
				pool, err := pgxpool.New(cmd.Context(), databaseURL)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				defer pool.Close()
				lister = repository.NewPostgresArchive(pool)
			}

			outcomes, err := lister.ListOutcomes(cmd.Context(), jobs.Status(status), limit)
			if err != nil {
				return err
			}

			if a.asJSON {
				return printJSON(cmd, outcomes)
			}
			out := cmd.OutOrStdout()
			for _, o := range outcomes {
				line := fmt.Sprintf("%s  %-9s  %s  %s", o.ID, o.Status, o.CompletedAt.Format("2006-01-02T15:04:05Z07:00"), o.OriginalName)
				if o.ProcessingTimeMs != nil {
					line += fmt.Sprintf("  %dms", *o.ProcessingTimeMs)
				}
				if o.Error != nil {
					line += fmt.Sprintf("  error=%q", *o.Error)
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	cmd.Flags().StringVar(&status, "status", "", "Only completed or failed jobs")
	cmd.Flags().IntVar(&limit, "limit", 50, "Max rows")
	return cmd
}
