package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imageConverter/api/service"
	"imageConverter/api/validation"
	"imageConverter/internal/events"
)

const defaultMaxFileSize = 50 << 20

func newSubmitCmd(a *app) *cobra.Command {
	var maxSize int64

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Queue an image file for conversion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			if _, err := validation.ValidateUpload(data, maxSize); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			svc := service.NewJobService(a.registry, a.queue, events.Nop{}, a.logger)
			job, err := svc.Submit(cmd.Context(), filepath.Base(args[0]), data)
			if err != nil {
				return err
			}

			if a.asJSON {
				return printJSON(cmd, map[string]any{"jobId": job.ID, "status": job.Status})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", job.ID, job.Status)
			return nil
		},
	}

	cmd.Flags().Int64Var(&maxSize, "max-size", defaultMaxFileSize, "Reject files larger than this many bytes")
	return cmd
}
