package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"imageConverter/api/dto"
	"imageConverter/internal/jobs"
)

func newStatusCmd(a *app) *cobra.Command {
	var saveDir string

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, found, err := a.registry.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %s", jobs.ErrJobNotFound, args[0])
			}

			if saveDir != "" && job.Results != nil {
				if err := saveVariants(saveDir, job.Results); err != nil {
					return err
				}
			}

			if a.asJSON {
				return printJSON(cmd, dto.NewStatusResponse(job))
			}
			printJob(cmd, job)
			return nil
		},
	}

	cmd.Flags().StringVar(&saveDir, "save", "", "Write the converted variants of a completed job into this directory")
	return cmd
}

func printJob(cmd *cobra.Command, job *jobs.Job) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "id:         %s\n", job.ID)
	fmt.Fprintf(out, "status:     %s\n", job.Status)
	fmt.Fprintf(out, "file:       %s (%d bytes)\n", job.OriginalName, job.OriginalSize)
	fmt.Fprintf(out, "created:    %s\n", job.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(out, "updated:    %s\n", job.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"))
	if job.ProcessingTime != nil {
		fmt.Fprintf(out, "processing: %dms\n", *job.ProcessingTime)
	}
	if job.Error != "" {
		fmt.Fprintf(out, "error:      %s\n", job.Error)
	}
	if r := job.Results; r != nil {
		fmt.Fprintf(out, "thumbnail:  %s %dx%d (%d bytes)\n", r.Thumbnail.Filename, r.Thumbnail.Width, r.Thumbnail.Height, r.Thumbnail.Size)
		fmt.Fprintf(out, "full size:  %s %dx%d (%d bytes)\n", r.FullSize.Filename, r.FullSize.Width, r.FullSize.Height, r.FullSize.Size)
		fmt.Fprintf(out, "gps:        %t\n", r.PreservedMetadata.HasGPS)
		if r.PreservedMetadata.HasTimestamp {
			fmt.Fprintf(out, "taken:      %s\n", r.PreservedMetadata.Timestamp)
		}
	}
}

func saveVariants(dir string, r *jobs.Results) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, v := range []jobs.Variant{r.Thumbnail, r.FullSize} {
		path := filepath.Join(dir, filepath.Base(v.Filename))
		if err := os.WriteFile(path, v.Data, 0o644); err != nil {
			return fmt.Errorf("failed to save %s: %w", v.Filename, err)
		}
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
