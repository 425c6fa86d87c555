package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"imageConverter/worker/service"
)

func newReapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reap",
		Short: "Fail processing jobs whose lease has expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reaper := service.NewReaper(a.registry, 0, nil, nil, a.logger)
			n, err := reaper.ReapOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reaped %d job(s)\n", n)
			return nil
		},
	}
}
