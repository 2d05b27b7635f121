package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [OWNER]",
		Short: "Show deployment counters",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, svcs, closeFn, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			var owner common.Address
			if len(args) > 0 || svcs.Signer != nil {
				if owner, err = resolveOwner(svcs, args); err != nil {
					return err
				}
			}

			stats := svcs.Deployments.Stats(cmd.Context(), owner)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total deployments: %d\n", stats.Total)
			if owner != (common.Address{}) {
				fmt.Fprintf(out, "Owner %s: %d deployments, latest version %d\n", utils.FormatAddress(owner.Hex()), stats.OwnerCount, stats.LatestVersion)
			}
			if stats.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "Warning: some counters could not be read and are shown as 0")
			}
			return nil
		},
	}
}
