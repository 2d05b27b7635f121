package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newWatchCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print deployments as they are recorded",
		Long: `Follow WebsiteDeployed events from the contract and print each one. Events
are also written to the local index. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			_, svcs, closeFn, err := c.connect(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			stopHooks, err := server.StartHooks(ctx, svcs)
			if err != nil {
				return err
			}
			defer stopHooks()

			out := cmd.OutOrStdout()
			unsubscribe, err := svcs.Events.Subscribe(ctx, func(event models.DeploymentEvent) {
				fmt.Fprintf(out, "#%d  %s  %s  block %d  tx %s\n",
					event.ID,
					utils.FormatAddress(event.Owner.Hex()),
					event.ContentHash,
					event.BlockNumber,
					utils.FormatTxHash(event.TxHash.Hex()),
				)
			})
			if err != nil {
				return err
			}
			defer unsubscribe()

			fmt.Fprintf(out, "Watching %s for deployments...\n", svcs.Ledger.ContractAddress().Hex())
			<-ctx.Done()
			return nil
		},
	}
}
