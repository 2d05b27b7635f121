package main

import (
	"fmt"

	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newURLsCmd(c *cli) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "urls CID",
		Short: "Print gateway URLs for a content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cid := args[0]
			if !utils.IsValidCID(cid) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s does not look like a CID\n", cid)
			}

			// Gateways only need configuration, not a node connection.
			var gatewayList []string
			if cfg, err := c.loadConfig(c.envFile); err == nil {
				gatewayList = cfg.IPFSGateways
			}
			gateways := services.NewGatewayService(gatewayList, nil)

			out := cmd.OutOrStdout()
			for _, url := range gateways.AllURLs(cid) {
				fmt.Fprintln(out, url)
			}
			if check {
				if gateways.CheckAvailability(cmd.Context(), cid) {
					fmt.Fprintln(out, "available")
				} else {
					fmt.Fprintln(out, "not available yet")
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check that the first gateway serves the content")
	return cmd
}
