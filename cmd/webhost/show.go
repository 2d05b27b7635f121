package main

import (
	"fmt"
	"strconv"

	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show one deployment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid deployment id %q", args[0])
			}

			_, svcs, closeFn, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			d, err := svcs.Deployments.GetDeployment(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Deployment #%d\n", d.ID)
			fmt.Fprintf(out, "  Project:     %s\n", d.ProjectName)
			fmt.Fprintf(out, "  Description: %s\n", d.Description)
			fmt.Fprintf(out, "  Owner:       %s\n", d.Owner.Hex())
			fmt.Fprintf(out, "  Version:     %d\n", d.Version)
			fmt.Fprintf(out, "  Content:     %s\n", d.ContentHash)
			fmt.Fprintf(out, "  Deployed:    %s (%s)\n", utils.FormatTimestamp(d.Timestamp), utils.FormatAge(d.Timestamp))
			fmt.Fprintln(out, "  Gateways:")
			for _, url := range svcs.Gateways.AllURLs(d.ContentHash) {
				fmt.Fprintf(out, "    %s\n", url)
			}
			return nil
		},
	}
}
