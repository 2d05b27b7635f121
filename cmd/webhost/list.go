package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newListCmd(c *cli) *cobra.Command {
	var sortOrder, project string

	cmd := &cobra.Command{
		Use:   "list [OWNER]",
		Short: "List deployments for an owner",
		Long: `List the deployments recorded for OWNER. Without OWNER, lists the deployments
of the configured PRIVATE_KEY.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := models.ParseSortOrder(sortOrder)
			if err != nil {
				return err
			}

			_, svcs, closeFn, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			owner, err := resolveOwner(svcs, args)
			if err != nil {
				return err
			}

			deployments, err := svcs.Deployments.ListForOwner(cmd.Context(), owner, services.ListOptions{Sort: order, ProjectName: project})
			if err != nil {
				return err
			}
			if len(deployments) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No deployments for %s\n", owner.Hex())
				return nil
			}
			return writeDeployments(cmd.OutOrStdout(), deployments)
		},
	}

	cmd.Flags().StringVarP(&sortOrder, "sort", "s", "newest", "Sort order: newest, oldest or version")
	cmd.Flags().StringVarP(&project, "project", "p", "", "Only show this project (case-insensitive)")
	return cmd
}

func resolveOwner(svcs *server.Services, args []string) (common.Address, error) {
	if len(args) > 0 {
		return utils.ParseAddress(args[0])
	}
	if svcs.Signer == nil {
		return common.Address{}, fmt.Errorf("OWNER is required when PRIVATE_KEY is not configured")
	}
	return svcs.Signer.From, nil
}

func writeDeployments(w io.Writer, deployments []models.Deployment) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROJECT\tVERSION\tCONTENT\tDEPLOYED\tDESCRIPTION")
	for _, d := range deployments {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\t%s\n",
			d.ID,
			utils.TruncateText(d.ProjectName, 24),
			d.Version,
			utils.FormatHash(d.ContentHash),
			utils.FormatAge(d.Timestamp),
			utils.TruncateText(d.Description, 40),
		)
	}
	return tw.Flush()
}
