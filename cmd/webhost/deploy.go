package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newDeployCmd(c *cli) *cobra.Command {
	var projectName, description string

	cmd := &cobra.Command{
		Use:   "deploy PATH",
		Short: "Publish a site and record the deployment",
		Long: `Publish a site directory, a single HTML file or a .zip archive to IPFS and
record the deployment on the ledger. The command waits for the transaction to
confirm.

Example:
  webhost deploy ./dist --project docs --description "v2 docs"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := readSite(args[0])
			if err != nil {
				return err
			}
			if projectName == "" {
				projectName = filepath.Base(filepath.Clean(args[0]))
			}

			_, svcs, closeFn, err := c.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			if svcs.ReadOnly() {
				return errors.New("PRIVATE_KEY is not configured, cannot record deployments")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Publishing %d files (%s) as %q from %s\n",
				len(files), utils.FormatFileSize(ipfs.TotalSize(files)), projectName, utils.FormatAddress(svcs.Signer.From.Hex()))

			lastPercent := -1
			result, err := svcs.Launcher.Launch(cmd.Context(), services.LaunchArgs{
				Signer:      svcs.Signer,
				Files:       files,
				ProjectName: projectName,
				Description: description,
				OnProgress: func(p models.UploadProgress) {
					if percent := p.Percent(); percent/10 != lastPercent/10 {
						lastPercent = percent
						fmt.Fprintf(out, "  upload %3d%%  %s / %s\n", percent, utils.FormatFileSize(p.Transferred), utils.FormatFileSize(p.Total))
					}
				},
				OnStateChange: func(update services.SubmissionUpdate) {
					switch update.State {
					case models.SubmissionStateSubmitted:
						fmt.Fprintf(out, "  transaction %s sent, waiting for confirmation\n", utils.FormatTxHash(update.TxHash.Hex()))
					case models.SubmissionStateConfirmed:
						fmt.Fprintf(out, "  confirmed as deployment #%d\n", update.DeploymentID)
					}
				},
			})
			if err != nil {
				var launchErr *services.LaunchError
				if errors.As(err, &launchErr) && launchErr.LedgerStateUnknown() {
					fmt.Fprintf(cmd.ErrOrStderr(), "The deployment may still be recorded. Run `webhost list` and look for %s before deploying again.\n", launchErr.ContentHash)
				}
				return err
			}

			fmt.Fprintf(out, "\nDeployment #%d recorded in block %d\n", result.DeploymentID, result.BlockNumber)
			fmt.Fprintf(out, "  Content: %s\n", result.ContentHash)
			fmt.Fprintf(out, "  Tx:      %s\n", result.TxHash)
			for _, url := range result.URLs {
				fmt.Fprintf(out, "  %s\n", url)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectName, "project", "p", "", "Project name (defaults to the directory name)")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Deployment description")
	return cmd
}

// readSite loads a directory or a single file, expands zip archives and
// validates the result.
func readSite(path string) ([]ipfs.File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	var files []ipfs.File
	if info.IsDir() {
		files, err = utils.ReadSiteDirectory(path)
		if err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		files = []ipfs.File{{Name: filepath.Base(path), Data: data}}
	}

	files, err = utils.ExpandArchives(files)
	if err != nil {
		return nil, err
	}
	if validation := utils.ValidateFiles(files); !validation.Valid {
		return nil, validation.Err()
	}
	return files, nil
}
