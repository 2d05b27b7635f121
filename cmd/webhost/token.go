package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/api/middleware"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
	"github.com/spf13/cobra"
)

func newTokenCmd(c *cli) *cobra.Command {
	var scopes []string
	var audience []string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token SUBJECT",
		Short: "Issue an API token signed with JWT_SECRET",
		Long: `Issue a bearer token for the HTTP API and the /mcp endpoint. The token is
signed with JWT_SECRET and grants the deploy scope unless --scope is given.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig(c.envFile)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not configured")
			}

			token, err := utils.NewJwtAuthenticator(cfg.JWTSecret).IssueToken(args[0], audience, scopes, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", []string{middleware.ScopeDeploy}, "Scopes to grant")
	cmd.Flags().StringSliceVar(&audience, "audience", nil, "Token audience")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Token lifetime")
	return cmd
}
