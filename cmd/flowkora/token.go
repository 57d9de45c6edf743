package main

import (
	"errors"
	"fmt"
	"time"

	"flowkora/config"
	"flowkora/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// tokenCmd mints a session token for local development, standing in for the
// external identity provider.
func tokenCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token [merchant-id]",
		Short: "Mint a development session token",
		Long: `Mint an HS256 session token signed with session.secret. Omit the
merchant id to generate a fresh one.

Examples:
  flowkora token
  flowkora token 6f1c2a9e-56b8-4f7f-9a43-2d3c1b0e8f11`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Session.Secret == "" {
				return errors.New("session.secret is not set")
			}

			merchantID := uuid.New()
			if len(args) == 1 {
				merchantID, err = uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid merchant id: %w", err)
				}
			}

			tokens := service.NewJWTSessionTokenService(cfg.Session.Secret, cfg.Session.Expiry, cfg.Session.Issuer)
			token, expiresAt, err := tokens.Issue(merchantID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "merchant_id: %s\n", merchantID)
			fmt.Fprintf(out, "expires_at:  %s\n", expiresAt.UTC().Format(time.RFC3339))
			fmt.Fprintf(out, "token:       %s\n", token)
			return nil
		},
	}
	return cmd
}
