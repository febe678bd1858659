package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"todohabit/internal/config"
	"todohabit/internal/identity"
	"todohabit/internal/model"
)

// tokenCmd signs a bearer token with the configured secret, for local use.
func tokenCmd() *cobra.Command {
	var ident model.Identity
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ident.ID == "" {
				return fmt.Errorf("--user is required")
			}
			cfg, err := config.Load(configEnv, configDir)
			if err != nil {
				return err
			}
			if cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}
			token, err := identity.NewJWTProvider(cfg.JWT.Secret, cfg.JWT.Issuer).Issue(ident, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&ident.ID, "user", "u", "", "user id (token subject)")
	cmd.Flags().StringVar(&ident.Email, "email", "", "email claim")
	cmd.Flags().StringVar(&ident.DisplayName, "name", "", "display name claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
