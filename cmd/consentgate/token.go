package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentgate/internal/config"
	tokens "github.com/dropDatabas3/consentgate/internal/security/token"
)

func newTokenCmd() *cobra.Command {
	var (
		sub   string
		ttl   time.Duration
		admin bool
		name  string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a dev bearer token (requires auth.private_key)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flagConfig)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Auth.PrivateKey == "" {
				return fmt.Errorf("auth.private_key (or AUTH_PRIVATE_KEY) is required to mint tokens")
			}

			priv, err := tokens.ParsePrivateKey(cfg.Auth.PrivateKey)
			if err != nil {
				return fmt.Errorf("auth.private_key: %w", err)
			}

			extra := map[string]any{}
			if admin {
				extra["admin"] = true
			}
			if name != "" {
				extra["preferred_username"] = name
			}

			tok, err := tokens.MintEdDSA(priv, cfg.Auth.Issuer, sub, ttl, extra)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "u1", "subject (user id)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&admin, "admin", false, "set the admin claim")
	cmd.Flags().StringVar(&name, "username", "", "preferred_username claim")
	return cmd
}
