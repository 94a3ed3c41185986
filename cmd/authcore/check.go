package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCheckCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the full engine configuration, including signing keys",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(); err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			cfg, err := a.cfg.Engine()
			if err != nil {
				return fmt.Errorf("engine config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "issuer:       %s\n", cfg.Tokens.Issuer)
			fmt.Fprintf(out, "access ttl:   %s\n", cfg.Tokens.AccessTTL)
			fmt.Fprintf(out, "refresh ttl:  %s\n", cfg.Tokens.RefreshTTL)
			fmt.Fprintf(out, "otp ttl:      %s\n", cfg.OTP.TTL)
			fmt.Fprintf(out, "store driver: %s\n", a.cfg.Store.Driver)
			return nil
		},
	}
}
