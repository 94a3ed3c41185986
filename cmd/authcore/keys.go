package main

import (
	"fmt"

	"github.com/MrEthical07/authcore/internal"
	"github.com/spf13/cobra"
)

var generatedKeys = []string{
	"AUTHCORE_TOKENS_ACCESS_KEY",
	"AUTHCORE_TOKENS_REFRESH_KEY",
	"AUTHCORE_TOKENS_PASSWORD_RESET_KEY",
	"AUTHCORE_TOKENS_OTP_VERIFY_KEY",
	"AUTHCORE_OTP_PEPPER",
}

func newKeysCommand() *cobra.Command {
	keys := &cobra.Command{
		Use:   "keys",
		Short: "Manage signing keys",
	}

	var size int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Print a fresh, independent key per credential kind in dotenv format",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if size < 32 {
				return fmt.Errorf("--bytes must be at least 32")
			}
			for _, name := range generatedKeys {
				secret, err := internal.NewSecret(size)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, secret)
			}
			return nil
		},
	}
	generate.Flags().IntVar(&size, "bytes", 32, "random bytes per key")

	keys.AddCommand(generate)
	return keys
}
