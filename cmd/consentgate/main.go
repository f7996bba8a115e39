package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	flagConfig  string
	flagEnvFile string
)

func main() {
	root := &cobra.Command{
		Use:   "consentgate",
		Short: "Capability-scoped consent service for on-behalf-of delegation",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Missing .env is fine; env vars may come from the platform.
			_ = godotenv.Load(flagEnvFile)
		},
	}

	root.PersistentFlags().StringVarP(&flagConfig, "config", "c", envOr("CONSENTGATE_CONFIG", ""), "path to config.yaml")
	root.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "path to .env file")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSeedCmd())
	root.AddCommand(newTokenCmd())
	root.AddCommand(newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
