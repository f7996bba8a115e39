package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropDatabas3/consentgate/internal/config"
	"github.com/dropDatabas3/consentgate/internal/domain/repository"
	"github.com/dropDatabas3/consentgate/internal/store"
)

// seedApps is the demo topology: a frontend calling a banking API on the
// user's behalf.
var seedApps = map[string][]string{
	"frontend-app": nil,
	"banking-api":  {"withdraw", "deposit", "balance:read"},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Register the demo applications and capabilities",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context())
		},
	}
}

func runSeed(ctx context.Context) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Store.Driver == "memory" {
		return fmt.Errorf("seeding the memory store is pointless, configure postgres")
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	repos, err := store.New(ctx, store.Options{
		Driver: cfg.Store.Driver,
		DSN:    cfg.Store.DSN,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repos.Close()

	for name, caps := range seedApps {
		app, err := repos.Applications.Create(ctx, name)
		if errors.Is(err, repository.ErrConflict) {
			app, err = repos.Applications.GetByName(ctx, name)
		}
		if err != nil {
			return fmt.Errorf("application %s: %w", name, err)
		}

		for _, c := range caps {
			if err := repos.Applications.AddCapability(ctx, app.ID, c); err != nil && !errors.Is(err, repository.ErrConflict) {
				return fmt.Errorf("capability %s on %s: %w", c, name, err)
			}
		}
		fmt.Printf("seeded %s (%d capabilities)\n", name, len(caps))
	}
	return nil
}
