package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newInitCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new migration",
		Long: `Create a fresh migration state from the configuration file and persist
it to the state directory.

The migration is not run; use 'openmigrate run' afterwards. Initializing
over an existing state snapshot backs the old snapshot up first.`,
		Example: `  # Initialize using ./openmigrate.yaml
  openmigrate init

  # Initialize from an explicit config file
  openmigrate init --config migrations/payments.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			st, err := rt.orchestrator.Initialize(ctx, rt.cfg.EngineConfig())
			if err != nil {
				return err
			}

			log.Info().Str("migration_id", st.ID).Msg("Migration initialized")
			fmt.Printf("Initialized migration %s\n", st.ID)
			fmt.Printf("State directory: %s\n", rt.store.Dir())
			return nil
		},
	}

	return cmd
}
