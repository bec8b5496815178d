package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

func newRunCommand() *cobra.Command {
	var (
		dryRun bool
		single bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the migration",
		Long: `Drive the migration through its step sequence, persisting state after
every step. An existing state snapshot is picked up where it left off;
otherwise a new migration is initialized first.

With --dry-run every step reports what it would do without touching
resources; the narrative is printed afterwards. With --single exactly one
step executes, which is useful for walking a risky migration by hand.`,
		Example: `  # Run the whole pipeline
  openmigrate run

  # See what would happen without doing it
  openmigrate run --dry-run

  # Execute only the next step
  openmigrate run --single`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, dryRun)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if _, err := rt.orchestrator.LoadPersisted(ctx); err != nil {
				if !engine.IsNotFound(err) {
					return err
				}
				if _, err := rt.orchestrator.Initialize(ctx, rt.cfg.EngineConfig()); err != nil {
					return err
				}
			}

			mode := engine.RunModeAutomatic
			if single {
				mode = engine.RunModeSingle
			}

			res, err := rt.orchestrator.Run(ctx, mode)
			if err != nil {
				return err
			}

			for _, line := range rt.orchestrator.Narrative() {
				fmt.Println(line)
			}
			if single && res.Success {
				st := rt.orchestrator.State()
				fmt.Printf("Executed one step; next step is %s\n", st.CurrentStep)
				return nil
			}
			return reportRun(res, rt.orchestrator.State())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what each step would do without executing")
	cmd.Flags().BoolVar(&single, "single", false, "execute exactly one step and stop")

	return cmd
}
