package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

func newRollbackCommand() *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll the migration back to an earlier step",
		Long: `Restore the most recent state backup positioned at or before the target
step and mark the migration rolled back. Steps at or after the target are
forgotten and will re-execute on the next run.

Without a suitable backup the live state is truncated in place, which
still leaves the migration re-runnable from the target step.`,
		Example: `  # Undo everything from compare onwards
  openmigrate rollback --to compare

  # Start over from the beginning
  openmigrate rollback --to scan`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			step, err := engine.ParseStep(target)
			if err != nil {
				return err
			}

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if _, err := rt.orchestrator.LoadPersisted(ctx); err != nil {
				return err
			}
			if err := rt.orchestrator.Rollback(ctx, step); err != nil {
				return err
			}

			st := rt.orchestrator.State()
			fmt.Printf("Rolled migration %s back to step %s\n", st.ID, step)
			fmt.Println("Run 'openmigrate resume' to re-execute from there")
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "to", "", "step to roll back to (required)")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}
