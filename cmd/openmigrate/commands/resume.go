package commands

import (
	"github.com/spf13/cobra"
)

func newResumeCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume an interrupted migration",
		Long: `Load the persisted state snapshot and continue the migration from its
current step. Steps already completed are never re-executed; resuming a
completed migration does nothing and exits successfully.`,
		Example: `  # Continue after an interruption or a checkpoint pause
  openmigrate resume`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, dryRun)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			res, err := rt.orchestrator.Resume(ctx)
			if err != nil {
				return err
			}
			return reportRun(res, rt.orchestrator.State())
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what each remaining step would do without executing")

	return cmd
}
