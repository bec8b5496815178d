package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

func newStatusCommand() *cobra.Command {
	var journalLimit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the migration's current state",
		Long: `Print the persisted migration state: status, current step, progress,
completed and failed steps, tracked resources, and the most recent audit
journal entries.`,
		Example: `  # Human-readable summary
  openmigrate status

  # Full state document
  openmigrate status --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			st, err := rt.orchestrator.LoadPersisted(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}

			fmt.Printf("Migration:    %s\n", st.ID)
			fmt.Printf("Status:       %s\n", st.Status)
			fmt.Printf("Current step: %s (%.0f%%)\n", st.CurrentStep, engine.Progress(st.CurrentStep))
			fmt.Printf("Started:      %s\n", st.StartedAt.Format("2006-01-02 15:04:05"))
			if st.EndTime != nil {
				fmt.Printf("Ended:        %s\n", st.EndTime.Format("2006-01-02 15:04:05"))
			}

			fmt.Printf("\nCompleted steps (%d):\n", len(st.CompletedSteps))
			for _, step := range st.CompletedSteps {
				fmt.Printf("  - %s\n", step)
			}
			if len(st.FailedSteps) > 0 {
				fmt.Printf("\nFailed steps (%d):\n", len(st.FailedSteps))
				for _, failed := range st.FailedSteps {
					fmt.Printf("  - %s: %s\n", failed.Step, failed.Error)
				}
			}

			if len(st.Resources) > 0 {
				fmt.Printf("\nResources: %d tracked, %d unresolved, %d critical, %d drifted\n",
					len(st.Resources),
					len(st.UnresolvedResources()),
					len(st.CriticalResources()),
					len(st.DriftedResources()))
			}

			if rt.journal != nil {
				entries, err := rt.journal.Recent(ctx, st.ID, journalLimit)
				if err != nil {
					return err
				}
				if len(entries) > 0 {
					fmt.Printf("\nRecent activity:\n")
					for _, entry := range entries {
						fmt.Printf("  %s  %-20s %s\n",
							entry.Timestamp.Format("2006-01-02 15:04:05"),
							entry.Kind,
							entry.Message)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().IntVar(&journalLimit, "journal-entries", 10, "number of journal entries to show")

	return cmd
}
