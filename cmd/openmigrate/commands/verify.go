package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the migration's integrity",
		Long: `Run the verification probes against the persisted state: step ordering,
physical identifier resolution, and presence of generated code. The
command exits non-zero when any probe fails.`,
		Example: `  # Check a migration before importing
  openmigrate verify

  # Machine-readable report
  openmigrate verify --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if _, err := rt.orchestrator.LoadPersisted(ctx); err != nil {
				return err
			}
			report, err := rt.orchestrator.Verify(ctx)
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				for _, check := range report.Checks {
					mark := "ok"
					if !check.Passed {
						mark = "FAIL"
					}
					fmt.Printf("  [%s] %s: %s\n", mark, check.Name, check.Detail)
				}
			}

			if !report.Success {
				return fmt.Errorf("verification failed: %d check(s) did not pass", len(report.Errors))
			}
			fmt.Println("Verification passed")
			return nil
		},
	}

	return cmd
}
