package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backups",
		Short: "Manage state backups",
		Long: `List and prune the timestamped state backups written before every
snapshot overwrite.`,
	}

	cmd.AddCommand(newBackupsListCommand())
	cmd.AddCommand(newBackupsPruneCommand())

	return cmd
}

func newBackupsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List state backups, newest first",
		Example: `  openmigrate backups list`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			backups, err := rt.store.ListBackups(ctx)
			if err != nil {
				return err
			}
			if len(backups) == 0 {
				fmt.Println("No backups")
				return nil
			}

			for _, backup := range backups {
				fmt.Printf("  %s  %s\n", backup.CreatedAt.Format("2006-01-02 15:04:05"), backup.ID)
			}
			return nil
		},
	}
}

func newBackupsPruneCommand() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest backups",
		Example: `  # Keep the ten newest backups
  openmigrate backups prune

  # Keep only the three newest
  openmigrate backups prune --keep 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			rt, err := buildRuntime(ctx, false)
			if err != nil {
				return err
			}
			defer rt.close(ctx)

			if !cmd.Flags().Changed("keep") {
				keep = rt.cfg.State.KeepBackups
			}

			removed, err := rt.store.CleanupOldBackups(ctx, keep)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d backup(s), kept up to %d\n", removed, keep)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 10, "number of backups to keep")

	return cmd
}
