package main

import (
	"fmt"

	"reelgate/internal/core/services"
	"reelgate/internal/infrastructure/storage"

	"github.com/spf13/cobra"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Copy documents to and from object storage",
		Long: `Backups hold every video, user, page and the theme as one JSON object
under backups/ in the configured object storage. Clip files are not copied.`,
	}
	cmd.AddCommand(newBackupCreateCmd(), newBackupRestoreCmd())
	return cmd
}

func openBackupService(cmd *cobra.Command) (*services.BackupService, *store, error) {
	st, err := openStore(cmd)
	if err != nil {
		return nil, nil, err
	}
	objects, err := storage.NewFromConfig(cmd.Context(), st.cfg)
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("open object storage: %w", err)
	}
	return services.NewBackupService(services.BackupRepositories{
		Videos: st.repos.Videos,
		Users:  st.repos.Users,
		Theme:  st.repos.Theme,
		Pages:  st.repos.Pages,
	}, objects, st.log), st, nil
}

func newBackupCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create",
		Short: "Write a backup and print its key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backups, st, err := openBackupService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			key, err := backups.Create(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	opts := services.DefaultRestoreOptions()
	var skip []string

	cmd := &cobra.Command{
		Use:   "restore <name>",
		Short: "Apply a backup; existing documents are kept unless --overwrite",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, collection := range skip {
				switch collection {
				case "videos":
					opts.RestoreVideos = false
				case "users":
					opts.RestoreUsers = false
				case "theme":
					opts.RestoreTheme = false
				case "pages":
					opts.RestorePages = false
				default:
					return fmt.Errorf("unknown collection %q", collection)
				}
			}

			backups, st, err := openBackupService(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			report, err := backups.Restore(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d, overwritten %d, skipped %d\n",
				report.Created, report.Overwritten, report.Skipped)
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.OverwriteExisting, "overwrite", false, "replace documents that already exist")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "collections to leave alone (videos, users, theme, pages)")
	return cmd
}
