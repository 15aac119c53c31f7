package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/shelfkeep/internal/backup"
	"github.com/dukerupert/shelfkeep/internal/database"
)

var (
	flagPassphrase string
	flagRestoreTo  string
	flagKeep       int
)

func newBackupManager(h *database.Handle) *backup.Manager {
	return backup.NewManager(backup.Config{
		S3: backup.S3Config{
			Endpoint:  cfg.Backup.S3.Endpoint,
			Bucket:    cfg.Backup.S3.Bucket,
			Region:    cfg.Backup.S3.Region,
			AccessKey: cfg.Backup.S3.AccessKey,
			SecretKey: cfg.Backup.S3.SecretKey,
			Prefix:    cfg.Backup.S3.Prefix,
		},
		Passphrase: cfg.Backup.Passphrase,
		Keep:       cfg.Backup.Keep,
	}, h, logger, nil)
}

func passphrase() string {
	if flagPassphrase != "" {
		return flagPassphrase
	}
	return cfg.Backup.Passphrase
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Manage encrypted database snapshots",
}

var backupSnapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Upload an encrypted snapshot of the local database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		h := database.NewHandle(cfg.DBPath, logger)
		defer h.Close()
		if err := h.Initialize(ctx); err != nil {
			return err
		}
		mgr := newBackupManager(h)
		snap, err := mgr.Snapshot(ctx, passphrase())
		if err != nil {
			return err
		}
		if flagKeep > 0 {
			if _, err := mgr.Prune(ctx, flagKeep); err != nil {
				return err
			}
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), snap)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s (%d bytes)\n", snap.Key, snap.Size)
		return nil
	},
}

var backupListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr := newBackupManager(database.NewHandle(cfg.DBPath, logger))
		snaps, err := mgr.List(cmd.Context())
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(cmd.OutOrStdout(), snaps)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tSIZE\tCREATED")
		for _, s := range snaps {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Key, s.Size, s.CreatedAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <key>",
	Short: "Download, decrypt and install a snapshot",
	Long: `Restore downloads the snapshot stored under key, decrypts it and
verifies its integrity before replacing the target database. Stop any
running "shelfkeep serve" against the same file first.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dst := flagRestoreTo
		if dst == "" {
			dst = cfg.DBPath
		}
		mgr := newBackupManager(database.NewHandle(dst, logger))
		if err := mgr.Restore(cmd.Context(), args[0], passphrase(), dst); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "restored", args[0], "to", dst)
		return nil
	},
}

func init() {
	backupCmd.PersistentFlags().StringVar(&flagPassphrase, "passphrase", "", "encryption passphrase (default: backup.passphrase from config)")
	backupSnapshotCmd.Flags().IntVar(&flagKeep, "keep", 0, "prune to this many snapshots after uploading")
	backupRestoreCmd.Flags().StringVar(&flagRestoreTo, "to", "", "database file to write (default: db_path from config)")

	backupCmd.AddCommand(backupSnapshotCmd)
	backupCmd.AddCommand(backupListCmd)
	backupCmd.AddCommand(backupRestoreCmd)
}
