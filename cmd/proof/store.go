package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Veraticus/the-proof-must-flow/internal/cli"
	"github.com/Veraticus/the-proof-must-flow/internal/common"
	"github.com/Veraticus/the-proof-must-flow/internal/config"
	"github.com/Veraticus/the-proof-must-flow/internal/storage"
)

func storeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Maintain the local object store",
		Long: `Commands for the SQLite object store used when store.driver is sqlite.
An S3 bucket needs no local maintenance.`,
	}

	cmd.AddCommand(storeMigrateCmd())
	cmd.AddCommand(storeBackupCmd())
	cmd.AddCommand(storeDeleteCmd())

	return cmd
}

func storeMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the local store schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := localStoreConfig()
			if err != nil {
				return err
			}

			store, err := initSQLite(cmd.Context(), cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			fmt.Println(cli.FormatSuccess("Store schema is up to date: " + cfg.Store.SQLitePath))
			return nil
		},
	}
}

func storeBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup DEST",
		Short: "Write a consistent copy of the local store to DEST",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := localStoreConfig()
			if err != nil {
				return err
			}

			store, err := initSQLite(cmd.Context(), cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			dest, err := filepath.Abs(config.ExpandPath(args[0]))
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", args[0], err)
			}
			if err := store.Backup(cmd.Context(), dest); err != nil {
				return fmt.Errorf("failed to back up store: %w", err)
			}

			fmt.Println(cli.FormatSuccess("Backed up store to " + dest))
			return nil
		},
	}
}

func storeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete BUCKET KEY",
		Short: "Remove one object from the local store",
		Long: `Remove one object, such as a corrupt ledger document or a stale reference,
from the local store. The next write recreates it from scratch.`,
		Example: `  # Start the uniqueness ledger over
  proof store delete vanatensordlp verified_hashes/hashes.json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := localStoreConfig()
			if err != nil {
				return err
			}

			store, err := initSQLite(cmd.Context(), cfg.Store.SQLitePath)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := deleteStoredObject(cmd.Context(), store, args[0], args[1])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Println(cli.FormatInfo(fmt.Sprintf("Nothing stored at %s/%s", args[0], args[1])))
				return nil
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Deleted %s/%s", args[0], args[1])))
			return nil
		},
	}
}

// deleteStoredObject removes bucket/key and reports whether it existed.
func deleteStoredObject(ctx context.Context, store *storage.SQLiteStore, bucket, key string) (bool, error) {
	if _, err := store.GetObject(ctx, bucket, key); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up %s/%s: %w", bucket, key, err)
	}
	if err := store.DeleteObject(ctx, bucket, key); err != nil {
		return false, fmt.Errorf("failed to delete %s/%s: %w", bucket, key, err)
	}
	return true, nil
}

func localStoreConfig() (*config.Scoring, error) {
	cfg, err := loadScoring()
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver != config.DriverSQLite {
		return nil, common.NewUserError(
			fmt.Sprintf("store.driver is %q; this command only applies to the sqlite driver", cfg.Store.Driver),
			common.ErrInvalidConfig)
	}
	return cfg, nil
}
