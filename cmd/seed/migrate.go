package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"credentialing/api/internal/store"
)

var (
	migrationsDir string
	rollbackSteps int
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or revert schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply every pending migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := store.Migrate(cmd.Context(), db, migrationsDir)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Println("schema is up to date")
		}
		for _, version := range applied {
			fmt.Printf("applied %s\n", version)
		}
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Revert the most recent migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if rollbackSteps < 1 {
			return fmt.Errorf("--steps must be at least 1")
		}
		_, db, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		reverted, err := store.Rollback(cmd.Context(), db, migrationsDir, rollbackSteps)
		if err != nil {
			return err
		}
		for _, version := range reverted {
			fmt.Printf("reverted %s\n", version)
		}
		return nil
	},
}

func init() {
	migrateCmd.PersistentFlags().StringVar(&migrationsDir, "dir", cfg.MigrationsDir, "Directory holding NNNN_name.{up,down}.sql files")
	migrateDownCmd.Flags().IntVar(&rollbackSteps, "steps", 1, "Number of migrations to revert")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd)
	rootCmd.AddCommand(migrateCmd)
}
