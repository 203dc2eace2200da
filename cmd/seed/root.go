package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"credentialing/api/internal/config"
	"credentialing/api/internal/logging"
	"credentialing/api/internal/store"
)

var (
	cfg         = config.Load()
	databaseURL string
	seedValue   int64
	batchSize   int
	verbose     bool
	logger      = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the credentialing database with sample license data",
	Long: `seed replaces the rows of the license tables with reproducible sample data:
three to five rows for every provider, drawn from the same dropdown options the panels use.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		l, err := logging.New(level, "console")
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&databaseURL, "database-url", cfg.DatabaseURL, "Postgres connection string")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func openStore(ctx context.Context) (*store.PostgresStore, *sql.DB, error) {
	db, err := store.Open(ctx, databaseURL, store.Pool{MaxOpen: 4, MaxIdle: 2})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return store.NewPostgresStore(db), db, nil
}
