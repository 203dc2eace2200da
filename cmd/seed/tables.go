package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"credentialing/api/internal/fields"
	"credentialing/api/internal/seed"
)

func tableCommand(use, short string, tables ...string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), tables)
		},
	}
	cmd.Flags().Int64Var(&seedValue, "seed", 42, "PRNG seed; the same seed and providers give the same rows")
	cmd.Flags().IntVar(&batchSize, "batch-size", seed.DefaultBatchSize, "Rows per insert statement (at most 100)")
	return cmd
}

func runSeed(ctx context.Context, tables []string) error {
	reg, err := fields.Default()
	if err != nil {
		return fmt.Errorf("load field configuration: %w", err)
	}
	opts, err := seed.OptionsFrom(reg)
	if err != nil {
		return err
	}
	st, db, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	runner := seed.NewRunner(st, opts, logger, batchSize)
	failed := 0
	for _, table := range tables {
		result, err := runner.Run(ctx, table, seedValue)
		if err != nil {
			return err
		}
		failed += result.FailedBatches
		fmt.Printf("%s: inserted %d of %d rows for %d providers\n", table, result.Inserted, result.Generated, result.Providers)
	}
	if failed > 0 {
		return fmt.Errorf("%d batch(es) failed, see log for details", failed)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(
		tableCommand("dea-licenses", "Seed DEA registrations", seed.TableDEALicenses),
		tableCommand("state-licenses", "Seed state medical licenses", seed.TableStateLicenses),
		tableCommand("controlled-substance-licenses", "Seed state controlled substance licenses", seed.TableControlledSubstance),
		tableCommand("all", "Seed every license table", seed.Tables...),
	)
}
