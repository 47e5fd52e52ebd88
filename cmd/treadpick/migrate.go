package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/treadpick/infrastructure/store"
	"github.com/ahrav/treadpick/internal/logging"
)

func migrateCmd(load configLoader) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the candidate and feedback tables, optionally loading a dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Source.Kind == "file" {
				return fmt.Errorf("migrate needs a database source; source.kind is %q", cfg.Source.Kind)
			}
			ctx := cmd.Context()

			db, err := store.Open(ctx, cfg.Source.Kind, cfg.Source.DSN)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			tables := store.Tables{Candidates: cfg.Source.Table, Feedback: cfg.Feedback.Table}
			if err := store.Migrate(ctx, db, tables); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			logging.Info().Str("driver", cfg.Source.Kind).Msg("tables ready")

			if cfg.Feedback.Kind != "log" && cfg.FeedbackDSN() != cfg.Source.DSN {
				fdb, err := store.Open(ctx, cfg.Feedback.Kind, cfg.FeedbackDSN())
				if err != nil {
					return err
				}
				defer func() { _ = fdb.Close() }()
				if err := store.Migrate(ctx, fdb, tables); err != nil {
					return fmt.Errorf("migrating feedback database: %w", err)
				}
			}

			if seed == "" {
				return nil
			}
			data, err := os.ReadFile(seed)
			if err != nil {
				return fmt.Errorf("reading seed: %w", err)
			}
			candidates, err := store.ParseDataset(data)
			if err != nil {
				return err
			}
			if err := store.InsertCandidates(ctx, db, cfg.Source.Table, candidates); err != nil {
				return fmt.Errorf("seeding: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d candidates\n", len(candidates))
			return err
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "YAML dataset to upsert into the candidate table")
	return cmd
}
