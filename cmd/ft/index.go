package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ehrlich-b/ft/internal/indexer"
	"github.com/ehrlich-b/ft/internal/storage"
)

func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "drive the append-log indexer",
	}
	cmd.AddCommand(indexRunCmd(), indexLagCmd())
	return cmd
}

func indexRunCmd() *cobra.Command {
	var consumerID string
	var out string
	var batchSize int
	var maxBatches int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "index pending append-log records into a JSONL output file",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePaths()
			if err != nil {
				return err
			}
			store, err := storage.Open(p.DBPath())
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			writer, err := indexer.OpenJSONLWriter(out)
			if err != nil {
				return err
			}
			defer writer.Close()

			cfg := indexer.DefaultConfig(consumerID)
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}
			cfg.MaxBatches = maxBatches

			result, err := indexer.Run(p.EventLogPath(), store, writer, cfg)
			if err != nil {
				return fmt.Errorf("index run: %w", err)
			}
			enc, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(enc))
			return nil
		},
	}
	cmd.Flags().StringVar(&consumerID, "consumer", "ft-index-cli", "indexer consumer id")
	cmd.Flags().StringVar(&out, "out", "index.jsonl", "JSONL output path")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "override the default batch size")
	cmd.Flags().IntVar(&maxBatches, "max-batches", 0, "stop after this many batches (0 = unlimited)")
	return cmd
}

func indexLagCmd() *cobra.Command {
	var consumerID string
	cmd := &cobra.Command{
		Use:   "lag",
		Short: "report how far a consumer trails the log head",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := resolvePaths()
			if err != nil {
				return err
			}
			store, err := storage.Open(p.DBPath())
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()

			snap, err := indexer.ComputeLag(p.EventLogPath(), store, consumerID)
			if err != nil {
				return err
			}
			fmt.Printf("log_head=%d indexer_ordinal=%d lag=%d\n", snap.LogHeadOrdinal, snap.IndexerOrdinal, snap.Lag())
			return nil
		},
	}
	cmd.Flags().StringVar(&consumerID, "consumer", "ft-index-cli", "indexer consumer id")
	return cmd
}
