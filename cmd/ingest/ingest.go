// Package ingest contains the one-shot statement ingestion command.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"spendsense/pipeline/cmd/common"
	"spendsense/pipeline/cmd/root"
	"spendsense/pipeline/internal/logging"
)

var (
	inputFile string
	userID    string
	password  string
)

// Cmd is the ingest command.
var Cmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest one statement file into the transaction store",
	Long: `Ingest a statement file (CSV, XLSX or PDF), then parse and categorize
its batch. Prints the batch summary as JSON.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringVarP(&inputFile, "file", "i", "", "Statement file to ingest (required)")
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id (required)")
	Cmd.Flags().StringVarP(&password, "password", "p", "", "Password for protected files")
	_ = Cmd.MarkFlagRequired("file")
	_ = Cmd.MarkFlagRequired("user")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	data, err := os.ReadFile(inputFile) // #nosec G304 -- user-supplied input path
	if err != nil {
		return fmt.Errorf("reading %s: %w", inputFile, err)
	}

	pipe, err := common.OpenPipeline(ctx, root.Cfg, root.Log)
	if err != nil {
		return err
	}
	defer func() { _ = pipe.Close() }()

	result, err := pipe.Ingestor.Ingest(ctx, userID, filepath.Base(inputFile), data, password, nil)
	if err != nil {
		return err
	}
	if _, err := pipe.Parser.ParseBatch(ctx, result.BatchID); err != nil {
		return err
	}
	if _, err := pipe.Enricher.EnrichBatch(ctx, result.BatchID); err != nil {
		return err
	}

	root.Log.Info("Statement ingested and categorized",
		logging.Field{Key: logging.FieldBatch, Value: result.BatchID})

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
