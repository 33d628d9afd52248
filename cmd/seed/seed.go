// Package seed contains the directory seeding command.
package seed

import (
	"context"

	"github.com/spf13/cobra"

	"spendsense/pipeline/cmd/root"
	"spendsense/pipeline/internal/directory"
	"spendsense/pipeline/internal/store"
)

var (
	rulesFile   string
	bucketsFile string
)

// Cmd is the seed command.
var Cmd = &cobra.Command{
	Use:   "seed",
	Short: "Load seed merchant rules and bucket mappings into the directory",
	Long: `Load the YAML seed rule file and category bucket mapping into the
merchant directory. Patterns that already exist are left untouched, so
seeding is safe to repeat.`,
	RunE: run,
}

func init() {
	Cmd.Flags().StringVarP(&rulesFile, "rules", "r", "", "Seed rules YAML file (defaults to config)")
	Cmd.Flags().StringVarP(&bucketsFile, "buckets", "b", "", "Category bucket YAML file (defaults to config)")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if rulesFile == "" {
		rulesFile = root.Cfg.Data.RulesFile
	}
	if bucketsFile == "" {
		bucketsFile = root.Cfg.Data.BucketsFile
	}

	st, err := store.Open(root.Cfg.Data.DatabasePath, root.Log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	_, err = directory.Seed(ctx, st, rulesFile, bucketsFile, root.Log)
	return err
}
