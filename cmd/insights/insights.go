// Package insights contains the KPI reporting command.
package insights

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"spendsense/pipeline/cmd/common"
	"spendsense/pipeline/cmd/root"
)

var (
	userID string
	month  string
)

// Cmd is the insights command.
var Cmd = &cobra.Command{
	Use:   "insights",
	Short: "Print the KPI report for one month",
	Long:  `Compute and print the monthly KPI report (income, buckets, savings rate, wants gauge, top categories) as JSON.`,
	RunE:  run,
}

func init() {
	Cmd.Flags().StringVarP(&userID, "user", "u", "", "Owner user id (required)")
	Cmd.Flags().StringVarP(&month, "month", "m", "", "Month as YYYY-MM (defaults to current month)")
	_ = Cmd.MarkFlagRequired("user")
}

func run(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if month == "" {
		month = time.Now().Format("2006-01")
	}

	pipe, err := common.OpenPipeline(ctx, root.Cfg, root.Log)
	if err != nil {
		return err
	}
	defer func() { _ = pipe.Close() }()

	report, err := pipe.Insights.KPIs(ctx, userID, month)
	if err != nil {
		return err
	}

	decimal.MarshalJSONWithoutQuotes = true
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
