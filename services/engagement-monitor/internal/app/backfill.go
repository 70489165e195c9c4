package app

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/truesoul/outreach/internal/db"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Classify historical messages",
	Long:  "Lists all messages within a trailing day-window for every active sender and runs them through the same classification path as the live cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		mon, _, err := buildMonitor(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		return mon.Backfill(ctx, viper.GetInt("backfill.days_back"))
	},
}

func init() {
	backfillCmd.Flags().Int("days-back", 3, "Lookback window in days")
	viper.BindPFlag("backfill.days_back", backfillCmd.Flags().Lookup("days-back"))

	rootCmd.AddCommand(backfillCmd)
}
