package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/alarm-console/console/internal/app"
	"github.com/telhawk-systems/alarm-console/console/internal/output"
	"github.com/telhawk-systems/alarm-console/console/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Index generated alarms for demos and local testing",
	Long: `Generate alarms with their alarm events and raw events and bulk-index them
into the configured indices. Every alarm gets finished stages followed by one
stage that is still collecting events.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		alarms, _ := cmd.Flags().GetInt("alarms")
		events, _ := cmd.Flags().GetInt("events")
		stages, _ := cmd.Flags().GetInt("stages")
		batch, _ := cmd.Flags().GetInt("batch-size")
		seedValue, _ := cmd.Flags().GetInt64("seed")
		if err := requirePositive("alarms", alarms); err != nil {
			return err
		}

		return withApp(cmd, func(ctx context.Context, a *app.App, p *output.Printer) error {
			runner := seed.NewRunner(seed.Config{
				Alarms:         alarms,
				Stages:         stages,
				EventsPerStage: events,
				BatchSize:      batch,
				Indices:        a.Store.Indices(),
				Seed:           seedValue,
			}, a.Store, a.Logger)

			res, err := runner.Run(ctx)
			if err != nil {
				return fmt.Errorf("seeding failed: %w", err)
			}
			if p.Structured() {
				return p.Encode(res)
			}
			p.Success("Indexed %d alarms, %d alarm events and %d events", len(res.AlarmIDs), res.AlarmEvents, res.Events)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().Int("alarms", 10, "number of alarms")
	seedCmd.Flags().Int("events", 10, "events per finished stage")
	seedCmd.Flags().Int("stages", 3, "stages per alarm")
	seedCmd.Flags().Int("batch-size", 1000, "documents per bulk request")
	seedCmd.Flags().Int64("seed", 0, "random seed (0: random)")
}
