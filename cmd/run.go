package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"slotwatch/db"
	"slotwatch/logger"
	"slotwatch/pipeline"
	"slotwatch/snapshot"

	"github.com/spf13/cobra"
)

var runOnce bool

var runCmd = cobra.Command{
	Use:   "run",
	Short: "Reconcile recent slots from ClickHouse and write slot snapshots on a fixed interval",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("run")

		settings, err := loadSettings()
		if err != nil {
			logger.PipelineLogger.Error("Invalid configuration", "err", err)
			return
		}
		if err := settings.RequireClickhouse(); err != nil {
			logger.PipelineLogger.Error("Invalid configuration", "err", err)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		ch, err := db.NewClickhouse(ctx, settings.Clickhouse, logger.PipelineLogger)
		if err != nil {
			logger.PipelineLogger.Error("Failed to connect to event source", "err", err)
			return
		}
		defer ch.Close()

		store := snapshot.NewStore(settings.DataDir, settings.RetentionCap, logger.PipelineLogger)
		p := pipeline.New(ch, store, settings, logger.PipelineLogger)

		logger.PipelineLogger.Info("Running cmd run", "once", runOnce, "interval", settings.RunInterval.String(),
			"data_dir", settings.DataDir, "retention_cap", settings.RetentionCap)

		if runOnce {
			p.RunAndLog(ctx)
			return
		}
		if err := p.Schedule(ctx, settings.RunInterval); err != nil {
			logger.PipelineLogger.Error("Error running pipeline schedule", "err", err)
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single reconciliation pass and exit")
	RootCmd.AddCommand(&runCmd)
}
