package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"slotwatch/api"
	"slotwatch/logger"
	"slotwatch/slot"
	"slotwatch/snapshot"

	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = cobra.Command{
	Use:   "serve",
	Short: "Serve stored slot snapshots over HTTP",
	Run: func(cmd *cobra.Command, args []string) {
		logger.InitLogs("serve")

		settings, err := loadSettings()
		if err != nil {
			logger.ApiLogger.Error("Invalid configuration", "err", err)
			return
		}
		addr := settings.ApiAddr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := snapshot.NewStore(settings.DataDir, settings.RetentionCap, logger.ApiLogger)
		srv := api.NewServer(store, slot.NewClocks(settings), logger.ApiLogger)
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			logger.ApiLogger.Error("Error serving API", "addr", addr, "err", err)
		}
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "(Optional) listen address, overrides API_ADDR")
	RootCmd.AddCommand(&serveCmd)
}
