package cmd

import (
	"slotwatch/logger"
	"slotwatch/snapshot"
	"slotwatch/types"

	"github.com/spf13/cobra"
)

var resetNetwork string

var resetCmd = cobra.Command{
	Use:   "reset",
	Short: "Delete stored slot snapshots",
	Run: func(cmd *cobra.Command, args []string) {
		settings, err := loadSettings()
		if err != nil {
			logger.GlobalLogger.Error("Invalid configuration", "err", err)
			return
		}

		networks := types.Networks
		if resetNetwork != "" {
			n, err := types.ParseNetwork(resetNetwork)
			if err != nil {
				logger.GlobalLogger.Error("Cannot reset", "err", err)
				return
			}
			networks = []types.Network{n}
		}

		store := snapshot.NewStore(settings.DataDir, settings.RetentionCap, logger.GlobalLogger)
		for _, n := range networks {
			logger.GlobalLogger.Info("Removing snapshots...", "network", n, "data_dir", settings.DataDir)
			removed, err := store.Reset(n)
			if err != nil {
				logger.GlobalLogger.Error("Failed to remove snapshots", "network", n, "removed", removed, "err", err)
				continue
			}
			logger.GlobalLogger.Info("Removed snapshots", "network", n, "removed", removed)
		}
		logger.GlobalLogger.Info("Done.")
	},
}

func init() {
	resetCmd.Flags().StringVarP(&resetNetwork, "network", "n", "", "(Optional) only reset this network")
	RootCmd.AddCommand(&resetCmd)
}
