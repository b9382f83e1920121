package cmd

import (
	"slotwatch/config"
	"slotwatch/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	logLevel string
	quiet    bool
)

var RootCmd = &cobra.Command{
	Use:   "slotwatch",
	Short: "Track produced, missed and reorged beacon slots per network and client",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			logger.SetConsoleEnabled(false)
		}
		if logLevel != "" {
			logger.SetLevel(logLevel)
		}
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	RootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "log to files only")
}

// loadSettings resolves the settings once for the command being run
func loadSettings() (*config.Settings, error) {
	return config.Load(viper.GetViper())
}
