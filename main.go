package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"slotwatch/cmd"
	"slotwatch/config"
	"slotwatch/logger"
)

func initConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(config.ConfigPath)
	viper.AddConfigPath("$HOME/.slotwatch")

	if err := viper.MergeInConfig(); err != nil {
		logger.GlobalLogger.Warn("No config.yaml found, using .env and environment only", "err", err)
	}

	if err := godotenv.Load(config.ConfigPath + ".env"); err != nil {
		logger.GlobalLogger.Warn("No .env file loaded, using config.yaml and environment only", "err", err)
	}

	viper.AutomaticEnv()
}

func main() {
	initConfig()
	if err := cmd.RootCmd.Execute(); err != nil {
		logger.GlobalLogger.Error("Error executing command", "err", err)
	}

	logger.CloseAll()
}
