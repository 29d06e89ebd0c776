package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"transmissionbot/internal/bot"
	"transmissionbot/internal/config"
	"transmissionbot/internal/logger"
)

var (
	flagConfigFile string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "transmissionbot",
	Short: "Telegram bot for managing Transmission torrents",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(flagConfigFile)
		if err != nil {
			logger.Init("info")
			logger.GetLogger("main").WithError(err).Fatal("Failed to load configuration")
		}

		level := cfg.Log.Level
		if flagLogLevel != "" {
			level = flagLogLevel
		}
		logger.Init(level)
		log := logger.GetLogger("main")

		torrentBot, err := bot.NewBot(cfg)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize bot")
		}

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

		go func() {
			if err := torrentBot.Start(); err != nil {
				log.WithError(err).Fatal("Bot stopped")
			}
		}()

		log.Info("Bot is now running, press CTRL-C to exit")

		<-signals
		log.Info("Shutting down")
		torrentBot.Stop()
	},
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "config.yml", "Config file path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
