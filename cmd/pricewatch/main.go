package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/traviscua/pricewatch/internal/config"
)

var rootCmd = &cobra.Command{
	Use:          "pricewatch",
	Short:        "Daily GPU/RAM retail price tracker",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(crawlCmd)
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads .env, the yaml config and configures logging.
func loadConfig() (*config.Config, error) {
	// A missing .env is fine; environment variables may come from elsewhere.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return cfg, nil
}
