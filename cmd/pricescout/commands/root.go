package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/pricescout/backend/config"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "pricescout",
	Short: "pricescout aggregates product listings from e-commerce sites.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a config file (default: search for config.yaml).")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogging configures the global logrus logger: JSON in production, text otherwise
func setupLogging(cfg *config.Config) {
	if cfg.Server.Environment == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	log.SetOutput(os.Stdout)

	// validated by config.Load
	level, _ := log.ParseLevel(cfg.Log.Level)
	log.SetLevel(level)
}
