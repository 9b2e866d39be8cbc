package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/recipe-snap/internal/app"
	"github.com/suPer8Hu/recipe-snap/internal/config"
	"github.com/suPer8Hu/recipe-snap/internal/logging"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:          "recipectl",
	Short:        "Operator tooling for the recipe-snap backend",
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
		if configFile != "" {
			_ = os.Setenv("CONFIG_FILE", configFile)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "YAML config file (overrides CONFIG_FILE)")
}

// openApp loads config and connects storage without a recognition provider.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logging.New(cfg.Log)
	return app.New(ctx, cfg, log, false)
}
