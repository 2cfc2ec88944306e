package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/callflow/pkg/config"
	"github.com/ethpandaops/callflow/pkg/server"
)

const namespace = "callflow"

var (
	log        = logrus.New()
	configFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "callflow",
	Short: "Draws PlantUML sequence diagrams of Ethereum transactions.",
	Long: `Draws PlantUML sequence diagrams of Ethereum transactions from their
execution traces: every contract call, delegate call, create and
self-destruct, or the value transfers and balance changes they cause.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is ./config.yaml)")
}

// loadConfig reads the config file and applies its logging level.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logrus.ParseLevel(cfg.LoggingLevel)
	if err != nil {
		log.WithError(err).Warn("Invalid logging level, using info")

		level = logrus.InfoLevel
	}

	log.SetLevel(level)

	return cfg, nil
}

func newServer(ctx context.Context, cfg *config.Config) (*server.Server, error) {
	srv, err := server.NewServer(ctx, log, namespace, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return srv, nil
}
