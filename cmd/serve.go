package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/callflow/internal/version"
)

var apiAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves call and value diagrams over HTTP.",
	Long: `Serves call and value diagrams over HTTP:

  GET  /api/v1/diagram/{call|value}/{txHash}  returns the PlantUML markup
  POST /api/v1/diagram/{call|value}           renders {"transactions": [...]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("addr") {
			cfg.APIAddr = apiAddr
		}

		log.WithFields(logrus.Fields{
			"version": version.Full(),
			"addr":    cfg.APIAddr,
		}).Info("Starting callflow server")

		srv, err := newServer(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		if err := srv.Serve(cmd.Context()); err != nil {
			return err
		}

		log.Info("callflow server exited - cya!")

		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&apiAddr, "addr", "", "address to serve the diagram api on (default from config, :8080)")

	rootCmd.AddCommand(serveCmd)
}
