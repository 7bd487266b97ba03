package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/oceanbase/vira-go/pkg/core"
	"github.com/oceanbase/vira-go/pkg/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			config.Server.Addr = serveAddr
		}

		assistant, err := core.NewAssistant(config, core.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() {
			if err := assistant.Close(); err != nil {
				logger.Warn("close failed", zap.Error(err))
			}
		}()

		return server.New(assistant, config.Server, logger.Named("http")).Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "Listen address (default from config, :8080)")
}
