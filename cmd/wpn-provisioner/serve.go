package main

import (
	"github.com/liptonj/wpn-provisioner/internal/server"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveListen string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the provisioning wizard HTTP API",
	Long: `Serve the wizard API:
  GET  /health
  GET  /api/wpn/status
  POST /api/wpn/apply
  POST /api/wpn/validate
  POST /api/wpn/confirm-wpn
  GET  /api/wpn/share.png
  GET  /metrics`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := a.cfg.Server.Listen
	if serveListen != "" {
		addr = serveListen
	}

	srv := server.New(log.Logger, *a.cfg, server.Services{
		Status:      a.status,
		Provisioner: a.provisioner,
		Validator:   a.validator,
		Settings:    a.store,
		Share:       a.share,
	})
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		log.Error().Err(err).Msg("server failed")
		return err
	}

	log.Info().Msg("server stopped")
	return nil
}
