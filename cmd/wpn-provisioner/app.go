package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/liptonj/wpn-provisioner/internal/config"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/liptonj/wpn-provisioner/internal/services/share"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/liptonj/wpn-provisioner/internal/services/validator"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	outputText = "text"
	outputJSON = "json"
	outputYAML = "yaml"
)

// app wires the services used by the commands.
type app struct {
	cfg         *models.AppConfig
	store       *settings.Store
	status      status.Service
	provisioner provisioner.Service
	validator   validator.Service
	share       share.Service
}

func loadConfig() (*models.AppConfig, error) {
	if configFile == "" {
		return nil, fmt.Errorf("config file is required (--config)")
	}

	parser := config.NewParser()
	cfg, err := parser.LoadFile(configFile)
	if err != nil {
		log.Error().Err(err).Str("file", configFile).Msg("failed to load config")
		return nil, err
	}

	if err := config.Validate(cfg); err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return nil, err
	}

	log.Debug().
		Str("config", configFile).
		Str("network_id", cfg.Network.NetworkID).
		Int("ssid_number", cfg.Network.SSIDNumber).
		Msg("configuration loaded")
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := settings.Open(ctx, log.Logger, cfg.Settings)
	if err != nil {
		return nil, err
	}

	client := meraki.New(log.Logger, cfg.Meraki)
	statusSvc := status.New(log.Logger, client, store)

	return &app{
		cfg:         cfg,
		store:       store,
		status:      statusSvc,
		provisioner: provisioner.New(log.Logger, client, *cfg),
		validator:   validator.New(log.Logger, client, statusSvc, store),
		share:       share.New(log.Logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close settings store")
	}
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("received signal, shutting down")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// render writes v in the selected output format; text uses the provided printer.
func render(w io.Writer, v any, text func(io.Writer)) error {
	switch outputFormat {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer func() { _ = enc.Close() }()
		return enc.Encode(v)
	default:
		text(w)
		return nil
	}
}
