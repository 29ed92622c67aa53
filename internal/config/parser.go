// Package config provides configuration file parsing.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/spf13/viper"
)

// Defaults applied when a key is absent.
const (
	DefaultBaseURL              = "https://api.meraki.com/api/v1"
	DefaultTimeout              = 30 * time.Second
	DefaultMaxAttempts          = 3
	DefaultInitialBackoff       = 500 * time.Millisecond
	DefaultRegisteredPolicyName = "WPN-Users"
	DefaultPSKLength            = 12
	DefaultConfirmTimeout       = 30 * time.Second
	DefaultConfirmInterval      = 2 * time.Second
	DefaultSettingsDriver       = "sqlite"
	DefaultSettingsDSN          = "./portal.db"
	DefaultListen               = ":8080"
	maxSSIDNumber               = 14
)

// Parser handles configuration file parsing.
type Parser struct {
	v *viper.Viper
}

// NewParser creates a new configuration parser.
func NewParser() *Parser {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("meraki.base_url", DefaultBaseURL)
	v.SetDefault("meraki.timeout", DefaultTimeout)
	v.SetDefault("meraki.max_attempts", DefaultMaxAttempts)
	v.SetDefault("meraki.initial_backoff", DefaultInitialBackoff)
	v.SetDefault("wpn.registered_policy_name", DefaultRegisteredPolicyName)
	v.SetDefault("wpn.psk_length", DefaultPSKLength)
	v.SetDefault("wpn.confirm_timeout", DefaultConfirmTimeout)
	v.SetDefault("wpn.confirm_interval", DefaultConfirmInterval)
	v.SetDefault("settings.driver", DefaultSettingsDriver)
	v.SetDefault("settings.dsn", DefaultSettingsDSN)
	v.SetDefault("server.listen", DefaultListen)

	return &Parser{v: v}
}

// LoadFile loads configuration from a file path.
func (p *Parser) LoadFile(path string) (*models.AppConfig, error) {
	p.v.SetConfigFile(path)

	if err := p.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	return p.parse()
}

// LoadReader loads configuration from a reader (useful for testing).
func (p *Parser) LoadReader(content string) (*models.AppConfig, error) {
	if err := p.v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return p.parse()
}

func (p *Parser) parse() (*models.AppConfig, error) {
	cfg := &models.AppConfig{}

	cfg.Meraki = models.MerakiConfig{
		BaseURL:        p.expandEnv(p.v.GetString("meraki.base_url")),
		APIKey:         p.expandEnv(p.v.GetString("meraki.api_key")),
		Timeout:        p.v.GetDuration("meraki.timeout"),
		MaxAttempts:    p.v.GetInt("meraki.max_attempts"),
		InitialBackoff: p.v.GetDuration("meraki.initial_backoff"),
	}

	if !p.v.IsSet("network.ssid_number") {
		return nil, fmt.Errorf("network.ssid_number is required")
	}
	cfg.Network = models.NetworkTarget{
		NetworkID:  p.expandEnv(p.v.GetString("network.network_id")),
		SSIDNumber: p.v.GetInt("network.ssid_number"),
	}

	cfg.Portal = models.PortalConfig{
		PublicURL:      p.expandEnv(p.v.GetString("portal.public_url")),
		TunnelHostname: p.expandEnv(p.v.GetString("portal.tunnel_hostname")),
	}

	cfg.WPN = models.WPNConfig{
		RegisteredPolicyName: p.v.GetString("wpn.registered_policy_name"),
		GuestPolicyName:      p.v.GetString("wpn.guest_policy_name"),
		SplashURL:            p.expandEnv(p.v.GetString("wpn.splash_url")),
		UseManagedTunnel:     p.v.GetBool("wpn.use_managed_tunnel"),
		PSKLength:            p.v.GetInt("wpn.psk_length"),
		ConfirmTimeout:       p.v.GetDuration("wpn.confirm_timeout"),
		ConfirmInterval:      p.v.GetDuration("wpn.confirm_interval"),
	}

	cfg.Settings = models.SettingsConfig{
		Driver:               p.v.GetString("settings.driver"),
		DSN:                  p.expandEnv(p.v.GetString("settings.dsn")),
		EncryptionPassphrase: p.expandEnv(p.v.GetString("settings.encryption_passphrase")),
	}

	cfg.Server = models.ServerConfig{
		Listen: p.v.GetString("server.listen"),
	}

	// Parse optional Telegram config.
	if p.v.IsSet("telegram") {
		cfg.Telegram = &models.TelegramConfig{
			BotToken: p.expandEnv(p.v.GetString("telegram.bot_token")),
			ChatID:   p.expandEnv(p.v.GetString("telegram.chat_id")),
		}

		if cfg.Telegram.BotToken == "" {
			return nil, fmt.Errorf("telegram.bot_token is required when telegram is configured")
		}
		if cfg.Telegram.ChatID == "" {
			return nil, fmt.Errorf("telegram.chat_id is required when telegram is configured")
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// expandEnv expands environment variables in the format ${VAR} or $VAR.
func (p *Parser) expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate performs validation on the loaded configuration.
//
//nolint:gocyclo // one branch per key
func Validate(cfg *models.AppConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if cfg.Meraki.APIKey == "" {
		return fmt.Errorf("meraki.api_key is required")
	}
	if err := absoluteURL("meraki.base_url", cfg.Meraki.BaseURL); err != nil {
		return err
	}
	if cfg.Meraki.MaxAttempts < 1 {
		return fmt.Errorf("meraki.max_attempts must be at least 1")
	}

	if cfg.Network.NetworkID == "" {
		return fmt.Errorf("network.network_id is required")
	}
	if cfg.Network.SSIDNumber < 0 || cfg.Network.SSIDNumber > maxSSIDNumber {
		return fmt.Errorf("network.ssid_number must be between 0 and %d", maxSSIDNumber)
	}

	if err := absoluteURL("portal.public_url", cfg.Portal.PublicURL); err != nil {
		return err
	}
	if err := absoluteURL("wpn.splash_url", cfg.WPN.SplashURL); err != nil {
		return err
	}

	if cfg.WPN.RegisteredPolicyName == "" {
		return fmt.Errorf("wpn.registered_policy_name must not be empty")
	}
	if cfg.WPN.GuestPolicyName == cfg.WPN.RegisteredPolicyName {
		return fmt.Errorf("wpn.guest_policy_name must differ from wpn.registered_policy_name")
	}
	if cfg.WPN.PSKLength < 12 || cfg.WPN.PSKLength > 16 {
		return fmt.Errorf("wpn.psk_length must be between 12 and 16")
	}

	validDrivers := map[string]bool{"sqlite": true, "postgres": true}
	if !validDrivers[cfg.Settings.Driver] {
		return fmt.Errorf("settings.driver must be one of: sqlite, postgres")
	}
	if cfg.Settings.DSN == "" {
		return fmt.Errorf("settings.dsn is required")
	}

	return nil
}

func absoluteURL(key, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
