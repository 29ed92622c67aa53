// Package models contains the data structures used throughout wpn-provisioner.
package models

import "time"

// AppConfig holds the complete configuration for the provisioner.
type AppConfig struct {
	Meraki   MerakiConfig
	Network  NetworkTarget
	Portal   PortalConfig
	WPN      WPNConfig
	Settings SettingsConfig
	Telegram *TelegramConfig // nil if not configured
	Server   ServerConfig
}

// MerakiConfig holds the network-management API connection settings.
type MerakiConfig struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration // per request
	MaxAttempts    int
	InitialBackoff time.Duration
}

// NetworkTarget addresses the SSID being provisioned.
type NetworkTarget struct {
	NetworkID  string
	SSIDNumber int
}

// PortalConfig describes where the portal itself is reachable.
type PortalConfig struct {
	PublicURL      string // portal origin, used for the default splash URL
	TunnelHostname string // managed cloud tunnel hostname, optional
}

// WPNConfig holds the defaults used to build a DesiredConfiguration.
type WPNConfig struct {
	RegisteredPolicyName string
	GuestPolicyName      string
	SplashURL            string
	UseManagedTunnel     bool
	PSKLength            int
	ConfirmTimeout       time.Duration
	ConfirmInterval      time.Duration
}

// SettingsConfig selects the portal settings store backend.
type SettingsConfig struct {
	Driver               string // "sqlite" (default) or "postgres"
	DSN                  string
	EncryptionPassphrase string // optional, encrypts the stored guest PSK
}

// ServerConfig holds the wizard HTTP API settings.
type ServerConfig struct {
	Listen string
}

// Desired builds the DesiredConfiguration for a wizard run from configured defaults.
func (w WPNConfig) Desired() DesiredConfiguration {
	return DesiredConfiguration{
		RegisteredUsersPolicyName: w.RegisteredPolicyName,
		GuestPolicyName:           w.GuestPolicyName,
		SplashURL:                 w.SplashURL,
		UseManagedTunnel:          w.UseManagedTunnel,
	}
}
