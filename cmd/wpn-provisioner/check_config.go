package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var checkConfigCmd = &cobra.Command{
	Use:   "check-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file without calling the network API.`,
	RunE:  runCheckConfig,
}

func runCheckConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println("Configuration is valid!")
	fmt.Println()
	fmt.Println("Target:")
	fmt.Printf("  Network: %s\n", cfg.Network.NetworkID)
	fmt.Printf("  SSID number: %d\n", cfg.Network.SSIDNumber)
	fmt.Println()
	fmt.Println("API:")
	fmt.Printf("  Base URL: %s\n", cfg.Meraki.BaseURL)
	fmt.Printf("  API key: (configured)\n")
	fmt.Printf("  Timeout: %s\n", cfg.Meraki.Timeout)
	fmt.Printf("  Max attempts: %d\n", cfg.Meraki.MaxAttempts)
	fmt.Println()
	fmt.Println("Provisioning:")
	fmt.Printf("  Registered policy: %s\n", cfg.WPN.RegisteredPolicyName)
	if cfg.WPN.GuestPolicyName != "" {
		fmt.Printf("  Guest policy: %s\n", cfg.WPN.GuestPolicyName)
	}
	if cfg.WPN.SplashURL != "" {
		fmt.Printf("  Splash URL: %s\n", cfg.WPN.SplashURL)
	} else if cfg.Portal.PublicURL != "" {
		fmt.Printf("  Splash URL: %s/api/splash (from public URL)\n", cfg.Portal.PublicURL)
	}
	fmt.Printf("  Managed tunnel: %v\n", cfg.WPN.UseManagedTunnel)
	fmt.Printf("  PSK length: %d\n", cfg.WPN.PSKLength)
	fmt.Println()
	fmt.Println("Settings store:")
	fmt.Printf("  Driver: %s\n", cfg.Settings.Driver)
	fmt.Printf("  Encrypted PSK: %v\n", cfg.Settings.EncryptionPassphrase != "")
	fmt.Println()
	fmt.Println("Optional Features:")
	fmt.Printf("  Telegram: %v\n", cfg.Telegram != nil)
	fmt.Printf("  Wizard API listen: %s\n", cfg.Server.Listen)

	return nil
}
