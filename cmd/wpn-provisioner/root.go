package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "dev"

	// Configuration flags.
	configFile   string
	envFile      string
	verbose      bool
	quiet        bool
	jsonLogs     bool
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wpn-provisioner",
	Short: "Provision a Meraki SSID for Wi-Fi Personal Network access",
	Long: `wpn-provisioner drives a wireless network through its provisioning wizard:
  - Inspect an SSID and classify its readiness
  - Create or update the registered-user and guest group policies
  - Switch the SSID to identity PSK without RADIUS with a splash page
  - Create the shared default guest identity PSK
  - Validate the result and share the guest credentials as a QR code

Every apply is idempotent: re-running it after a partial failure converges.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}
		setupLogging()
		switch outputFormat {
		case outputText, outputJSON, outputYAML:
			return nil
		default:
			return fmt.Errorf("unsupported output format %q (want text, json or yaml)", outputFormat)
		}
	},
	SilenceUsage: true,
	Version:      Version,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (required)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before the config (default .env if present)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose (debug) output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode (errors only)")
	rootCmd.PersistentFlags().BoolVar(&jsonLogs, "json", false, "output logs in JSON format")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", outputText, "result format: text, json or yaml")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(confirmWPNCmd)
	rootCmd.AddCommand(shareCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkConfigCmd)
}

// loadEnv populates the environment used by ${VAR} expansion in the config file.
// Variables already set in the process environment win.
func loadEnv() error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("loading env file %s: %w", envFile, err)
		}
		return nil
	}
	if _, err := os.Stat(".env"); err == nil {
		return godotenv.Load()
	}
	return nil
}

func setupLogging() {
	// Logs go to stderr so stdout carries only command results.
	if jsonLogs {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
		output.FormatLevel = func(i interface{}) string {
			if s, ok := i.(string); ok {
				return strings.ToUpper(s)
			}
			return ""
		}
		log.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	switch {
	case quiet:
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case verbose:
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
