package main

import (
	"fmt"
	"os"

	"github.com/liptonj/wpn-provisioner/internal/services/share"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	sharePNG  string
	shareSize int
)

var shareCmd = &cobra.Command{
	Use:   "share",
	Short: "Show the default guest credentials as a Wi-Fi QR code",
	Long:  `Render the SSID name and default guest PSK recorded by the last apply as a Wi-Fi QR code, either in the terminal or as a PNG file.`,
	RunE:  runShare,
}

func init() {
	shareCmd.Flags().StringVar(&sharePNG, "png", "", "write a PNG image to this path instead of printing to the terminal")
	shareCmd.Flags().IntVar(&shareSize, "size", share.DefaultPNGSize, "PNG size in pixels")
}

func runShare(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	ps, err := a.store.Load(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to load settings")
		return err
	}
	creds, err := share.FromSettings(ps)
	if err != nil {
		return err
	}

	if sharePNG != "" {
		png, err := a.share.PNG(creds, shareSize)
		if err != nil {
			return err
		}
		if err := os.WriteFile(sharePNG, png, 0o600); err != nil {
			return fmt.Errorf("writing %s: %w", sharePNG, err)
		}
		log.Info().Str("file", sharePNG).Msg("QR code written")
		return nil
	}

	art, err := a.share.Terminal(creds)
	if err != nil {
		return err
	}
	fmt.Println(art)
	fmt.Printf("SSID: %s\n", creds.SSID)
	fmt.Printf("Passphrase: %s\n", creds.Passphrase)
	return nil
}
