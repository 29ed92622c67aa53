package main

import (
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var confirmWPNCmd = &cobra.Command{
	Use:   "confirm-wpn",
	Short: "Record that WPN was enabled in the dashboard",
	Long: `Wi-Fi Personal Network cannot be enabled through the API. After enabling it
on the SSID in the dashboard, run this command so status reports the SSID as ready.`,
	RunE: runConfirmWPN,
}

func runConfirmWPN(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.store.ConfirmWPN(ctx, a.cfg.Network.NetworkID, a.cfg.Network.SSIDNumber); err != nil {
		log.Error().Err(err).Msg("failed to record WPN confirmation")
		return err
	}
	log.Info().
		Str("network_id", a.cfg.Network.NetworkID).
		Int("ssid_number", a.cfg.Network.SSIDNumber).
		Msg("WPN confirmation recorded")

	st, err := a.status.Evaluate(ctx, a.cfg.Network.NetworkID, a.cfg.Network.SSIDNumber)
	if err != nil {
		return err
	}
	return render(os.Stdout, st, func(w io.Writer) { printStatus(w, st) })
}
