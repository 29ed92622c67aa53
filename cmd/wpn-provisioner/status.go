package main

import (
	"fmt"
	"io"
	"os"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the provisioning readiness of the configured SSID",
	Long:  `Read the SSID and its identity PSKs and classify the SSID as needs_configuration, config_complete or ready. Nothing is written.`,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.status.Evaluate(ctx, a.cfg.Network.NetworkID, a.cfg.Network.SSIDNumber)
	if err != nil {
		log.Error().Err(err).Msg("status check failed")
		return err
	}

	return render(os.Stdout, st, func(w io.Writer) { printStatus(w, st) })
}

func printStatus(w io.Writer, st *models.SSIDStatus) {
	fmt.Fprintf(w, "SSID: %s\n", st.Name)
	fmt.Fprintf(w, "  Enabled: %v\n", st.Enabled)
	fmt.Fprintf(w, "  Auth mode: %s\n", st.AuthMode)
	fmt.Fprintf(w, "  Identity PSK configured: %v\n", st.IdentityPSKConfigured)
	fmt.Fprintf(w, "  WPN enabled: %v\n", st.WPNEnabled)
	fmt.Fprintf(w, "  Status: %s\n", st.OverallStatus)
	printList(w, "Issues", st.Issues)
	printList(w, "Warnings", st.Warnings)
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", title)
	for _, item := range items {
		fmt.Fprintf(w, "  - %s\n", item)
	}
}
