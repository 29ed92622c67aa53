package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	applyRegisteredPolicy string
	applyGuestPolicy      string
	applySplashURL        string
	applyManagedTunnel    bool
	applyRetries          int
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Configure the SSID for WPN",
	Long: `Run the provisioning wizard against the configured SSID:
1. Check the current SSID status
2. Create or update the registered-user group policy (splash bypass on)
3. Create or update the guest group policy (if named)
4. Switch the SSID to identity PSK without RADIUS with a click-through splash page
5. Wait until the new auth mode is visible
6. Create or reuse the default guest identity PSK
7. Record the result in the settings store

Steps 2-3 run in parallel with step 4. Re-running apply after a failure converges.`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringVar(&applyRegisteredPolicy, "registered-policy", "", "registered users group policy name (overrides config)")
	applyCmd.Flags().StringVar(&applyGuestPolicy, "guest-policy", "", "guest group policy name (overrides config)")
	applyCmd.Flags().StringVar(&applySplashURL, "splash-url", "", "splash page URL (overrides config)")
	applyCmd.Flags().BoolVar(&applyManagedTunnel, "managed-tunnel", false, "use the managed tunnel hostname for the splash URL")
	applyCmd.Flags().IntVar(&applyRetries, "retries", 0, "retry a failed apply this many times")
}

func runApply(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	desired := a.cfg.WPN.Desired()
	if cmd.Flags().Changed("registered-policy") {
		desired.RegisteredUsersPolicyName = applyRegisteredPolicy
	}
	if cmd.Flags().Changed("guest-policy") {
		desired.GuestPolicyName = applyGuestPolicy
	}
	if cmd.Flags().Changed("splash-url") {
		desired.SplashURL = applySplashURL
	}
	if cmd.Flags().Changed("managed-tunnel") {
		desired.UseManagedTunnel = applyManagedTunnel
	}

	wizard := provisioner.NewWizard(a.status, a.provisioner, a.cfg.Network, desired)
	state := wizard.Run(ctx, desired)

	for attempt := 1; attempt <= applyRetries; attempt++ {
		failed, ok := state.(provisioner.Failed)
		if !ok || errors.Is(failed.Err, provisioner.ErrConfiguration) || ctx.Err() != nil {
			break
		}
		log.Warn().Err(failed.Err).Int("attempt", attempt).Msg("apply failed, retrying")
		state = wizard.Retry(failed)
		for !provisioner.Terminal(state) {
			state = wizard.Step(ctx, state)
		}
	}

	switch st := state.(type) {
	case provisioner.Complete:
		if err := a.store.Save(ctx, settings.FromResult(a.cfg.Network, st.Result)); err != nil {
			log.Error().Err(err).Msg("configuration applied but settings could not be saved")
			return err
		}
		log.Info().Str("ssid", st.Result.SSID.Name).Msg("provisioning completed")
		return render(os.Stdout, st.Result, func(w io.Writer) { printResult(w, &st.Result) })

	case provisioner.Failed:
		log.Error().Err(st.Err).Str("state", st.From).Msg("provisioning failed")
		return st.Err
	}

	return fmt.Errorf("wizard stopped in state %s", state.Name())
}

func printResult(w io.Writer, r *models.ConfigureResult) {
	fmt.Fprintln(w, r.Message)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "SSID: %s (#%d)\n", r.SSID.Name, r.SSID.Number)
	fmt.Fprintf(w, "  Auth mode: %s\n", r.SSID.AuthMode)
	fmt.Fprintf(w, "  Splash URL: %s\n", r.SplashURL)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Registered policy: %s (id %s, %s)\n", r.GroupPolicyName, r.GroupPolicyID, r.GroupPolicyAction)
	if r.GuestGroupPolicyID != "" {
		fmt.Fprintf(w, "Guest policy: %s (id %s, %s)\n", r.GuestGroupPolicyName, r.GuestGroupPolicyID, r.GuestPolicyAction)
	}
	action := "reused"
	if r.DefaultIPSKCreated {
		action = "created"
	}
	fmt.Fprintf(w, "Default guest PSK: %s (id %s, %s)\n", r.DefaultPSK, r.DefaultIPSKID, action)
	if r.SSID.WPNEnabled == nil || !*r.SSID.WPNEnabled {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Next step: enable Wi-Fi Personal Network on this SSID in the dashboard, then run confirm-wpn.")
	}
}
