package main

import (
	"fmt"
	"io"
	"os"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Re-read the SSID and check it against the last apply",
	Long:  `Compare the live SSID, group policies and identity PSKs with the values recorded by the last successful apply. Fails if any check does not pass.`,
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.validator.Validate(ctx, a.cfg.Network.NetworkID, a.cfg.Network.SSIDNumber)
	if err != nil {
		log.Error().Err(err).Msg("validation failed")
		return err
	}

	if err := render(os.Stdout, result, func(w io.Writer) { printValidation(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return fmt.Errorf("validation failed: %s", result.Summary)
	}
	return nil
}

func printValidation(w io.Writer, r *models.ValidationResult) {
	for _, c := range r.Checks {
		mark := "ok  "
		if !c.Passed {
			mark = "FAIL"
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", mark, c.Name, c.Value)
	}
	printList(w, "Issues", r.Issues)
	printList(w, "Warnings", r.Warnings)
	fmt.Fprintln(w)
	fmt.Fprintln(w, r.Summary)
}
