// Package status classifies the provisioning readiness of an SSID.
package status

import (
	"context"
	"fmt"

	"github.com/liptonj/wpn-provisioner/internal/metrics"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/rs/zerolog"
)

// ManualWPNWarning is reported while WPN still has to be enabled in the dashboard.
const ManualWPNWarning = "Wi-Fi Personal Network must be enabled manually in the dashboard " +
	"(Wireless > Access control > WPN), then confirmed with confirm-wpn"

// Service defines the interface for SSID status evaluation.
type Service interface {
	Evaluate(ctx context.Context, networkID string, ssidNumber int) (*models.SSIDStatus, error)
}

// WPNConfirmations reports whether an operator confirmed the manual WPN toggle.
type WPNConfirmations interface {
	WPNConfirmed(ctx context.Context, networkID string, ssidNumber int) (bool, error)
}

// Observed is the remote state that drives classification.
type Observed struct {
	Name                  string
	Enabled               bool
	AuthMode              models.AuthMode
	IdentityPSKConfigured bool
	WPNEnabled            bool
}

// Classify derives an SSIDStatus from observed state. It performs no I/O.
func Classify(o Observed) models.SSIDStatus {
	st := models.SSIDStatus{
		Name:                  o.Name,
		Enabled:               o.Enabled,
		AuthMode:              o.AuthMode,
		IdentityPSKConfigured: o.IdentityPSKConfigured,
		WPNEnabled:            o.WPNEnabled,
		Issues:                []string{},
		Warnings:              []string{},
	}

	if !o.Enabled {
		st.Issues = append(st.Issues, "SSID is disabled; apply the configuration to enable it")
	}
	if o.AuthMode != models.AuthModeIPSKWithoutRadius {
		st.Issues = append(st.Issues, fmt.Sprintf(
			"auth mode is %q, expected %q", o.AuthMode, models.AuthModeIPSKWithoutRadius))
	}
	if !o.IdentityPSKConfigured {
		st.Issues = append(st.Issues, "no identity PSK is configured on the SSID")
	}

	switch {
	case len(st.Issues) > 0:
		st.OverallStatus = models.StatusNeedsConfiguration
	case !o.WPNEnabled:
		st.OverallStatus = models.StatusNeedsManualStep
		st.Warnings = append(st.Warnings, ManualWPNWarning)
	default:
		st.OverallStatus = models.StatusReady
	}

	return st
}

// Impl implements the status Service interface.
type Impl struct {
	client        meraki.Service
	confirmations WPNConfirmations
	logger        zerolog.Logger
}

// New creates a new status evaluator. confirmations may be nil.
func New(logger zerolog.Logger, client meraki.Service, confirmations WPNConfirmations) *Impl {
	return &Impl{
		client:        client,
		confirmations: confirmations,
		logger:        logger,
	}
}

// Evaluate reads the SSID and its identity PSKs and classifies them. It never writes.
func (s *Impl) Evaluate(ctx context.Context, networkID string, ssidNumber int) (*models.SSIDStatus, error) {
	ssid, err := s.client.GetSSID(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSID %d: %w", ssidNumber, err)
	}

	psks, err := s.client.ListIdentityPSKs(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list identity PSKs: %w", err)
	}

	st := Classify(Observed{
		Name:                  ssid.Name,
		Enabled:               ssid.Enabled,
		AuthMode:              models.ParseAuthMode(ssid.AuthMode),
		IdentityPSKConfigured: len(psks) > 0,
		WPNEnabled:            s.wpnEnabled(ctx, networkID, ssid),
	})

	metrics.StatusChecksTotal.WithLabelValues(string(st.OverallStatus)).Inc()

	s.logger.Debug().
		Str("network_id", networkID).
		Int("ssid_number", ssidNumber).
		Str("overall_status", string(st.OverallStatus)).
		Int("issues", len(st.Issues)).
		Msg("SSID status evaluated")

	return &st, nil
}

func (s *Impl) wpnEnabled(ctx context.Context, networkID string, ssid *models.SSIDSummary) bool {
	if ssid.WPNEnabled != nil {
		return *ssid.WPNEnabled
	}
	if s.confirmations == nil {
		return false
	}

	confirmed, err := s.confirmations.WPNConfirmed(ctx, networkID, ssid.Number)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to read WPN confirmation, treating as not confirmed")
		return false
	}
	return confirmed
}
