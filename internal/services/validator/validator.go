// Package validator re-reads remote state after apply and checks it against the last result.
package validator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/liptonj/wpn-provisioner/internal/services/settings"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/rs/zerolog"
)

// Check names.
const (
	CheckSSIDEnabled  = "SSID enabled"
	CheckAuthMode     = "Auth mode"
	CheckSplashBypass = "Group policy splash bypass"
	CheckDefaultIPSK  = "Default identity PSK"
	CheckSplashURL    = "Splash URL"
)

const (
	valueMissing      = "missing"
	summaryAllPassed  = "all %d checks passed"
	summarySomeFailed = "%d of %d checks failed"
)

// Service defines the interface for post-configuration validation.
type Service interface {
	Validate(ctx context.Context, networkID string, ssidNumber int) (*models.ValidationResult, error)
}

// LastResult supplies the values recorded by the last successful apply.
type LastResult interface {
	Load(ctx context.Context) (*models.PortalSettings, error)
}

// Impl implements the validator Service interface. It never writes remote state.
type Impl struct {
	client    meraki.Service
	statusSvc status.Service
	last      LastResult
	logger    zerolog.Logger
}

// New creates a new validator.
func New(logger zerolog.Logger, client meraki.Service, statusSvc status.Service, last LastResult) *Impl {
	return &Impl{
		client:    client,
		statusSvc: statusSvc,
		last:      last,
		logger:    logger,
	}
}

// Validate checks the SSID, the registered-users policy and the default identity PSK
// against the last persisted apply result.
func (s *Impl) Validate(ctx context.Context, networkID string, ssidNumber int) (*models.ValidationResult, error) {
	recorded, err := s.last.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load last apply result: %w", err)
	}
	if recorded.NetworkID != networkID || recorded.SSIDNumber != ssidNumber {
		return nil, fmt.Errorf("%w for network %s SSID %d (last apply targeted %s SSID %d)",
			settings.ErrNotConfigured, networkID, ssidNumber, recorded.NetworkID, recorded.SSIDNumber)
	}

	st, err := s.statusSvc.Evaluate(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, err
	}

	ssid, err := s.client.GetSSID(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSID %d: %w", ssidNumber, err)
	}
	policies, err := s.client.ListGroupPolicies(ctx, networkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list group policies: %w", err)
	}
	psks, err := s.client.ListIdentityPSKs(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to list identity PSKs: %w", err)
	}

	result := &models.ValidationResult{
		Checks:   []models.ValidationCheck{},
		Issues:   []string{},
		Warnings: st.Warnings,
	}
	add := func(name, value string, passed bool, remediation string) {
		result.Checks = append(result.Checks, models.ValidationCheck{Name: name, Value: value, Passed: passed})
		if !passed {
			result.Issues = append(result.Issues, remediation)
		}
	}

	add(CheckSSIDEnabled, strconv.FormatBool(st.Enabled), st.Enabled,
		"SSID is disabled; re-run apply to enable it")

	add(CheckAuthMode, string(st.AuthMode), st.AuthMode == models.AuthModeIPSKWithoutRadius,
		fmt.Sprintf("auth mode is %q; re-run apply to set %q", st.AuthMode, models.AuthModeIPSKWithoutRadius))

	policyValue, policyOK := valueMissing, false
	for _, p := range policies {
		if p.ID == recorded.GroupPolicyID {
			policyValue = fmt.Sprintf("%s (%s): bypass %s", p.Name, p.ID, enabledWord(p.SplashPageBypassEnabled))
			policyOK = p.SplashPageBypassEnabled
		}
	}
	add(CheckSplashBypass, policyValue, policyOK,
		fmt.Sprintf("group policy %s (%s) must exist with splash bypass enabled; re-run apply",
			recorded.GroupPolicyName, recorded.GroupPolicyID))

	pskValue, pskOK := valueMissing, false
	for _, p := range psks {
		if p.ID == recorded.DefaultIPSKID || (recorded.DefaultIPSKID == "" && p.Name == models.DefaultGuestPSKName) {
			pskValue, pskOK = p.Name, true
		}
	}
	add(CheckDefaultIPSK, pskValue, pskOK,
		fmt.Sprintf("default identity PSK %q no longer exists; re-run apply to recreate it", models.DefaultGuestPSKName))

	add(CheckSplashURL, ssid.SplashURL, ssid.SplashURL == recorded.SplashPageURL,
		fmt.Sprintf("splash URL is %q, expected %q; re-run apply", ssid.SplashURL, recorded.SplashPageURL))

	failed := len(result.Issues)
	result.Valid = failed == 0
	if result.Valid {
		result.Summary = fmt.Sprintf(summaryAllPassed, len(result.Checks))
	} else {
		result.Summary = fmt.Sprintf(summarySomeFailed, failed, len(result.Checks))
	}

	s.logger.Info().
		Str("network_id", networkID).
		Int("ssid_number", ssidNumber).
		Bool("valid", result.Valid).
		Int("failed_checks", failed).
		Msg("validation completed")

	return result, nil
}

func enabledWord(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}
