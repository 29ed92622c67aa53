// Package provisioner drives an SSID to the two-tier WPN access configuration.
package provisioner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/liptonj/wpn-provisioner/internal/metrics"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/liptonj/wpn-provisioner/internal/services/notify"
	"github.com/liptonj/wpn-provisioner/internal/services/secret"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Remote values written to the SSID during apply.
const (
	EncryptionModeWPA   = "wpa"
	WPAEncryptionWPA2   = "WPA2 only"
	IPAssignmentBridge  = "Bridge mode"
	SplashClickThrough  = "Click-through splash page"
	splashPath          = "/api/splash"
	defaultConfirmWait  = 30 * time.Second
	defaultConfirmEvery = 2 * time.Second
)

// Service defines the interface for the provisioning orchestrator.
type Service interface {
	Apply(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error)
}

// Impl implements the provisioner Service interface.
type Impl struct {
	client    meraki.Service
	secretSvc secret.Service
	notifySvc notify.Service
	logger    zerolog.Logger
	cfg       models.AppConfig
}

// New creates a new provisioner.
func New(logger zerolog.Logger, client meraki.Service, cfg models.AppConfig) *Impl {
	return &Impl{
		client:    client,
		secretSvc: secret.New(),
		notifySvc: notify.New(logger),
		logger:    logger,
		cfg:       cfg,
	}
}

// NewWithServices creates a new provisioner with custom services (for testing).
func NewWithServices(
	logger zerolog.Logger,
	client meraki.Service,
	secretSvc secret.Service,
	notifySvc notify.Service,
	cfg models.AppConfig,
) *Impl {
	return &Impl{
		client:    client,
		secretSvc: secretSvc,
		notifySvc: notifySvc,
		logger:    logger,
		cfg:       cfg,
	}
}

// progress records committed sub-steps. Safe for concurrent use.
type progress struct {
	mu   sync.Mutex
	done map[string]bool
}

func (p *progress) complete(step string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.done[step] = true
}

func (p *progress) list() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []string{}
	for _, step := range stepOrder {
		if p.done[step] {
			out = append(out, step)
		}
	}
	return out
}

// Apply executes the configuration plan against the configured SSID. Policy writes run
// concurrently with the SSID write; the default identity PSK is created only once the
// SSID reports ipsk-without-radius. On failure the returned error is an *ApplyError.
//
//nolint:gocognit // apply workflow has multiple steps
func (s *Impl) Apply(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	logger := s.logger.With().
		Str("run_id", runID).
		Str("network_id", s.cfg.Network.NetworkID).
		Int("ssid_number", s.cfg.Network.SSIDNumber).
		Logger()

	p := &progress{done: make(map[string]bool)}
	var result *models.ConfigureResult
	var runErr *ApplyError

	defer func() {
		duration := time.Since(startTime)
		metrics.ProvisioningRunDuration.Observe(duration.Seconds())
		if runErr != nil {
			metrics.ProvisioningRunsTotal.WithLabelValues(string(runErr.Kind)).Inc()
		} else {
			metrics.ProvisioningRunsTotal.WithLabelValues("success").Inc()
		}
		if s.cfg.Telegram != nil {
			s.sendNotification(ctx, logger, runID, startTime, result, runErr)
		}
	}()

	fail := func(step string, err error) (*models.ConfigureResult, error) {
		runErr = &ApplyError{
			Kind:      kindOf(err),
			Step:      step,
			Completed: p.list(),
			RunID:     runID,
			Err:       err,
		}
		logger.Error().
			Err(err).
			Str("step", step).
			Strs("completed", runErr.Completed).
			Str("kind", string(runErr.Kind)).
			Msg("apply failed")
		return nil, runErr
	}

	logger.Info().
		Str("registered_policy", desired.RegisteredUsersPolicyName).
		Str("guest_policy", desired.GuestPolicyName).
		Bool("managed_tunnel", desired.UseManagedTunnel).
		Msg("starting apply")

	if err := desired.Validate(); err != nil {
		return fail(StepValidate, fmt.Errorf("%w: %w", ErrConfiguration, err))
	}

	splashURL, err := s.ResolveSplashURL(desired)
	if err != nil {
		return fail(StepValidate, err)
	}

	networkID := s.cfg.Network.NetworkID

	// Steps (a)+(b) and (c) touch disjoint resources. Both branches run to completion so
	// the failure report reflects everything that was committed.
	var registered, guest *policyOutcome
	var g errgroup.Group

	g.Go(func() error {
		policies, err := s.client.ListGroupPolicies(ctx, networkID)
		if err != nil {
			return &stepError{step: StepRegisteredPolicy, err: fmt.Errorf("failed to list group policies: %w", err)}
		}

		bypass := true
		registered, err = s.ensurePolicy(ctx, logger, policies, desired.RegisteredUsersPolicyName, &bypass, &bypass)
		if err != nil {
			return &stepError{step: StepRegisteredPolicy, err: err}
		}
		p.complete(StepRegisteredPolicy)

		if desired.GuestPolicyName == "" {
			return nil
		}
		noBypass := false
		guest, err = s.ensurePolicy(ctx, logger, policies, desired.GuestPolicyName, &noBypass, nil)
		if err != nil {
			return &stepError{step: StepGuestPolicy, err: err}
		}
		p.complete(StepGuestPolicy)
		return nil
	})

	g.Go(func() error {
		if err := s.updateSSID(ctx, logger, splashURL); err != nil {
			return &stepError{step: StepUpdateSSID, err: err}
		}
		p.complete(StepUpdateSSID)
		return nil
	})

	if err := g.Wait(); err != nil {
		var se *stepError
		if errors.As(err, &se) {
			return fail(se.step, se.err)
		}
		return fail(StepUpdateSSID, err)
	}

	// Step (d) requires the SSID to already be in ipsk-without-radius mode.
	ssid, err := s.waitForAuthMode(ctx, logger)
	if err != nil {
		return fail(StepConfirmSSID, err)
	}
	p.complete(StepConfirmSSID)

	guestPolicyID := ""
	if guest != nil {
		guestPolicyID = guest.policy.ID
	}
	psk, created, err := s.ensureDefaultPSK(ctx, logger, guestPolicyID)
	if err != nil {
		return fail(StepDefaultIPSK, err)
	}
	p.complete(StepDefaultIPSK)

	result = &models.ConfigureResult{
		Success:            true,
		Message:            "SSID configured for WPN; enable Wi-Fi Personal Network in the dashboard if not already enabled",
		SSID:               *ssid,
		GroupPolicyID:      registered.policy.ID,
		GroupPolicyName:    registered.policy.Name,
		GroupPolicyAction:  registered.action,
		DefaultPSK:         psk.Passphrase,
		DefaultIPSKID:      psk.ID,
		DefaultIPSKCreated: created,
		SplashURL:          splashURL,
	}
	if guest != nil {
		result.GuestGroupPolicyID = guest.policy.ID
		result.GuestGroupPolicyName = guest.policy.Name
		result.GuestPolicyAction = guest.action
	}

	logger.Info().
		Str("group_policy_id", result.GroupPolicyID).
		Str("group_policy_action", string(result.GroupPolicyAction)).
		Bool("default_ipsk_created", result.DefaultIPSKCreated).
		Dur("duration", time.Since(startTime)).
		Msg("apply completed successfully")

	return result, nil
}

// ResolveSplashURL picks the click-through target: the managed tunnel when enabled and
// configured, else the requested URL, else the portal's own splash endpoint.
func (s *Impl) ResolveSplashURL(desired models.DesiredConfiguration) (string, error) {
	if desired.UseManagedTunnel && s.cfg.Portal.TunnelHostname != "" {
		return "https://" + s.cfg.Portal.TunnelHostname + splashPath, nil
	}
	if desired.SplashURL != "" {
		return desired.SplashURL, nil
	}
	if s.cfg.Portal.PublicURL != "" {
		return strings.TrimRight(s.cfg.Portal.PublicURL, "/") + splashPath, nil
	}
	return "", fmt.Errorf("%w: no splash URL supplied and portal.public_url is not set", ErrConfiguration)
}

type policyOutcome struct {
	policy models.GroupPolicy
	action models.PolicyAction
}

// ensurePolicy creates or updates the policy with the exact given name. createBypass is
// the bypass flag for a new policy; updateBypass nil leaves an existing policy's flag alone.
func (s *Impl) ensurePolicy(
	ctx context.Context,
	logger zerolog.Logger,
	existing []models.GroupPolicy,
	name string,
	createBypass, updateBypass *bool,
) (*policyOutcome, error) {
	var matches []models.GroupPolicy
	for _, gp := range existing {
		if gp.Name == name {
			matches = append(matches, gp)
		}
	}

	switch len(matches) {
	case 0:
		created, err := s.client.CreateGroupPolicy(ctx, s.cfg.Network.NetworkID, models.GroupPolicySpec{
			Name:             name,
			SplashPageBypass: createBypass,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create group policy %q: %w", name, err)
		}
		logger.Info().Str("policy", name).Str("policy_id", created.ID).Msg("group policy created")
		return &policyOutcome{policy: *created, action: models.PolicyCreated}, nil

	case 1:
		updated, err := s.client.UpdateGroupPolicy(ctx, s.cfg.Network.NetworkID, matches[0].ID, models.GroupPolicySpec{
			Name:             name,
			SplashPageBypass: updateBypass,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to update group policy %q: %w", name, err)
		}
		logger.Info().Str("policy", name).Str("policy_id", updated.ID).Msg("group policy updated")
		return &policyOutcome{policy: *updated, action: models.PolicyUpdated}, nil

	default:
		ids := make([]string, 0, len(matches))
		for _, m := range matches {
			ids = append(ids, m.ID)
		}
		return nil, fmt.Errorf("%w: %d policies named %q (ids %s)",
			ErrAmbiguousPolicy, len(matches), name, strings.Join(ids, ", "))
	}
}

func (s *Impl) updateSSID(ctx context.Context, logger zerolog.Logger, splashURL string) error {
	enabled := true
	authMode := string(models.AuthModeIPSKWithoutRadius)
	encryption := EncryptionModeWPA
	wpa := WPAEncryptionWPA2
	ipMode := IPAssignmentBridge
	splashPage := SplashClickThrough

	ssid, err := s.client.UpdateSSID(ctx, s.cfg.Network.NetworkID, s.cfg.Network.SSIDNumber, models.SSIDPatch{
		Enabled:           &enabled,
		AuthMode:          &authMode,
		EncryptionMode:    &encryption,
		WPAEncryptionMode: &wpa,
		IPAssignmentMode:  &ipMode,
		SplashPage:        &splashPage,
		SplashURL:         &splashURL,
	})
	if err != nil {
		return fmt.Errorf("failed to update SSID: %w", err)
	}

	logger.Info().
		Str("ssid", ssid.Name).
		Str("auth_mode", ssid.AuthMode).
		Str("splash_url", splashURL).
		Msg("SSID updated")
	return nil
}

// waitForAuthMode re-reads the SSID until the remote reports ipsk-without-radius.
func (s *Impl) waitForAuthMode(ctx context.Context, logger zerolog.Logger) (*models.SSIDSummary, error) {
	timeout := s.cfg.WPN.ConfirmTimeout
	if timeout <= 0 {
		timeout = defaultConfirmWait
	}
	interval := s.cfg.WPN.ConfirmInterval
	if interval <= 0 {
		interval = defaultConfirmEvery
	}
	deadline := time.Now().Add(timeout)

	for {
		ssid, err := s.client.GetSSID(ctx, s.cfg.Network.NetworkID, s.cfg.Network.SSIDNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to read SSID: %w", err)
		}
		if models.ParseAuthMode(ssid.AuthMode) == models.AuthModeIPSKWithoutRadius {
			return ssid, nil
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("SSID auth mode is still %q after %s", ssid.AuthMode, timeout)
		}

		logger.Debug().Str("auth_mode", ssid.AuthMode).Msg("SSID not yet in identity PSK mode")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// ensureDefaultPSK reuses the existing default guest PSK or creates one. An existing
// passphrase is never regenerated.
func (s *Impl) ensureDefaultPSK(ctx context.Context, logger zerolog.Logger, guestPolicyID string) (*models.IdentityPSK, bool, error) {
	networkID := s.cfg.Network.NetworkID
	ssidNumber := s.cfg.Network.SSIDNumber

	existing, err := s.client.ListIdentityPSKs(ctx, networkID, ssidNumber)
	if err != nil {
		return nil, false, fmt.Errorf("failed to list identity PSKs: %w", err)
	}
	for i := range existing {
		if existing[i].Name == models.DefaultGuestPSKName {
			logger.Info().Str("ipsk_id", existing[i].ID).Msg("reusing default guest identity PSK")
			return &existing[i], false, nil
		}
	}

	length := s.cfg.WPN.PSKLength
	if length == 0 {
		length = secret.DefaultLength
	}
	passphrase, err := s.secretSvc.Generate(length)
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate passphrase: %w", err)
	}

	created, err := s.client.CreateIdentityPSK(ctx, networkID, ssidNumber, models.IdentityPSKSpec{
		Name:          models.DefaultGuestPSKName,
		Passphrase:    passphrase,
		GroupPolicyID: guestPolicyID,
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to create default identity PSK: %w", err)
	}
	if created.Passphrase == "" {
		created.Passphrase = passphrase
	}

	logger.Info().
		Str("ipsk_id", created.ID).
		Str("group_policy_id", guestPolicyID).
		Msg("default guest identity PSK created")
	return created, true, nil
}

func (s *Impl) sendNotification(
	ctx context.Context,
	logger zerolog.Logger,
	runID string,
	startTime time.Time,
	result *models.ConfigureResult,
	runErr *ApplyError,
) {
	msg := models.TelegramMessage{
		Success:    runErr == nil,
		NetworkID:  s.cfg.Network.NetworkID,
		SSIDNumber: s.cfg.Network.SSIDNumber,
		RunID:      runID,
		StartTime:  startTime,
		Duration:   time.Since(startTime),
	}

	if result != nil {
		msg.SSIDName = result.SSID.Name
		msg.GroupPolicyName = result.GroupPolicyName
		msg.GroupPolicyAction = result.GroupPolicyAction
		msg.GuestPolicyName = result.GuestGroupPolicyName
		msg.DefaultIPSKCreated = result.DefaultIPSKCreated
		msg.SplashURL = result.SplashURL
		msg.ManualStepRequired = result.SSID.WPNEnabled == nil || !*result.SSID.WPNEnabled
	}
	if runErr != nil {
		msg.FailedStep = runErr.Step
		msg.CompletedSteps = runErr.Completed
		msg.ErrorMessage = runErr.Err.Error()
	}

	res, err := s.notifySvc.SendNotification(ctx, *s.cfg.Telegram, msg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to send Telegram notification")
		return
	}
	if res.Error != nil {
		logger.Error().Err(res.Error).Msg("failed to send Telegram notification")
		return
	}

	logger.Info().Msg("Telegram notification sent")
}
