package meraki

import (
	"context"
	"fmt"

	"github.com/liptonj/wpn-provisioner/internal/models"
)

type splashSettingsJSON struct {
	SplashURL    string `json:"splashUrl,omitempty"`
	UseSplashURL bool   `json:"useSplashUrl"`
}

func ssidPath(networkID string, number int) string {
	return fmt.Sprintf("/networks/%s/wireless/ssids/%d", networkID, number)
}

func ssidLockKey(networkID string, number int) string {
	return fmt.Sprintf("ssid:%s/%d", networkID, number)
}

// GetSSID reads an SSID and its splash settings. A missing SSID yields ErrNotFound.
func (s *Impl) GetSSID(ctx context.Context, networkID string, number int) (*models.SSIDSummary, error) {
	var ssid models.SSIDSummary
	if err := s.do(ctx, "get_ssid", "GET", ssidPath(networkID, number), nil, &ssid); err != nil {
		return nil, err
	}

	var splash splashSettingsJSON
	err := s.do(ctx, "get_splash_settings", "GET", ssidPath(networkID, number)+"/splash/settings", nil, &splash)
	switch {
	case err == nil:
		if splash.UseSplashURL {
			ssid.SplashURL = splash.SplashURL
		}
	case IsNotFound(err):
		// SSIDs without a splash page have no splash settings
	default:
		return nil, err
	}

	return &ssid, nil
}

// UpdateSSID applies a partial update. A splash URL in the patch is written to
// the SSID's splash settings after the SSID itself.
func (s *Impl) UpdateSSID(ctx context.Context, networkID string, number int, patch models.SSIDPatch) (*models.SSIDSummary, error) {
	unlock := s.locks.lock(ssidLockKey(networkID, number))
	defer unlock()

	body := map[string]any{}
	setIf(body, "name", patch.Name)
	setIf(body, "enabled", patch.Enabled)
	setIf(body, "authMode", patch.AuthMode)
	setIf(body, "encryptionMode", patch.EncryptionMode)
	setIf(body, "wpaEncryptionMode", patch.WPAEncryptionMode)
	setIf(body, "ipAssignmentMode", patch.IPAssignmentMode)
	setIf(body, "splashPage", patch.SplashPage)

	s.logger.Debug().
		Str("network_id", networkID).
		Int("ssid", number).
		Int("fields", len(body)).
		Msg("updating SSID")

	var ssid models.SSIDSummary
	if err := s.do(ctx, "update_ssid", "PUT", ssidPath(networkID, number), body, &ssid); err != nil {
		return nil, err
	}

	if patch.SplashURL != nil {
		req := splashSettingsJSON{SplashURL: *patch.SplashURL, UseSplashURL: *patch.SplashURL != ""}
		var splash splashSettingsJSON
		if err := s.do(ctx, "update_splash_settings", "PUT", ssidPath(networkID, number)+"/splash/settings", req, &splash); err != nil {
			return nil, err
		}
		if splash.UseSplashURL {
			ssid.SplashURL = splash.SplashURL
		}
	}

	return &ssid, nil
}

func setIf[T any](body map[string]any, key string, v *T) {
	if v != nil {
		body[key] = *v
	}
}
