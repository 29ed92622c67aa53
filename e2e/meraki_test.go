//go:build e2e

package e2e

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
	"github.com/liptonj/wpn-provisioner/internal/services/provisioner"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getMerakiTarget reads a sandbox network. The SSID it names is reconfigured by the
// apply tests, so never point these variables at a production SSID.
func getMerakiTarget(t *testing.T) (models.MerakiConfig, models.NetworkTarget) {
	t.Helper()

	apiKey := os.Getenv("TEST_MERAKI_API_KEY")
	if apiKey == "" {
		t.Skip("TEST_MERAKI_API_KEY not set")
	}

	networkID := os.Getenv("TEST_MERAKI_NETWORK_ID")
	if networkID == "" {
		t.Skip("TEST_MERAKI_NETWORK_ID not set")
	}

	ssidStr := os.Getenv("TEST_MERAKI_SSID_NUMBER")
	if ssidStr == "" {
		t.Skip("TEST_MERAKI_SSID_NUMBER not set")
	}
	ssid, err := strconv.Atoi(ssidStr)
	require.NoError(t, err)

	return models.MerakiConfig{
			BaseURL:        meraki.DefaultBaseURL,
			APIKey:         apiKey,
			Timeout:        30 * time.Second,
			MaxAttempts:    5,
			InitialBackoff: time.Second,
		}, models.NetworkTarget{
			NetworkID:  networkID,
			SSIDNumber: ssid,
		}
}

func TestMerakiStatus_E2E(t *testing.T) {
	apiCfg, target := getMerakiTarget(t)

	client := meraki.New(testLogger(), apiCfg)
	svc := status.New(testLogger(), client, nil)

	st, err := svc.Evaluate(context.Background(), target.NetworkID, target.SSIDNumber)

	require.NoError(t, err)
	assert.NotEmpty(t, st.Name)
	assert.NotEmpty(t, st.OverallStatus)
}

func TestMerakiApplyIsIdempotent_E2E(t *testing.T) {
	apiCfg, target := getMerakiTarget(t)

	client := meraki.New(testLogger(), apiCfg)
	cfg := models.AppConfig{
		Meraki:  apiCfg,
		Network: target,
		Portal:  models.PortalConfig{PublicURL: "https://portal.example.com"},
		WPN: models.WPNConfig{
			PSKLength:       12,
			ConfirmTimeout:  time.Minute,
			ConfirmInterval: 2 * time.Second,
		},
	}
	svc := provisioner.New(testLogger(), client, cfg)
	desired := models.DesiredConfiguration{
		RegisteredUsersPolicyName: "WPN-E2E-Users",
		GuestPolicyName:           "WPN-E2E-Guests",
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	first, err := svc.Apply(ctx, desired)
	require.NoError(t, err)

	second, err := svc.Apply(ctx, desired)
	require.NoError(t, err)

	assert.Equal(t, first.GroupPolicyID, second.GroupPolicyID)
	assert.Equal(t, models.PolicyUpdated, second.GroupPolicyAction)
	assert.Equal(t, first.GuestGroupPolicyID, second.GuestGroupPolicyID)
	assert.Equal(t, first.DefaultIPSKID, second.DefaultIPSKID)
	assert.Equal(t, first.DefaultPSK, second.DefaultPSK)
	assert.False(t, second.DefaultIPSKCreated)
	assert.Equal(t, string(models.AuthModeIPSKWithoutRadius), second.SSID.AuthMode)
}
