package settings

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func openTestStore(t *testing.T, dsn, passphrase string) *Store {
	t.Helper()
	store, err := Open(context.Background(), testLogger(), models.SettingsConfig{
		Driver:               DriverSQLite,
		DSN:                  dsn,
		EncryptionPassphrase: passphrase,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testSettings() models.PortalSettings {
	return models.PortalSettings{
		NetworkID:            "N_1",
		SSIDNumber:           2,
		SSIDName:             "Residents",
		GroupPolicyID:        "101",
		GroupPolicyName:      "WPN-Users",
		GuestGroupPolicyName: "Guests",
		DefaultSSIDPSK:       "GuestPass2345",
		DefaultIPSKID:        "103",
		SplashPageURL:        "https://portal.example.com/api/splash",
	}
}

func TestLoad_NotConfigured(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "portal.db"), "")

	_, err := store.Load(context.Background())

	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSaveAndLoad(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "portal.db"), "")

	require.NoError(t, store.Save(context.Background(), testSettings()))
	loaded, err := store.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, testSettings(), *loaded)
}

func TestSave_OverwritesPreviousRun(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "portal.db"), "")
	require.NoError(t, store.Save(context.Background(), testSettings()))

	next := testSettings()
	next.GuestGroupPolicyName = ""
	next.SplashPageURL = "https://wpn.tunnel.example.net/api/splash"
	require.NoError(t, store.Save(context.Background(), next))

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, loaded.GuestGroupPolicyName)
	assert.Equal(t, "https://wpn.tunnel.example.net/api/splash", loaded.SplashPageURL)

	var count int
	require.NoError(t, store.db.Get(&count, `SELECT COUNT(*) FROM portal_settings`))
	assert.Equal(t, 9, count)
}

func TestSave_EncryptsPSK(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	store := openTestStore(t, dsn, "correct horse battery staple")

	require.NoError(t, store.Save(context.Background(), testSettings()))

	var raw string
	require.NoError(t, store.db.Get(&raw, `SELECT value FROM portal_settings WHERE key = ?`, KeySSIDPSK))
	assert.True(t, strings.HasPrefix(raw, EncPrefix))
	assert.NotContains(t, raw, "GuestPass2345")

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GuestPass2345", loaded.DefaultSSIDPSK)
}

func TestLoad_EncryptedAcrossReopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	first, err := Open(context.Background(), testLogger(), models.SettingsConfig{DSN: dsn, EncryptionPassphrase: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), testSettings()))
	require.NoError(t, first.Close())

	reopened := openTestStore(t, dsn, "s3cret")
	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "GuestPass2345", loaded.DefaultSSIDPSK)
}

func TestLoad_EncryptedWithoutPassphrase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	first, err := Open(context.Background(), testLogger(), models.SettingsConfig{DSN: dsn, EncryptionPassphrase: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), testSettings()))
	require.NoError(t, first.Close())

	plain := openTestStore(t, dsn, "")
	_, err = plain.Load(context.Background())

	assert.ErrorIs(t, err, ErrNoPassphrase)
}

func TestLoad_WrongPassphrase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	first, err := Open(context.Background(), testLogger(), models.SettingsConfig{DSN: dsn, EncryptionPassphrase: "s3cret"})
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), testSettings()))
	require.NoError(t, first.Close())

	wrong := openTestStore(t, dsn, "not-the-passphrase")
	_, err = wrong.Load(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "decryption failed")
}

func TestLoad_PlaintextReadWithPassphrase(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "portal.db")
	first, err := Open(context.Background(), testLogger(), models.SettingsConfig{DSN: dsn})
	require.NoError(t, err)
	require.NoError(t, first.Save(context.Background(), testSettings()))
	require.NoError(t, first.Close())

	encrypted := openTestStore(t, dsn, "s3cret")
	loaded, err := encrypted.Load(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "GuestPass2345", loaded.DefaultSSIDPSK)
}

func TestWPNConfirmation(t *testing.T) {
	store := openTestStore(t, filepath.Join(t.TempDir(), "portal.db"), "")
	ctx := context.Background()

	confirmed, err := store.WPNConfirmed(ctx, "N_1", 2)
	require.NoError(t, err)
	assert.False(t, confirmed)

	require.NoError(t, store.ConfirmWPN(ctx, "N_1", 2))

	confirmed, err = store.WPNConfirmed(ctx, "N_1", 2)
	require.NoError(t, err)
	assert.True(t, confirmed)

	confirmed, err = store.WPNConfirmed(ctx, "N_1", 3)
	require.NoError(t, err)
	assert.False(t, confirmed, "confirmation is bound to one SSID")

	require.NoError(t, store.Save(ctx, testSettings()))
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "N_1/2", loaded.WPNConfirmedForTarget)
}

func TestFromResult(t *testing.T) {
	result := models.ConfigureResult{
		Success:              true,
		SSID:                 models.SSIDSummary{Number: 2, Name: "Residents"},
		GroupPolicyID:        "101",
		GroupPolicyName:      "WPN-Users",
		GuestGroupPolicyName: "Guests",
		DefaultPSK:           "GuestPass2345",
		DefaultIPSKID:        "103",
		SplashURL:            "https://portal.example.com/api/splash",
	}

	got := FromResult(models.NetworkTarget{NetworkID: "N_1", SSIDNumber: 2}, result)

	assert.Equal(t, testSettings(), got)
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(context.Background(), testLogger(), models.SettingsConfig{Driver: "mysql", DSN: "x"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported settings driver")
}

func TestDecryptValue_Plaintext(t *testing.T) {
	got, err := decryptValue(nil, "plain")

	require.NoError(t, err)
	assert.Equal(t, "plain", got)
}

func TestEncryptValue_RoundTripUsesFreshNonce(t *testing.T) {
	key := deriveKey("pass", []byte("0123456789abcdef"))

	a, err := encryptValue(key, "GuestPass2345")
	require.NoError(t, err)
	b, err := encryptValue(key, "GuestPass2345")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	plain, err := decryptValue(key, a)
	require.NoError(t, err)
	assert.Equal(t, "GuestPass2345", plain)
}
