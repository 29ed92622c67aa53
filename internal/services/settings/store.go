// Package settings persists provisioning results into the portal settings table.
package settings

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog"

	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Setting keys.
const (
	KeyNetworkID            = "default_network_id"
	KeySSIDNumber           = "default_ssid_number"
	KeySSIDName             = "default_ssid_name"
	KeyGroupPolicyID        = "default_group_policy_id"
	KeyGroupPolicyName      = "default_group_policy_name"
	KeyGuestGroupPolicyName = "default_guest_group_policy_name"
	KeySSIDPSK              = "default_ssid_psk"
	KeyIPSKID               = "default_ipsk_id"
	KeySplashPageURL        = "splash_page_url"
	KeyWPNConfirmed         = "wpn_confirmed"
	keyKDFSalt              = "_kdf_salt"
)

// ErrNotConfigured is returned when no apply result has been persisted yet.
var ErrNotConfigured = errors.New("portal settings not configured; run apply first")

const schema = `CREATE TABLE IF NOT EXISTS portal_settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

const upsertSQL = `INSERT INTO portal_settings (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`

// Service defines the interface for the portal settings store.
type Service interface {
	Save(ctx context.Context, s models.PortalSettings) error
	Load(ctx context.Context) (*models.PortalSettings, error)
	ConfirmWPN(ctx context.Context, networkID string, ssidNumber int) error
	WPNConfirmed(ctx context.Context, networkID string, ssidNumber int) (bool, error)
}

// Store implements Service on a SQL database.
type Store struct {
	db     *sqlx.DB
	logger zerolog.Logger
	key    []byte // nil when no passphrase is configured
}

type row struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// Open connects to the configured database and prepares the schema.
func Open(ctx context.Context, logger zerolog.Logger, cfg models.SettingsConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverSQLite
	}
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported settings driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to settings database: %w", err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply sqlite pragma: %w", err)
		}
	} else {
		db.SetMaxOpenConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	store, err := NewWithDB(ctx, logger, db, cfg.EncryptionPassphrase)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug().Str("driver", driver).Bool("encrypted", store.key != nil).Msg("settings store opened")
	return store, nil
}

// NewWithDB creates a store on an open database (for testing).
func NewWithDB(ctx context.Context, logger zerolog.Logger, db *sqlx.DB, passphrase string) (*Store, error) {
	s := &Store{db: db, logger: logger}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to create settings schema: %w", err)
	}

	if passphrase != "" {
		salt, err := s.salt(ctx)
		if err != nil {
			return nil, err
		}
		s.key = deriveKey(passphrase, salt)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// salt returns the stored KDF salt, creating it on first use.
func (s *Store) salt(ctx context.Context) ([]byte, error) {
	fresh, err := newSalt()
	if err != nil {
		return nil, err
	}

	insert := s.db.Rebind(`INSERT INTO portal_settings (key, value, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP) ON CONFLICT (key) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, keyKDFSalt, base64.StdEncoding.EncodeToString(fresh)); err != nil {
		return nil, fmt.Errorf("failed to store KDF salt: %w", err)
	}

	var encoded string
	if err := s.db.GetContext(ctx, &encoded, s.db.Rebind(`SELECT value FROM portal_settings WHERE key = ?`), keyKDFSalt); err != nil {
		return nil, fmt.Errorf("failed to read KDF salt: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode KDF salt: %w", err)
	}
	return salt, nil
}

// FromResult maps a successful apply onto the persisted settings.
func FromResult(target models.NetworkTarget, r models.ConfigureResult) models.PortalSettings {
	return models.PortalSettings{
		NetworkID:            target.NetworkID,
		SSIDNumber:           target.SSIDNumber,
		SSIDName:             r.SSID.Name,
		GroupPolicyID:        r.GroupPolicyID,
		GroupPolicyName:      r.GroupPolicyName,
		GuestGroupPolicyName: r.GuestGroupPolicyName,
		DefaultSSIDPSK:       r.DefaultPSK,
		DefaultIPSKID:        r.DefaultIPSKID,
		SplashPageURL:        r.SplashURL,
	}
}

// Save upserts every provisioning key in one transaction. The WPN confirmation is kept.
func (s *Store) Save(ctx context.Context, ps models.PortalSettings) error {
	psk := ps.DefaultSSIDPSK
	if s.key != nil && psk != "" {
		var err error
		psk, err = encryptValue(s.key, psk)
		if err != nil {
			return fmt.Errorf("failed to encrypt PSK: %w", err)
		}
	}

	values := []row{
		{KeyNetworkID, ps.NetworkID},
		{KeySSIDNumber, strconv.Itoa(ps.SSIDNumber)},
		{KeySSIDName, ps.SSIDName},
		{KeyGroupPolicyID, ps.GroupPolicyID},
		{KeyGroupPolicyName, ps.GroupPolicyName},
		{KeyGuestGroupPolicyName, ps.GuestGroupPolicyName},
		{KeySSIDPSK, psk},
		{KeyIPSKID, ps.DefaultIPSKID},
		{KeySplashPageURL, ps.SplashPageURL},
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := tx.Rebind(upsertSQL)
	for _, v := range values {
		if _, err := tx.ExecContext(ctx, query, v.Key, v.Value); err != nil {
			return fmt.Errorf("failed to save %s: %w", v.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit settings: %w", err)
	}

	s.logger.Info().
		Str("network_id", ps.NetworkID).
		Int("ssid_number", ps.SSIDNumber).
		Bool("psk_encrypted", s.key != nil).
		Msg("portal settings saved")
	return nil
}

// Load returns the persisted settings, or ErrNotConfigured.
func (s *Store) Load(ctx context.Context) (*models.PortalSettings, error) {
	var rows []row
	if err := s.db.SelectContext(ctx, &rows, `SELECT key, value FROM portal_settings`); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}

	kv := make(map[string]string, len(rows))
	for _, r := range rows {
		kv[r.Key] = r.Value
	}
	if kv[KeyNetworkID] == "" {
		return nil, ErrNotConfigured
	}

	number, err := strconv.Atoi(kv[KeySSIDNumber])
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", KeySSIDNumber, kv[KeySSIDNumber], err)
	}

	psk, err := decryptValue(s.key, kv[KeySSIDPSK])
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KeySSIDPSK, err)
	}

	return &models.PortalSettings{
		NetworkID:             kv[KeyNetworkID],
		SSIDNumber:            number,
		SSIDName:              kv[KeySSIDName],
		GroupPolicyID:         kv[KeyGroupPolicyID],
		GroupPolicyName:       kv[KeyGroupPolicyName],
		GuestGroupPolicyName:  kv[KeyGuestGroupPolicyName],
		DefaultSSIDPSK:        psk,
		DefaultIPSKID:         kv[KeyIPSKID],
		SplashPageURL:         kv[KeySplashPageURL],
		WPNConfirmedForTarget: kv[KeyWPNConfirmed],
	}, nil
}

func wpnTarget(networkID string, ssidNumber int) string {
	return networkID + "/" + strconv.Itoa(ssidNumber)
}

// ConfirmWPN records that an operator enabled WPN in the dashboard for the target.
func (s *Store) ConfirmWPN(ctx context.Context, networkID string, ssidNumber int) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(upsertSQL), KeyWPNConfirmed, wpnTarget(networkID, ssidNumber)); err != nil {
		return fmt.Errorf("failed to record WPN confirmation: %w", err)
	}
	s.logger.Info().Str("network_id", networkID).Int("ssid_number", ssidNumber).Msg("WPN confirmation recorded")
	return nil
}

// WPNConfirmed reports whether ConfirmWPN was recorded for exactly this target.
func (s *Store) WPNConfirmed(ctx context.Context, networkID string, ssidNumber int) (bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM portal_settings WHERE key = ?`), KeyWPNConfirmed)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read WPN confirmation: %w", err)
	}
	return value == wpnTarget(networkID, ssidNumber), nil
}
