// Package share renders guest Wi-Fi credentials as scannable QR codes.
package share

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/rs/zerolog"
	"github.com/skip2/go-qrcode"
)

// DefaultPNGSize is the edge length in pixels of rendered PNG codes.
const DefaultPNGSize = 256

// ErrNoCredentials is returned when no guest passphrase has been provisioned.
var ErrNoCredentials = errors.New("no guest credentials provisioned; run apply first")

// Credentials are the shared guest-tier network credentials.
type Credentials struct {
	SSID       string
	Passphrase string
}

// FromSettings extracts the guest credentials persisted by the last apply.
func FromSettings(ps *models.PortalSettings) (Credentials, error) {
	if ps == nil || ps.SSIDName == "" || ps.DefaultSSIDPSK == "" {
		return Credentials{}, ErrNoCredentials
	}
	return Credentials{SSID: ps.SSIDName, Passphrase: ps.DefaultSSIDPSK}, nil
}

var wifiEscaper = strings.NewReplacer(
	`\`, `\\`,
	`;`, `\;`,
	`,`, `\,`,
	`:`, `\:`,
	`"`, `\"`,
)

// WiFiPayload builds the WIFI: URI understood by phone camera apps.
func WiFiPayload(c Credentials) string {
	return "WIFI:T:WPA;S:" + wifiEscaper.Replace(c.SSID) + ";P:" + wifiEscaper.Replace(c.Passphrase) + ";;"
}

// Service defines the interface for QR code rendering.
type Service interface {
	PNG(c Credentials, size int) ([]byte, error)
	Terminal(c Credentials) (string, error)
}

// Impl implements the share Service interface.
type Impl struct {
	logger zerolog.Logger
}

// New creates a new share service.
func New(logger zerolog.Logger) *Impl {
	return &Impl{logger: logger}
}

// PNG renders the credentials as a PNG image.
func (s *Impl) PNG(c Credentials, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultPNGSize
	}

	png, err := qrcode.Encode(WiFiPayload(c), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("failed to encode QR code: %w", err)
	}

	s.logger.Debug().Str("ssid", c.SSID).Int("size", size).Msg("guest QR code rendered")
	return png, nil
}

// Terminal renders the credentials as block characters for a terminal.
func (s *Impl) Terminal(c Credentials) (string, error) {
	qr, err := qrcode.New(WiFiPayload(c), qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to encode QR code: %w", err)
	}
	// false = inverted colors for dark terminals
	return qr.ToSmallString(false), nil
}
