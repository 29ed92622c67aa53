package models

// AuthMode is the readiness taxonomy for an SSID's authentication mode.
type AuthMode string

// Auth modes understood by the status evaluator.
const (
	AuthModeOpen              AuthMode = "open"
	AuthModeIPSKWithoutRadius AuthMode = "ipsk-without-radius"
	AuthModeIPSKWithRadius    AuthMode = "ipsk-with-radius"
	AuthModeOther             AuthMode = "other"
)

// ParseAuthMode maps a remote auth mode string onto the taxonomy.
func ParseAuthMode(s string) AuthMode {
	switch AuthMode(s) {
	case AuthModeOpen, AuthModeIPSKWithoutRadius, AuthModeIPSKWithRadius:
		return AuthMode(s)
	default:
		return AuthModeOther
	}
}

// SSIDSummary is the subset of remote SSID state the provisioner reads and writes.
type SSIDSummary struct {
	Number            int    `json:"number"`
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	AuthMode          string `json:"authMode"`
	EncryptionMode    string `json:"encryptionMode,omitempty"`
	WPAEncryptionMode string `json:"wpaEncryptionMode,omitempty"`
	IPAssignmentMode  string `json:"ipAssignmentMode,omitempty"`
	SplashPage        string `json:"splashPage,omitempty"`
	SplashURL         string `json:"splashUrl,omitempty"`
	// WPNEnabled is only set when the remote API reports the toggle.
	WPNEnabled *bool `json:"wifiPersonalNetworkEnabled,omitempty"`
}

// SSIDPatch is a partial SSID update; nil fields are left untouched.
type SSIDPatch struct {
	Name              *string
	Enabled           *bool
	AuthMode          *string
	EncryptionMode    *string
	WPAEncryptionMode *string
	IPAssignmentMode  *string
	SplashPage        *string
	SplashURL         *string
}

// GroupPolicy is a named bundle of access rules owned by the remote system.
type GroupPolicy struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	SplashPageBypassEnabled bool   `json:"splashPageBypassEnabled"`
}

// GroupPolicySpec is the desired content of a group policy.
// A nil SplashPageBypass leaves the remote setting untouched on update.
type GroupPolicySpec struct {
	Name             string
	SplashPageBypass *bool
}

// IdentityPSK is a per-identity pre-shared key on an SSID.
type IdentityPSK struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Passphrase    string `json:"passphrase"`
	GroupPolicyID string `json:"groupPolicyId,omitempty"`
}

// IdentityPSKSpec is the content of an identity PSK to create.
type IdentityPSKSpec struct {
	Name          string
	Passphrase    string
	GroupPolicyID string // optional
}
