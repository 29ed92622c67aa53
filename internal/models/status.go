package models

// OverallStatus classifies an SSID's provisioning readiness.
type OverallStatus string

// Overall statuses, in the wizard's vocabulary.
const (
	StatusNeedsConfiguration OverallStatus = "needs_configuration"
	// StatusNeedsManualStep means API-side configuration is done and a human
	// must enable WPN in the dashboard.
	StatusNeedsManualStep OverallStatus = "config_complete"
	StatusReady           OverallStatus = "ready"
)

// SSIDStatus is the derived, never persisted, readiness of an SSID.
type SSIDStatus struct {
	Name                  string        `json:"name" yaml:"name"`
	Enabled               bool          `json:"enabled" yaml:"enabled"`
	AuthMode              AuthMode      `json:"authMode" yaml:"authMode"`
	IdentityPSKConfigured bool          `json:"identityPskConfigured" yaml:"identityPskConfigured"`
	WPNEnabled            bool          `json:"wpnEnabled" yaml:"wpnEnabled"`
	OverallStatus         OverallStatus `json:"overallStatus" yaml:"overallStatus"`
	Issues                []string      `json:"issues" yaml:"issues"`
	Warnings              []string      `json:"warnings" yaml:"warnings"`
}

// ValidationCheck is one entry of a post-configuration checklist.
type ValidationCheck struct {
	Name   string `json:"name" yaml:"name"`
	Value  string `json:"value" yaml:"value"`
	Passed bool   `json:"passed" yaml:"passed"`
}

// ValidationResult is the outcome of re-reading remote state after apply.
type ValidationResult struct {
	Valid    bool              `json:"valid" yaml:"valid"`
	Checks   []ValidationCheck `json:"checks" yaml:"checks"`
	Issues   []string          `json:"issues" yaml:"issues"`
	Warnings []string          `json:"warnings" yaml:"warnings"`
	Summary  string            `json:"summary" yaml:"summary"`
}
