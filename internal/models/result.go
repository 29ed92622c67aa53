package models

import (
	"fmt"
	"net/url"
)

// DefaultGuestPSKName is the fixed name of the shared guest identity PSK.
const DefaultGuestPSKName = "Guest-Default-Access"

// PolicyAction records whether a group policy was created or updated.
type PolicyAction string

// Group policy actions.
const (
	PolicyCreated PolicyAction = "created"
	PolicyUpdated PolicyAction = "updated"
)

// DesiredConfiguration is the two-tier access policy requested for one wizard run.
type DesiredConfiguration struct {
	RegisteredUsersPolicyName string `json:"registeredUsersPolicyName"`
	GuestPolicyName           string `json:"guestPolicyName,omitempty"`
	SplashURL                 string `json:"splashUrl,omitempty"`
	UseManagedTunnel          bool   `json:"useManagedTunnel"`
}

// Validate checks the local invariants of a desired configuration.
func (d DesiredConfiguration) Validate() error {
	if d.RegisteredUsersPolicyName == "" {
		return fmt.Errorf("registered users policy name is required")
	}
	if d.GuestPolicyName == d.RegisteredUsersPolicyName {
		return fmt.Errorf("guest policy name must differ from the registered users policy name")
	}
	if d.SplashURL != "" {
		u, err := url.Parse(d.SplashURL)
		if err != nil || !u.IsAbs() || u.Host == "" {
			return fmt.Errorf("splash URL %q must be an absolute URL", d.SplashURL)
		}
	}
	return nil
}

// ConfigureResult is the immutable output of a successful apply.
type ConfigureResult struct {
	Success              bool         `json:"success" yaml:"success"`
	Message              string       `json:"message" yaml:"message"`
	SSID                 SSIDSummary  `json:"ssid" yaml:"ssid"`
	GroupPolicyID        string       `json:"groupPolicyId" yaml:"groupPolicyId"`
	GroupPolicyName      string       `json:"groupPolicyName" yaml:"groupPolicyName"`
	GroupPolicyAction    PolicyAction `json:"groupPolicyAction" yaml:"groupPolicyAction"`
	GuestGroupPolicyID   string       `json:"guestGroupPolicyId,omitempty" yaml:"guestGroupPolicyId,omitempty"`
	GuestGroupPolicyName string       `json:"guestGroupPolicyName,omitempty" yaml:"guestGroupPolicyName,omitempty"`
	GuestPolicyAction    PolicyAction `json:"guestPolicyAction,omitempty" yaml:"guestPolicyAction,omitempty"`
	DefaultPSK           string       `json:"defaultPsk" yaml:"defaultPsk"`
	DefaultIPSKID        string       `json:"defaultIpskId" yaml:"defaultIpskId"`
	DefaultIPSKCreated   bool         `json:"defaultIpskCreated" yaml:"defaultIpskCreated"`
	SplashURL            string       `json:"splashUrl" yaml:"splashUrl"`
}
