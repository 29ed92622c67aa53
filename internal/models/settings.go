package models

// PortalSettings are the provisioning values persisted by the portal.
type PortalSettings struct {
	NetworkID             string
	SSIDNumber            int
	SSIDName              string
	GroupPolicyID         string
	GroupPolicyName       string
	GuestGroupPolicyName  string
	DefaultSSIDPSK        string
	DefaultIPSKID         string
	SplashPageURL         string
	WPNConfirmedForTarget string // "{networkId}/{ssidNumber}" once an operator confirmed WPN
}
