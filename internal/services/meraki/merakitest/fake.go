// Package merakitest provides an in-memory implementation of the network management API
// for tests.
package merakitest

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki"
)

// Operation names accepted by FailOn.
const (
	OpGetSSID           = "get_ssid"
	OpUpdateSSID        = "update_ssid"
	OpListGroupPolicies = "list_group_policies"
	OpCreateGroupPolicy = "create_group_policy"
	OpUpdateGroupPolicy = "update_group_policy"
	OpListIdentityPSKs  = "list_identity_psks"
	OpCreateIdentityPSK = "create_identity_psk"
)

// Fake is a concurrency-safe, stateful stand-in for meraki.Service.
type Fake struct {
	mu       sync.Mutex
	ssids    map[string]*models.SSIDSummary
	policies map[string][]models.GroupPolicy
	psks     map[string][]models.IdentityPSK
	nextID   int
	failures map[string][]error
	calls    map[string]int
}

var _ meraki.Service = (*Fake)(nil)

// New creates an empty fake. Policy and PSK ids start at 101.
func New() *Fake {
	return &Fake{
		ssids:    make(map[string]*models.SSIDSummary),
		policies: make(map[string][]models.GroupPolicy),
		psks:     make(map[string][]models.IdentityPSK),
		nextID:   100,
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func key(networkID string, number int) string {
	return networkID + "/" + strconv.Itoa(number)
}

// PutSSID seeds or replaces an SSID.
func (f *Fake) PutSSID(networkID string, ssid models.SSIDSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ssids[key(networkID, ssid.Number)] = &ssid
}

// PutGroupPolicy seeds a group policy and returns it with its assigned id.
func (f *Fake) PutGroupPolicy(networkID string, p models.GroupPolicy) models.GroupPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = f.newID()
	}
	f.policies[networkID] = append(f.policies[networkID], p)
	return p
}

// SetGroupPolicyBypass flips the bypass flag of a policy out of band.
func (f *Fake) SetGroupPolicyBypass(networkID, id string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.policies[networkID] {
		if f.policies[networkID][i].ID == id {
			f.policies[networkID][i].SplashPageBypassEnabled = enabled
		}
	}
}

// PutIdentityPSK seeds an identity PSK.
func (f *Fake) PutIdentityPSK(networkID string, number int, psk models.IdentityPSK) models.IdentityPSK {
	f.mu.Lock()
	defer f.mu.Unlock()
	if psk.ID == "" {
		psk.ID = f.newID()
	}
	k := key(networkID, number)
	f.psks[k] = append(f.psks[k], psk)
	return psk
}

// DeleteIdentityPSKs removes every identity PSK from an SSID out of band.
func (f *Fake) DeleteIdentityPSKs(networkID string, number int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.psks, key(networkID, number))
}

// GroupPolicies returns a snapshot of a network's policies.
func (f *Fake) GroupPolicies(networkID string) []models.GroupPolicy {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.GroupPolicy(nil), f.policies[networkID]...)
}

// IdentityPSKs returns a snapshot of an SSID's identity PSKs.
func (f *Fake) IdentityPSKs(networkID string, number int) []models.IdentityPSK {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.IdentityPSK(nil), f.psks[key(networkID, number)]...)
}

// SSID returns a copy of the stored SSID, or nil.
func (f *Fake) SSID(networkID string, number int) *models.SSIDSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.ssids[key(networkID, number)]
	if !ok {
		return nil
	}
	c := *s
	return &c
}

// FailOn queues errors returned by the next calls of op, one per call.
func (f *Fake) FailOn(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = append(f.failures[op], errs...)
}

// Calls returns how many times op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Fake) newID() string {
	f.nextID++
	return strconv.Itoa(f.nextID)
}

// enter records the call and pops a queued failure. Caller holds f.mu.
func (f *Fake) enter(op string) error {
	f.calls[op]++
	if q := f.failures[op]; len(q) > 0 {
		f.failures[op] = q[1:]
		return q[0]
	}
	return nil
}

func notFound(method, path string) error {
	return &meraki.APIError{Method: method, Path: path, StatusCode: 404, Errors: []string{"Not found"}}
}

// GetSSID implements meraki.Service.
func (f *Fake) GetSSID(_ context.Context, networkID string, number int) (*models.SSIDSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpGetSSID); err != nil {
		return nil, err
	}
	s, ok := f.ssids[key(networkID, number)]
	if !ok {
		return nil, notFound("GET", fmt.Sprintf("/networks/%s/wireless/ssids/%d", networkID, number))
	}
	c := *s
	return &c, nil
}

// UpdateSSID implements meraki.Service.
func (f *Fake) UpdateSSID(_ context.Context, networkID string, number int, patch models.SSIDPatch) (*models.SSIDSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpUpdateSSID); err != nil {
		return nil, err
	}
	s, ok := f.ssids[key(networkID, number)]
	if !ok {
		return nil, notFound("PUT", fmt.Sprintf("/networks/%s/wireless/ssids/%d", networkID, number))
	}
	apply(&s.Name, patch.Name)
	apply(&s.Enabled, patch.Enabled)
	apply(&s.AuthMode, patch.AuthMode)
	apply(&s.EncryptionMode, patch.EncryptionMode)
	apply(&s.WPAEncryptionMode, patch.WPAEncryptionMode)
	apply(&s.IPAssignmentMode, patch.IPAssignmentMode)
	apply(&s.SplashPage, patch.SplashPage)
	apply(&s.SplashURL, patch.SplashURL)
	c := *s
	return &c, nil
}

func apply[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// ListGroupPolicies implements meraki.Service.
func (f *Fake) ListGroupPolicies(_ context.Context, networkID string) ([]models.GroupPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpListGroupPolicies); err != nil {
		return nil, err
	}
	return append([]models.GroupPolicy{}, f.policies[networkID]...), nil
}

// CreateGroupPolicy implements meraki.Service.
func (f *Fake) CreateGroupPolicy(_ context.Context, networkID string, spec models.GroupPolicySpec) (*models.GroupPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCreateGroupPolicy); err != nil {
		return nil, err
	}
	p := models.GroupPolicy{ID: f.newID(), Name: spec.Name}
	if spec.SplashPageBypass != nil {
		p.SplashPageBypassEnabled = *spec.SplashPageBypass
	}
	f.policies[networkID] = append(f.policies[networkID], p)
	return &p, nil
}

// UpdateGroupPolicy implements meraki.Service.
func (f *Fake) UpdateGroupPolicy(_ context.Context, networkID, id string, spec models.GroupPolicySpec) (*models.GroupPolicy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpUpdateGroupPolicy); err != nil {
		return nil, err
	}
	for i := range f.policies[networkID] {
		p := &f.policies[networkID][i]
		if p.ID != id {
			continue
		}
		if spec.Name != "" {
			p.Name = spec.Name
		}
		if spec.SplashPageBypass != nil {
			p.SplashPageBypassEnabled = *spec.SplashPageBypass
		}
		c := *p
		return &c, nil
	}
	return nil, notFound("PUT", fmt.Sprintf("/networks/%s/groupPolicies/%s", networkID, id))
}

// ListIdentityPSKs implements meraki.Service.
func (f *Fake) ListIdentityPSKs(_ context.Context, networkID string, number int) ([]models.IdentityPSK, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpListIdentityPSKs); err != nil {
		return nil, err
	}
	return append([]models.IdentityPSK{}, f.psks[key(networkID, number)]...), nil
}

// CreateIdentityPSK implements meraki.Service.
func (f *Fake) CreateIdentityPSK(_ context.Context, networkID string, number int, spec models.IdentityPSKSpec) (*models.IdentityPSK, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter(OpCreateIdentityPSK); err != nil {
		return nil, err
	}
	k := key(networkID, number)
	s, ok := f.ssids[k]
	if !ok {
		return nil, notFound("POST", fmt.Sprintf("/networks/%s/wireless/ssids/%d/identityPsks", networkID, number))
	}
	if s.AuthMode != string(models.AuthModeIPSKWithoutRadius) {
		return nil, &meraki.APIError{
			Method:     "POST",
			Path:       fmt.Sprintf("/networks/%s/wireless/ssids/%d/identityPsks", networkID, number),
			StatusCode: 400,
			Errors:     []string{"Identity PSKs require authMode ipsk-without-radius"},
		}
	}
	psk := models.IdentityPSK{
		ID:            f.newID(),
		Name:          spec.Name,
		Passphrase:    spec.Passphrase,
		GroupPolicyID: spec.GroupPolicyID,
	}
	f.psks[k] = append(f.psks[k], psk)
	return &psk, nil
}
