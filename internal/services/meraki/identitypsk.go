package meraki

import (
	"context"

	"github.com/liptonj/wpn-provisioner/internal/models"
)

type identityPSKRequest struct {
	Name          string `json:"name"`
	Passphrase    string `json:"passphrase"`
	GroupPolicyID string `json:"groupPolicyId,omitempty"`
}

func identityPSKsPath(networkID string, number int) string {
	return ssidPath(networkID, number) + "/identityPsks"
}

// ListIdentityPSKs returns the identity PSKs configured on an SSID.
func (s *Impl) ListIdentityPSKs(ctx context.Context, networkID string, number int) ([]models.IdentityPSK, error) {
	var psks []models.IdentityPSK
	if err := s.do(ctx, "list_identity_psks", "GET", identityPSKsPath(networkID, number), nil, &psks); err != nil {
		return nil, err
	}
	return psks, nil
}

// CreateIdentityPSK creates an identity PSK on an SSID.
func (s *Impl) CreateIdentityPSK(ctx context.Context, networkID string, number int, spec models.IdentityPSKSpec) (*models.IdentityPSK, error) {
	unlock := s.locks.lock("ipsk:" + ssidLockKey(networkID, number))
	defer unlock()

	req := identityPSKRequest{
		Name:          spec.Name,
		Passphrase:    spec.Passphrase,
		GroupPolicyID: spec.GroupPolicyID,
	}

	var created models.IdentityPSK
	find := func(ctx context.Context) (bool, error) {
		var psks []models.IdentityPSK
		if err := s.doOnce(ctx, "GET", identityPSKsPath(networkID, number), nil, &psks); err != nil {
			return false, err
		}
		for _, psk := range psks {
			if psk.Name == spec.Name {
				created = psk
				return true, nil
			}
		}
		return false, nil
	}
	if err := s.create(ctx, "create_identity_psk", identityPSKsPath(networkID, number), req, &created, find); err != nil {
		return nil, err
	}
	return &created, nil
}
