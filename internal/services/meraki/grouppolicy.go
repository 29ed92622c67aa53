package meraki

import (
	"context"
	"fmt"

	"github.com/liptonj/wpn-provisioner/internal/models"
)

// Splash auth settings values of a group policy.
const (
	SplashBypass         = "bypass"
	SplashNetworkDefault = "network default"
)

type groupPolicyJSON struct {
	GroupPolicyID      string `json:"groupPolicyId,omitempty"`
	Name               string `json:"name"`
	SplashAuthSettings string `json:"splashAuthSettings,omitempty"`
}

func (g groupPolicyJSON) model() models.GroupPolicy {
	return models.GroupPolicy{
		ID:                      g.GroupPolicyID,
		Name:                    g.Name,
		SplashPageBypassEnabled: g.SplashAuthSettings == SplashBypass,
	}
}

func specJSON(spec models.GroupPolicySpec) groupPolicyJSON {
	g := groupPolicyJSON{Name: spec.Name}
	if spec.SplashPageBypass != nil {
		g.SplashAuthSettings = SplashNetworkDefault
		if *spec.SplashPageBypass {
			g.SplashAuthSettings = SplashBypass
		}
	}
	return g
}

func groupPoliciesPath(networkID string) string {
	return fmt.Sprintf("/networks/%s/groupPolicies", networkID)
}

// ListGroupPolicies returns every group policy of a network.
func (s *Impl) ListGroupPolicies(ctx context.Context, networkID string) ([]models.GroupPolicy, error) {
	var raw []groupPolicyJSON
	if err := s.do(ctx, "list_group_policies", "GET", groupPoliciesPath(networkID), nil, &raw); err != nil {
		return nil, err
	}

	policies := make([]models.GroupPolicy, 0, len(raw))
	for _, g := range raw {
		policies = append(policies, g.model())
	}
	return policies, nil
}

// CreateGroupPolicy creates a group policy.
func (s *Impl) CreateGroupPolicy(ctx context.Context, networkID string, spec models.GroupPolicySpec) (*models.GroupPolicy, error) {
	// Creation is serialized per name so two creates cannot race into duplicates.
	unlock := s.locks.lock(fmt.Sprintf("grouppolicy:%s/name:%s", networkID, spec.Name))
	defer unlock()

	var created groupPolicyJSON
	find := func(ctx context.Context) (bool, error) {
		var raw []groupPolicyJSON
		if err := s.doOnce(ctx, "GET", groupPoliciesPath(networkID), nil, &raw); err != nil {
			return false, err
		}
		for _, g := range raw {
			if g.Name == spec.Name {
				created = g
				return true, nil
			}
		}
		return false, nil
	}
	if err := s.create(ctx, "create_group_policy", groupPoliciesPath(networkID), specJSON(spec), &created, find); err != nil {
		return nil, err
	}

	policy := created.model()
	return &policy, nil
}

// UpdateGroupPolicy updates a group policy by id.
func (s *Impl) UpdateGroupPolicy(ctx context.Context, networkID, id string, spec models.GroupPolicySpec) (*models.GroupPolicy, error) {
	unlock := s.locks.lock(fmt.Sprintf("grouppolicy:%s/%s", networkID, id))
	defer unlock()

	var updated groupPolicyJSON
	if err := s.do(ctx, "update_group_policy", "PUT", groupPoliciesPath(networkID)+"/"+id, specJSON(spec), &updated); err != nil {
		return nil, err
	}

	policy := updated.model()
	return &policy, nil
}
