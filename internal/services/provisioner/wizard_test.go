package provisioner

import (
	"context"
	"errors"
	"testing"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/meraki/merakitest"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStatusService struct {
	evaluateFunc func(ctx context.Context, networkID string, ssidNumber int) (*models.SSIDStatus, error)
}

func (m *mockStatusService) Evaluate(ctx context.Context, networkID string, ssidNumber int) (*models.SSIDStatus, error) {
	if m.evaluateFunc != nil {
		return m.evaluateFunc(ctx, networkID, ssidNumber)
	}
	return &models.SSIDStatus{OverallStatus: models.StatusNeedsConfiguration}, nil
}

type mockProvisioner struct {
	applyFunc func(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error)
}

func (m *mockProvisioner) Apply(ctx context.Context, desired models.DesiredConfiguration) (*models.ConfigureResult, error) {
	if m.applyFunc != nil {
		return m.applyFunc(ctx, desired)
	}
	return &models.ConfigureResult{Success: true}, nil
}

func testTarget() models.NetworkTarget {
	return models.NetworkTarget{NetworkID: testNetwork, SSIDNumber: testSSID}
}

func TestWizard_Run_ReachesComplete(t *testing.T) {
	fake := newFake()
	statusSvc := status.New(testLogger(), fake, nil)
	provisioner := newTestProvisioner(fake, &mockSecretService{})
	w := NewWizard(statusSvc, provisioner, testTarget(), desired())

	final := w.Run(context.Background(), desired())

	complete, ok := final.(Complete)
	require.True(t, ok, "expected Complete, got %s", final.Name())
	assert.True(t, complete.Result.Success)

	// Status after apply needs only the manual WPN step.
	after, err := statusSvc.Evaluate(context.Background(), testNetwork, testSSID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusNeedsManualStep, after.OverallStatus)
}

func TestWizard_Step_Transitions(t *testing.T) {
	statusSvc := &mockStatusService{}
	var applied models.DesiredConfiguration
	provisioner := &mockProvisioner{
		applyFunc: func(ctx context.Context, d models.DesiredConfiguration) (*models.ConfigureResult, error) {
			applied = d
			return &models.ConfigureResult{Success: true, GroupPolicyID: "101"}, nil
		},
	}
	w := NewWizard(statusSvc, provisioner, testTarget(), desired())

	s := w.Step(context.Background(), Checking{})
	configuring, ok := s.(Configuring)
	require.True(t, ok)
	assert.Equal(t, "configuring", s.Name())
	assert.Equal(t, desired(), configuring.Desired)
	assert.Equal(t, models.StatusNeedsConfiguration, configuring.Status.OverallStatus)

	configuring.Desired.GuestPolicyName = "Guests"
	s = w.Step(context.Background(), configuring)
	applying, ok := s.(Applying)
	require.True(t, ok)
	assert.Equal(t, "Guests", applying.Desired.GuestPolicyName)

	s = w.Step(context.Background(), applying)
	complete, ok := s.(Complete)
	require.True(t, ok)
	assert.Equal(t, "101", complete.Result.GroupPolicyID)
	assert.Equal(t, "Guests", applied.GuestPolicyName)

	assert.Equal(t, complete, w.Step(context.Background(), complete))
	assert.True(t, Terminal(complete))
}

func TestWizard_CheckingIsSideEffectFree(t *testing.T) {
	fake := newFake()
	w := NewWizard(status.New(testLogger(), fake, nil), newTestProvisioner(fake, &mockSecretService{}), testTarget(), desired())

	for i := 0; i < 3; i++ {
		s := w.Step(context.Background(), Checking{})
		_, ok := s.(Configuring)
		require.True(t, ok)
	}

	assert.Zero(t, fake.Calls(merakitest.OpUpdateSSID))
	assert.Zero(t, fake.Calls(merakitest.OpCreateGroupPolicy))
	assert.Zero(t, fake.Calls(merakitest.OpCreateIdentityPSK))
}

func TestWizard_InvalidConfigurationFails(t *testing.T) {
	provisioner := &mockProvisioner{
		applyFunc: func(ctx context.Context, d models.DesiredConfiguration) (*models.ConfigureResult, error) {
			t.Fatal("apply must not run for an invalid configuration")
			return nil, nil
		},
	}
	w := NewWizard(&mockStatusService{}, provisioner, testTarget(), desired())

	s := w.Step(context.Background(), Configuring{Desired: models.DesiredConfiguration{SplashURL: "not a url"}})

	failed, ok := s.(Failed)
	require.True(t, ok)
	assert.Equal(t, "configuring", failed.From)
	assert.ErrorIs(t, failed.Err, ErrConfiguration)
	require.NotNil(t, failed.Desired)
}

func TestWizard_RetryAfterApplyFailure(t *testing.T) {
	attempts := 0
	provisioner := &mockProvisioner{
		applyFunc: func(ctx context.Context, d models.DesiredConfiguration) (*models.ConfigureResult, error) {
			attempts++
			if attempts == 1 {
				return nil, &ApplyError{Kind: KindApplyFailed, Step: StepUpdateSSID, Err: errors.New("503")}
			}
			return &models.ConfigureResult{Success: true}, nil
		},
	}
	w := NewWizard(&mockStatusService{}, provisioner, testTarget(), desired())

	s := w.Run(context.Background(), desired())
	failed, ok := s.(Failed)
	require.True(t, ok)
	assert.Equal(t, "applying", failed.From)
	assert.ErrorIs(t, failed.Err, ErrApplyFailed)

	s = w.Retry(failed)
	applying, ok := s.(Applying)
	require.True(t, ok)
	assert.Equal(t, desired(), applying.Desired)

	s = w.Step(context.Background(), applying)
	_, ok = s.(Complete)
	assert.True(t, ok)
	assert.Equal(t, 2, attempts)
}

func TestWizard_RetryAfterStatusFailure(t *testing.T) {
	statusSvc := &mockStatusService{
		evaluateFunc: func(ctx context.Context, networkID string, ssidNumber int) (*models.SSIDStatus, error) {
			return nil, errors.New("connection refused")
		},
	}
	w := NewWizard(statusSvc, &mockProvisioner{}, testTarget(), desired())

	s := w.Step(context.Background(), Checking{})

	failed, ok := s.(Failed)
	require.True(t, ok)
	assert.Nil(t, failed.Desired)
	var applyErr *ApplyError
	require.ErrorAs(t, failed.Err, &applyErr)
	assert.Equal(t, StepCheckStatus, applyErr.Step)

	_, ok = w.Retry(failed).(Checking)
	assert.True(t, ok)
}
