package provisioner

import (
	"context"
	"fmt"

	"github.com/liptonj/wpn-provisioner/internal/models"
	"github.com/liptonj/wpn-provisioner/internal/services/status"
)

// State is one of the wizard states: Checking, Configuring, Applying, Complete or Failed.
type State interface {
	Name() string
	isState()
}

// Checking reads remote status. It never writes and can always be re-entered.
type Checking struct{}

// Configuring holds the desired configuration being gathered. No network writes happen here.
type Configuring struct {
	Status  models.SSIDStatus
	Desired models.DesiredConfiguration
}

// Applying executes the configuration plan for Desired.
type Applying struct {
	Status  models.SSIDStatus
	Desired models.DesiredConfiguration
}

// Complete carries the result of a successful apply.
type Complete struct {
	Result models.ConfigureResult
}

// Failed carries the error of the state that failed. Desired is set when an apply can be retried.
type Failed struct {
	From    string
	Err     error
	Desired *models.DesiredConfiguration
}

func (Checking) Name() string    { return "checking" }
func (Configuring) Name() string { return "configuring" }
func (Applying) Name() string    { return "applying" }
func (Complete) Name() string    { return "complete" }
func (Failed) Name() string      { return "failed" }

func (Checking) isState()    {}
func (Configuring) isState() {}
func (Applying) isState()    {}
func (Complete) isState()    {}
func (Failed) isState()      {}

// Terminal reports whether s is Complete or Failed.
func Terminal(s State) bool {
	switch s.(type) {
	case Complete, Failed:
		return true
	}
	return false
}

// Wizard moves wizard states forward using the status evaluator and the provisioner.
type Wizard struct {
	statusSvc   status.Service
	provisioner Service
	target      models.NetworkTarget
	defaults    models.DesiredConfiguration
}

// NewWizard creates a wizard for one SSID. defaults seeds the Configuring state.
func NewWizard(statusSvc status.Service, provisioner Service, target models.NetworkTarget, defaults models.DesiredConfiguration) *Wizard {
	return &Wizard{
		statusSvc:   statusSvc,
		provisioner: provisioner,
		target:      target,
		defaults:    defaults,
	}
}

// Step performs one transition. Complete and Failed are returned unchanged.
func (w *Wizard) Step(ctx context.Context, s State) State {
	switch st := s.(type) {
	case Checking:
		current, err := w.statusSvc.Evaluate(ctx, w.target.NetworkID, w.target.SSIDNumber)
		if err != nil {
			return Failed{From: st.Name(), Err: &ApplyError{Kind: KindApplyFailed, Step: StepCheckStatus, Completed: []string{}, Err: err}}
		}
		return Configuring{Status: *current, Desired: w.defaults}

	case Configuring:
		if err := st.Desired.Validate(); err != nil {
			desired := st.Desired
			return Failed{
				From:    st.Name(),
				Err:     &ApplyError{Kind: KindConfigurationError, Step: StepValidate, Completed: []string{}, Err: fmt.Errorf("%w: %w", ErrConfiguration, err)},
				Desired: &desired,
			}
		}
		return Applying(st)

	case Applying:
		result, err := w.provisioner.Apply(ctx, st.Desired)
		if err != nil {
			desired := st.Desired
			return Failed{From: st.Name(), Err: err, Desired: &desired}
		}
		return Complete{Result: *result}
	}

	return s
}

// Retry re-enters Applying after a failed apply, or Checking after a failed status read.
// Apply is idempotent, so retrying converges on the same end state.
func (w *Wizard) Retry(f Failed) State {
	if f.Desired != nil {
		return Applying{Desired: *f.Desired}
	}
	return Checking{}
}

// Run drives a full Checking, Configuring, Applying sequence with desired as the
// configuration gathered in Configuring.
func (w *Wizard) Run(ctx context.Context, desired models.DesiredConfiguration) State {
	var s State = Checking{}
	for !Terminal(s) {
		s = w.Step(ctx, s)
		if c, ok := s.(Configuring); ok {
			c.Desired = desired
			s = w.Step(ctx, c)
		}
	}
	return s
}
