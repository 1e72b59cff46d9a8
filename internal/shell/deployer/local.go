package deployer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
)

// =============================================================================
// Local Deployer
// =============================================================================

// LocalDeployer keeps deployment state in memory. It is the default backend
// and makes the server self-contained: Deploy records the member as deployed,
// Undeploy records it as undeployed, State reports what was recorded.
type LocalDeployer struct {
	mu         sync.Mutex
	states     map[string]state.LifecycleState
	deployErrs map[string]error
	logger     *slog.Logger
}

// NewLocalDeployer creates an empty in-memory deployer.
func NewLocalDeployer(logger *slog.Logger) *LocalDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalDeployer{
		states:     make(map[string]state.LifecycleState),
		deployErrs: make(map[string]error),
		logger:     logger,
	}
}

// Deploy records the member as deployed, or fails with the error configured
// via FailDeploy and records the member as failed.
func (d *LocalDeployer) Deploy(ctx context.Context, dep Deployment) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.deployErrs[dep.Name]; err != nil {
		d.states[dep.Name] = state.StateFailed
		return NewDeployerError("Deploy", dep.Name, err.Error(), err)
	}

	d.states[dep.Name] = state.StateDeployed
	d.logger.Info("deployed member",
		"group", dep.GroupName,
		"name", dep.Name,
		"kind", dep.Kind)
	return nil
}

// Undeploy records the member as undeployed. Unknown members are a no-op so
// undeploy stays idempotent.
func (d *LocalDeployer) Undeploy(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.states[name] = state.StateUndeployed
	d.logger.Info("undeployed member", "name", name)
	return nil
}

// State returns the recorded lifecycle state, or StateUnknown for members
// this deployer has never seen.
func (d *LocalDeployer) State(ctx context.Context, name string) state.LifecycleState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.states[name]; ok {
		return s
	}
	return state.StateUnknown
}

// FailDeploy makes the next Deploy calls for name fail with err. Passing a
// nil err clears the failure. Test hook.
func (d *LocalDeployer) FailDeploy(name string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err == nil {
		delete(d.deployErrs, name)
		return
	}
	d.deployErrs[name] = err
}

// SetState overrides the recorded state for name. Test hook.
func (d *LocalDeployer) SetState(name string, s state.LifecycleState) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.states[name] = s
}
