// Package state defines the deployment lifecycle states and the pure
// aggregation that folds member states into a single group state.
package state

// =============================================================================
// Lifecycle States
// =============================================================================

// LifecycleState is the deployment status of a single member or of a whole
// application group.
type LifecycleState string

const (
	// StateUnknown means the backing deployer has no record of the member.
	// It never surfaces as a group state; Aggregate normalizes it.
	StateUnknown LifecycleState = "unknown"

	StateUndeployed LifecycleState = "undeployed"
	StateDeploying  LifecycleState = "deploying"
	StateDeployed   LifecycleState = "deployed"
	StateFailed     LifecycleState = "failed"

	// StatePartial means some members are deployed and some are not.
	StatePartial LifecycleState = "partial"

	// StateError means the state could not be established at all.
	StateError LifecycleState = "error"
)

// Valid reports whether s is one of the defined lifecycle states.
func (s LifecycleState) Valid() bool {
	switch s {
	case StateUnknown, StateUndeployed, StateDeploying, StateDeployed,
		StateFailed, StatePartial, StateError:
		return true
	}
	return false
}

// =============================================================================
// Aggregation
// =============================================================================

// Aggregate folds the live states of a group's members into one group state.
// The rules apply in order, first match wins:
//
//  1. exactly one distinct state: that state, with unknown normalized to
//     undeployed
//  2. no states at all, or any member in error: error
//  3. any member failed: failed
//  4. any member still deploying: deploying
//  5. otherwise: partial
//
// The input is never mutated and the result is computed fresh on every call.
func Aggregate(states []LifecycleState) LifecycleState {
	distinct := make(map[LifecycleState]struct{}, len(states))
	for _, s := range states {
		distinct[s] = struct{}{}
	}

	if len(distinct) == 1 {
		for s := range distinct {
			if s == StateUnknown {
				return StateUndeployed
			}
			return s
		}
	}

	if _, ok := distinct[StateError]; ok || len(distinct) == 0 {
		return StateError
	}
	if _, ok := distinct[StateFailed]; ok {
		return StateFailed
	}
	if _, ok := distinct[StateDeploying]; ok {
		return StateDeploying
	}
	return StatePartial
}
