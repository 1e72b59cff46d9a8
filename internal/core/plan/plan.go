// Package plan builds the ordered per-member dispatch plan the orchestrator
// executes on deploy, and holds the pure lifecycle gates that decide whether
// a dispatch may run at all. This is part of the Functional Core - all
// functions are pure with no I/O.
package plan

import (
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/properties"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
)

// =============================================================================
// Dispatch Plan
// =============================================================================

// Step is one member dispatch: which definition to act on, through which
// kind's collaborator, with which property subset.
type Step struct {
	// Member is the referenced sub-definition's name.
	Member string

	// Kind selects the collaborator the step is dispatched through.
	Kind dsl.Kind

	// Properties is the deployment property subset scoped to this member,
	// prefixes already stripped.
	Properties map[string]string
}

// Build constructs the dispatch plan for a group definition: one step per
// member in declaration order, each carrying the deployment properties
// scoped to it.
func Build(def definition.GroupDefinition, deploymentProperties map[string]string) []Step {
	steps := make([]Step, 0, len(def.Members))
	for _, ref := range def.Members {
		steps = append(steps, Step{
			Member:     ref.Name,
			Kind:       ref.Kind,
			Properties: properties.ScopeForMember(deploymentProperties, ref.Name),
		})
	}
	return steps
}

// =============================================================================
// Lifecycle Gates
// =============================================================================

// CanDeploy reports whether a group whose aggregate state is s may accept a
// new deploy dispatch. Returns the refusal reason when it may not.
func CanDeploy(s state.LifecycleState) (bool, string) {
	switch s {
	case state.StateDeployed:
		return false, "application group is already deployed"
	case state.StateDeploying:
		return false, "application group is already being deployed"
	}
	return true, ""
}

// ShouldDispatchUndeploy reports whether an undeploy for a member in live
// state s needs a collaborator call. Members that were never deployed, or
// are already undeployed, are skipped.
func ShouldDispatchUndeploy(s state.LifecycleState) bool {
	return s != state.StateUnknown && s != state.StateUndeployed
}
