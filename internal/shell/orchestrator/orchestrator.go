// Package orchestrator drives the application group lifecycle: it validates
// and persists group definitions, dispatches per-member deploy and undeploy
// calls through the kind-specific deployers, and derives group state by
// aggregating live member states. Execution is synchronous and request
// scoped; members are dispatched strictly in declaration order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/plan"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/deployer"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/metrics"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/store"
)

// =============================================================================
// Orchestrator
// =============================================================================

// MemberResult is the outcome of one member dispatch. Err is nil when the
// dispatch succeeded or was skipped for a kind without a deployer.
type MemberResult struct {
	Name string   `json:"name"`
	Kind dsl.Kind `json:"kind"`
	Err  error    `json:"-"`
}

// Orchestrator coordinates stores and deployers for application groups.
type Orchestrator struct {
	store     store.Store
	deployers deployer.Set
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New creates an orchestrator. metrics may be nil when counters are not
// wanted, for example in tests.
func New(st store.Store, deployers deployer.Set, m *metrics.Metrics, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:     st,
		deployers: deployers,
		metrics:   m,
		logger:    logger,
	}
}

// =============================================================================
// Create
// =============================================================================

// Create parses, validates, and persists a group definition. Every member
// must reference an existing definition of its kind; all missing references
// are collected into a single ReferentialIntegrityError. force replaces an
// existing group of the same name instead of rejecting it as a duplicate.
// When deploy is set the group is deployed with empty properties right after
// a successful save, and the dispatch results are returned.
func (o *Orchestrator) Create(ctx context.Context, name, dslText string, force, deploy bool) (definition.GroupDefinition, []MemberResult, error) {
	def, err := definition.NewGroup(name, dslText)
	if err != nil {
		return definition.GroupDefinition{}, nil, err
	}

	if err := definition.CheckReferences(def, o.referenceChecker(ctx)); err != nil {
		return definition.GroupDefinition{}, nil, err
	}

	if err := o.store.SaveGroup(ctx, def, force); err != nil {
		return definition.GroupDefinition{}, nil, err
	}

	o.logger.Info("created application group",
		"group", def.Name,
		"members", len(def.Members),
		"force", force)

	if !deploy {
		return def, nil, nil
	}

	_, results, err := o.Deploy(ctx, def.Name, nil)
	if err != nil {
		return def, results, fmt.Errorf("deploying created group %q: %w", def.Name, err)
	}
	return def, results, nil
}

// referenceChecker looks member references up in their kind's store. Group
// references resolve against the group store itself.
func (o *Orchestrator) referenceChecker(ctx context.Context) definition.ReferenceChecker {
	return func(kind dsl.Kind, name string) (bool, error) {
		if kind == dsl.KindGroup {
			_, err := o.store.FindGroup(ctx, name)
			if errors.Is(err, store.ErrNotFound) {
				return false, nil
			}
			if err != nil {
				return false, err
			}
			return true, nil
		}
		return o.store.DefinitionExists(ctx, kind, name)
	}
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy dispatches a deploy for every member of the group in declaration
// order and records a deployment marker with a fresh id. Groups already
// deployed or deploying are refused before any dispatch. Individual member
// failures are logged and reported in the result list; they never stop the
// loop and the marker is still created. CalculateState stays the sole source
// of truth for whether the group is actually up.
func (o *Orchestrator) Deploy(ctx context.Context, name string, props map[string]string) (deploymentID string, results []MemberResult, err error) {
	defer func() {
		if err != nil {
			o.metrics.RecordDeploy(metrics.OutcomeError)
		} else {
			o.metrics.RecordDeploy(metrics.OutcomeSuccess)
		}
	}()

	def, err := o.store.FindGroup(ctx, name)
	if err != nil {
		return "", nil, err
	}

	agg := o.aggregate(ctx, def)
	if ok, reason := plan.CanDeploy(agg); !ok {
		o.logger.Warn("deploy refused", "group", name, "state", agg, "reason", reason)
		if agg == state.StateDeploying {
			return "", nil, fmt.Errorf("%s: %w", name, ErrAlreadyDeploying)
		}
		return "", nil, fmt.Errorf("%s: %w", name, ErrAlreadyDeployed)
	}

	// A marker may survive from an earlier dispatch whose members have since
	// stopped. The gate has passed, so clear it before dispatching.
	if err := o.store.DeleteMarker(ctx, name); err != nil {
		return "", nil, err
	}

	steps := plan.Build(def, props)
	o.logger.Info("deploying application group", "group", name, "members", len(steps))

	results = make([]MemberResult, 0, len(steps))
	for _, step := range steps {
		results = append(results, o.deployMember(ctx, name, step))
	}

	deploymentID = uuid.New().String()
	if err := o.store.SaveMarker(ctx, name, deploymentID); err != nil {
		return "", results, err
	}

	return deploymentID, results, nil
}

// deployMember dispatches one step. Kinds without a deployer (task, nested
// groups) are skipped with a successful result.
func (o *Orchestrator) deployMember(ctx context.Context, groupName string, step plan.Step) MemberResult {
	res := MemberResult{Name: step.Member, Kind: step.Kind}

	d, ok := o.deployers[step.Kind]
	if !ok {
		o.logger.Debug("skipping member without deployer", "group", groupName, "member", step.Member, "kind", step.Kind)
		return res
	}

	dep, err := o.resolveDeployment(ctx, groupName, step)
	if err == nil {
		err = d.Deploy(ctx, dep)
	}
	if err != nil {
		res.Err = &DispatchError{GroupName: groupName, Member: step.Member, Kind: step.Kind, Op: "deploy", Err: err}
		o.logger.Error("member deploy failed",
			"group", groupName,
			"member", step.Member,
			"kind", step.Kind,
			"error", err)
		o.metrics.RecordDispatchFailure(string(step.Kind))
	}
	return res
}

// resolveDeployment loads the member definition and its app registration.
// A missing registration leaves the URI empty; the backend decides whether
// it can deploy without one.
func (o *Orchestrator) resolveDeployment(ctx context.Context, groupName string, step plan.Step) (deployer.Deployment, error) {
	member, err := o.store.FindDefinition(ctx, step.Kind, step.Member)
	if err != nil {
		return deployer.Deployment{}, fmt.Errorf("resolving %s definition %q: %w", step.Kind, step.Member, err)
	}

	dep := deployer.Deployment{
		GroupName:  groupName,
		Name:       step.Member,
		Kind:       step.Kind,
		DSLText:    member.DSLText,
		Properties: step.Properties,
	}

	reg, err := o.store.FindRegistration(ctx, step.Kind, member.AppName())
	switch {
	case err == nil:
		dep.URI = reg.URI
	case !errors.Is(err, store.ErrNotFound):
		return deployer.Deployment{}, fmt.Errorf("resolving %s registration %q: %w", step.Kind, member.AppName(), err)
	}
	return dep, nil
}

// =============================================================================
// Undeploy
// =============================================================================

// Undeploy dispatches an undeploy for every member whose live state needs
// one, then deletes the deployment marker regardless of individual member
// failures. A group without a marker is a no-op.
func (o *Orchestrator) Undeploy(ctx context.Context, name string) (results []MemberResult, err error) {
	defer func() {
		if err != nil {
			o.metrics.RecordUndeploy(metrics.OutcomeError)
		} else {
			o.metrics.RecordUndeploy(metrics.OutcomeSuccess)
		}
	}()

	def, err := o.store.FindGroup(ctx, name)
	if err != nil {
		return nil, err
	}

	if _, err := o.store.FindMarker(ctx, name); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			o.logger.Debug("group has no deployment marker, nothing to undeploy", "group", name)
			return nil, nil
		}
		return nil, err
	}

	o.logger.Info("undeploying application group", "group", name, "members", len(def.Members))

	results = make([]MemberResult, 0, len(def.Members))
	for _, ref := range def.Members {
		results = append(results, o.undeployMember(ctx, name, ref))
	}

	// The marker records that a dispatch happened; it goes away even when
	// members failed to stop.
	if err := o.store.DeleteMarker(ctx, name); err != nil {
		return results, err
	}
	return results, nil
}

func (o *Orchestrator) undeployMember(ctx context.Context, groupName string, ref definition.MemberReference) MemberResult {
	res := MemberResult{Name: ref.Name, Kind: ref.Kind}

	d, ok := o.deployers[ref.Kind]
	if !ok {
		return res
	}

	if st := d.State(ctx, ref.Name); !plan.ShouldDispatchUndeploy(st) {
		o.logger.Debug("skipping member undeploy", "group", groupName, "member", ref.Name, "state", st)
		return res
	}

	if err := d.Undeploy(ctx, ref.Name); err != nil {
		res.Err = &DispatchError{GroupName: groupName, Member: ref.Name, Kind: ref.Kind, Op: "undeploy", Err: err}
		o.logger.Error("member undeploy failed",
			"group", groupName,
			"member", ref.Name,
			"kind", ref.Kind,
			"error", err)
		o.metrics.RecordDispatchFailure(string(ref.Kind))
	}
	return res
}

// UndeployAll undeploys every known group, stopping at the first group whose
// undeploy fails.
func (o *Orchestrator) UndeployAll(ctx context.Context) error {
	defs, err := o.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := o.Undeploy(ctx, def.Name); err != nil {
			return fmt.Errorf("undeploying group %q: %w", def.Name, err)
		}
	}
	return nil
}

// =============================================================================
// Delete
// =============================================================================

// Delete undeploys the group, cascade-deletes its stream and standalone
// member definitions, and removes the group itself. Task and nested group
// references are never cascaded. Member definitions already gone are
// tolerated since two groups may share one.
func (o *Orchestrator) Delete(ctx context.Context, name string) error {
	if _, err := o.Undeploy(ctx, name); err != nil {
		return err
	}

	def, err := o.store.FindGroup(ctx, name)
	if err != nil {
		return err
	}

	for _, ref := range def.Members {
		switch ref.Kind {
		case dsl.KindStream, dsl.KindStandalone:
			err := o.store.DeleteDefinition(ctx, ref.Kind, ref.Name)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("deleting %s definition %q: %w", ref.Kind, ref.Name, err)
			}
		}
	}

	if err := o.store.DeleteGroup(ctx, name); err != nil {
		return err
	}

	o.logger.Info("destroyed application group", "group", name)
	return nil
}

// DeleteAll destroys every known group, stopping at the first failure.
func (o *Orchestrator) DeleteAll(ctx context.Context) error {
	defs, err := o.store.ListGroups(ctx)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if err := o.Delete(ctx, def.Name); err != nil {
			return fmt.Errorf("destroying group %q: %w", def.Name, err)
		}
	}
	return nil
}

// =============================================================================
// State
// =============================================================================

// CalculateState aggregates the live member states of the group. The result
// is computed fresh on every call and never cached.
func (o *Orchestrator) CalculateState(ctx context.Context, name string) (state.LifecycleState, error) {
	def, err := o.store.FindGroup(ctx, name)
	if err != nil {
		return state.StateUnknown, err
	}
	return o.aggregate(ctx, def), nil
}

// aggregate folds the live states of all members with a deployer. Members of
// kinds without one, such as tasks, contribute nothing.
func (o *Orchestrator) aggregate(ctx context.Context, def definition.GroupDefinition) state.LifecycleState {
	states := make([]state.LifecycleState, 0, len(def.Members))
	for _, ref := range def.Members {
		d, ok := o.deployers[ref.Kind]
		if !ok {
			continue
		}
		states = append(states, d.State(ctx, ref.Name))
	}
	return state.Aggregate(states)
}

// =============================================================================
// Redeploy
// =============================================================================

// Redeploy undeploys the group and deploys it again with the given
// properties.
func (o *Orchestrator) Redeploy(ctx context.Context, name string, props map[string]string) (string, []MemberResult, error) {
	if _, err := o.Undeploy(ctx, name); err != nil {
		return "", nil, err
	}
	return o.Deploy(ctx, name, props)
}
