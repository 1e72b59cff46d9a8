package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/deployer"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/store"
)

// =============================================================================
// Test Helpers
// =============================================================================

// fakeDeployer records dispatches so tests can assert order, payload, and
// counts. State defaults to unknown for unseen members, like real backends.
type fakeDeployer struct {
	mu          sync.Mutex
	deployed    []deployer.Deployment
	undeployed  []string
	states      map[string]state.LifecycleState
	deployErrs  map[string]error
	undeployErr map[string]error
}

func newFakeDeployer() *fakeDeployer {
	return &fakeDeployer{
		states:      make(map[string]state.LifecycleState),
		deployErrs:  make(map[string]error),
		undeployErr: make(map[string]error),
	}
}

func (f *fakeDeployer) Deploy(ctx context.Context, dep deployer.Deployment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deployErrs[dep.Name]; err != nil {
		f.states[dep.Name] = state.StateFailed
		return err
	}
	f.deployed = append(f.deployed, dep)
	f.states[dep.Name] = state.StateDeployed
	return nil
}

func (f *fakeDeployer) Undeploy(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.undeployErr[name]; err != nil {
		return err
	}
	f.undeployed = append(f.undeployed, name)
	f.states[name] = state.StateUndeployed
	return nil
}

func (f *fakeDeployer) State(ctx context.Context, name string) state.LifecycleState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.states[name]; ok {
		return s
	}
	return state.StateUnknown
}

func (f *fakeDeployer) setState(name string, s state.LifecycleState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[name] = s
}

func (f *fakeDeployer) deployCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.deployed)
}

type fixture struct {
	store      *store.MemoryStore
	stream     *fakeDeployer
	standalone *fakeDeployer
	orch       *Orchestrator
}

func setupOrchestrator(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:      store.NewMemoryStore(),
		stream:     newFakeDeployer(),
		standalone: newFakeDeployer(),
	}
	set := deployer.Set{
		dsl.KindStream:     f.stream,
		dsl.KindStandalone: f.standalone,
	}
	f.orch = New(f.store, set, nil, slog.Default())
	return f
}

func (f *fixture) seedDefinition(t *testing.T, kind dsl.Kind, name, dslText string) {
	t.Helper()
	err := f.store.SaveDefinition(context.Background(), definition.MemberDefinition{
		Kind: kind, Name: name, DSLText: dslText,
	}, false)
	require.NoError(t, err)
}

// seedBundle stores the stream and standalone member definitions and creates
// the canonical two-member group.
func (f *fixture) seedBundle(t *testing.T) {
	t.Helper()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http --port=9000 | log")
	f.seedDefinition(t, dsl.KindStandalone, "myHdfs", "hdfs --fs.uri=hdfs://localhost:8020")
	_, _, err := f.orch.Create(context.Background(), "bundle", "myHttp:stream & myHdfs:standalone", false, false)
	require.NoError(t, err)
}

// =============================================================================
// Create Tests
// =============================================================================

func TestCreate_PersistsGroup(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")

	def, results, err := f.orch.Create(ctx, "bundle", "myHttp:stream", false, false)
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Equal(t, "bundle", def.Name)

	found, err := f.store.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	assert.True(t, def.Equal(found))
}

func TestCreate_IllegalNameRejected(t *testing.T) {
	f := setupOrchestrator(t)

	_, _, err := f.orch.Create(context.Background(), "9bundle", "a:stream", false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, dsl.ErrIllegalName)
}

func TestCreate_CollectsAllMissingReferences(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()

	_, _, err := f.orch.Create(ctx, "bundle", "ghost:stream & phantom:standalone", false, false)
	require.Error(t, err)

	var refErr *definition.ReferentialIntegrityError
	require.ErrorAs(t, err, &refErr)
	require.Len(t, refErr.Missing, 2)
	assert.Contains(t, err.Error(), "Stream definition 'ghost' does not exist.")
	assert.Contains(t, err.Error(), "Standalone definition 'phantom' does not exist.")

	// Nothing was persisted.
	_, err = f.store.FindGroup(ctx, "bundle")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCreate_GroupReferenceResolvesAgainstGroups(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")

	_, _, err := f.orch.Create(ctx, "inner", "myHttp:stream", false, false)
	require.NoError(t, err)

	_, _, err = f.orch.Create(ctx, "outer", "inner:group", false, false)
	require.NoError(t, err)

	_, _, err = f.orch.Create(ctx, "broken", "missing:group", false, false)
	require.Error(t, err)
	var refErr *definition.ReferentialIntegrityError
	require.ErrorAs(t, err, &refErr)
}

func TestCreate_DuplicateWithoutForce(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")

	_, _, err := f.orch.Create(ctx, "bundle", "myHttp:stream", false, false)
	require.NoError(t, err)

	_, _, err = f.orch.Create(ctx, "bundle", "myHttp:stream", false, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrAlreadyExists)
}

func TestCreate_ForceReplaces(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")
	f.seedDefinition(t, dsl.KindStandalone, "myHdfs", "hdfs")

	_, _, err := f.orch.Create(ctx, "bundle", "myHttp:stream", false, false)
	require.NoError(t, err)

	_, _, err = f.orch.Create(ctx, "bundle", "myHdfs:standalone", true, false)
	require.NoError(t, err)

	found, err := f.store.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "myHdfs:standalone", found.DSLText)
}

func TestCreate_WithDeployFlag(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")

	_, results, err := f.orch.Create(ctx, "bundle", "myHttp:stream", false, true)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)

	_, err = f.store.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, state.StateDeployed, f.stream.State(ctx, "myHttp"))
}

// =============================================================================
// Deploy Tests
// =============================================================================

func TestDeploy_NotFound(t *testing.T) {
	f := setupOrchestrator(t)

	_, _, err := f.orch.Deploy(context.Background(), "ghost", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeploy_DispatchesMembersInOrder(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	id, results, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, results, 2)
	assert.Equal(t, "myHttp", results[0].Name)
	assert.Equal(t, "myHdfs", results[1].Name)

	require.Len(t, f.stream.deployed, 1)
	require.Len(t, f.standalone.deployed, 1)
	assert.Equal(t, "myHttp", f.stream.deployed[0].Name)
	assert.Equal(t, "bundle", f.stream.deployed[0].GroupName)
	assert.Equal(t, "http --port=9000 | log", f.stream.deployed[0].DSLText)
}

func TestDeploy_ScopesPropertiesPerMember(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	props := map[string]string{
		"app.*.debug":      "true",
		"app.myHttp.port":  "9000",
		"app.myHdfs.burst": "off",
	}
	_, _, err := f.orch.Deploy(ctx, "bundle", props)
	require.NoError(t, err)

	require.Len(t, f.stream.deployed, 1)
	assert.Equal(t, map[string]string{"debug": "true", "port": "9000"}, f.stream.deployed[0].Properties)

	require.Len(t, f.standalone.deployed, 1)
	assert.Equal(t, map[string]string{"debug": "true", "burst": "off"}, f.standalone.deployed[0].Properties)
}

func TestDeploy_ResolvesRegistrationURI(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	// The member definition "http --port=9000 | log" launches app "http".
	err := f.store.SaveRegistration(ctx, definition.AppRegistration{
		Kind: dsl.KindStream, Name: "http", URI: "docker:examples/http-source:1.0",
	}, false)
	require.NoError(t, err)

	_, _, err = f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	require.Len(t, f.stream.deployed, 1)
	assert.Equal(t, "docker:examples/http-source:1.0", f.stream.deployed[0].URI)
	// No registration for the hdfs app, so the uri stays empty.
	require.Len(t, f.standalone.deployed, 1)
	assert.Empty(t, f.standalone.deployed[0].URI)
}

func TestDeploy_AlreadyDeployedRefusedBeforeDispatch(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	dispatched := f.stream.deployCount() + f.standalone.deployCount()

	_, _, err = f.orch.Deploy(ctx, "bundle", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyDeployed)
	assert.Equal(t, dispatched, f.stream.deployCount()+f.standalone.deployCount())
}

func TestDeploy_AlreadyDeployingRefused(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	f.stream.setState("myHttp", state.StateDeploying)
	f.standalone.setState("myHdfs", state.StateDeployed)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyDeploying)
}

func TestDeploy_MemberFailureStillCreatesMarker(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	f.stream.deployErrs["myHttp"] = errors.New("image pull backoff")

	id, results, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.Len(t, results, 2)
	var dispatchErr *DispatchError
	require.ErrorAs(t, results[0].Err, &dispatchErr)
	assert.Equal(t, "myHttp", dispatchErr.Member)
	assert.Equal(t, "deploy", dispatchErr.Op)
	assert.NoError(t, results[1].Err)

	marker, err := f.store.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, id, marker)
}

func TestDeploy_MissingMemberDefinitionIsDispatchFailure(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	// The definition disappears between create and deploy.
	require.NoError(t, f.store.DeleteDefinition(ctx, dsl.KindStream, "myHttp"))

	_, results, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.ErrorIs(t, results[0].Err, store.ErrNotFound)
	assert.NoError(t, results[1].Err)
}

func TestDeploy_TaskMembersSkipped(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")
	f.seedDefinition(t, dsl.KindTask, "cleanup", "cleanup --cron=daily")

	_, _, err := f.orch.Create(ctx, "bundle", "myHttp:stream & cleanup:task", false, false)
	require.NoError(t, err)

	_, results, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, dsl.KindTask, results[1].Kind)
	assert.Equal(t, 1, f.stream.deployCount())
}

func TestDeploy_StaleMarkerReplaced(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	first, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	// Members died since the dispatch; the aggregate is no longer deployed.
	f.stream.setState("myHttp", state.StateFailed)

	second, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	marker, err := f.store.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, second, marker)
}

// =============================================================================
// Undeploy Tests
// =============================================================================

func TestUndeploy_NoMarkerIsNoOp(t *testing.T) {
	f := setupOrchestrator(t)
	f.seedBundle(t)

	results, err := f.orch.Undeploy(context.Background(), "bundle")
	require.NoError(t, err)
	assert.Nil(t, results)
	assert.Empty(t, f.stream.undeployed)
	assert.Empty(t, f.standalone.undeployed)
}

func TestUndeploy_NotFound(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orch.Undeploy(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUndeploy_DispatchesAndDeletesMarker(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	results, err := f.orch.Undeploy(ctx, "bundle")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, []string{"myHttp"}, f.stream.undeployed)
	assert.Equal(t, []string{"myHdfs"}, f.standalone.undeployed)

	_, err = f.store.FindMarker(ctx, "bundle")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUndeploy_SkipsMembersAlreadyDown(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	f.stream.setState("myHttp", state.StateUndeployed)

	results, err := f.orch.Undeploy(ctx, "bundle")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, f.stream.undeployed)
	assert.Equal(t, []string{"myHdfs"}, f.standalone.undeployed)
}

func TestUndeploy_MemberFailureStillDeletesMarker(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	f.standalone.undeployErr["myHdfs"] = errors.New("daemon unreachable")

	results, err := f.orch.Undeploy(ctx, "bundle")
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.NoError(t, results[0].Err)
	var dispatchErr *DispatchError
	require.ErrorAs(t, results[1].Err, &dispatchErr)
	assert.Equal(t, "undeploy", dispatchErr.Op)

	_, err = f.store.FindMarker(ctx, "bundle")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUndeployAll_CoversEveryGroup(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "a", "a-app")
	f.seedDefinition(t, dsl.KindStream, "b", "b-app")

	for _, tc := range []struct{ name, dsl string }{{"one", "a:stream"}, {"two", "b:stream"}} {
		_, _, err := f.orch.Create(ctx, tc.name, tc.dsl, false, false)
		require.NoError(t, err)
		_, _, err = f.orch.Deploy(ctx, tc.name, nil)
		require.NoError(t, err)
	}

	require.NoError(t, f.orch.UndeployAll(ctx))

	for _, name := range []string{"one", "two"} {
		_, err := f.store.FindMarker(ctx, name)
		assert.ErrorIs(t, err, store.ErrNotFound)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, f.stream.undeployed)
}

// =============================================================================
// Delete Tests
// =============================================================================

func TestDelete_CascadesStreamAndStandaloneButNeverTask(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "myHttp", "http | log")
	f.seedDefinition(t, dsl.KindStandalone, "myHdfs", "hdfs")
	f.seedDefinition(t, dsl.KindTask, "cleanup", "cleanup")

	_, _, err := f.orch.Create(ctx, "bundle", "myHttp:stream & myHdfs:standalone & cleanup:task", false, false)
	require.NoError(t, err)

	require.NoError(t, f.orch.Delete(ctx, "bundle"))

	_, err = f.store.FindGroup(ctx, "bundle")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.FindDefinition(ctx, dsl.KindStream, "myHttp")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.store.FindDefinition(ctx, dsl.KindStandalone, "myHdfs")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Task definitions have their own lifecycle and survive.
	_, err = f.store.FindDefinition(ctx, dsl.KindTask, "cleanup")
	require.NoError(t, err)
}

func TestDelete_UndeploysFirst(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	require.NoError(t, f.orch.Delete(ctx, "bundle"))

	assert.Equal(t, []string{"myHttp"}, f.stream.undeployed)
	_, err = f.store.FindMarker(ctx, "bundle")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDelete_ToleratesSharedDefinitionAlreadyGone(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "shared", "shared-app")

	_, _, err := f.orch.Create(ctx, "one", "shared:stream", false, false)
	require.NoError(t, err)
	_, _, err = f.orch.Create(ctx, "two", "shared:stream", false, false)
	require.NoError(t, err)

	require.NoError(t, f.orch.Delete(ctx, "one"))
	// The shared stream definition was cascaded with "one"; deleting "two"
	// must not fail on the missing definition.
	require.NoError(t, f.orch.Delete(ctx, "two"))

	_, err = f.store.FindGroup(ctx, "two")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteAll_DestroysEverything(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindStream, "a", "a-app")
	f.seedDefinition(t, dsl.KindStream, "b", "b-app")

	_, _, err := f.orch.Create(ctx, "one", "a:stream", false, false)
	require.NoError(t, err)
	_, _, err = f.orch.Create(ctx, "two", "b:stream", false, false)
	require.NoError(t, err)

	require.NoError(t, f.orch.DeleteAll(ctx))

	groups, err := f.store.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

// =============================================================================
// State Tests
// =============================================================================

func TestCalculateState_NeverDeployedIsUndeployed(t *testing.T) {
	f := setupOrchestrator(t)
	f.seedBundle(t)

	st, err := f.orch.CalculateState(context.Background(), "bundle")
	require.NoError(t, err)
	assert.Equal(t, state.StateUndeployed, st)
}

func TestCalculateState_DeployedGroup(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	st, err := f.orch.CalculateState(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, state.StateDeployed, st)
}

func TestCalculateState_MixedIsPartial(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	_, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)
	f.standalone.setState("myHdfs", state.StateUndeployed)

	st, err := f.orch.CalculateState(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, state.StatePartial, st)
}

func TestCalculateState_TaskOnlyGroupIsError(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedDefinition(t, dsl.KindTask, "cleanup", "cleanup")

	_, _, err := f.orch.Create(ctx, "tasks-only", "cleanup:task", false, false)
	require.NoError(t, err)

	// Tasks contribute no live state, so there is nothing to aggregate.
	st, err := f.orch.CalculateState(ctx, "tasks-only")
	require.NoError(t, err)
	assert.Equal(t, state.StateError, st)
}

func TestCalculateState_NotFound(t *testing.T) {
	f := setupOrchestrator(t)

	_, err := f.orch.CalculateState(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// =============================================================================
// Redeploy Tests
// =============================================================================

func TestRedeploy_CyclesTheGroup(t *testing.T) {
	f := setupOrchestrator(t)
	ctx := context.Background()
	f.seedBundle(t)

	first, _, err := f.orch.Deploy(ctx, "bundle", nil)
	require.NoError(t, err)

	second, results, err := f.orch.Redeploy(ctx, "bundle", nil)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	require.Len(t, results, 2)

	assert.Equal(t, []string{"myHttp"}, f.stream.undeployed)
	assert.Equal(t, 2, f.stream.deployCount())

	marker, err := f.store.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, second, marker)
}
