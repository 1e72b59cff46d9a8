package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testGroup(t *testing.T, name, dslText string) definition.GroupDefinition {
	t.Helper()
	def, err := definition.NewGroup(name, dslText)
	require.NoError(t, err)
	return def
}

func saveTestDefinition(t *testing.T, s Store, kind dsl.Kind, name string) {
	t.Helper()
	err := s.SaveDefinition(context.Background(), definition.MemberDefinition{
		Kind:    kind,
		Name:    name,
		DSLText: name + " --opt=value",
	}, false)
	require.NoError(t, err)
}

// =============================================================================
// Group Tests
// =============================================================================

func TestSaveGroup_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	def := testGroup(t, "bundle", "myHttp:stream & myHdfs:standalone")
	require.NoError(t, s.SaveGroup(ctx, def, false))

	found, err := s.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	assert.True(t, def.Equal(found))
	require.Len(t, found.Members, 2)
	assert.Equal(t, "myHttp", found.Members[0].Name)
	assert.Equal(t, dsl.KindStream, found.Members[0].Kind)
	assert.Equal(t, "bundle", found.Members[0].GroupName)
}

func TestSaveGroup_DuplicateWithoutForce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "bundle", "a:stream"), false))

	err := s.SaveGroup(ctx, testGroup(t, "bundle", "b:task"), false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The stored definition is unchanged.
	found, err := s.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "a:stream", found.DSLText)
}

func TestSaveGroup_ForceReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "bundle", "a:stream"), false))
	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "bundle", "b:task"), true))

	found, err := s.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "b:task", found.DSLText)
}

func TestFindGroup_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindGroup(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGroups_SortedByName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "zeta", "a:stream"), false))
	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "alpha", "b:task"), false))

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "alpha", groups[0].Name)
	assert.Equal(t, "zeta", groups[1].Name)
}

func TestListGroups_Empty(t *testing.T) {
	s := setupTestStore(t)

	groups, err := s.ListGroups(context.Background())
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestDeleteGroup(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGroup(ctx, testGroup(t, "bundle", "a:stream"), false))
	require.NoError(t, s.DeleteGroup(ctx, "bundle"))

	_, err := s.FindGroup(ctx, "bundle")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGroup_NotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.DeleteGroup(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindGroup_CorruptRowSurfacesInvalidData(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Bypass SaveGroup to plant definition text that no longer parses.
	_, err := s.db.Exec(
		`INSERT INTO application_groups (name, dsl_text, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"broken", "a:widget", "2016-01-01T00:00:00Z", "2016-01-01T00:00:00Z",
	)
	require.NoError(t, err)

	_, err = s.FindGroup(ctx, "broken")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidData)
}

// =============================================================================
// Member Definition Tests
// =============================================================================

func TestSaveDefinition_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	def := definition.MemberDefinition{Kind: dsl.KindStream, Name: "myHttp", DSLText: "http --port=9000 | log"}
	require.NoError(t, s.SaveDefinition(ctx, def, false))

	found, err := s.FindDefinition(ctx, dsl.KindStream, "myHttp")
	require.NoError(t, err)
	assert.Equal(t, def, found)
}

func TestSaveDefinition_SameNameDifferentKind(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// The key is (kind, name); the same name may exist under two kinds.
	saveTestDefinition(t, s, dsl.KindStream, "shared")
	saveTestDefinition(t, s, dsl.KindTask, "shared")

	exists, err := s.DefinitionExists(ctx, dsl.KindStream, "shared")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = s.DefinitionExists(ctx, dsl.KindTask, "shared")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestSaveDefinition_DuplicateWithoutForce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saveTestDefinition(t, s, dsl.KindStream, "myHttp")

	err := s.SaveDefinition(ctx, definition.MemberDefinition{
		Kind: dsl.KindStream, Name: "myHttp", DSLText: "changed",
	}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSaveDefinition_ForceReplaces(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saveTestDefinition(t, s, dsl.KindStream, "myHttp")

	err := s.SaveDefinition(ctx, definition.MemberDefinition{
		Kind: dsl.KindStream, Name: "myHttp", DSLText: "changed",
	}, true)
	require.NoError(t, err)

	found, err := s.FindDefinition(ctx, dsl.KindStream, "myHttp")
	require.NoError(t, err)
	assert.Equal(t, "changed", found.DSLText)
}

func TestDefinitionExists_Absent(t *testing.T) {
	s := setupTestStore(t)

	exists, err := s.DefinitionExists(context.Background(), dsl.KindStream, "ghost")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindDefinition_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindDefinition(context.Background(), dsl.KindTask, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDefinition(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saveTestDefinition(t, s, dsl.KindStandalone, "myHdfs")
	require.NoError(t, s.DeleteDefinition(ctx, dsl.KindStandalone, "myHdfs"))

	err := s.DeleteDefinition(ctx, dsl.KindStandalone, "myHdfs")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListDefinitions_FiltersByKind(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	saveTestDefinition(t, s, dsl.KindStream, "b-stream")
	saveTestDefinition(t, s, dsl.KindStream, "a-stream")
	saveTestDefinition(t, s, dsl.KindTask, "a-task")

	streams, err := s.ListDefinitions(ctx, dsl.KindStream)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "a-stream", streams[0].Name)
	assert.Equal(t, "b-stream", streams[1].Name)

	tasks, err := s.ListDefinitions(ctx, dsl.KindTask)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "a-task", tasks[0].Name)
}

// =============================================================================
// Deployment Marker Tests
// =============================================================================

func TestSaveMarker_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarker(ctx, "bundle", "dep-123"))

	id, err := s.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "dep-123", id)
}

func TestSaveMarker_SecondSaveRejected(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarker(ctx, "bundle", "dep-1"))

	err := s.SaveMarker(ctx, "bundle", "dep-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	// The first marker survives.
	id, err := s.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "dep-1", id)
}

func TestFindMarker_Absent(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.FindMarker(context.Background(), "bundle")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMarker_Idempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarker(ctx, "bundle", "dep-1"))
	require.NoError(t, s.DeleteMarker(ctx, "bundle"))

	// Deleting again is a no-op, not an error.
	require.NoError(t, s.DeleteMarker(ctx, "bundle"))

	_, err := s.FindMarker(ctx, "bundle")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMarker_AllowsNewSave(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMarker(ctx, "bundle", "dep-1"))
	require.NoError(t, s.DeleteMarker(ctx, "bundle"))
	require.NoError(t, s.SaveMarker(ctx, "bundle", "dep-2"))

	id, err := s.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "dep-2", id)
}

// =============================================================================
// App Registration Tests
// =============================================================================

func TestSaveRegistration_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	reg := definition.AppRegistration{Kind: dsl.KindStream, Name: "http", URI: "docker:examples/http-source:1.0"}
	require.NoError(t, s.SaveRegistration(ctx, reg, false))

	found, err := s.FindRegistration(ctx, dsl.KindStream, "http")
	require.NoError(t, err)
	assert.Equal(t, reg, found)
}

func TestSaveRegistration_DuplicateRequiresForce(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	reg := definition.AppRegistration{Kind: dsl.KindStream, Name: "http", URI: "docker:examples/http-source:1.0"}
	require.NoError(t, s.SaveRegistration(ctx, reg, false))

	reg.URI = "docker:examples/http-source:2.0"
	err := s.SaveRegistration(ctx, reg, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	require.NoError(t, s.SaveRegistration(ctx, reg, true))
	found, err := s.FindRegistration(ctx, dsl.KindStream, "http")
	require.NoError(t, err)
	assert.Equal(t, "docker:examples/http-source:2.0", found.URI)
}

func TestDeleteRegistration_NotFound(t *testing.T) {
	s := setupTestStore(t)

	err := s.DeleteRegistration(context.Background(), dsl.KindStream, "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRegistrations_SortedByKindThenName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	regs := []definition.AppRegistration{
		{Kind: dsl.KindTask, Name: "cleanup", URI: "docker:cleanup:1"},
		{Kind: dsl.KindStream, Name: "log", URI: "docker:log:1"},
		{Kind: dsl.KindStream, Name: "http", URI: "docker:http:1"},
	}
	for _, reg := range regs {
		require.NoError(t, s.SaveRegistration(ctx, reg, false))
	}

	listed, err := s.ListRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 3)
	assert.Equal(t, "http", listed[0].Name)
	assert.Equal(t, "log", listed[1].Name)
	assert.Equal(t, "cleanup", listed[2].Name)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_CommitPersists(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txStore Store) error {
		if err := txStore.SaveGroup(ctx, testGroup(t, "bundle", "a:stream"), false); err != nil {
			return err
		}
		return txStore.SaveMarker(ctx, "bundle", "dep-1")
	})
	require.NoError(t, err)

	_, err = s.FindGroup(ctx, "bundle")
	require.NoError(t, err)
	id, err := s.FindMarker(ctx, "bundle")
	require.NoError(t, err)
	assert.Equal(t, "dep-1", id)
}

func TestWithTx_ErrorRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(txStore Store) error {
		if err := txStore.SaveGroup(ctx, testGroup(t, "bundle", "a:stream"), false); err != nil {
			return err
		}
		// Saving the same name again without force fails and rolls back.
		return txStore.SaveGroup(ctx, testGroup(t, "bundle", "b:task"), false)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyExists)

	_, err = s.FindGroup(ctx, "bundle")
	assert.ErrorIs(t, err, ErrNotFound)
}
