package store

import (
	"context"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Store Interfaces
// =============================================================================

// GroupStore persists application group definitions keyed by name.
type GroupStore interface {
	// SaveGroup stores a definition. Without force a duplicate name fails
	// with ErrAlreadyExists; with force an existing definition is replaced.
	SaveGroup(ctx context.Context, def definition.GroupDefinition, force bool) error
	FindGroup(ctx context.Context, name string) (definition.GroupDefinition, error)
	ListGroups(ctx context.Context) ([]definition.GroupDefinition, error)
	DeleteGroup(ctx context.Context, name string) error
}

// DefinitionStore persists per-kind member definitions keyed by (kind, name).
type DefinitionStore interface {
	DefinitionExists(ctx context.Context, kind dsl.Kind, name string) (bool, error)
	FindDefinition(ctx context.Context, kind dsl.Kind, name string) (definition.MemberDefinition, error)
	SaveDefinition(ctx context.Context, def definition.MemberDefinition, force bool) error
	DeleteDefinition(ctx context.Context, kind dsl.Kind, name string) error
	ListDefinitions(ctx context.Context, kind dsl.Kind) ([]definition.MemberDefinition, error)
}

// MarkerStore persists deployment markers, one per group. A marker records
// that a deploy was dispatched for the group; its presence is an idempotency
// signal, not the live state.
type MarkerStore interface {
	// FindMarker returns the recorded deployment id, or ErrNotFound when the
	// group has no marker.
	FindMarker(ctx context.Context, group string) (string, error)

	// SaveMarker inserts the marker. A marker already present fails with
	// ErrAlreadyExists; the primary key is the backstop against two deploy
	// dispatches racing each other.
	SaveMarker(ctx context.Context, group, deploymentID string) error

	// DeleteMarker removes the marker. Deleting an absent marker is not an
	// error; undeploy is idempotent.
	DeleteMarker(ctx context.Context, group string) error
}

// RegistrationStore persists app registrations keyed by (kind, name).
type RegistrationStore interface {
	FindRegistration(ctx context.Context, kind dsl.Kind, name string) (definition.AppRegistration, error)
	SaveRegistration(ctx context.Context, reg definition.AppRegistration, force bool) error
	DeleteRegistration(ctx context.Context, kind dsl.Kind, name string) error
	ListRegistrations(ctx context.Context) ([]definition.AppRegistration, error)
}

// Store is the full persistence surface. Consumers should depend on the
// narrow per-entity interfaces; Store exists for wiring and transactions.
type Store interface {
	GroupStore
	DefinitionStore
	MarkerStore
	RegistrationStore

	// WithTx runs fn within a transaction. The Store passed to fn operates
	// on the transaction; any error from fn rolls it back.
	WithTx(ctx context.Context, fn func(Store) error) error

	Close() error
}
