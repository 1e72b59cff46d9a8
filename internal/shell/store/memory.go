package store

import (
	"context"
	"sort"
	"sync"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// MemoryStore
// =============================================================================

// MemoryStore implements Store with in-process maps. It backs tests and the
// zero-config dev mode; the contract matches SQLiteStore including the force
// and idempotency semantics.
type MemoryStore struct {
	mu            sync.RWMutex
	groups        map[string]definition.GroupDefinition
	definitions   map[string]definition.MemberDefinition
	markers       map[string]string
	registrations map[string]definition.AppRegistration
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:        make(map[string]definition.GroupDefinition),
		definitions:   make(map[string]definition.MemberDefinition),
		markers:       make(map[string]string),
		registrations: make(map[string]definition.AppRegistration),
	}
}

// =============================================================================
// Group Operations
// =============================================================================

func (s *MemoryStore) SaveGroup(_ context.Context, def definition.GroupDefinition, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.groups[def.Name]; exists && !force {
		return NewStoreError("SaveGroup", "group", def.Name, "application group with this name already exists", ErrAlreadyExists)
	}
	s.groups[def.Name] = def
	return nil
}

func (s *MemoryStore) FindGroup(_ context.Context, name string) (definition.GroupDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.groups[name]
	if !ok {
		return definition.GroupDefinition{}, NewStoreError("FindGroup", "group", name, "application group not found", ErrNotFound)
	}
	return def, nil
}

func (s *MemoryStore) ListGroups(_ context.Context) ([]definition.GroupDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.groups))
	for name := range s.groups {
		names = append(names, name)
	}
	sort.Strings(names)

	groups := make([]definition.GroupDefinition, 0, len(names))
	for _, name := range names {
		groups = append(groups, s.groups[name])
	}
	return groups, nil
}

func (s *MemoryStore) DeleteGroup(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[name]; !ok {
		return NewStoreError("DeleteGroup", "group", name, "application group not found", ErrNotFound)
	}
	delete(s.groups, name)
	return nil
}

// =============================================================================
// Member Definition Operations
// =============================================================================

func (s *MemoryStore) DefinitionExists(_ context.Context, kind dsl.Kind, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.definitions[definitionKey(kind, name)]
	return ok, nil
}

func (s *MemoryStore) FindDefinition(_ context.Context, kind dsl.Kind, name string) (definition.MemberDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[definitionKey(kind, name)]
	if !ok {
		return definition.MemberDefinition{}, NewStoreError("FindDefinition", "definition", definitionKey(kind, name), "definition not found", ErrNotFound)
	}
	return def, nil
}

func (s *MemoryStore) SaveDefinition(_ context.Context, def definition.MemberDefinition, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := definitionKey(def.Kind, def.Name)
	if _, exists := s.definitions[key]; exists && !force {
		return NewStoreError("SaveDefinition", "definition", key, "definition with this name already exists", ErrAlreadyExists)
	}
	s.definitions[key] = def
	return nil
}

func (s *MemoryStore) DeleteDefinition(_ context.Context, kind dsl.Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := definitionKey(kind, name)
	if _, ok := s.definitions[key]; !ok {
		return NewStoreError("DeleteDefinition", "definition", key, "definition not found", ErrNotFound)
	}
	delete(s.definitions, key)
	return nil
}

func (s *MemoryStore) ListDefinitions(_ context.Context, kind dsl.Kind) ([]definition.MemberDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defs []definition.MemberDefinition
	for _, def := range s.definitions {
		if def.Kind == kind {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// =============================================================================
// Deployment Marker Operations
// =============================================================================

func (s *MemoryStore) FindMarker(_ context.Context, group string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.markers[group]
	if !ok {
		return "", NewStoreError("FindMarker", "marker", group, "no deployment marker for group", ErrNotFound)
	}
	return id, nil
}

func (s *MemoryStore) SaveMarker(_ context.Context, group, deploymentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.markers[group]; exists {
		return NewStoreError("SaveMarker", "marker", group, "group already has a deployment marker", ErrAlreadyExists)
	}
	s.markers[group] = deploymentID
	return nil
}

func (s *MemoryStore) DeleteMarker(_ context.Context, group string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.markers, group)
	return nil
}

// =============================================================================
// App Registration Operations
// =============================================================================

func (s *MemoryStore) FindRegistration(_ context.Context, kind dsl.Kind, name string) (definition.AppRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[definitionKey(kind, name)]
	if !ok {
		return definition.AppRegistration{}, NewStoreError("FindRegistration", "registration", definitionKey(kind, name), "app registration not found", ErrNotFound)
	}
	return reg, nil
}

func (s *MemoryStore) SaveRegistration(_ context.Context, reg definition.AppRegistration, force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := definitionKey(reg.Kind, reg.Name)
	if _, exists := s.registrations[key]; exists && !force {
		return NewStoreError("SaveRegistration", "registration", key, "app with this kind and name is already registered", ErrAlreadyExists)
	}
	s.registrations[key] = reg
	return nil
}

func (s *MemoryStore) DeleteRegistration(_ context.Context, kind dsl.Kind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := definitionKey(kind, name)
	if _, ok := s.registrations[key]; !ok {
		return NewStoreError("DeleteRegistration", "registration", key, "app registration not found", ErrNotFound)
	}
	delete(s.registrations, key)
	return nil
}

func (s *MemoryStore) ListRegistrations(_ context.Context) ([]definition.AppRegistration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.registrations))
	for key := range s.registrations {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	regs := make([]definition.AppRegistration, 0, len(keys))
	for _, key := range keys {
		regs = append(regs, s.registrations[key])
	}
	return regs, nil
}

// =============================================================================
// Transaction Support
// =============================================================================

// WithTx runs fn against the store directly. The memory store offers no
// isolation or rollback; it exists for tests and dev mode where a failed
// multi-step operation is rebuilt from scratch anyway.
func (s *MemoryStore) WithTx(_ context.Context, fn func(Store) error) error {
	return fn(s)
}

func (s *MemoryStore) Close() error {
	return nil
}
