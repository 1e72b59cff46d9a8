// Package registry manages app registrations and imports application group
// descriptors: one YAML document registering apps, saving member definitions,
// and creating groups in a single operation.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/definition"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/descriptor"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/orchestrator"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/shell/store"
)

// =============================================================================
// Registry Service
// =============================================================================

// GroupCreator creates application groups from descriptor entries. Satisfied
// by the orchestrator.
type GroupCreator interface {
	Create(ctx context.Context, name, dslText string, force, deploy bool) (definition.GroupDefinition, []orchestrator.MemberResult, error)
}

// Service exposes app registration CRUD and descriptor import.
type Service struct {
	store   store.Store
	creator GroupCreator
	fetcher ArtifactFetcher
	logger  *slog.Logger
}

// NewService creates the registry service.
func NewService(st store.Store, creator GroupCreator, fetcher ArtifactFetcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   st,
		creator: creator,
		fetcher: fetcher,
		logger:  logger,
	}
}

// Register saves an app registration. Re-registering an existing (kind, name)
// requires force.
func (s *Service) Register(ctx context.Context, kind dsl.Kind, name, uri string, force bool) error {
	if name == "" {
		return fmt.Errorf("app name must not be empty")
	}
	if uri == "" {
		return fmt.Errorf("app %q: uri must not be empty", name)
	}

	reg := definition.AppRegistration{Kind: kind, Name: name, URI: uri}
	if err := s.store.SaveRegistration(ctx, reg, force); err != nil {
		return err
	}

	s.logger.Info("registered app", "kind", kind, "name", name, "uri", uri, "force", force)
	return nil
}

// Unregister removes an app registration.
func (s *Service) Unregister(ctx context.Context, kind dsl.Kind, name string) error {
	if err := s.store.DeleteRegistration(ctx, kind, name); err != nil {
		return err
	}
	s.logger.Info("unregistered app", "kind", kind, "name", name)
	return nil
}

// List returns all app registrations ordered by kind then name.
func (s *Service) List(ctx context.Context) ([]definition.AppRegistration, error) {
	return s.store.ListRegistrations(ctx)
}

// =============================================================================
// Descriptor Import
// =============================================================================

// ImportSummary counts what a descriptor import touched.
type ImportSummary struct {
	Apps        int `json:"apps"`
	Definitions int `json:"definitions"`
	Groups      int `json:"groups"`
}

// ImportDescriptor fetches the artifact behind uri, reads its
// application-group.yml, then registers every app, saves every member
// definition, and creates every listed group. force is propagated to every
// step. The first failing entry aborts the import with that entry named;
// entries already processed stay in place.
func (s *Service) ImportDescriptor(ctx context.Context, uri string, force bool) (ImportSummary, error) {
	var summary ImportSummary

	data, err := s.fetcher.Fetch(ctx, uri)
	if err != nil {
		return summary, fmt.Errorf("fetching descriptor artifact %q: %w", uri, err)
	}

	raw, err := extractDescriptor(data)
	if err != nil {
		return summary, fmt.Errorf("reading descriptor from %q: %w", uri, err)
	}

	doc, err := descriptor.Parse(raw)
	if err != nil {
		return summary, err
	}

	entries, err := doc.AppEntries()
	if err != nil {
		return summary, err
	}
	for _, entry := range entries {
		if err := s.Register(ctx, entry.Kind, entry.Name, entry.URI, force); err != nil {
			return summary, fmt.Errorf("registering app %s.%s: %w", entry.Kind, entry.Name, err)
		}
		summary.Apps++
	}

	for _, batch := range []struct {
		kind dsl.Kind
		defs []descriptor.NamedDefinition
	}{
		{dsl.KindStream, doc.Streams},
		{dsl.KindTask, doc.Tasks},
		{dsl.KindStandalone, doc.Standalone},
	} {
		for _, def := range batch.defs {
			member := definition.MemberDefinition{Kind: batch.kind, Name: def.Name, DSLText: def.DSL}
			if err := s.store.SaveDefinition(ctx, member, force); err != nil {
				return summary, fmt.Errorf("saving %s definition %q: %w", batch.kind, def.Name, err)
			}
			summary.Definitions++
		}
	}

	for _, group := range doc.Groups {
		dslText := group.DSL
		if strings.TrimSpace(dslText) == "" {
			// A group without its own dsl is the whole descriptor.
			dslText = doc.ToDSL()
		}
		if _, _, err := s.creator.Create(ctx, group.Name, dslText, force, false); err != nil {
			return summary, fmt.Errorf("creating application group %q: %w", group.Name, err)
		}
		summary.Groups++
	}

	s.logger.Info("imported descriptor",
		"uri", uri,
		"apps", summary.Apps,
		"definitions", summary.Definitions,
		"groups", summary.Groups)
	return summary, nil
}
