// Package descriptor models the application-group.yml document shipped with
// an application group artifact. Parsing is pure; fetching and unpacking the
// artifact is the shell's job.
package descriptor

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// FileName is the descriptor entry expected inside an artifact.
const FileName = "application-group.yml"

// =============================================================================
// Document
// =============================================================================

// NamedDefinition is one sub-definition carried by the descriptor.
type NamedDefinition struct {
	Name string `yaml:"name"`
	DSL  string `yaml:"dsl"`
}

// Document is a parsed application-group.yml. Unknown top-level keys are
// ignored, so descriptors may carry extra metadata without breaking import.
type Document struct {
	// Apps maps "kind.name" to the deployable artifact URI for that app.
	Apps map[string]string `yaml:"apps"`

	Streams    []NamedDefinition `yaml:"streams"`
	Tasks      []NamedDefinition `yaml:"tasks"`
	Standalone []NamedDefinition `yaml:"standalone"`

	// Groups lists the application groups the descriptor defines.
	Groups []NamedDefinition `yaml:"application-groups"`
}

// Parse decodes descriptor YAML.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("parsing %s: %w", FileName, err)
	}
	return doc, nil
}

// =============================================================================
// App Entries
// =============================================================================

// AppEntry is one resolved apps: entry.
type AppEntry struct {
	Kind dsl.Kind
	Name string
	URI  string
}

// AppEntries resolves the Apps map into (kind, name, uri) entries, sorted by
// key for a stable registration order. The key format is "kind.name"; the
// name may itself contain dots.
func (d Document) AppEntries() ([]AppEntry, error) {
	keys := make([]string, 0, len(d.Apps))
	for key := range d.Apps {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]AppEntry, 0, len(keys))
	for _, key := range keys {
		label, name, found := strings.Cut(key, ".")
		if !found || name == "" {
			return nil, fmt.Errorf("app key %q must be in kind.name format", key)
		}
		kind, ok := dsl.ParseKind(label)
		if !ok {
			return nil, fmt.Errorf("app key %q has unknown kind %q", key, label)
		}
		entries = append(entries, AppEntry{Kind: kind, Name: name, URI: d.Apps[key]})
	}
	return entries, nil
}

// =============================================================================
// Derived Group DSL
// =============================================================================

// ToDSL renders the group definition text implied by the descriptor's member
// definitions: every stream, task and standalone, in document order, joined
// by " & ". Used when a listed application group carries no dsl of its own.
func (d Document) ToDSL() string {
	var refs []string
	for _, s := range d.Streams {
		refs = append(refs, s.Name+":"+string(dsl.KindStream))
	}
	for _, t := range d.Tasks {
		refs = append(refs, t.Name+":"+string(dsl.KindTask))
	}
	for _, s := range d.Standalone {
		refs = append(refs, s.Name+":"+string(dsl.KindStandalone))
	}
	return strings.Join(refs, " & ")
}
