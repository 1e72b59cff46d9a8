// Package definition holds the persisted application group model: an
// immutable GroupDefinition built once from DSL text, plus the pure
// referential checks that run before a definition is accepted. This is part
// of the Functional Core - no I/O happens here.
package definition

import (
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Group Definition
// =============================================================================

// MemberReference is one validated member of an application group. It records
// which group owns it so a reference can be reported on its own.
type MemberReference struct {
	// Name is the referenced sub-definition's name.
	Name string `json:"name"`

	// Kind is the referenced sub-definition's kind.
	Kind dsl.Kind `json:"kind"`

	// GroupName is the name of the owning application group.
	GroupName string `json:"group,omitempty"`
}

// GroupDefinition is a named composite of member references. The member list
// is derived from the DSL text at construction and never mutated afterwards;
// replacing a definition means building a new one.
type GroupDefinition struct {
	// Name is the unique key the definition is stored under.
	Name string `json:"name"`

	// DSLText is the definition source, verbatim.
	DSLText string `json:"dslText"`

	// Members holds the parsed references in declaration order.
	Members []MemberReference `json:"members"`
}

// NewGroup parses dslText and builds the definition for the named group.
// The name is validated with the same rules the parser applies to an inline
// "name =" prefix; an inline prefix in dslText is allowed and preserved but
// the supplied name is the one the definition is keyed and owned by.
func NewGroup(name, dslText string) (GroupDefinition, error) {
	if err := dsl.ValidateName(name); err != nil {
		return GroupDefinition{}, err
	}

	node, err := dsl.Parse(dslText)
	if err != nil {
		return GroupDefinition{}, err
	}

	members := make([]MemberReference, 0, len(node.Members))
	for _, m := range node.Members {
		members = append(members, MemberReference{
			Name:      m.Name,
			Kind:      m.Kind,
			GroupName: name,
		})
	}

	return GroupDefinition{
		Name:    name,
		DSLText: dslText,
		Members: members,
	}, nil
}

// Equal reports structural equality, keyed on (name, dslText). Members are
// derived state and do not participate.
func (g GroupDefinition) Equal(other GroupDefinition) bool {
	return g.Name == other.Name && g.DSLText == other.DSLText
}

// String renders the definition for logs.
func (g GroupDefinition) String() string {
	return g.Name + " = " + g.DSLText
}
