package dsl

import "strings"

// =============================================================================
// AST
// =============================================================================

// MemberNode is a single member reference inside a group definition. It is
// produced by the parser and carries enough position information to point a
// caller back at the offending source text.
type MemberNode struct {
	// Name is the definition name the member refers to.
	Name string

	// Label is the raw kind label attached with ':'. When the definition
	// omits the label it defaults to Name, so "http-source:stream" and a
	// bare "stream" both resolve the same way.
	Label string

	// Kind is the resolved member kind. Populated by Parse after the label
	// resolution pass.
	Kind Kind

	// Pos and End bound the member's source text, [Pos, End).
	Pos int
	End int
}

// Labeled reports whether the member carried an explicit ':kind' label in the
// source text.
func (m MemberNode) Labeled() bool {
	return m.Label != m.Name
}

// String renders the member in canonical form: bare name when the label was
// implicit, "name:label" otherwise.
func (m MemberNode) String() string {
	if !m.Labeled() {
		return m.Name
	}
	return m.Name + ":" + m.Label
}

// GroupNode is the root of a parsed group definition.
type GroupNode struct {
	// Name is the group name from the "name =" prefix, empty when the
	// definition is anonymous.
	Name string

	// Members holds the member references in source order.
	Members []MemberNode

	// Source is the original definition text, verbatim.
	Source string
}

// String renders the definition in canonical form, with members joined by
// " & ". Parsing the result yields an equivalent tree.
func (g GroupNode) String() string {
	var b strings.Builder
	if g.Name != "" {
		b.WriteString(g.Name)
		b.WriteString(" = ")
	}
	for i, m := range g.Members {
		if i > 0 {
			b.WriteString(" & ")
		}
		b.WriteString(m.String())
	}
	return b.String()
}
