package definition

import (
	"strings"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Member Definitions
// =============================================================================

// MemberDefinition is a persisted per-kind sub-definition. Application groups
// validate their member references against these records; the definition's
// own DSL (stream pipe syntax, task command line) is opaque at this level.
type MemberDefinition struct {
	Kind    dsl.Kind `json:"kind"`
	Name    string   `json:"name"`
	DSLText string   `json:"dslText"`
}

// AppName returns the registered app this definition launches: the first
// token of its dsl text ("hdfs --fs.uri=…" launches app "hdfs"), or the
// definition name when the text carries no app reference.
func (d MemberDefinition) AppName() string {
	fields := strings.Fields(d.DSLText)
	if len(fields) == 0 {
		return d.Name
	}
	return fields[0]
}

// =============================================================================
// App Registrations
// =============================================================================

// AppRegistration maps a registered app (kind, name) to the deployable
// artifact URI deployers resolve it through, such as
// "docker:examples/http-source:1.0".
type AppRegistration struct {
	Kind dsl.Kind `json:"kind"`
	Name string   `json:"name"`
	URI  string   `json:"uri"`
}
