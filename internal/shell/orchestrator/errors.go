package orchestrator

import (
	"errors"
	"fmt"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrAlreadyDeployed  = errors.New("application group is already deployed")
	ErrAlreadyDeploying = errors.New("application group is already being deployed")
)

// DispatchError describes one failed member deploy or undeploy dispatch. It
// is carried inside the MemberResult list, never used to abort the group
// loop.
type DispatchError struct {
	GroupName string
	Member    string
	Kind      dsl.Kind
	Op        string // "deploy" or "undeploy"
	Err       error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s %s %s in group %s: %v", e.Op, e.Kind, e.Member, e.GroupName, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
