package deployer

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrUnknownBackend   = errors.New("unknown deployer backend")
	ErrUnsupportedURI   = errors.New("unsupported application uri")
	ErrConnectionFailed = errors.New("docker connection failed")
	ErrImageNotFound    = errors.New("image not found")
	ErrImagePullFailed  = errors.New("image pull failed")
)

// DeployerError wraps backend failures with the operation and member they
// belong to.
type DeployerError struct {
	Op      string // Operation that failed
	Name    string // Member name if applicable
	Message string
	Err     error
}

func (e *DeployerError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Name, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *DeployerError) Unwrap() error {
	return e.Err
}

// NewDeployerError creates a new DeployerError.
func NewDeployerError(op, name, message string, err error) *DeployerError {
	return &DeployerError{
		Op:      op,
		Name:    name,
		Message: message,
		Err:     err,
	}
}
