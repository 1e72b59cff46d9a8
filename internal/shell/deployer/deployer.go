// Package deployer launches and tears down application group members on a
// concrete runtime backend. One AppDeployer handle is registered per member
// kind; kinds without a handle are skipped by the orchestrator, which is how
// task and nested group members stay explicit no-ops during deployment.
package deployer

import (
	"context"
	"log/slog"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
)

// =============================================================================
// Deployer Contract
// =============================================================================

// Deployment is a single member dispatch request. Name is the referenced
// definition name and is the key for later Undeploy and State calls, so two
// groups sharing one standalone definition share its deployment.
type Deployment struct {
	// GroupName is the owning application group, carried as metadata.
	GroupName string

	// Name is the member definition name, unique within Kind.
	Name string

	// Kind of the referenced definition.
	Kind dsl.Kind

	// DSLText is the member definition's own dsl text.
	DSLText string

	// Properties are the member-scoped deployment properties, prefixes
	// already stripped. The reserved key "port" publishes that tcp port
	// on backends that support it.
	Properties map[string]string

	// URI is the registered artifact location, empty when the member has
	// no app registration.
	URI string
}

// AppDeployer deploys and undeploys members of one kind. State never fails;
// backends fold lookup errors into StateUnknown so aggregate calculation
// stays total.
type AppDeployer interface {
	Deploy(ctx context.Context, dep Deployment) error
	Undeploy(ctx context.Context, name string) error
	State(ctx context.Context, name string) state.LifecycleState
}

// Set maps member kinds to their deployer handles. Kinds absent from the set
// are not dispatched.
type Set map[dsl.Kind]AppDeployer

// =============================================================================
// Backend Factory
// =============================================================================

// Supported backend names for Config.Backend.
const (
	BackendLocal  = "local"
	BackendDocker = "docker"
)

// Config selects and parameterizes the deployment backend.
type Config struct {
	// Backend is "local" or "docker". Empty means local.
	Backend string

	// DockerHost overrides the docker daemon address. Empty uses the
	// environment (DOCKER_HOST et al).
	DockerHost string
}

// NewFromConfig builds the deployer set for the configured backend along
// with a close function releasing any backend connections. Stream and
// standalone members are deployable; task and group kinds are left without
// a handle.
func NewFromConfig(cfg Config, logger *slog.Logger) (Set, func() error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case "", BackendLocal:
		set := Set{
			dsl.KindStream:     NewLocalDeployer(logger),
			dsl.KindStandalone: NewLocalDeployer(logger),
		}
		return set, func() error { return nil }, nil

	case BackendDocker:
		cli, err := newDockerClient(cfg.DockerHost)
		if err != nil {
			return nil, nil, err
		}
		set := Set{
			dsl.KindStream:     newDockerDeployer(cli, dsl.KindStream, logger),
			dsl.KindStandalone: newDockerDeployer(cli, dsl.KindStandalone, logger),
		}
		return set, cli.Close, nil

	default:
		return nil, nil, NewDeployerError("NewFromConfig", "", "unknown backend "+cfg.Backend, ErrUnknownBackend)
	}
}
