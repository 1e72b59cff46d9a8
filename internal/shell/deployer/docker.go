package deployer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/dsl"
	"github.com/donovanmuller/spring-cloud-dataflow/internal/core/state"
)

// =============================================================================
// Docker Deployer
// =============================================================================

// Container labels attached to every member container.
const (
	LabelManaged = "com.dataflow.managed"
	LabelGroup   = "com.dataflow.group"
	LabelMember  = "com.dataflow.member"
	LabelKind    = "com.dataflow.kind"
)

// uriScheme is the only artifact scheme this backend launches.
const uriScheme = "docker:"

// DockerDeployer runs members of one kind as containers. Deploy pulls the
// registered image, then creates and starts a container named after the
// member; Undeploy stops and removes it; State maps the container status
// onto the member lifecycle.
type DockerDeployer struct {
	cli    *client.Client
	kind   dsl.Kind
	logger *slog.Logger
}

// newDockerClient creates a lazily connecting docker client. An empty host
// uses the environment (DOCKER_HOST et al); operations fail at call time
// when the daemon is unreachable.
func newDockerClient(host string) (*client.Client, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDeployerError("newDockerClient", "", "failed to create client", ErrConnectionFailed)
	}
	return cli, nil
}

func newDockerDeployer(cli *client.Client, kind dsl.Kind, logger *slog.Logger) *DockerDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DockerDeployer{cli: cli, kind: kind, logger: logger}
}

// NewDockerDeployer creates a docker-backed deployer for one member kind.
func NewDockerDeployer(host string, kind dsl.Kind, logger *slog.Logger) (*DockerDeployer, error) {
	cli, err := newDockerClient(host)
	if err != nil {
		return nil, err
	}
	return newDockerDeployer(cli, kind, logger), nil
}

// Close releases the docker client connection.
func (d *DockerDeployer) Close() error {
	return d.cli.Close()
}

// Deploy pulls the member's registered image and starts it as a labeled
// container. Any leftover container with the same name from an earlier run
// is removed first.
func (d *DockerDeployer) Deploy(ctx context.Context, dep Deployment) error {
	img, err := imageFromURI(dep.URI)
	if err != nil {
		return NewDeployerError("Deploy", dep.Name, err.Error(), err)
	}

	if err := d.pullImage(ctx, dep.Name, img); err != nil {
		return err
	}

	name := containerName(d.kind, dep.Name)
	if err := d.removeContainer(ctx, name); err != nil {
		return NewDeployerError("Deploy", dep.Name, err.Error(), err)
	}

	config := &container.Config{
		Image: img,
		Env:   envFromProperties(dep.Properties),
		Labels: map[string]string{
			LabelManaged: "true",
			LabelGroup:   dep.GroupName,
			LabelMember:  dep.Name,
			LabelKind:    string(d.kind),
		},
	}
	hostConfig := &container.HostConfig{}

	if portVal, ok := dep.Properties["port"]; ok {
		port, portErr := nat.NewPort("tcp", portVal)
		if portErr != nil {
			return NewDeployerError("Deploy", dep.Name, fmt.Sprintf("invalid port %q", portVal), portErr)
		}
		config.ExposedPorts = nat.PortSet{port: struct{}{}}
		hostConfig.PortBindings = nat.PortMap{
			port: []nat.PortBinding{{HostPort: portVal}},
		}
	}

	resp, err := d.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return NewDeployerError("Deploy", dep.Name, err.Error(), err)
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return NewDeployerError("Deploy", dep.Name, err.Error(), err)
	}

	d.logger.Info("container started",
		"group", dep.GroupName,
		"member", dep.Name,
		"kind", d.kind,
		"image", img,
		"container", name)
	return nil
}

// Undeploy stops and removes the member's container. An absent container is
// a no-op so undeploy stays idempotent.
func (d *DockerDeployer) Undeploy(ctx context.Context, name string) error {
	cname := containerName(d.kind, name)

	err := d.cli.ContainerStop(ctx, cname, container.StopOptions{})
	if err != nil && !client.IsErrNotFound(err) && !strings.Contains(err.Error(), "is not running") {
		return NewDeployerError("Undeploy", name, err.Error(), err)
	}

	if err := d.removeContainer(ctx, cname); err != nil {
		return NewDeployerError("Undeploy", name, err.Error(), err)
	}

	d.logger.Info("container removed", "member", name, "kind", d.kind, "container", cname)
	return nil
}

// State inspects the member's container and maps its status onto the
// lifecycle. An absent container reports undeployed; inspection failures
// report unknown.
func (d *DockerDeployer) State(ctx context.Context, name string) state.LifecycleState {
	resp, err := d.cli.ContainerInspect(ctx, containerName(d.kind, name))
	if err != nil {
		if client.IsErrNotFound(err) {
			return state.StateUndeployed
		}
		d.logger.Warn("container inspect failed", "member", name, "kind", d.kind, "error", err)
		return state.StateUnknown
	}
	if resp.State == nil {
		return state.StateUnknown
	}
	return containerState(resp.State.Status, resp.State.ExitCode)
}

func (d *DockerDeployer) pullImage(ctx context.Context, member, img string) error {
	reader, err := d.cli.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not found") ||
			strings.Contains(errStr, "manifest unknown") ||
			strings.Contains(errStr, "repository does not exist") ||
			strings.Contains(errStr, "pull access denied") {
			return NewDeployerError("Deploy", member, "image "+img+" not found", ErrImageNotFound)
		}
		return NewDeployerError("Deploy", member, errStr, ErrImagePullFailed)
	}
	defer reader.Close()

	// Drain the reader to complete the pull
	if _, err := io.Copy(io.Discard, reader); err != nil {
		return NewDeployerError("Deploy", member, err.Error(), ErrImagePullFailed)
	}
	return nil
}

func (d *DockerDeployer) removeContainer(ctx context.Context, cname string) error {
	err := d.cli.ContainerRemove(ctx, cname, container.RemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return err
	}
	return nil
}

// =============================================================================
// Spec Building Helpers
// =============================================================================

// containerName generates the container name for a member.
// Pattern: dataflow_{kind}_{member}
func containerName(kind dsl.Kind, name string) string {
	return fmt.Sprintf("dataflow_%s_%s", kind, name)
}

// imageFromURI resolves a "docker:image[:tag]" registration uri to the image
// reference. Other schemes are rejected.
func imageFromURI(uri string) (string, error) {
	if !strings.HasPrefix(uri, uriScheme) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	img := strings.TrimPrefix(uri, uriScheme)
	img = strings.TrimPrefix(img, "//")
	if img == "" {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedURI, uri)
	}
	return img, nil
}

var envNameReplacer = strings.NewReplacer(".", "_", "-", "_")

// envFromProperties renders deployment properties as container environment
// entries, key "server.port" becoming SERVER_PORT. Output order is sorted so
// container specs stay deterministic.
func envFromProperties(props map[string]string) []string {
	if len(props) == 0 {
		return nil
	}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(keys))
	for _, k := range keys {
		env = append(env, strings.ToUpper(envNameReplacer.Replace(k))+"="+props[k])
	}
	return env
}

// containerState maps a docker container status onto the member lifecycle.
func containerState(status string, exitCode int) state.LifecycleState {
	switch status {
	case "running", "paused":
		return state.StateDeployed
	case "created", "restarting":
		return state.StateDeploying
	case "removing":
		return state.StateUndeployed
	case "exited":
		if exitCode != 0 {
			return state.StateFailed
		}
		return state.StateUndeployed
	case "dead":
		return state.StateFailed
	default:
		return state.StateUnknown
	}
}
