// Package dockerdriver implements the Docker Backend Driver (§4.5):
// containers launched on a single user-defined bridge network per lab,
// IPAM-aligned to the lab's management subnet.
package dockerdriver

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	dockernat "github.com/docker/go-connections/nat"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
)

// labelKey tags every container/network Sherpa creates, so List can filter
// precisely instead of substring-matching names alone.
const labelKey = "sherpa.lab_id"

// Driver adapts the Docker Engine API to backend.Driver.
type Driver struct {
	cli *client.Client
}

// New builds a Driver from the given Docker host (empty string uses the
// DOCKER_HOST environment default, matching client.FromEnv).
func New(host string) (*Driver, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	} else {
		opts = append(opts, client.FromEnv)
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, errs.NewBackendError("docker", "connect", err)
	}
	return &Driver{cli: cli}, nil
}

func (d *Driver) Close() error { return d.cli.Close() }

// CreateNetwork creates the lab's user-defined bridge, its IPAM config
// matching the libvirt mgmt subnet (§4.5).
func (d *Driver) CreateNetwork(ctx context.Context, spec backend.NetworkSpec, labID string) error {
	_, err := d.cli.NetworkCreate(ctx, spec.Name, types.NetworkCreate{
		Driver: "bridge",
		Labels: map[string]string{labelKey: labID},
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: spec.Subnet, Gateway: spec.Gateway}},
		},
	})
	if err != nil {
		if isConflict(err) {
			return errs.NewBackendError("docker", spec.Name, fmt.Errorf("%w: %v", errs.ErrResourceConflict, err))
		}
		return errs.NewBackendError("docker", spec.Name, fmt.Errorf("create network: %w", err))
	}
	return nil
}

// ListNetworks enumerates lab-tagged Docker networks.
func (d *Driver) ListNetworks(ctx context.Context, labID string) ([]string, error) {
	nets, err := d.cli.NetworkList(ctx, types.NetworkListOptions{
		Filters: filters.NewArgs(filters.Arg("label", labelKey+"="+labID)),
	})
	if err != nil {
		return nil, errs.NewBackendError("docker", "list-networks", err)
	}
	names := make([]string, 0, len(nets))
	for _, n := range nets {
		names = append(names, n.Name)
	}
	return names, nil
}

// DeleteNetwork removes a Docker network. Idempotent: NotFound is treated
// as already-gone.
func (d *Driver) DeleteNetwork(ctx context.Context, name string) error {
	if err := d.cli.NetworkRemove(ctx, name); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return errs.NewBackendError("docker", name, fmt.Errorf("remove network: %w", err))
	}
	return nil
}

// Create launches a container attached to spec's network with an explicit
// IPv4 assignment, per §4.5 ("run launches a container ... with an
// explicit IPv4 assignment").
func (d *Driver) Create(ctx context.Context, spec backend.DomainSpec) error {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, k+"="+v)
	}
	binds := make([]string, 0, len(spec.Mounts))
	for host, cont := range spec.Mounts {
		binds = append(binds, host+":"+cont)
	}

	networkName := ""
	if len(spec.NICs) > 0 {
		networkName = spec.NICs[0].NetworkOrBridge
	}

	resp, err := d.cli.ContainerCreate(ctx, &container.Config{
		Image:  spec.Image,
		Env:    env,
		Cmd:    spec.Command,
		Labels: map[string]string{labelKey: spec.LabID},
	}, &container.HostConfig{
		Binds:      binds,
		Privileged: spec.Privileged,
		PortBindings: dockernat.PortMap{},
	}, &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			networkName: {
				IPAMConfig: &network.EndpointIPAMConfig{IPv4Address: spec.IPv4Address},
			},
		},
	}, nil, spec.Name)
	if err != nil {
		if isConflict(err) {
			return errs.NewBackendError("docker", spec.Name, fmt.Errorf("%w: %v", errs.ErrResourceConflict, err))
		}
		return errs.NewBackendError("docker", spec.Name, fmt.Errorf("create container: %w", err))
	}

	if err := d.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return errs.NewBackendError("docker", spec.Name, fmt.Errorf("start container: %w", err))
	}
	return nil
}

// List enumerates lab-tagged container names (§3: "a node's identity
// within a backend is the tuple (node_name, lab_id)").
func (d *Driver) List(ctx context.Context, labID string) ([]string, error) {
	containers, err := d.cli.ContainerList(ctx, types.ContainerListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", labelKey+"="+labID)),
	})
	if err != nil {
		return nil, errs.NewBackendError("docker", "list-containers", err)
	}
	names := make([]string, 0, len(containers))
	for _, c := range containers {
		for _, n := range c.Names {
			names = append(names, strings.TrimPrefix(n, "/"))
		}
	}
	return names, nil
}

// Destroy force-removes a container. Idempotent.
func (d *Driver) Destroy(ctx context.Context, name string) error {
	err := d.cli.ContainerRemove(ctx, name, types.ContainerRemoveOptions{Force: true})
	if err != nil && !client.IsErrNotFound(err) {
		return errs.NewBackendError("docker", name, fmt.Errorf("remove container: %w", err))
	}
	return nil
}

func isConflict(err error) bool {
	return client.IsErrNotFound(err) == false && strings.Contains(err.Error(), "already")
}

var _ backend.Driver = (*Driver)(nil)
