// Package backend defines the common contract (§4.5) every runtime
// backend (libvirt, Docker, host netlink) implements, so the Lifecycle
// Engine can fan out across them uniformly.
package backend

import "context"

// DomainSpec describes one VM/container to create. Backend drivers map
// only the fields relevant to their runtime; a libvirt driver ignores
// Image/Env/Mounts, a Docker driver ignores Disks.
type DomainSpec struct {
	Name      string // backend name, "{node_name}-{lab_id}"
	LabID     string
	VCPUs     int
	MemoryMiB int
	Disks     []DiskSpec
	NICs      []NICSpec

	// MachineType/CPUArch/UEFI are the Model Registry's per-model hardware
	// defaults (§4.1), threaded through so the libvirt driver renders the
	// domain XML the model actually requires (q35/UEFI vs. pc-i440fx/SeaBIOS)
	// instead of a single hardcoded shape. Docker ignores these.
	MachineType string
	CPUArch     string
	UEFI        bool

	Image       string // Docker only
	Env         map[string]string
	Mounts      map[string]string
	Command     []string
	Privileged  bool
	IPv4Address string
}

// DiskSpec is one disk/cdrom attachment, already bus-assigned by the
// Artifact Builder and ordered by the Lifecycle Engine's assembleDisks
// (§4.3). A libvirt
// driver renders one <disk> element per entry in order; a Docker driver
// ignores this field entirely.
type DiskSpec struct {
	Path   string
	Bus    string // "virtio", "sata", "ide", "scsi", "usb"
	Cdrom  bool
}

// NICSpec attaches one interface to a network or host bridge.
type NICSpec struct {
	NetworkOrBridge string
	MACAddress      string
}

// NetworkSpec describes a backend-owned network (libvirt NAT/isolated
// network, or Docker user-defined bridge).
type NetworkSpec struct {
	Name    string
	Subnet  string // CIDR, aligned across libvirt mgmt network and Docker bridge
	Gateway string
	NAT     bool
}

// Driver is the uniform surface the Lifecycle Engine drives every backend
// through (§4.5).
type Driver interface {
	Create(ctx context.Context, spec DomainSpec) error
	List(ctx context.Context, labID string) ([]string, error)
	Destroy(ctx context.Context, name string) error
	ListNetworks(ctx context.Context, labID string) ([]string, error)
	DeleteNetwork(ctx context.Context, name string) error
}
