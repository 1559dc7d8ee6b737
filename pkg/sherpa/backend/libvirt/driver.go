package libvirt

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	goLibvirt "github.com/digitalocean/go-libvirt"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/util"
)

// Driver adapts the libvirt/QEMU hypervisor to backend.Driver (§4.5). The
// underlying connection is shared read-mostly across concurrent callers
// (§5): libvirt itself serializes mutating RPCs, so one connection handle
// is held by this single struct, shared by pointer and guarded by mu,
// rather than pooled.
type Driver struct {
	mu   sync.Mutex
	conn io.Closer
	lv   *goLibvirt.Libvirt

	NetworkAttach map[string]bool // network names vs. host-bridge names
	TelnetBase    int
	telnetNext    int
}

// Dial connects to the libvirt daemon over the Unix socket at socketPath
// (a single well-known address) and performs the libvirt RPC handshake.
func Dial(ctx context.Context, socketPath string) (*Driver, error) {
	d := &net.Dialer{Timeout: 5 * time.Second}
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, errs.NewBackendError("libvirt", socketPath, fmt.Errorf("dial: %w", err))
	}
	lv := goLibvirt.New(conn)
	if err := lv.Connect(); err != nil {
		conn.Close()
		return nil, errs.NewBackendError("libvirt", socketPath, fmt.Errorf("connect: %w", err))
	}
	return &Driver{conn: conn, lv: lv, NetworkAttach: make(map[string]bool), TelnetBase: 9000}, nil
}

// Close disconnects from libvirtd.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.lv.Disconnect(); err != nil {
		util.WithField("backend", "libvirt").WithError(err).Warn("disconnect failed")
	}
	return d.conn.Close()
}

// CreateNetwork defines and starts one of the two per-lab libvirt networks
// (§4.5): mgmt NAT (gateway = lab gateway) or isolated L2. Not idempotent:
// this call is one-shot per name, and a define or start failure (a name
// that already exists included) is returned as a backend error, which Up
// treats as fatal.
func (d *Driver) CreateNetwork(ctx context.Context, spec backend.NetworkSpec, bridge, netmask, dhcpStart, dhcpEnd string) error {
	xml, err := RenderNetworkXML(spec.Name, bridge, spec, netmask, dhcpStart, dhcpEnd)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	net, err := d.lv.NetworkDefineXML(xml)
	if err != nil {
		return errs.NewBackendError("libvirt", spec.Name, fmt.Errorf("define network: %w", err))
	}
	if err := d.lv.NetworkCreate(net); err != nil {
		return errs.NewBackendError("libvirt", spec.Name, fmt.Errorf("start network: %w", err))
	}
	d.NetworkAttach[spec.Name] = true
	return nil
}

// ListNetworks enumerates libvirt networks whose name contains labID.
func (d *Driver) ListNetworks(ctx context.Context, labID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	networks, _, err := d.lv.ConnectListAllNetworks(1024, goLibvirt.ConnectListNetworksActive|goLibvirt.ConnectListNetworksInactive)
	if err != nil {
		return nil, errs.NewBackendError("libvirt", "list-networks", err)
	}
	var names []string
	for _, n := range networks {
		if strings.Contains(n.Name, labID) {
			names = append(names, n.Name)
		}
	}
	return names, nil
}

// DeleteNetwork destroys (if active) and undefines a libvirt network.
// Idempotent: a not-found error from libvirt is treated as success per
// §4.8's "missing resource is not an error" rule.
func (d *Driver) DeleteNetwork(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	net, err := d.lv.NetworkLookupByName(name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return errs.NewBackendError("libvirt", name, fmt.Errorf("lookup network: %w", err))
	}
	if err := d.lv.NetworkDestroy(net); err != nil && !isNotFound(err) {
		return errs.NewBackendError("libvirt", name, fmt.Errorf("destroy network: %w", err))
	}
	if err := d.lv.NetworkUndefine(net); err != nil && !isNotFound(err) {
		return errs.NewBackendError("libvirt", name, fmt.Errorf("undefine network: %w", err))
	}
	delete(d.NetworkAttach, name)
	return nil
}

// Create defines and starts one VM domain (§4.5: "define+start sequence").
func (d *Driver) Create(ctx context.Context, spec backend.DomainSpec) error {
	d.mu.Lock()
	port := d.TelnetBase + d.telnetNext
	d.telnetNext++
	attach := make(map[string]bool, len(d.NetworkAttach))
	for k, v := range d.NetworkAttach {
		attach[k] = v
	}
	d.mu.Unlock()

	xml, err := RenderDomainXML(spec, port, attach)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	dom, err := d.lv.DomainDefineXML(xml)
	if err != nil {
		return errs.NewBackendError("libvirt", spec.Name, fmt.Errorf("define domain: %w", err))
	}
	if err := d.lv.DomainCreate(dom); err != nil {
		return errs.NewBackendError("libvirt", spec.Name, fmt.Errorf("start domain: %w", err))
	}
	return nil
}

// List enumerates domain names whose name contains labID.
func (d *Driver) List(ctx context.Context, labID string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	domains, _, err := d.lv.ConnectListAllDomains(1024, goLibvirt.ConnectListDomainsActive|goLibvirt.ConnectListDomainsInactive)
	if err != nil {
		return nil, errs.NewBackendError("libvirt", "list-domains", err)
	}
	var names []string
	for _, dom := range domains {
		if strings.Contains(dom.Name, labID) {
			names = append(names, dom.Name)
		}
	}
	return names, nil
}

// Destroy undefines (with NVRAM flag) then force-destroys a domain if
// active, per §4.5's "undefine with NVRAM flag, then destroy if active".
// Idempotent: a not-found lookup is treated as already-gone.
func (d *Driver) Destroy(ctx context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dom, err := d.lv.DomainLookupByName(name)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		return errs.NewBackendError("libvirt", name, fmt.Errorf("lookup domain: %w", err))
	}

	flags := goLibvirt.DomainUndefineNvram
	if err := d.lv.DomainUndefineFlags(dom, flags); err != nil && !isNotFound(err) {
		return errs.NewBackendError("libvirt", name, fmt.Errorf("undefine domain: %w", err))
	}
	if err := d.lv.DomainDestroy(dom); err != nil && !isNotActive(err) && !isNotFound(err) {
		return errs.NewBackendError("libvirt", name, fmt.Errorf("destroy domain: %w", err))
	}
	return nil
}

// isNotFound classifies a libvirt RPC error as "resource does not exist",
// the §4.8 idempotence condition.
func isNotFound(err error) bool {
	return strings.Contains(err.Error(), "Domain not found") ||
		strings.Contains(err.Error(), "Network not found") ||
		strings.Contains(err.Error(), "no domain") ||
		strings.Contains(err.Error(), "no network")
}

func isNotActive(err error) bool {
	return strings.Contains(err.Error(), "domain is not running")
}

// CloneDisk copies a base qcow2 image at srcPath into a fresh per-node
// disk at destPath. Real backing-file clones invoke qemu-img; this wraps
// that invocation so the Lifecycle Engine can fan it out across a bounded
// worker pool (§5) without knowing the underlying tool.
func CloneDisk(ctx context.Context, srcPath, destPath string) error {
	return cloneQcow2(ctx, srcPath, destPath)
}
