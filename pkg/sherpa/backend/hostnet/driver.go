// Package hostnet implements the Host-Netlink Backend Driver (§4.5): it
// owns the bridges and veth pairs the Interface Fabricator (§4.4) creates,
// exposing the same create/list/destroy shape as the other backends so
// the destroy sweep (§4.8) can treat all three uniformly.
package hostnet

import (
	"context"
	"fmt"
	"strings"

	"github.com/vishvananda/netlink"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/netfab"
)

// Driver enumerates and removes host bridges/veths created by netfab.
// Create/ListNetworks/DeleteNetwork are not meaningful for this backend —
// fabrication happens through netfab.Fabricator directly — so Driver only
// implements the subset the destroy sweep needs.
type Driver struct{}

func New() *Driver { return &Driver{} }

// knownPrefixes are the only interface-name prefixes this driver will ever
// touch, per §4.8's "delete only interfaces whose names carry known
// Sherpa prefixes" discipline.
var knownPrefixes = []string{
	netfab.BridgePrefix, netfab.VethPrefix, netfab.MgmtBridgePrefix, netfab.IsoBridgePrefix,
}

func hasKnownPrefix(name string) bool {
	for _, p := range knownPrefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Create is not supported by this driver; bridges/veths are fabricated by
// netfab.Fabricator.Materialize during Up.
func (d *Driver) Create(ctx context.Context, spec backend.DomainSpec) error {
	return fmt.Errorf("hostnet: Create is not supported, use netfab.Fabricator")
}

// List enumerates host interfaces whose name carries a known Sherpa prefix
// and contains labID (§4.5).
func (d *Driver) List(ctx context.Context, labID string) ([]string, error) {
	links, err := netlink.LinkList()
	if err != nil {
		return nil, errs.NewBackendError("netlink", "list", err)
	}
	var names []string
	for _, l := range links {
		name := l.Attrs().Name
		if hasKnownPrefix(name) && strings.Contains(name, labID) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Destroy removes one host interface. Per §4.8's interface-sweep
// discipline, callers should only pass the "a" side of a veth pair —
// deleting one end removes the whole pair; a bridge passed here is
// deleted directly. Idempotent: LinkNotFound is treated as already-gone.
func (d *Driver) Destroy(ctx context.Context, name string) error {
	link, err := netlink.LinkByName(name)
	if err != nil {
		if isLinkNotFound(err) {
			return nil
		}
		return errs.NewBackendError("netlink", name, fmt.Errorf("lookup: %w", err))
	}
	if err := netlink.LinkDel(link); err != nil {
		return errs.NewBackendError("netlink", name, fmt.Errorf("delete: %w", err))
	}
	return nil
}

// ListNetworks has no meaning for the host-netlink backend: bridges are
// enumerated by List alongside veths, not as a separate network concept.
func (d *Driver) ListNetworks(ctx context.Context, labID string) ([]string, error) {
	return nil, nil
}

// DeleteNetwork has no meaning for this backend; see ListNetworks.
func (d *Driver) DeleteNetwork(ctx context.Context, name string) error {
	return nil
}

func isLinkNotFound(err error) bool {
	_, ok := err.(netlink.LinkNotFoundError)
	return ok
}

var _ backend.Driver = (*Driver)(nil)
