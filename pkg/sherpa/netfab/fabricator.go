package netfab

import (
	"fmt"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/vishvananda/netlink"
)

// Link is the subset of a manifest link the Fabricator needs: an ordinal
// and the lab it belongs to. Endpoint/node bookkeeping lives in the
// Lifecycle Engine; materialize only needs to name and create interfaces.
type Link struct {
	LabID   string
	Ordinal int
}

// Fabricator creates the host bridges and veth pairs backing point-to-
// point links (§4.4).
type Fabricator struct{}

func New() *Fabricator { return &Fabricator{} }

// Materialize implements the one Interface Fabricator operation: after a
// successful return, both bridges exist and are UP, the veth pair exists
// with each end enslaved to its respective bridge, and both veth ends are
// UP. Any failure aborts remaining link creation; already-created
// interfaces are not rolled back here — that is destroy's job.
func (f *Fabricator) Materialize(link Link) error {
	bridgeA, bridgeB, vethA, vethB := LinkNames(link.LabID, link.Ordinal)
	for _, name := range []string{bridgeA, bridgeB, vethA, vethB} {
		if !ValidateNameLength(name) {
			return fmt.Errorf("netfab: interface name %q exceeds %d octets: %w", name, MaxInterfaceNameLen, errs.ErrValidation)
		}
	}

	brA, err := f.ensureBridge(bridgeA)
	if err != nil {
		return err
	}
	brB, err := f.ensureBridge(bridgeB)
	if err != nil {
		return err
	}

	if err := f.createVethPair(vethA, vethB, brA, brB); err != nil {
		return err
	}

	return nil
}

func (f *Fabricator) ensureBridge(name string) (*netlink.Bridge, error) {
	existing, err := netlink.LinkByName(name)
	if err == nil {
		if br, ok := existing.(*netlink.Bridge); ok {
			return br, netlink.LinkSetUp(br)
		}
		return nil, fmt.Errorf("netfab: %q exists but is not a bridge", name)
	}

	br := &netlink.Bridge{LinkAttrs: netlink.LinkAttrs{Name: name}}
	if err := netlink.LinkAdd(br); err != nil {
		return nil, errs.NewBackendError("hostnet", name, fmt.Errorf("create bridge: %w", err))
	}
	if err := netlink.LinkSetUp(br); err != nil {
		return nil, errs.NewBackendError("hostnet", name, fmt.Errorf("bring up bridge: %w", err))
	}
	return br, nil
}

func (f *Fabricator) createVethPair(vethA, vethB string, brA, brB *netlink.Bridge) error {
	veth := &netlink.Veth{
		LinkAttrs: netlink.LinkAttrs{Name: vethA, MasterIndex: brA.Index},
		PeerName:  vethB,
	}
	if err := netlink.LinkAdd(veth); err != nil {
		return errs.NewBackendError("hostnet", vethA, fmt.Errorf("create veth pair: %w", err))
	}

	peer, err := netlink.LinkByName(vethB)
	if err != nil {
		return errs.NewBackendError("hostnet", vethB, fmt.Errorf("lookup veth peer: %w", err))
	}
	if err := netlink.LinkSetMaster(peer, brB); err != nil {
		return errs.NewBackendError("hostnet", vethB, fmt.Errorf("enslave to bridge %s: %w", brB.Name, err))
	}

	a, err := netlink.LinkByName(vethA)
	if err != nil {
		return errs.NewBackendError("hostnet", vethA, err)
	}
	if err := netlink.LinkSetUp(a); err != nil {
		return errs.NewBackendError("hostnet", vethA, err)
	}
	if err := netlink.LinkSetUp(peer); err != nil {
		return errs.NewBackendError("hostnet", vethB, err)
	}
	return nil
}
