package lifecycle

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/netfab"
	"github.com/sherpa-labs/sherpa/pkg/util"
)

// DestroyRequest is the parameter object shared by `destroy` and `clean`.
type DestroyRequest struct {
	LabID  string
	Caller string
	// Admin makes Destroy skip the owner-or-admin catalog lookup entirely
	// (§4.8 step 1), so the sweep runs even without a catalog row. Clean
	// does not read it.
	Admin bool
}

// DestroySummary counts successes and failures per resource kind (§4.8 step 4).
type DestroySummary struct {
	Succeeded map[string]int
	Failed    map[string]int
}

func newDestroySummary() *DestroySummary {
	return &DestroySummary{Succeeded: map[string]int{}, Failed: map[string]int{}}
}

func (s *DestroySummary) record(kind string, err error) {
	if err != nil {
		s.Failed[kind]++
		return
	}
	s.Succeeded[kind]++
}

// DestroyResult is the `destroy`/`clean` RPC result (§6).
type DestroyResult struct {
	LabID   string
	Summary *DestroySummary
	Errors  errs.DestroyErrors
}

// Destroy implements the authorized owner/admin teardown path (§4.8).
func (e *Engine) Destroy(ctx context.Context, req DestroyRequest) (*DestroyResult, error) {
	if !req.Admin {
		owner, err := e.Catalog.GetLabOwner(req.LabID)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				// Already gone: a repeat destroy of a lab someone else (or a
				// prior call) already tore down is success, not an error
				// (§8's destroy-then-destroy idempotence).
				return &DestroyResult{LabID: req.LabID, Summary: newDestroySummary()}, nil
			}
			return nil, err
		}
		if owner != req.Caller {
			return nil, errs.ErrAuth
		}
	}
	return e.sweep(ctx, req.LabID)
}

// Clean implements the admin-only variant: no catalog existence check, and
// every missing resource is tolerated rather than surfaced (§4.8 step 1,
// §9's "explicit admin escape hatch for orphaned labs" redesign note).
func (e *Engine) Clean(ctx context.Context, labID string) (*DestroyResult, error) {
	return e.sweep(ctx, labID)
}

// sweep performs the ordered, best-effort resource teardown (§4.8 step 3):
// containers -> VMs+disks -> Docker networks -> libvirt networks -> host
// interfaces -> catalog rows (links, nodes, lab) -> lab directory. Every
// resource is attempted independently; a missing resource counts as
// already-gone (idempotence, §4.8).
func (e *Engine) sweep(ctx context.Context, labID string) (*DestroyResult, error) {
	log := util.WithLab(labID)
	summary := newDestroySummary()
	var errList errs.DestroyErrors

	fail := func(kind, name string, err error) {
		summary.record(kind, err)
		errList = append(errList, &errs.DestroyError{ResourceKind: kind, Name: name, Reason: err})
		log.WithField("resource", kind).WithField("name", name).WithError(err).Warn("destroy: resource teardown failed")
	}

	// Step 1: containers.
	containers, err := e.Docker.List(ctx, labID)
	if err != nil {
		fail("container-list", labID, err)
	}
	for _, name := range containers {
		if err := e.Docker.Destroy(ctx, name); err != nil {
			fail("container", name, err)
			continue
		}
		summary.record("container", nil)
	}

	// Step 2: VMs. Their disks live under {lab_dir}/{node_name}/ and are
	// removed wholesale with the lab directory in the final step, not
	// individually here.
	domains, err := e.Libvirt.List(ctx, labID)
	if err != nil {
		fail("domain-list", labID, err)
	}
	for _, name := range domains {
		if err := e.Libvirt.Destroy(ctx, name); err != nil {
			fail("domain", name, err)
			continue
		}
		summary.record("domain", nil)
	}

	// Step 3: Docker networks.
	dockerNets, err := e.Docker.ListNetworks(ctx, labID)
	if err != nil {
		fail("docker-network-list", labID, err)
	}
	for _, name := range dockerNets {
		if err := e.Docker.DeleteNetwork(ctx, name); err != nil {
			fail("docker-network", name, err)
			continue
		}
		summary.record("docker-network", nil)
	}

	// Step 4: libvirt networks.
	libvirtNets, err := e.Libvirt.ListNetworks(ctx, labID)
	if err != nil {
		fail("libvirt-network-list", labID, err)
	}
	for _, name := range libvirtNets {
		if err := e.Libvirt.DeleteNetwork(ctx, name); err != nil {
			fail("libvirt-network", name, err)
			continue
		}
		summary.record("libvirt-network", nil)
	}

	// Step 5: host interfaces. Only the "a" side of each veth is deleted
	// (tearing down one end removes the pair), and only names carrying a
	// known Sherpa prefix are touched (§4.8's interface-sweep discipline).
	links, err := e.Catalog.ListLinks(labID)
	if err != nil {
		fail("link-list", labID, err)
	}
	for _, l := range links {
		if err := e.Hostnet.Destroy(ctx, l.VethA); err != nil {
			fail("host-interface", l.VethA, err)
			continue
		}
		summary.record("host-interface", nil)
		if err := e.Hostnet.Destroy(ctx, l.BridgeA); err != nil {
			fail("host-interface", l.BridgeA, err)
			continue
		}
		summary.record("host-interface", nil)
		if err := e.Hostnet.Destroy(ctx, l.BridgeB); err != nil {
			fail("host-interface", l.BridgeB, err)
			continue
		}
		summary.record("host-interface", nil)
	}
	e.destroyKnownBridges(ctx, labID, summary, fail)

	// Step 6: catalog rows, links then nodes then lab.
	if err := e.Catalog.DeleteLabLinks(labID); err != nil {
		fail("catalog-links", labID, err)
	} else {
		summary.record("catalog-links", nil)
	}
	if err := e.Catalog.DeleteLabNodes(labID); err != nil {
		fail("catalog-nodes", labID, err)
	} else {
		summary.record("catalog-nodes", nil)
	}
	if err := e.Catalog.DeleteLab(labID); err != nil {
		fail("catalog-lab", labID, err)
	} else {
		summary.record("catalog-lab", nil)
	}

	// Step 7: lab directory.
	labDir := e.Settings.LabDir(labID)
	if err := removeLabDir(labDir); err != nil {
		fail("lab-directory", labDir, err)
	} else {
		summary.record("lab-directory", nil)
	}

	return &DestroyResult{LabID: labID, Summary: summary, Errors: errList}, nil
}

// destroyKnownBridges removes the mgmt and isolated bridges, which have no
// per-link catalog row of their own.
func (e *Engine) destroyKnownBridges(ctx context.Context, labID string, summary *DestroySummary, fail func(kind, name string, err error)) {
	for _, name := range []string{netfab.MgmtBridgeName(labID), netfab.IsoBridgeName(labID)} {
		if !hasKnownSherpaPrefix(name) {
			continue
		}
		if err := e.Hostnet.Destroy(ctx, name); err != nil {
			fail("host-interface", name, err)
			continue
		}
		summary.record("host-interface", nil)
	}
}

// hasKnownSherpaPrefix guards the interface sweep so it never touches an
// interface this engine did not create (§4.8's discipline rule).
func hasKnownSherpaPrefix(name string) bool {
	return strings.HasPrefix(name, netfab.BridgePrefix) ||
		strings.HasPrefix(name, netfab.VethPrefix) ||
		strings.HasPrefix(name, netfab.MgmtBridgePrefix) ||
		strings.HasPrefix(name, netfab.IsoBridgePrefix)
}

func removeLabDir(labDir string) error {
	return os.RemoveAll(labDir)
}
