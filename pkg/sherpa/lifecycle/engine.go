// Package lifecycle implements the Lifecycle Engine (§4.7/§4.8): the
// orchestrator that validates a manifest, drives the Address Allocator,
// fans out to the Artifact Builder and Backend Drivers, writes the
// Catalog, and polls for readiness — plus the idempotent destroy/clean
// sweep.
package lifecycle

import (
	"context"
	"net"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/artifact"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend/dockerdriver"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend/hostnet"
	sherpalibvirt "github.com/sherpa-labs/sherpa/pkg/sherpa/backend/libvirt"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/catalog"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/config"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/netfab"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/readiness"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
)

// State is the per-lab lifecycle state machine (§4.7/§3).
type State string

const (
	StateIdle         State = "Idle"
	StateValidating   State = "Validating"
	StateProvisioning State = "Provisioning"
	StateRecording    State = "Recording"
	StatePolling      State = "Polling"
	StateRunning      State = "Running"
	StateDestroying   State = "Destroying"
	StateFailed       State = "Failed"
)

// LinkKindP2PBridge is the one Link.Kind value §3 defines.
const LinkKindP2PBridge = "P2pBridge"

// Engine wires every collaborator the Lifecycle Engine drives (§2's
// control-flow diagram) behind one entry point per RPC method (§6).
type Engine struct {
	Registry   *registry.Registry
	Catalog    *catalog.Catalog
	Libvirt    *sherpalibvirt.Driver
	Docker     *dockerdriver.Driver
	Hostnet    *hostnet.Driver
	Fabricator *netfab.Fabricator
	Artifacts  *artifact.Builder
	Settings   *config.Settings
	Prober     *readiness.Prober
}

// New builds an Engine from its already-connected collaborators.
func New(reg *registry.Registry, cat *catalog.Catalog, lv *sherpalibvirt.Driver, dk *dockerdriver.Driver, hn *hostnet.Driver, artifacts *artifact.Builder, settings *config.Settings) *Engine {
	return &Engine{
		Registry:   reg,
		Catalog:    cat,
		Libvirt:    lv,
		Docker:     dk,
		Hostnet:    hn,
		Fabricator: netfab.New(),
		Artifacts:  artifacts,
		Settings:   settings,
		Prober:     readiness.New(),
	}
}

// inUseChecker reports whether a candidate subnet overlaps any
// pre-existing lab's recorded management prefix (§4.2). Every libvirt
// mgmt network and Docker bridge network this engine itself creates is
// IPAM-aligned to its lab's catalog-recorded MgmtPrefix (§4.7 step 4), so
// the catalog is the single source of truth for "is this address space
// taken" rather than re-deriving it from each backend's network list.
func (e *Engine) inUseChecker(ctx context.Context) func(*net.IPNet) (bool, error) {
	return func(candidate *net.IPNet) (bool, error) {
		labs, err := e.Catalog.ListLabs()
		if err != nil {
			return false, err
		}
		for _, l := range labs {
			if l.MgmtPrefix == "" {
				continue
			}
			_, existing, err := net.ParseCIDR(l.MgmtPrefix)
			if err != nil {
				continue
			}
			if existing.Contains(candidate.IP) || candidate.Contains(existing.IP) {
				return true, nil
			}
		}
		return false, nil
	}
}
