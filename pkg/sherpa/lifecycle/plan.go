package lifecycle

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/addralloc"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/artifact"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/manifest"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/netfab"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
)

// IfaceKind classifies one interface slot's attachment per §4.7 step 6.
type IfaceKind string

const (
	IfaceManagement IfaceKind = "management"
	IfacePeerBridge IfaceKind = "peer_bridge"
	IfaceDisabled   IfaceKind = "disabled"
)

// IfacePlan is one resolved interface slot for a node.
type IfacePlan struct {
	Index           int
	Name            string
	Kind            IfaceKind
	NetworkOrBridge string
	MAC             string
}

// LinkPlan is a fully-resolved link: ordinal, endpoint interface indices,
// and the derived bridge/veth names (§3, §6).
type LinkPlan struct {
	Ordinal             int
	NodeA, NodeB        string
	IntAName, IntBName  string
	IntAIdx, IntBIdx    int
	BridgeA, BridgeB    string
	VethA, VethB        string
}

// NodePlan is one node's fully-resolved plan: networking, interfaces, and
// the assembled disk list in §4.3's attach order.
type NodePlan struct {
	Name            string
	Ordinal         int
	Manifest        manifest.Node
	Image           *registry.NodeImage
	MgmtAddress     net.IP
	LoopbackAddress net.IP
	Interfaces      []IfacePlan
	Disks           []artifact.DiskEntry
	IgnitionJSON    *artifact.FilePair
	TftpFiles       []artifact.FilePair
	HttpFiles       []artifact.FilePair
	BackendName     string
}

// planLinks resolves every manifest link into a LinkPlan, deriving bridge
// and veth names from lab id + 1-based ordinal (§3, §6).
func planLinks(labID string, links []manifest.Link, images map[string]*registry.NodeImage) ([]*LinkPlan, error) {
	plans := make([]*LinkPlan, 0, len(links))
	for i, l := range links {
		ordinal := i + 1
		imgA, imgB := images[l.NodeA], images[l.NodeB]
		idxA, err := imgA.Scheme.IdxOf(l.IntA)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: link %d: %w", ordinal, err)
		}
		idxB, err := imgB.Scheme.IdxOf(l.IntB)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: link %d: %w", ordinal, err)
		}
		bridgeA, bridgeB, vethA, vethB := netfab.LinkNames(labID, ordinal)
		plans = append(plans, &LinkPlan{
			Ordinal: ordinal, NodeA: l.NodeA, NodeB: l.NodeB,
			IntAName: l.IntA, IntBName: l.IntB, IntAIdx: idxA, IntBIdx: idxB,
			BridgeA: bridgeA, BridgeB: bridgeB, VethA: vethA, VethB: vethB,
		})
	}
	return plans, nil
}

// nodeLinkAttachment tells planInterfaces which bridge (if any) a given
// (node, interface index) attaches to.
type nodeLinkAttachment struct {
	bridge string
}

func linkAttachmentIndex(links []*LinkPlan) map[string]nodeLinkAttachment {
	out := make(map[string]nodeLinkAttachment, len(links)*2)
	key := func(node string, idx int) string { return fmt.Sprintf("%s/%d", node, idx) }
	for _, l := range links {
		out[key(l.NodeA, l.IntAIdx)] = nodeLinkAttachment{bridge: l.BridgeA}
		out[key(l.NodeB, l.IntBIdx)] = nodeLinkAttachment{bridge: l.BridgeB}
	}
	return out
}

// planInterfaces resolves every interface slot for one node (§4.7 step 6):
// management slot -> mgmt network; a link endpoint -> the per-link host
// bridge; everything else -> the isolated network.
func planInterfaces(labID string, nodeName string, img *registry.NodeImage, attach map[string]nodeLinkAttachment) ([]IfacePlan, error) {
	scheme := img.Scheme
	out := make([]IfacePlan, 0, scheme.Cardinality())
	for idx := 0; idx < scheme.Cardinality(); idx++ {
		name, err := scheme.NameOf(idx)
		if err != nil {
			return nil, err
		}
		mac, err := randomMAC()
		if err != nil {
			return nil, err
		}

		plan := IfacePlan{Index: idx, Name: name, MAC: mac}
		key := fmt.Sprintf("%s/%d", nodeName, idx)
		switch {
		case scheme.HasManagement() && idx == scheme.ManagementIndex():
			plan.Kind = IfaceManagement
			plan.NetworkOrBridge = netfab.MgmtNetworkName(labID)
		case attach[key].bridge != "":
			plan.Kind = IfacePeerBridge
			plan.NetworkOrBridge = attach[key].bridge
		default:
			plan.Kind = IfaceDisabled
			plan.NetworkOrBridge = netfab.IsoNetworkName(labID)
		}
		out = append(out, plan)
	}
	return out, nil
}

// planNode resolves one node's full NodePlan: addresses, interfaces, and
// (for VMs) the primary disk clone destination. Artifact-bundle disks are
// merged in by the caller once the Artifact Builder has run, via
// assembleDisks (called from buildNodeArtifacts).
func planNode(labID, labDir string, ordinal int, n manifest.Node, img *registry.NodeImage, mgmtSubnet *net.IPNet, attach map[string]nodeLinkAttachment) (*NodePlan, error) {
	mgmtAddr, err := addralloc.AddressAt(mgmtSubnet, addralloc.NodeOffset(ordinal))
	if err != nil {
		return nil, fmt.Errorf("lifecycle: node %q: %w", n.Name, err)
	}
	ifaces, err := planInterfaces(labID, n.Name, img, attach)
	if err != nil {
		return nil, fmt.Errorf("lifecycle: node %q: %w", n.Name, err)
	}
	return &NodePlan{
		Name: n.Name, Ordinal: ordinal, Manifest: n, Image: img,
		MgmtAddress: mgmtAddr, LoopbackAddress: LoopbackAddress(ordinal),
		Interfaces: ifaces, BackendName: BackendName(n.Name, labID),
	}, nil
}

// primaryDiskEntry builds the always-present primary VM disk entry
// (§4.3: "Primary VM disk on hdd_bus at the next slot"), cloned from the
// model's staged base image.
func primaryDiskEntry(labDir, nodeName string, img *registry.NodeImage, imagesRoot string) artifact.DiskEntry {
	dest := filepath.Join(artifact.StagingDir(labDir, nodeName), "primary.qcow2")
	src := filepath.Join(imagesRoot, img.BaseImagePath)
	return artifact.NewHddEntry(artifact.FilePair{Source: src, Destination: dest}, img.HddBus)
}

// assembleDisks merges the primary clone and the Artifact Builder's bundle
// disks into §4.3's fixed attach order: Cdrom, primary Hdd, Config, Usb,
// Ignition.
func assembleDisks(primary artifact.DiskEntry, bundle *artifact.Bundle) []artifact.DiskEntry {
	var out []artifact.DiskEntry
	for _, d := range bundle.Disks {
		if d.IsCdrom() {
			out = append(out, d)
		}
	}
	out = append(out, primary)
	for _, d := range bundle.Disks {
		if d.IsConfig() {
			out = append(out, d)
		}
	}
	for _, d := range bundle.Disks {
		if d.IsUsb() {
			out = append(out, d)
		}
	}
	for _, d := range bundle.Disks {
		if d.IsIgnition() {
			out = append(out, d)
		}
	}
	return out
}
