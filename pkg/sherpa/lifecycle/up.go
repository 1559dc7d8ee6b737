package lifecycle

import (
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/addralloc"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/artifact"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
	sherpalibvirt "github.com/sherpa-labs/sherpa/pkg/sherpa/backend/libvirt"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/manifest"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/netfab"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/readiness"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
	"github.com/sherpa-labs/sherpa/pkg/util"
)

// UpRequest is the parameter object for the `up` RPC method (§6).
type UpRequest struct {
	LabID    string
	Owner    string
	Manifest *manifest.Manifest
	// WriteTestbed gates the optional pyATS inventory (§D): only written
	// when the caller requests it.
	WriteTestbed bool
}

// NodeResult summarizes one provisioned node in the final UpResponse.
type NodeResult struct {
	Name        string
	BackendName string
	MgmtAddress string
	Kind        registry.NodeKind
}

// LinkResult summarizes one provisioned link.
type LinkResult struct {
	Ordinal int
	BridgeA string
	BridgeB string
}

// UpResult is the final summary `up` returns once its state machine
// reaches Running or Failed (§4.7, §8 scenario 3's "warning" result).
type UpResult struct {
	LabID      string
	State      State
	MgmtNet    string
	Gateway    net.IP
	BootServer net.IP
	Nodes      []NodeResult
	Links      []LinkResult
	Laggards   []string
	Warning    string
}

// Progress is an optional per-step callback; the out-of-scope RPC
// transport uses it to stream progress (§6), the core never depends on it.
type Progress func(step string)

// Up implements the Lifecycle Engine's `up` control flow (§4.7, §2).
func (e *Engine) Up(ctx context.Context, req UpRequest, onProgress Progress) (*UpResult, error) {
	report := func(step string) {
		util.WithLab(req.LabID).Info("up: " + step)
		if onProgress != nil {
			onProgress(step)
		}
	}

	// --- Step 1: Validate. ---
	report("validating manifest")
	if err := manifest.Validate(req.Manifest, e.Registry); err != nil {
		return nil, err
	}

	images := make(map[string]*registry.NodeImage, len(req.Manifest.Nodes))
	for _, n := range req.Manifest.Nodes {
		img, err := e.Registry.Get(n.Model)
		if err != nil {
			return nil, fmt.Errorf("lifecycle: node %q: %w", n.Name, err)
		}
		images[n.Name] = img
	}

	// --- Step 2: Allocate subnet. ---
	report("allocating management subnet")
	base, mgmtPrefixLen, err := e.mgmtBase()
	if err != nil {
		return nil, err
	}
	subnet, err := addralloc.AllocateSubnet(base, mgmtPrefixLen, e.inUseChecker(ctx))
	if err != nil {
		return nil, err
	}
	gateway, err := addralloc.AddressAt(subnet, addralloc.OffsetGateway)
	if err != nil {
		return nil, err
	}
	bootServer, err := addralloc.AddressAt(subnet, addralloc.OffsetBootServer)
	if err != nil {
		return nil, err
	}

	if _, err := e.Catalog.CreateLab(req.Manifest.Name, req.LabID, req.Owner, subnet.String(), netfab.IsoNetworkName(req.LabID)); err != nil {
		return nil, err
	}

	// --- Step 3: Write lab info file. ---
	report("writing lab info")
	labDir := e.Settings.LabDir(req.LabID)
	if err := WriteLabInfo(labDir, &LabInfo{
		LabID: req.LabID, Owner: req.Owner, Name: req.Manifest.Name,
		MgmtNet: subnet.String(), Gateway: gateway.String(), BootServer: bootServer.String(),
	}); err != nil {
		return nil, err
	}

	// --- Step 4: Create libvirt networks + Docker bridge. ---
	report("creating management and isolated networks")
	ones, _ := subnet.Mask.Size()
	dhcpStart, _ := addralloc.AddressAt(subnet, 100)
	dhcpEnd, _ := addralloc.AddressAt(subnet, 200)
	mgmtNetSpec := backend.NetworkSpec{Name: netfab.MgmtNetworkName(req.LabID), Subnet: subnet.String(), Gateway: gateway.String(), NAT: true}
	if err := e.Libvirt.CreateNetwork(ctx, mgmtNetSpec, netfab.MgmtBridgeName(req.LabID), maskString(ones), dhcpStart.String(), dhcpEnd.String()); err != nil {
		return nil, err
	}
	isoNetSpec := backend.NetworkSpec{Name: netfab.IsoNetworkName(req.LabID), NAT: false}
	if err := e.Libvirt.CreateNetwork(ctx, isoNetSpec, netfab.IsoBridgeName(req.LabID), "", "", ""); err != nil {
		return nil, err
	}
	if err := e.Docker.CreateNetwork(ctx, mgmtNetSpec, req.LabID); err != nil {
		return nil, err
	}

	// --- Step 5: Fabricate interfaces for each link. ---
	report("fabricating link bridges")
	linkPlans, err := planLinks(req.LabID, req.Manifest.Links, images)
	if err != nil {
		return nil, err
	}
	for _, lp := range linkPlans {
		if err := e.Fabricator.Materialize(netfab.Link{LabID: req.LabID, Ordinal: lp.Ordinal}); err != nil {
			return nil, err
		}
	}

	// --- Step 6: Per-node plan. ---
	report("planning node networking and disks")
	attach := linkAttachmentIndex(linkPlans)
	nodePlans := make([]*NodePlan, 0, len(req.Manifest.Nodes))
	for i, n := range req.Manifest.Nodes {
		ordinal := i + 1
		plan, err := planNode(req.LabID, labDir, ordinal, n, images[n.Name], subnet, attach)
		if err != nil {
			return nil, err
		}
		nodePlans = append(nodePlans, plan)
	}

	// Catalog node/link rows are recorded after validation and before
	// backend provisioning (§3's ownership rule).
	for _, p := range nodePlans {
		if _, err := e.Catalog.CreateNode(p.Name, p.Ordinal, p.Image.Model, req.LabID); err != nil {
			return nil, err
		}
	}
	for _, lp := range linkPlans {
		if _, err := e.Catalog.CreateLink(lp.Ordinal, LinkKindP2PBridge, lp.NodeA, lp.NodeB, lp.IntAName, lp.IntBName, lp.BridgeA, lp.BridgeB, lp.VethA, lp.VethB, req.LabID); err != nil {
			return nil, err
		}
	}

	// --- Step 7: Build ZTP artifacts + clone disks in parallel (VMs only). ---
	report("building ztp artifacts and cloning disks")
	vmPlans := make([]*NodePlan, 0, len(nodePlans))
	containerPlans := make([]*NodePlan, 0, len(nodePlans))
	for _, p := range nodePlans {
		switch p.Image.Kind {
		case registry.KindVM, registry.KindUnikernel:
			vmPlans = append(vmPlans, p)
		case registry.KindContainer:
			containerPlans = append(containerPlans, p)
		}
	}

	if err := runBounded(e.Settings.DiskWorkerCount(), len(vmPlans), func(i int) error {
		return e.buildNodeArtifacts(labDir, gateway, vmPlans[i])
	}); err != nil {
		return nil, err
	}

	// --- Step 8: Define and start VM domains in parallel. ---
	report("defining and starting VM domains")
	if err := runBounded(e.Settings.DomainWorkerCount(), len(vmPlans), func(i int) error {
		return e.createDomain(ctx, req.LabID, vmPlans[i])
	}); err != nil {
		return nil, err
	}

	// --- Step 9: Launch containers sequentially. ---
	report("launching containers")
	for _, p := range containerPlans {
		if err := e.createContainer(ctx, req.LabID, p); err != nil {
			return nil, err
		}
	}

	if err := writeSSHConfig(labDir, nodePlans); err != nil {
		util.WithLab(req.LabID).WithError(err).Warn("up: failed writing ssh_config")
	}
	if req.WriteTestbed {
		if err := writeTestbed(labDir, req.Manifest.Name, nodePlans); err != nil {
			util.WithLab(req.LabID).WithError(err).Warn("up: failed writing testbed.yaml")
		}
	}

	// --- Step 10: Poll readiness. ---
	report("polling for readiness")
	targets := make([]readiness.Target, 0, len(nodePlans))
	for _, p := range nodePlans {
		targets = append(targets, readiness.Target{
			NodeName: p.Name, Address: p.MgmtAddress, Port: 22,
			IsContainer: p.Image.Kind == registry.KindContainer,
		})
	}
	e.Prober.Deadline = e.Settings.ReadinessDeadline()
	e.Prober.Sleep = e.Settings.ReadinessSleep()
	result := e.Prober.Wait(ctx, targets)

	res := &UpResult{
		LabID: req.LabID, MgmtNet: subnet.String(), Gateway: gateway, BootServer: bootServer,
	}
	for _, p := range nodePlans {
		res.Nodes = append(res.Nodes, NodeResult{Name: p.Name, BackendName: p.BackendName, MgmtAddress: p.MgmtAddress.String(), Kind: p.Image.Kind})
	}
	for _, lp := range linkPlans {
		res.Links = append(res.Links, LinkResult{Ordinal: lp.Ordinal, BridgeA: lp.BridgeA, BridgeB: lp.BridgeB})
	}

	if len(result.Laggards) == 0 {
		res.State = StateRunning
		_ = e.Catalog.SetLabState(req.LabID, string(StateRunning))
		return res, nil
	}

	// §8 boundary behavior: a deadline with laggards is a warning result,
	// not an error — the lab stays up and the caller decides whether to
	// destroy it.
	res.State = StateFailed
	res.Laggards = result.Laggards
	res.Warning = fmt.Sprintf("readiness deadline reached with %d node(s) unreachable: %v", len(result.Laggards), result.Laggards)
	_ = e.Catalog.SetLabState(req.LabID, string(StateFailed))
	return res, nil
}

// mgmtBase parses the configured management prefix into a base network and
// the per-lab subnet size (always /24, per §4.2).
func (e *Engine) mgmtBase() (*net.IPNet, int, error) {
	cidr := e.Settings.MgmtPrefixCIDR
	if cidr == "" {
		cidr = "10.100.0.0/16"
	}
	_, base, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, 0, fmt.Errorf("lifecycle: invalid mgmt prefix %q: %w", cidr, err)
	}
	return base, 24, nil
}

func maskString(ones int) string {
	mask := net.CIDRMask(ones, 32)
	ip := net.IP(mask)
	return ip.String()
}

// buildNodeArtifacts runs the Artifact Builder for one VM node, clones its
// primary disk, and merges the result into its NodePlan (§4.3, §4.7 step 7).
func (e *Engine) buildNodeArtifacts(labDir string, gateway net.IP, p *NodePlan) error {
	sshKeys := append([]string(nil), p.Manifest.SSHAuthorizedKeys...)
	for _, path := range p.Manifest.SSHAuthorizedKeyFiles {
		contents, err := os.ReadFile(path)
		if err != nil {
			return errs.NewArtifactError(p.Name, "ssh-key-file", err)
		}
		sshKeys = append(sshKeys, string(contents))
	}

	textFiles := make(map[string]string, len(p.Manifest.TextFiles))
	for _, f := range p.Manifest.TextFiles {
		textFiles[f.Path] = f.Contents
	}
	binaryFiles := make(map[string][]byte, len(p.Manifest.BinaryFiles))
	for _, f := range p.Manifest.BinaryFiles {
		decoded, err := base64.StdEncoding.DecodeString(f.Contents)
		if err != nil {
			return errs.NewArtifactError(p.Name, "binary-file", err)
		}
		binaryFiles[f.Path] = decoded
	}
	var units []artifact.SystemdUnitSpec
	for _, u := range p.Manifest.SystemdUnits {
		units = append(units, artifact.SystemdUnitSpec{Name: u.Name, Enabled: u.Enabled, Contents: u.Contents})
	}

	buildCtx := artifact.BuildContext{
		LabDir: labDir, NodeName: p.Name, Image: p.Image,
		MgmtAddress: p.MgmtAddress, MgmtPrefixLen: 24, Gateway: gateway, DNS: gateway, Domain: gateway,
		SSHKeys: sshKeys, TextFiles: textFiles, BinaryFiles: binaryFiles, SystemdUnits: units,
	}
	bundle, err := e.Artifacts.Build(buildCtx)
	if err != nil {
		return err
	}

	primary := primaryDiskEntry(labDir, p.Name, p.Image, e.Settings.ImagesDir())
	if err := os.MkdirAll(filepath.Dir(primary.Files.Destination), 0755); err != nil {
		return errs.NewArtifactError(p.Name, "primary-disk", err)
	}
	clone := context.Background()
	if err := sherpalibvirt.CloneDisk(clone, primary.Files.Source, primary.Files.Destination); err != nil {
		return err
	}
	// Source now names the real per-node clone rather than the shared base
	// template, matching the convention the Artifact Builder's bundle disks
	// already use (Files.Source is always the attachable path).
	cloned := artifact.NewHddEntry(artifact.FilePair{Source: primary.Files.Destination, Destination: primary.Files.Destination}, primary.Bus)

	p.Disks = assembleDisks(cloned, bundle)
	p.IgnitionJSON = bundle.IgnitionJSON
	p.TftpFiles = bundle.TftpFiles
	p.HttpFiles = bundle.HttpFiles
	return nil
}

// createDomain defines and starts one VM domain (§4.5, §4.7 step 8).
func (e *Engine) createDomain(ctx context.Context, labID string, p *NodePlan) error {
	spec := backend.DomainSpec{
		Name: p.BackendName, LabID: labID, VCPUs: p.resolvedVCPUs(), MemoryMiB: p.resolvedMemoryMiB(),
		MachineType: p.Image.MachineType, CPUArch: p.Image.CPUArch, UEFI: p.Image.Bios == "uefi",
	}
	for _, d := range p.Disks {
		spec.Disks = append(spec.Disks, backend.DiskSpec{Path: d.Files.Source, Bus: string(d.Bus), Cdrom: d.IsCdrom()})
	}
	if p.IgnitionJSON != nil {
		spec.Disks = append(spec.Disks, backend.DiskSpec{Path: p.IgnitionJSON.Source, Bus: string(registry.BusSata), Cdrom: false})
	}
	for _, iface := range p.Interfaces {
		spec.NICs = append(spec.NICs, backend.NICSpec{NetworkOrBridge: iface.NetworkOrBridge, MACAddress: iface.MAC})
	}
	return e.Libvirt.Create(ctx, spec)
}

// createContainer launches one container-kind node (§4.5, §4.7 step 9).
func (e *Engine) createContainer(ctx context.Context, labID string, p *NodePlan) error {
	mgmtIface := backend.NICSpec{NetworkOrBridge: netfab.MgmtNetworkName(labID)}
	for _, iface := range p.Interfaces {
		if iface.Kind == IfaceManagement {
			mgmtIface.MACAddress = iface.MAC
		}
	}
	spec := backend.DomainSpec{
		Name: p.BackendName, LabID: labID, Image: containerImageFor(p.Image),
		IPv4Address: p.MgmtAddress.String(), NICs: []backend.NICSpec{mgmtIface},
	}
	return e.Docker.Create(ctx, spec)
}

func containerImageFor(img *registry.NodeImage) string {
	return img.Model + ":latest"
}

func (p *NodePlan) resolvedVCPUs() int {
	if p.Manifest.CPUCount > 0 {
		return p.Manifest.CPUCount
	}
	return p.Image.VCPUs
}

func (p *NodePlan) resolvedMemoryMiB() int {
	if p.Manifest.Memory > 0 {
		return p.Manifest.Memory
	}
	return p.Image.MemoryMiB
}
