// Package libvirt implements the Libvirt/QEMU Backend Driver (§4.5): it
// defines the two per-lab networks, builds Domain XML from a DomainSpec,
// and clones base disks in parallel.
package libvirt

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
)

// domainXMLTemplate renders one QEMU/KVM domain from a DomainSpec. This is
// infrastructure XML internal to the driver, not a Template Renderer
// collaborator template (§6) — the latter owns only ZTP config bodies.
var domainXMLTemplate = template.Must(template.New("domain").Parse(`<domain type='kvm'>
  <name>{{.Name}}</name>
  <memory unit='MiB'>{{.MemoryMiB}}</memory>
  <vcpu>{{.VCPUs}}</vcpu>
  <os>
    <type arch='{{.CPUArch}}' machine='{{.MachineType}}'>hvm</type>
    {{if .UEFI}}<loader readonly='yes' type='pflash'>/usr/share/OVMF/OVMF_CODE.fd</loader>{{end}}
  </os>
  <devices>
{{range $i, $d := .Disks}}    <disk type='file' device='{{$d.Device}}'>
      <driver name='qemu' type='qcow2'/>
      <source file='{{$d.Path}}'/>
      <target dev='{{$d.TargetDev}}' bus='{{$d.Bus}}'/>
    </disk>
{{end}}{{range $i, $n := .NICs}}    <interface type='{{if $n.IsNetwork}}network{{else}}bridge{{end}}'>
      <source {{if $n.IsNetwork}}network{{else}}bridge{{end}}='{{$n.NetworkOrBridge}}'/>
      <mac address='{{$n.MACAddress}}'/>
    </interface>
{{end}}    <console type='tcp'>
      <source mode='bind' service='{{.TelnetPort}}'/>
      <protocol type='telnet'/>
      <target type='serial' port='0'/>
    </console>
{{if .ExtraArgs}}    <qemu:commandline>
{{range .ExtraArgs}}      <qemu:arg value='{{.}}'/>
{{end}}    </qemu:commandline>{{end}}
  </devices>
</domain>`))

// renderDisk is one <disk> element's rendering inputs.
type renderDisk struct {
	Path      string
	Device    string // "disk" or "cdrom"
	TargetDev string
	Bus       string
}

// renderNIC is one <interface> element's rendering inputs.
type renderNIC struct {
	NetworkOrBridge string
	MACAddress      string
	networkAttach   bool
}

func (n renderNIC) IsNetwork() bool { return n.networkAttach }

type domainRenderCtx struct {
	Name        string
	MemoryMiB   int
	VCPUs       int
	CPUArch     string
	MachineType string
	UEFI        bool
	Disks       []renderDisk
	NICs        []renderNIC
	TelnetPort  int
	ExtraArgs   []string
}

// RenderDomainXML builds the libvirt domain XML for spec, attaching NICs
// either to a libvirt network (when NetworkOrBridge matches a known
// network name convention) or to a host bridge.
func RenderDomainXML(spec backend.DomainSpec, telnetPort int, networkAttach map[string]bool) (string, error) {
	ctx := domainRenderCtx{
		Name: spec.Name, MemoryMiB: spec.MemoryMiB, VCPUs: spec.VCPUs,
		CPUArch: spec.CPUArch, MachineType: spec.MachineType, UEFI: spec.UEFI, TelnetPort: telnetPort,
	}
	devIdx := map[string]int{}
	nextDev := func(bus string) string {
		prefix := devPrefix(bus)
		i := devIdx[prefix]
		devIdx[prefix] = i + 1
		return fmt.Sprintf("%s%c", prefix, 'a'+rune(i))
	}
	for _, d := range spec.Disks {
		device := "disk"
		if d.Cdrom {
			device = "cdrom"
		}
		ctx.Disks = append(ctx.Disks, renderDisk{Path: d.Path, Device: device, TargetDev: nextDev(d.Bus), Bus: d.Bus})
	}
	for _, n := range spec.NICs {
		ctx.NICs = append(ctx.NICs, renderNIC{
			NetworkOrBridge: n.NetworkOrBridge,
			MACAddress:      n.MACAddress,
			networkAttach:   networkAttach[n.NetworkOrBridge],
		})
	}

	var buf bytes.Buffer
	if err := domainXMLTemplate.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("libvirt: render domain xml for %s: %w", spec.Name, err)
	}
	return buf.String(), nil
}

// devPrefix maps a disk bus to its libvirt target-dev letter prefix, so an
// IDE cdrom on a pc-i440fx machine comes out "hda" as QEMU expects rather
// than the virtio-disk "vda" convention.
func devPrefix(bus string) string {
	switch bus {
	case "ide":
		return "hd"
	case "sata", "scsi", "usb":
		return "sd"
	default:
		return "vd"
	}
}

// networkXMLTemplate renders a libvirt NAT or isolated L2 network.
var networkXMLTemplate = template.Must(template.New("network").Parse(`<network>
  <name>{{.Name}}</name>
  {{if .NAT}}<forward mode='nat'/>{{end}}
  <bridge name='{{.Bridge}}' stp='on' delay='0'/>
  {{if .Subnet}}<ip address='{{.Gateway}}' netmask='{{.Netmask}}'>
    <dhcp>
      <range start='{{.DHCPStart}}' end='{{.DHCPEnd}}'/>
    </dhcp>
  </ip>{{end}}
</network>`))

type networkRenderCtx struct {
	Name      string
	Bridge    string
	NAT       bool
	Subnet    string
	Gateway   string
	Netmask   string
	DHCPStart string
	DHCPEnd   string
}

// RenderNetworkXML builds the libvirt network XML for a mgmt NAT or
// isolated L2 network (§4.5), aligned to the bridge name derivation of §6.
func RenderNetworkXML(name, bridge string, spec backend.NetworkSpec, netmask, dhcpStart, dhcpEnd string) (string, error) {
	ctx := networkRenderCtx{
		Name: name, Bridge: bridge, NAT: spec.NAT, Subnet: spec.Subnet,
		Gateway: spec.Gateway, Netmask: netmask, DHCPStart: dhcpStart, DHCPEnd: dhcpEnd,
	}
	var buf bytes.Buffer
	if err := networkXMLTemplate.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("libvirt: render network xml for %s: %w", name, err)
	}
	return buf.String(), nil
}
