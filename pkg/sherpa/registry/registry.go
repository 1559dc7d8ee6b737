// Package registry implements the Model Registry (§4.1): a process-wide,
// read-only map from NodeModel to NodeImage. Entries are data, not a
// switch — per the DESIGN NOTES this replaces ~1500 lines of hand-written
// enums with a small table plus a generic InterfaceScheme wrapper.
package registry

import (
	"fmt"
	"sort"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
)

// NodeKind is the runtime backend family a model is provisioned on.
type NodeKind string

const (
	KindVM        NodeKind = "vm"
	KindContainer NodeKind = "container"
	KindUnikernel NodeKind = "unikernel"
)

// ZtpMethod names the zero-touch-provisioning delivery mechanism (§4.3).
type ZtpMethod string

const (
	ZtpCloudInit ZtpMethod = "cloud-init"
	ZtpCdrom     ZtpMethod = "cdrom"
	ZtpDisk      ZtpMethod = "disk"
	ZtpTftp      ZtpMethod = "tftp"
	ZtpHttp      ZtpMethod = "http"
	ZtpUsb       ZtpMethod = "usb"
	ZtpIgnition  ZtpMethod = "ignition"
	ZtpNone      ZtpMethod = "none"
)

// DiskBus names the QEMU/libvirt disk bus type for a device slot.
type DiskBus string

const (
	BusVirtio DiskBus = "virtio"
	BusSata   DiskBus = "sata"
	BusIde    DiskBus = "ide"
	BusScsi   DiskBus = "scsi"
	BusUsb    DiskBus = "usb"
)

// InterfaceScheme is a fixed-size ordered mapping between interface index
// and interface name for one model. All schemes are constructed once at
// registry-load time; idx_of/name_of are total functions over the range
// the scheme declares, so round-tripping never panics on a valid index
// or name (§8 round-trip property).
type InterfaceScheme struct {
	names      []string
	index      map[string]int
	mgmtIdx    int // -1 if the model has no dedicated management interface
	reserved   int // count of reserved (non-data, non-mgmt) slots
	firstData  int
}

// NewInterfaceScheme builds a scheme from an ordered name list. mgmtIdx is
// -1 when the model has no dedicated management interface (interface 0 is
// then the first data interface and also used for host-side networking,
// depending on model policy). reserved counts additional non-data slots
// that immediately follow the management slot (or start at 0 if there is
// no management slot).
func NewInterfaceScheme(names []string, mgmtIdx, reserved int) *InterfaceScheme {
	idx := make(map[string]int, len(names))
	for i, n := range names {
		idx[n] = i
	}
	firstData := reserved
	if mgmtIdx >= 0 {
		firstData = mgmtIdx + 1 + reserved
	}
	return &InterfaceScheme{names: names, index: idx, mgmtIdx: mgmtIdx, reserved: reserved, firstData: firstData}
}

// NameOf returns the interface name at idx.
func (s *InterfaceScheme) NameOf(idx int) (string, error) {
	if idx < 0 || idx >= len(s.names) {
		return "", fmt.Errorf("registry: interface index %d out of range [0,%d)", idx, len(s.names))
	}
	return s.names[idx], nil
}

// IdxOf returns the index of the named interface.
func (s *InterfaceScheme) IdxOf(name string) (int, error) {
	idx, ok := s.index[name]
	if !ok {
		return 0, fmt.Errorf("registry: unknown interface name %q", name)
	}
	return idx, nil
}

// AllNames returns the ordered sequence of interface names.
func (s *InterfaceScheme) AllNames() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Cardinality is the maximum number of interfaces this scheme declares.
func (s *InterfaceScheme) Cardinality() int { return len(s.names) }

// HasManagement reports whether the model has a dedicated management slot.
func (s *InterfaceScheme) HasManagement() bool { return s.mgmtIdx >= 0 }

// ManagementIndex returns the dedicated management interface index, or -1.
func (s *InterfaceScheme) ManagementIndex() int { return s.mgmtIdx }

// IsReserved reports whether idx falls in the reserved (non-data,
// non-management) range.
func (s *InterfaceScheme) IsReserved(idx int) bool {
	start := 0
	if s.mgmtIdx >= 0 {
		start = s.mgmtIdx + 1
	}
	return idx >= start && idx < s.firstData
}

// IsData reports whether idx falls in the data range.
func (s *InterfaceScheme) IsData(idx int) bool {
	return idx >= s.firstData && idx < len(s.names)
}

// FirstDataIndex returns the first index usable by a link endpoint.
func (s *InterfaceScheme) FirstDataIndex() int { return s.firstData }

// NodeImage is an immutable Model Registry entry (§3, §4.1).
type NodeImage struct {
	Model      string
	Kind       NodeKind
	Bios       string
	CPUArch    string
	CPUModel   string
	MachineType string
	MemoryMiB  int
	VCPUs      int
	HddBus     DiskBus
	CdromBus   DiskBus
	CdromFile  string // optional fixed cdrom filename, e.g. for network-boot-only images
	Ztp        ZtpMethod
	Scheme     *InterfaceScheme
	MTU        int
	ReservedIfaces int
	RequiredTemplates []string // template bundle names the Template Renderer must expose
	BaseImagePath string       // source disk image staged under the images root
}

// Registry is the process-wide, read-only NodeModel → NodeImage map.
type Registry struct {
	images map[string]*NodeImage
}

// Get returns the NodeImage for model, or ErrUnknownModel.
func (r *Registry) Get(model string) (*NodeImage, error) {
	img, ok := r.images[model]
	if !ok {
		return nil, fmt.Errorf("registry: model %q: %w", model, errs.ErrUnknownModel)
	}
	return img, nil
}

// Models returns all known model names in sorted order.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.images))
	for k := range r.images {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// linuxScheme builds a scheme for "ethN" interface families with nInterfaces
// total, reserved reserved slots after the mgmt slot (if any).
func linuxScheme(n int, mgmt bool, reserved int) *InterfaceScheme {
	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = fmt.Sprintf("eth%d", i)
	}
	mgmtIdx := -1
	if mgmt {
		mgmtIdx = 0
	}
	return NewInterfaceScheme(names, mgmtIdx, reserved)
}

// gigEScheme builds a scheme for "GigabitEthernetN" families (IOS-XE-style),
// with a dedicated "Management0" slot at index 0 plus reserved slots.
func gigEScheme(nData, reserved int) *InterfaceScheme {
	names := []string{"Management0"}
	for i := 0; i < reserved; i++ {
		names = append(names, fmt.Sprintf("Reserved%d", i))
	}
	for i := 0; i < nData; i++ {
		names = append(names, fmt.Sprintf("GigabitEthernet%d", i+1))
	}
	return NewInterfaceScheme(names, 0, reserved)
}

// New constructs the built-in Model Registry from the data-driven table
// below. Adding a model is a table edit, not a control-flow change, per
// the DESIGN NOTES.
func New() *Registry {
	r := &Registry{images: make(map[string]*NodeImage)}

	add := func(img *NodeImage) { r.images[img.Model] = img }

	// --- Linux-family hosts: cloud-init over a seed ISO. ---
	for _, model := range []string{"ubuntu_linux", "alpine_linux", "rhel_linux", "bsd_host"} {
		add(&NodeImage{
			Model: model, Kind: KindVM, Bios: "uefi", CPUArch: "x86_64",
			MachineType: "q35", MemoryMiB: 1024, VCPUs: 1,
			HddBus: BusVirtio, CdromBus: BusSata, Ztp: ZtpCloudInit,
			Scheme: linuxScheme(8, true, 0), MTU: 1500,
			RequiredTemplates: []string{"cloud-init-user-data", "cloud-init-meta-data", "cloud-init-network-config"},
			BaseImagePath:     model + ".qcow2",
		})
	}

	// --- Cisco IOS-XE family: Cdrom ZTP with i440fx legacy slot 'hda'. ---
	for _, model := range []string{"cisco_iosxe", "cisco_csr1000v"} {
		add(&NodeImage{
			Model: model, Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
			MachineType: "pc-i440fx", MemoryMiB: 4096, VCPUs: 2,
			HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpCdrom,
			Scheme: gigEScheme(8, 0), MTU: 1500,
			RequiredTemplates: []string{"cisco-iosxe-config"},
			BaseImagePath:     model + ".qcow2",
		})
	}
	add(&NodeImage{
		Model: "cisco_asav", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 2048, VCPUs: 1,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpCdrom,
		Scheme: gigEScheme(8, 0), MTU: 1500,
		RequiredTemplates: []string{"cisco-asav-config"},
		BaseImagePath:     "cisco_asav.qcow2",
	})
	add(&NodeImage{
		Model: "cisco_nxos", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "q35", MemoryMiB: 8192, VCPUs: 2,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpCdrom,
		Scheme: gigEScheme(32, 2), MTU: 1500,
		RequiredTemplates: []string{"cisco-nxos-config"},
		BaseImagePath:     "cisco_nxos.qcow2",
	})
	add(&NodeImage{
		Model: "cisco_iosxr", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "q35", MemoryMiB: 8192, VCPUs: 2,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpCdrom,
		Scheme: gigEScheme(16, 2), MTU: 1500,
		RequiredTemplates: []string{"cisco-iosxr-config"},
		BaseImagePath:     "cisco_iosxr.qcow2",
	})
	add(&NodeImage{
		Model: "cisco_ftdv", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 8192, VCPUs: 4,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpCdrom,
		Scheme: gigEScheme(8, 0), MTU: 1500,
		RequiredTemplates: []string{"cisco-ftdv-config"},
		BaseImagePath:     "cisco_ftdv.qcow2",
	})
	add(&NodeImage{
		Model: "juniper_vjunos", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "q35", MemoryMiB: 6144, VCPUs: 2,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpCdrom,
		Scheme: gigEScheme(12, 1), MTU: 1500,
		RequiredTemplates: []string{"juniper-vjunos-config"},
		BaseImagePath:     "juniper_vjunos.qcow2",
	})

	// --- Cisco Disk-ZTP family: config injected into a blank FAT image. ---
	add(&NodeImage{
		Model: "cisco_iosv", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 512, VCPUs: 1,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpDisk,
		Scheme: gigEScheme(4, 0), MTU: 1500,
		RequiredTemplates: []string{"cisco-iosv-config"},
		BaseImagePath:     "cisco_iosv.qcow2",
	})
	add(&NodeImage{
		Model: "cisco_iosvl2", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 768, VCPUs: 1,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpDisk,
		Scheme: gigEScheme(16, 0), MTU: 1500,
		RequiredTemplates: []string{"cisco-iosvl2-config"},
		BaseImagePath:     "cisco_iosvl2.qcow2",
	})
	add(&NodeImage{
		Model: "cisco_ise", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 16384, VCPUs: 4,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpDisk,
		Scheme: linuxScheme(2, true, 0), MTU: 1500,
		RequiredTemplates: []string{"cisco-ise-config"},
		BaseImagePath:     "cisco_ise.qcow2",
	})

	// --- TFTP-ZTP family. ---
	add(&NodeImage{
		Model: "arista_veos", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 2048, VCPUs: 1,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpTftp,
		Scheme: linuxScheme(9, true, 0), MTU: 1500,
		RequiredTemplates: []string{"arista-veos-config"},
		BaseImagePath:     "arista_veos.qcow2",
	})
	add(&NodeImage{
		Model: "aruba_aoscx", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 2048, VCPUs: 1,
		HddBus: BusIde, CdromBus: BusIde, Ztp: ZtpTftp,
		Scheme: linuxScheme(9, true, 0), MTU: 1500,
		RequiredTemplates: []string{"aruba-aoscx-config"},
		BaseImagePath:     "aruba_aoscx.qcow2",
	})
	add(&NodeImage{
		Model: "juniper_vevolved", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "q35", MemoryMiB: 5120, VCPUs: 2,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpTftp,
		Scheme: linuxScheme(12, true, 1), MTU: 1500,
		RequiredTemplates: []string{"juniper-vevolved-config"},
		BaseImagePath:     "juniper_vevolved.qcow2",
	})

	// --- HTTP-ZTP: SONiC Linux. ---
	add(&NodeImage{
		Model: "sonic_linux", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 2048, VCPUs: 2,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpHttp,
		Scheme: linuxScheme(33, true, 0), MTU: 9216,
		RequiredTemplates: []string{"sonic-initial-config", "sonic-config-db"},
		BaseImagePath:     "sonic_linux.qcow2",
	})

	// --- USB-ZTP family. ---
	add(&NodeImage{
		Model: "cumulus_linux", Kind: KindVM, Bios: "seabios", CPUArch: "x86_64",
		MachineType: "pc-i440fx", MemoryMiB: 1024, VCPUs: 1,
		HddBus: BusVirtio, CdromBus: BusIde, Ztp: ZtpUsb,
		Scheme: linuxScheme(33, true, 0), MTU: 1500,
		RequiredTemplates: []string{"cumulus-linux-config"},
		BaseImagePath:     "cumulus_linux.qcow2",
	})

	// --- Ignition-ZTP: Flatcar Linux. ---
	add(&NodeImage{
		Model: "flatcar_linux", Kind: KindVM, Bios: "uefi", CPUArch: "x86_64",
		MachineType: "q35", MemoryMiB: 1024, VCPUs: 1,
		HddBus: BusVirtio, CdromBus: BusSata, Ztp: ZtpIgnition,
		Scheme: linuxScheme(4, true, 0), MTU: 1500,
		RequiredTemplates: []string{"flatcar-ignition"},
		BaseImagePath:     "flatcar_linux.qcow2",
	})

	// --- Container-only models: no ZTP. ---
	for _, model := range []string{"alpine_container", "frr_container"} {
		add(&NodeImage{
			Model: model, Kind: KindContainer, CPUArch: "x86_64",
			MemoryMiB: 256, VCPUs: 1, Ztp: ZtpNone,
			Scheme: linuxScheme(8, true, 0), MTU: 1500,
		})
	}

	return r
}
