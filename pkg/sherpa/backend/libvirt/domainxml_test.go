package libvirt

import (
	"testing"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/backend"
	"github.com/stretchr/testify/require"
)

func TestRenderDomainXMLUsesModelMachineType(t *testing.T) {
	spec := backend.DomainSpec{
		Name: "r1", MemoryMiB: 4096, VCPUs: 2,
		MachineType: "pc-i440fx", CPUArch: "x86_64", UEFI: false,
		Disks: []backend.DiskSpec{
			{Path: "/tmp/r1-config.iso", Bus: "ide", Cdrom: true},
			{Path: "/tmp/r1.qcow2", Bus: "virtio", Cdrom: false},
		},
	}
	xml, err := RenderDomainXML(spec, 9000, map[string]bool{})
	require.NoError(t, err)
	require.Contains(t, xml, "machine='pc-i440fx'")
	require.Contains(t, xml, "arch='x86_64'")
	require.NotContains(t, xml, "OVMF")
	require.Contains(t, xml, "dev='hda'")
	require.Contains(t, xml, "dev='vda'")
}

func TestRenderDomainXMLEnablesUEFILoader(t *testing.T) {
	spec := backend.DomainSpec{
		Name: "h1", MemoryMiB: 1024, VCPUs: 1,
		MachineType: "q35", CPUArch: "x86_64", UEFI: true,
	}
	xml, err := RenderDomainXML(spec, 9001, map[string]bool{})
	require.NoError(t, err)
	require.Contains(t, xml, "machine='q35'")
	require.Contains(t, xml, "OVMF_CODE.fd")
}

func TestDevPrefixPerBus(t *testing.T) {
	require.Equal(t, "hd", devPrefix("ide"))
	require.Equal(t, "sd", devPrefix("sata"))
	require.Equal(t, "sd", devPrefix("scsi"))
	require.Equal(t, "sd", devPrefix("usb"))
	require.Equal(t, "vd", devPrefix("virtio"))
}
