// Package artifact implements the Artifact Builder (§4.3): ZTP-method
// dispatch and the heterogeneous per-node Artifact Bundle.
package artifact

import (
	"path/filepath"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
)

// FilePair is a staged-source/pool-destination path pair, the unit every
// bundle entry is expressed in, per §3's Artifact Bundle description.
type FilePair struct {
	Source      string
	Destination string
}

// DiskEntry is one sum-type member of a node's disk list. Exactly one of
// Cdrom/Hdd/Config/Usb/Ignition is populated. The constructors below take
// the bus from the caller, except NewUsbEntry, which always uses the USB
// bus; they do not fix attach order, which is set where the disk list is
// assembled (the Lifecycle Engine's assembleDisks).
type DiskEntry struct {
	kind  diskKind
	Files FilePair
	Bus   registry.DiskBus
}

type diskKind int

const (
	kindCdrom diskKind = iota
	kindHdd
	kindConfig
	kindUsb
	kindIgnitionData
)

func NewCdromEntry(files FilePair, bus registry.DiskBus) DiskEntry {
	return DiskEntry{kind: kindCdrom, Files: files, Bus: bus}
}

func NewHddEntry(files FilePair, bus registry.DiskBus) DiskEntry {
	return DiskEntry{kind: kindHdd, Files: files, Bus: bus}
}

func NewConfigEntry(files FilePair, bus registry.DiskBus) DiskEntry {
	return DiskEntry{kind: kindConfig, Files: files, Bus: bus}
}

func NewUsbEntry(files FilePair, bus registry.DiskBus) DiskEntry {
	return DiskEntry{kind: kindUsb, Files: files, Bus: registry.BusUsb}
}

func NewIgnitionDataEntry(files FilePair, bus registry.DiskBus) DiskEntry {
	return DiskEntry{kind: kindIgnitionData, Files: files, Bus: bus}
}

func (d DiskEntry) IsCdrom() bool    { return d.kind == kindCdrom }
func (d DiskEntry) IsHdd() bool      { return d.kind == kindHdd }
func (d DiskEntry) IsConfig() bool   { return d.kind == kindConfig }
func (d DiskEntry) IsUsb() bool      { return d.kind == kindUsb }
func (d DiskEntry) IsIgnition() bool { return d.kind == kindIgnitionData }

// Bundle is the Artifact Builder's per-node output (§3).
type Bundle struct {
	NodeName     string
	Disks        []DiskEntry
	IgnitionJSON *FilePair // populated only for ZtpIgnition nodes
	TftpFiles    []FilePair
	HttpFiles    []FilePair
}

// StagingDir returns the per-node staging directory under the lab
// directory, mirroring the filesystem layout in §6.
func StagingDir(labDir, nodeName string) string {
	return filepath.Join(labDir, nodeName)
}
