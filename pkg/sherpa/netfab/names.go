// Package netfab implements the Interface Fabricator (§4.4): host bridges
// and veth pairs for point-to-point links, built on vishvananda/netlink.
package netfab

import "fmt"

// Prefixes used by every generated interface name, per §6. Short enough
// that "{prefix}{letter}{ordinal}-{lab_id}" stays under the 15-octet
// kernel interface-name cap for lab ids of reasonable length.
const (
	BridgePrefix = "br-"
	VethPrefix   = "v-"

	MgmtNetworkPrefix = "sherpa-mgmt-"
	IsoNetworkPrefix  = "sherpa-iso-"
	MgmtBridgePrefix  = "br-mgmt-"
	IsoBridgePrefix   = "br-iso-"
)

// MgmtNetworkName is the libvirt NAT network name for a lab's management
// plane.
func MgmtNetworkName(labID string) string { return MgmtNetworkPrefix + labID }

// IsoNetworkName is the libvirt isolated-L2 network name for a lab.
func IsoNetworkName(labID string) string { return IsoNetworkPrefix + labID }

// MgmtBridgeName is the host bridge backing the management network.
func MgmtBridgeName(labID string) string { return MgmtBridgePrefix + labID }

// IsoBridgeName is the host bridge backing the isolated network.
func IsoBridgeName(labID string) string { return IsoBridgePrefix + labID }

// LinkNames returns the two bridge names and two veth names for the
// ordinal-th link in labID, per §6's "{BR}a{ord}-{lab_id}" scheme.
func LinkNames(labID string, ordinal int) (bridgeA, bridgeB, vethA, vethB string) {
	bridgeA = fmt.Sprintf("%sa%d-%s", BridgePrefix, ordinal, labID)
	bridgeB = fmt.Sprintf("%sb%d-%s", BridgePrefix, ordinal, labID)
	vethA = fmt.Sprintf("%sa%d-%s", VethPrefix, ordinal, labID)
	vethB = fmt.Sprintf("%sb%d-%s", VethPrefix, ordinal, labID)
	return
}

// MaxInterfaceNameLen is the Linux kernel IFNAMSIZ-derived cap (one byte
// reserved for the NUL terminator).
const MaxInterfaceNameLen = 15

// ValidateNameLength reports whether name fits within the kernel limit.
func ValidateNameLength(name string) bool {
	return len(name) <= MaxInterfaceNameLen
}
