// Package addralloc implements the Address Allocator (§4.2): deterministic
// selection of a free IPv4 subnet for lab management, and derivation of
// per-host addresses within it.
package addralloc

import (
	"encoding/binary"
	"fmt"
	"net"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
)

// Offsets used by AddressAt, per §4.2.
const (
	OffsetGateway    = 1
	OffsetBootServer = 2
	nodeOffsetBase   = 10
)

// NodeOffset returns the host-index offset for the Nth (1-based) node.
func NodeOffset(nodeIndex int) int {
	return nodeOffsetBase + nodeIndex
}

// InUseChecker reports whether a candidate subnet overlaps any
// pre-existing libvirt network, Docker network, or host interface.
// The Lifecycle Engine supplies an implementation that checks only the
// management prefixes recorded in the Catalog; it does not query libvirt,
// Docker or host interfaces. Tests supply a static list.
type InUseChecker func(candidate *net.IPNet) (bool, error)

// AllocateSubnet scans /prefixLen subnets inside base in ascending order
// of network address and returns the first one not reported in-use.
// This determinism is required by §8's testable property.
func AllocateSubnet(base *net.IPNet, prefixLen int, inUse InUseChecker) (*net.IPNet, error) {
	baseOnes, bits := base.Mask.Size()
	if prefixLen < baseOnes || prefixLen > bits {
		return nil, fmt.Errorf("addralloc: prefix /%d not contained by base %s", prefixLen, base)
	}

	baseInt := ipToUint32(base.IP.To4())
	hostBits := bits - prefixLen
	step := uint32(1) << uint(hostBits)
	count := uint32(1) << uint(prefixLen-baseOnes)

	for i := uint32(0); i < count; i++ {
		candidateInt := baseInt + i*step
		candidate := &net.IPNet{
			IP:   uint32ToIP(candidateInt),
			Mask: net.CIDRMask(prefixLen, bits),
		}
		busy, err := inUse(candidate)
		if err != nil {
			return nil, fmt.Errorf("addralloc: check subnet %s: %w", candidate, err)
		}
		if !busy {
			return candidate, nil
		}
	}
	return nil, fmt.Errorf("addralloc: scanned %d /%d subnets in %s: %w", count, prefixLen, base, errs.ErrNoSubnetAvailable)
}

// AddressAt returns the hostIndex-th address within subnet.
func AddressAt(subnet *net.IPNet, hostIndex int) (net.IP, error) {
	ones, bits := subnet.Mask.Size()
	maxHosts := uint32(1) << uint(bits-ones)
	if uint32(hostIndex) >= maxHosts {
		return nil, fmt.Errorf("addralloc: host index %d exceeds subnet %s capacity", hostIndex, subnet)
	}
	base := ipToUint32(subnet.IP.To4())
	return uint32ToIP(base + uint32(hostIndex)), nil
}

func ipToUint32(ip net.IP) uint32 {
	return binary.BigEndian.Uint32(ip.To4())
}

func uint32ToIP(v uint32) net.IP {
	b := make(net.IP, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// NoneInUse is a convenience InUseChecker for tests and single-lab
// environments where nothing is pre-existing.
func NoneInUse(*net.IPNet) (bool, error) { return false, nil }
