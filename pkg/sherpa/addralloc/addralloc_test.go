package addralloc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateSubnetSkipsInUse(t *testing.T) {
	_, base, _ := net.ParseCIDR("10.100.0.0/16")

	busy := map[string]bool{
		"10.100.0.0/24": true,
		"10.100.1.0/24": true,
	}
	checker := func(c *net.IPNet) (bool, error) {
		return busy[c.String()], nil
	}

	got, err := AllocateSubnet(base, 24, checker)
	require.NoError(t, err)
	require.Equal(t, "10.100.2.0/24", got.String())
}

func TestAllocateSubnetNoneFree(t *testing.T) {
	_, base, _ := net.ParseCIDR("10.100.0.0/24") // only one /24 candidate
	checker := func(*net.IPNet) (bool, error) { return true, nil }

	_, err := AllocateSubnet(base, 24, checker)
	require.Error(t, err)
}

func TestAddressAtOffsets(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("10.100.5.0/24")

	gw, err := AddressAt(subnet, OffsetGateway)
	require.NoError(t, err)
	require.Equal(t, "10.100.5.1", gw.String())

	boot, err := AddressAt(subnet, OffsetBootServer)
	require.NoError(t, err)
	require.Equal(t, "10.100.5.2", boot.String())

	node1, err := AddressAt(subnet, NodeOffset(1))
	require.NoError(t, err)
	require.Equal(t, "10.100.5.11", node1.String())

	node2, err := AddressAt(subnet, NodeOffset(2))
	require.NoError(t, err)
	require.Equal(t, "10.100.5.12", node2.String())
}

func TestAddressAtOutOfRange(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("10.100.5.0/24")
	_, err := AddressAt(subnet, 300)
	require.Error(t, err)
}
