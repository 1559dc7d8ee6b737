package netfab

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkNamesFitKernelLimit(t *testing.T) {
	bridgeA, bridgeB, vethA, vethB := LinkNames("L001", 1)
	for _, name := range []string{bridgeA, bridgeB, vethA, vethB} {
		require.True(t, ValidateNameLength(name), "name %q exceeds kernel limit", name)
	}
	require.Equal(t, "br-a1-L001", bridgeA)
	require.Equal(t, "br-b1-L001", bridgeB)
	require.Equal(t, "v-a1-L001", vethA)
	require.Equal(t, "v-b1-L001", vethB)
}

func TestMgmtAndIsoNetworkNames(t *testing.T) {
	require.Equal(t, "sherpa-mgmt-L001", MgmtNetworkName("L001"))
	require.Equal(t, "sherpa-iso-L001", IsoNetworkName("L001"))
	require.Equal(t, "br-mgmt-L001", MgmtBridgeName("L001"))
	require.Equal(t, "br-iso-L001", IsoBridgeName("L001"))
	require.True(t, ValidateNameLength(MgmtBridgeName("L001")))
}

func TestValidateNameLengthRejectsOverlong(t *testing.T) {
	require.False(t, ValidateNameLength("this-name-is-definitely-too-long"))
}
