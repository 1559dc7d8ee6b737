package manifest

import (
	"testing"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
	"github.com/stretchr/testify/require"
)

func twoNodeManifest() *Manifest {
	return &Manifest{
		Name: "t1",
		Nodes: []Node{
			{Name: "a", Model: "ubuntu_linux"},
			{Name: "b", Model: "ubuntu_linux"},
		},
	}
}

func TestValidateAcceptsTwoNodeNoLinks(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Validate(twoNodeManifest(), reg))
}

func TestValidateRejectsDuplicateNodeName(t *testing.T) {
	reg := registry.New()
	m := twoNodeManifest()
	m.Nodes[1].Name = "a"
	require.Error(t, Validate(m, reg))
}

func TestValidateRejectsUnknownModel(t *testing.T) {
	reg := registry.New()
	m := twoNodeManifest()
	m.Nodes[0].Model = "does-not-exist"
	require.Error(t, Validate(m, reg))
}

func TestValidateRejectsUnknownLinkEndpoint(t *testing.T) {
	reg := registry.New()
	m := twoNodeManifest()
	m.Links = []Link{{NodeA: "a", IntA: "eth1", NodeB: "ghost", IntB: "eth1"}}
	require.Error(t, Validate(m, reg))
}

func TestValidateRejectsDuplicateInterfaceUsage(t *testing.T) {
	reg := registry.New()
	m := twoNodeManifest()
	m.Nodes = append(m.Nodes, Node{Name: "c", Model: "ubuntu_linux"})
	m.Links = []Link{
		{NodeA: "a", IntA: "eth1", NodeB: "b", IntB: "eth1"},
		{NodeA: "a", IntA: "eth1", NodeB: "c", IntB: "eth2"},
	}
	require.Error(t, Validate(m, reg))
}

func TestValidateRejectsInterfaceIndexOutOfBounds(t *testing.T) {
	reg := registry.New()
	m := &Manifest{
		Name: "t1",
		Nodes: []Node{
			{Name: "a", Model: "cisco_iosxe"},
			{Name: "b", Model: "cisco_iosxe"},
		},
		Links: []Link{{NodeA: "a", IntA: "GigabitEthernet100", NodeB: "b", IntB: "GigabitEthernet1"}},
	}
	err := Validate(m, reg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "limit")
}

func TestValidateRejectsManagementInterfaceOverlap(t *testing.T) {
	reg := registry.New()
	m := &Manifest{
		Name: "t1",
		Nodes: []Node{
			{Name: "a", Model: "cisco_iosxe"},
			{Name: "b", Model: "cisco_iosxe"},
		},
		Links: []Link{{NodeA: "a", IntA: "Management0", NodeB: "b", IntB: "GigabitEthernet1"}},
	}
	require.Error(t, Validate(m, reg))
}

func TestValidateAcceptsValidLink(t *testing.T) {
	reg := registry.New()
	m := &Manifest{
		Name: "t1",
		Nodes: []Node{
			{Name: "a", Model: "cisco_iosxe"},
			{Name: "b", Model: "cisco_iosxe"},
		},
		Links: []Link{{NodeA: "a", IntA: "GigabitEthernet1", NodeB: "b", IntB: "GigabitEthernet1"}},
	}
	require.NoError(t, Validate(m, reg))
}
