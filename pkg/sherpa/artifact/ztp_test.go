package artifact

import (
	"net"
	"os"
	"testing"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
	"github.com/stretchr/testify/require"
)

type fakeRenderer struct{}

func (fakeRenderer) RenderText(name string, params interface{}) (string, error) {
	return "# rendered " + name, nil
}

func (fakeRenderer) RenderJSON(name string, params interface{}) ([]byte, error) {
	return []byte(`{"rendered":"` + name + `"}`), nil
}

func TestBuildCloudInitProducesCdromEntry(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("ubuntu_linux")
	require.NoError(t, err)

	b := NewBuilder(fakeRenderer{})
	bundle, err := b.Build(BuildContext{LabDir: dir, NodeName: "a", Image: img})
	require.NoError(t, err)
	require.Len(t, bundle.Disks, 1)
	require.True(t, bundle.Disks[0].IsCdrom())
	_, statErr := os.Stat(bundle.Disks[0].Files.Source)
	require.NoError(t, statErr)
}

func TestBuildIgnitionProducesJSONAndDataDisk(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("flatcar_linux")
	require.NoError(t, err)

	b := NewBuilder(fakeRenderer{})
	bundle, err := b.Build(BuildContext{
		LabDir:        dir,
		NodeName:      "c1",
		Image:         img,
		MgmtAddress:   net.ParseIP("10.0.0.11"),
		MgmtPrefixLen: 24,
		Gateway:       net.ParseIP("10.0.0.1"),
		DNS:           net.ParseIP("10.0.0.2"),
		Domain:        net.ParseIP("10.0.0.2"),
		SSHKeys:       []string{"ssh-ed25519 AAAA"},
	})
	require.NoError(t, err)
	require.NotNil(t, bundle.IgnitionJSON)
	require.Len(t, bundle.Disks, 1)
	require.True(t, bundle.Disks[0].IsIgnition())
}

func TestBuildUnknownZtpMethodErrors(t *testing.T) {
	b := NewBuilder(fakeRenderer{})
	_, err := b.Build(BuildContext{Image: &registry.NodeImage{Ztp: "bogus"}})
	require.Error(t, err)
}

// capturingRenderer records the BuildContext it was asked to render, so a
// test can inspect fields the builder mutated before dispatch.
type capturingRenderer struct {
	lastKeys []string
}

func (r *capturingRenderer) RenderText(name string, params interface{}) (string, error) {
	if ctx, ok := params.(BuildContext); ok {
		r.lastKeys = ctx.SSHKeys
	}
	return "# rendered " + name, nil
}

func (r *capturingRenderer) RenderJSON(name string, params interface{}) ([]byte, error) {
	return []byte(`{}`), nil
}

func TestBuildCdromHashesClassicCiscoKeyWithMD5(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("cisco_iosxe")
	require.NoError(t, err)

	r := &capturingRenderer{}
	b := NewBuilder(r)
	_, err = b.Build(BuildContext{LabDir: dir, NodeName: "r1", Image: img, SSHKeys: []string{"cisco"}})
	require.NoError(t, err)
	require.Equal(t, []string{HashSecret(HashMD5, "cisco")}, r.lastKeys)
}

func TestBuildCdromHashesAsaKeyWithSHA256(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("cisco_asav")
	require.NoError(t, err)

	r := &capturingRenderer{}
	b := NewBuilder(r)
	_, err = b.Build(BuildContext{LabDir: dir, NodeName: "fw1", Image: img, SSHKeys: []string{"cisco"}})
	require.NoError(t, err)
	require.Equal(t, []string{HashSecret(HashSHA256, "cisco")}, r.lastKeys)
}

func TestBuildDiskHashesIosvKeyWithMD5(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("cisco_iosv")
	require.NoError(t, err)

	r := &capturingRenderer{}
	b := NewBuilder(r)
	_, err = b.Build(BuildContext{LabDir: dir, NodeName: "sw1", Image: img, SSHKeys: []string{"cisco"}})
	require.NoError(t, err)
	require.Equal(t, []string{HashSecret(HashMD5, "cisco")}, r.lastKeys)
}

func TestBuildTftpUsesConfExtension(t *testing.T) {
	dir := t.TempDir()
	reg := registry.New()
	img, err := reg.Get("arista_veos")
	require.NoError(t, err)

	b := NewBuilder(fakeRenderer{})
	bundle, err := b.Build(BuildContext{LabDir: dir, NodeName: "sw1", Image: img})
	require.NoError(t, err)
	require.Len(t, bundle.TftpFiles, 1)
	require.Equal(t, "sw1.conf", bundle.TftpFiles[0].Destination)
}
