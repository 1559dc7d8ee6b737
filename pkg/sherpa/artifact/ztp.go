package artifact

import (
	"fmt"
	"net"
	"path/filepath"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
)

// TemplateRenderer is the external Template Renderer collaborator (§6):
// it owns the actual bytes of every named template. The Artifact Builder
// only knows which templates a model requires and what parameters to
// hand them; it never formats config text itself.
type TemplateRenderer interface {
	RenderText(templateName string, params interface{}) (string, error)
	RenderJSON(templateName string, params interface{}) ([]byte, error)
}

// BuildContext is everything one node's artifact construction needs.
type BuildContext struct {
	LabDir        string
	NodeName      string
	Image         *registry.NodeImage
	MgmtAddress   net.IP
	MgmtPrefixLen int
	Gateway       net.IP
	DNS           net.IP
	Domain        net.IP
	SSHKeys       []string
	TextFiles     map[string]string
	BinaryFiles   map[string][]byte
	SystemdUnits  []SystemdUnitSpec
}

// SystemdUnitSpec mirrors a manifest-declared systemd unit.
type SystemdUnitSpec struct {
	Name     string
	Enabled  bool
	Contents string
}

// Builder dispatches a node to its model's ZTP strategy and assembles the
// resulting Bundle, per §4.3.
type Builder struct {
	Renderer TemplateRenderer
}

func NewBuilder(renderer TemplateRenderer) *Builder {
	return &Builder{Renderer: renderer}
}

type strategyFunc func(b *Builder, ctx BuildContext) (*Bundle, error)

// strategies is the ZTP-method dispatch table; each model's registry
// entry names which of these applies via NodeImage.Ztp.
var strategies = map[registry.ZtpMethod]strategyFunc{
	registry.ZtpCloudInit: (*Builder).buildCloudInit,
	registry.ZtpCdrom:     (*Builder).buildCdrom,
	registry.ZtpDisk:      (*Builder).buildDisk,
	registry.ZtpTftp:      (*Builder).buildTftp,
	registry.ZtpHttp:      (*Builder).buildHttp,
	registry.ZtpUsb:       (*Builder).buildUsb,
	registry.ZtpIgnition:  (*Builder).buildIgnition,
	registry.ZtpNone:      (*Builder).buildNone,
}

// Build selects ctx.Image.Ztp's strategy and produces its Bundle.
func (b *Builder) Build(ctx BuildContext) (*Bundle, error) {
	strategy, ok := strategies[ctx.Image.Ztp]
	if !ok {
		return nil, fmt.Errorf("artifact: no ZTP strategy registered for method %q", ctx.Image.Ztp)
	}
	return strategy(b, ctx)
}

func (b *Builder) buildCloudInit(ctx BuildContext) (*Bundle, error) {
	stage := StagingDir(ctx.LabDir, ctx.NodeName)
	userData, err := b.Renderer.RenderText("cloud-init-user-data", ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render cloud-init-user-data for %s: %w", ctx.NodeName, err)
	}
	metaData, err := b.Renderer.RenderText("cloud-init-meta-data", ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render cloud-init-meta-data for %s: %w", ctx.NodeName, err)
	}
	netCfg, err := b.Renderer.RenderText("cloud-init-network-config", ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render cloud-init-network-config for %s: %w", ctx.NodeName, err)
	}

	isoPath := filepath.Join(stage, "seed.iso")
	if err := WriteISO(isoPath, map[string][]byte{
		"user-data":      []byte(userData),
		"meta-data":      []byte(metaData),
		"network-config": []byte(netCfg),
	}); err != nil {
		return nil, err
	}
	return &Bundle{
		NodeName: ctx.NodeName,
		Disks: []DiskEntry{
			NewCdromEntry(FilePair{Source: isoPath, Destination: ctx.NodeName + "-seed.iso"}, ctx.Image.CdromBus),
		},
	}, nil
}

// keyHashAlgoFor picks the §4.3 key-hasher algorithm for a model: MD5 for
// the classic Cisco IOS config line, SHA-256 for Cisco ASA's enable
// password digest, base64 fingerprint for everyone else.
func keyHashAlgoFor(model string) KeyHashAlgorithm {
	switch model {
	case "cisco_asav":
		return HashSHA256
	case "cisco_iosxe", "cisco_csr1000v", "cisco_nxos", "cisco_iosxr", "cisco_ftdv",
		"cisco_iosv", "cisco_iosvl2", "cisco_ise":
		return HashMD5
	default:
		return HashFingerprint
	}
}

// hashSSHKeys converts ctx.SSHKeys in place to the digest/fingerprint form
// the model's config template expects, per keyHashAlgoFor.
func hashSSHKeys(ctx *BuildContext) error {
	algo := keyHashAlgoFor(ctx.Image.Model)
	hashed := make([]string, 0, len(ctx.SSHKeys))
	for _, key := range ctx.SSHKeys {
		if algo == HashFingerprint {
			fp, err := FingerprintAuthorizedKey(key)
			if err != nil {
				return fmt.Errorf("artifact: fingerprint ssh key for %s: %w", ctx.NodeName, err)
			}
			hashed = append(hashed, fp)
			continue
		}
		hashed = append(hashed, HashSecret(algo, key))
	}
	ctx.SSHKeys = hashed
	return nil
}

func (b *Builder) buildCdrom(ctx BuildContext) (*Bundle, error) {
	if err := hashSSHKeys(&ctx); err != nil {
		return nil, err
	}
	stage := StagingDir(ctx.LabDir, ctx.NodeName)
	for _, tpl := range ctx.Image.RequiredTemplates {
		config, err := b.Renderer.RenderText(tpl, ctx)
		if err != nil {
			return nil, fmt.Errorf("artifact: render %s for %s: %w", tpl, ctx.NodeName, err)
		}
		isoPath := filepath.Join(stage, "config.iso")
		if err := WriteISO(isoPath, map[string][]byte{"ciscoconfig": []byte(config)}); err != nil {
			return nil, err
		}
		return &Bundle{
			NodeName: ctx.NodeName,
			Disks: []DiskEntry{
				NewCdromEntry(FilePair{Source: isoPath, Destination: ctx.NodeName + "-config.iso"}, ctx.Image.CdromBus),
			},
		}, nil
	}
	return nil, fmt.Errorf("artifact: model %s has no required templates for cdrom ZTP", ctx.Image.Model)
}

func (b *Builder) buildDisk(ctx BuildContext) (*Bundle, error) {
	if err := hashSSHKeys(&ctx); err != nil {
		return nil, err
	}
	stage := StagingDir(ctx.LabDir, ctx.NodeName)
	config, err := b.Renderer.RenderText(ctx.Image.RequiredTemplates[0], ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render config for %s: %w", ctx.NodeName, err)
	}
	imgPath := filepath.Join(stage, "config.img")
	if err := WriteFATImage(imgPath, 16, map[string][]byte{"ios_config.txt": []byte(config)}); err != nil {
		return nil, err
	}
	return &Bundle{
		NodeName: ctx.NodeName,
		Disks: []DiskEntry{
			NewConfigEntry(FilePair{Source: imgPath, Destination: ctx.NodeName + "-config.img"}, registry.BusIde),
		},
	}, nil
}

func (b *Builder) buildTftp(ctx BuildContext) (*Bundle, error) {
	config, err := b.Renderer.RenderText(ctx.Image.RequiredTemplates[0], ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render tftp config for %s: %w", ctx.NodeName, err)
	}
	return &Bundle{
		NodeName: ctx.NodeName,
		TftpFiles: []FilePair{
			{Source: "", Destination: ctx.NodeName + ".conf"},
		},
	}, writeInline(config, &ctx)
}

func (b *Builder) buildHttp(ctx BuildContext) (*Bundle, error) {
	initial, err := b.Renderer.RenderText(ctx.Image.RequiredTemplates[0], ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render http initial config for %s: %w", ctx.NodeName, err)
	}
	configDB, err := b.Renderer.RenderJSON(ctx.Image.RequiredTemplates[1], ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render %s_config_db.json for %s: %w", ctx.NodeName, ctx.NodeName, err)
	}
	stage := StagingDir(ctx.LabDir, ctx.NodeName)
	return &Bundle{
		NodeName: ctx.NodeName,
		HttpFiles: []FilePair{
			{Source: filepath.Join(stage, "initial-config"), Destination: ctx.NodeName + "-initial-config"},
			{Source: filepath.Join(stage, ctx.NodeName+"_config_db.json"), Destination: ctx.NodeName + "_config_db.json"},
		},
	}, writeHttpFiles(stage, initial, configDB)
}

func (b *Builder) buildUsb(ctx BuildContext) (*Bundle, error) {
	stage := StagingDir(ctx.LabDir, ctx.NodeName)
	config, err := b.Renderer.RenderText(ctx.Image.RequiredTemplates[0], ctx)
	if err != nil {
		return nil, fmt.Errorf("artifact: render usb config for %s: %w", ctx.NodeName, err)
	}
	usbPath := filepath.Join(stage, "usb.img")
	if err := WriteFATImage(usbPath, 64, map[string][]byte{"cumulus-ztp": []byte(config)}); err != nil {
		return nil, err
	}
	return &Bundle{
		NodeName: ctx.NodeName,
		Disks: []DiskEntry{
			NewUsbEntry(FilePair{Source: usbPath, Destination: ctx.NodeName + "-usb.img"}, registry.BusUsb),
		},
	}, nil
}

func (b *Builder) buildIgnition(ctx BuildContext) (*Bundle, error) {
	stage := StagingDir(ctx.LabDir, ctx.NodeName)

	ign := NewIgnitionConfig().
		WithUser("sherpa", ctx.SSHKeys, []string{"sudo", "docker"}).
		WithHostname(ctx.NodeName).
		WithSudoersDropIn("sherpa").
		WithNetworkdFile("eth0", ctx.MgmtAddress, ctx.MgmtPrefixLen, ctx.Gateway, ctx.DNS, ctx.Domain).
		WithMountDataDiskUnit()

	for path, contents := range ctx.TextFiles {
		ign.WithTextFile(path, 0644, contents)
	}
	for path, contents := range ctx.BinaryFiles {
		ign.WithBinaryFile(path, 0644, encodeBase64(contents))
	}
	for _, u := range ctx.SystemdUnits {
		ign.WithSystemdUnit(u.Name, u.Enabled, u.Contents)
	}

	doc, err := ign.Build()
	if err != nil {
		return nil, fmt.Errorf("artifact: build ignition for %s: %w", ctx.NodeName, err)
	}
	ignPath := filepath.Join(stage, "ignition.json")
	if err := writeFile(ignPath, doc); err != nil {
		return nil, err
	}

	dataDiskPath := filepath.Join(stage, "data-disk.img")
	if err := WriteExt4Image(dataDiskPath, 32, "data-disk", map[string][]byte{}); err != nil {
		return nil, err
	}

	return &Bundle{
		NodeName:     ctx.NodeName,
		IgnitionJSON: &FilePair{Source: ignPath, Destination: ctx.NodeName + "-ignition.json"},
		Disks: []DiskEntry{
			NewIgnitionDataEntry(FilePair{Source: dataDiskPath, Destination: ctx.NodeName + "-data.img"}, ctx.Image.HddBus),
		},
	}, nil
}

func (b *Builder) buildNone(ctx BuildContext) (*Bundle, error) {
	return &Bundle{NodeName: ctx.NodeName}, nil
}
