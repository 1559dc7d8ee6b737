package artifact

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net"
)

// IgnitionConfig is a typed builder for the Flatcar Ignition document
// (§9 DESIGN NOTES: "model the Ignition JSON as a typed builder whose
// build() returns the exact schema").
type IgnitionConfig struct {
	ignitionVersion string
	users           []ignitionUser
	files           []ignitionFile
	units           []ignitionUnit
	filesystem      ignitionFilesystem
}

type ignitionUser struct {
	Name               string   `json:"name"`
	PasswordHash       string   `json:"passwordHash,omitempty"`
	SSHAuthorizedKeys  []string `json:"sshAuthorizedKeys,omitempty"`
	Groups             []string `json:"groups,omitempty"`
}

type ignitionFileContents struct {
	Source string `json:"source"`
}

type ignitionFile struct {
	Path      string                `json:"path"`
	Mode      int                   `json:"mode"`
	Overwrite bool                  `json:"overwrite,omitempty"`
	Contents  ignitionFileContents  `json:"contents"`
}

type ignitionUnit struct {
	Name     string `json:"name"`
	Enabled  bool   `json:"enabled"`
	Contents string `json:"contents,omitempty"`
}

type ignitionFilesystem struct {
	Device         string `json:"device"`
	Format         string `json:"format"`
	WipeFilesystem bool   `json:"wipeFilesystem"`
	Label          string `json:"label"`
}

const ignitionVersion = "3.3.0"

// NewIgnitionConfig seeds the builder with the fixed data-disk filesystem
// entry every Flatcar node carries.
func NewIgnitionConfig() *IgnitionConfig {
	return &IgnitionConfig{
		ignitionVersion: ignitionVersion,
		filesystem: ignitionFilesystem{
			Device: "/dev/disk/by-label/data-disk",
			Format: "ext4",
			Label:  "data-disk",
		},
	}
}

// WithUser adds the single operator user: sudo-equivalent groups, SSH keys
// combining operator default + manifest keys + loaded key files, per §4.3.
func (c *IgnitionConfig) WithUser(name string, sshKeys []string, groups []string) *IgnitionConfig {
	c.users = append(c.users, ignitionUser{Name: name, SSHAuthorizedKeys: sshKeys, Groups: groups})
	return c
}

// WithHostname adds the /etc/hostname file.
func (c *IgnitionConfig) WithHostname(hostname string) *IgnitionConfig {
	return c.withTextFile("/etc/hostname", 0644, hostname+"\n")
}

// WithSudoersDropIn adds a passwordless-sudo drop-in for the operator user.
func (c *IgnitionConfig) WithSudoersDropIn(username string) *IgnitionConfig {
	return c.withTextFile("/etc/sudoers.d/"+username, 0440, username+" ALL=(ALL) NOPASSWD:ALL\n")
}

// WithNetworkdFile adds the ZTP networkd unit with the literal management
// address, prefix length, gateway, and DNS server.
func (c *IgnitionConfig) WithNetworkdFile(iface string, addr net.IP, prefixLen int, gateway, dns, domain net.IP) *IgnitionConfig {
	contents := fmt.Sprintf(
		"[Match]\nName=%s\n\n[Network]\nAddress=%s/%d\nGateway=%s\nDNS=%s\nDomains=%s\n",
		iface, addr, prefixLen, gateway, dns, domain,
	)
	return c.withTextFile("/etc/systemd/network/00-"+iface+".network", 0644, contents)
}

// WithTextFile base64-encodes contents and appends it as a manifest text
// overlay. Base64 encoding is localized here per the DESIGN NOTES.
func (c *IgnitionConfig) WithTextFile(path string, mode int, contents string) *IgnitionConfig {
	return c.withTextFile(path, mode, contents)
}

// WithBinaryFile appends an already-base64-encoded manifest binary overlay.
func (c *IgnitionConfig) WithBinaryFile(path string, mode int, base64Contents string) *IgnitionConfig {
	c.files = append(c.files, ignitionFile{
		Path: path, Mode: mode, Overwrite: true,
		Contents: ignitionFileContents{Source: "data:;base64," + base64Contents},
	})
	return c
}

func (c *IgnitionConfig) withTextFile(path string, mode int, contents string) *IgnitionConfig {
	encoded := base64.StdEncoding.EncodeToString([]byte(contents))
	c.files = append(c.files, ignitionFile{
		Path: path, Mode: mode, Overwrite: true,
		Contents: ignitionFileContents{Source: "data:;base64," + encoded},
	})
	return c
}

// WithSystemdUnit appends a unit; Contents empty means "enable only", used
// for the fixed mount-data-disk unit and manifest-declared units alike.
func (c *IgnitionConfig) WithSystemdUnit(name string, enabled bool, contents string) *IgnitionConfig {
	c.units = append(c.units, ignitionUnit{Name: name, Enabled: enabled, Contents: contents})
	return c
}

// WithMountDataDiskUnit adds the fixed systemd mount unit for the labeled
// data disk.
func (c *IgnitionConfig) WithMountDataDiskUnit() *IgnitionConfig {
	contents := "[Unit]\nRequires=local-fs.target\n\n" +
		"[Mount]\nWhat=/dev/disk/by-label/data-disk\nWhere=/opt/ztp\nType=ext4\n\n" +
		"[Install]\nWantedBy=local-fs.target\n"
	return c.WithSystemdUnit("opt-ztp.mount", true, contents)
}

// ignitionDocument is the exact wire schema serialized to JSON.
type ignitionDocument struct {
	Ignition struct {
		Version string `json:"version"`
	} `json:"ignition"`
	Passwd struct {
		Users []ignitionUser `json:"users"`
	} `json:"passwd"`
	Storage struct {
		Files       []ignitionFile       `json:"files"`
		Filesystems []ignitionFilesystem `json:"filesystems"`
	} `json:"storage"`
	Systemd struct {
		Units []ignitionUnit `json:"units"`
	} `json:"systemd"`
}

// Build renders the accumulated state to pretty-printed Ignition JSON.
func (c *IgnitionConfig) Build() ([]byte, error) {
	var doc ignitionDocument
	doc.Ignition.Version = c.ignitionVersion
	doc.Passwd.Users = c.users
	doc.Storage.Files = c.files
	doc.Storage.Filesystems = []ignitionFilesystem{c.filesystem}
	doc.Systemd.Units = c.units

	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("artifact: marshal ignition document: %w", err)
	}
	return out, nil
}
