// Package manifest parses and validates the declarative lab manifest
// (§6) — TOML or JSON, structurally equivalent, with loading and type
// definitions kept in separate files.
package manifest

// Manifest is the top-level declarative lab description submitted to `up`.
type Manifest struct {
	Name  string  `json:"name" yaml:"name" toml:"name"`
	Nodes []Node  `json:"nodes" yaml:"nodes" toml:"nodes"`
	Links []Link  `json:"links" yaml:"links" toml:"links"`
}

// Node describes one manifest-declared lab device.
type Node struct {
	Name                 string            `json:"name" yaml:"name" toml:"name"`
	Model                string            `json:"model" yaml:"model" toml:"model"`
	Memory               int               `json:"memory,omitempty" yaml:"memory,omitempty" toml:"memory,omitempty"`
	CPUCount             int               `json:"cpu_count,omitempty" yaml:"cpu_count,omitempty" toml:"cpu_count,omitempty"`
	SSHAuthorizedKeys    []string          `json:"ssh_authorized_keys,omitempty" yaml:"ssh_authorized_keys,omitempty" toml:"ssh_authorized_keys,omitempty"`
	SSHAuthorizedKeyFiles []string         `json:"ssh_authorized_key_files,omitempty" yaml:"ssh_authorized_key_files,omitempty" toml:"ssh_authorized_key_files,omitempty"`
	TextFiles            []FileOverlay    `json:"text_files,omitempty" yaml:"text_files,omitempty" toml:"text_files,omitempty"`
	BinaryFiles           []FileOverlay    `json:"binary_files,omitempty" yaml:"binary_files,omitempty" toml:"binary_files,omitempty"`
	SystemdUnits          []SystemdUnit    `json:"systemd_units,omitempty" yaml:"systemd_units,omitempty" toml:"systemd_units,omitempty"`
}

// FileOverlay is a manifest-supplied file injected into a node's ZTP
// artifact (Ignition storage.files; other ZTP methods do not use it).
type FileOverlay struct {
	Path     string `json:"path" yaml:"path" toml:"path"`
	Contents string `json:"contents" yaml:"contents" toml:"contents"` // text, or base64 for binary
	Mode     string `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`
}

// SystemdUnit is a manifest-declared systemd unit for Ignition-method nodes.
type SystemdUnit struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Enabled bool   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Contents string `json:"contents" yaml:"contents" toml:"contents"`
}

// Link is a point-to-point connection between two (node, interface) pairs.
type Link struct {
	NodeA string `json:"node_a" yaml:"node_a" toml:"node_a"`
	IntA  string `json:"int_a" yaml:"int_a" toml:"int_a"`
	NodeB string `json:"node_b" yaml:"node_b" toml:"node_b"`
	IntB  string `json:"int_b" yaml:"int_b" toml:"int_b"`
}

// NodeNames returns the manifest's node names in declaration order —
// the order in which Up assigns node ordinals (and so NodeOffset addresses).
func (m *Manifest) NodeNames() []string {
	names := make([]string, len(m.Nodes))
	for i, n := range m.Nodes {
		names[i] = n.Name
	}
	return names
}
