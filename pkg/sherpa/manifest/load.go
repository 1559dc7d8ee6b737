package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads a manifest file, dispatching on extension: .toml uses
// BurntSushi/toml, anything else (.json, no extension) is parsed as JSON.
// Both forms are structurally equivalent per §6.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", path, err)
	}
	if strings.HasSuffix(path, ".toml") {
		return decodeTOML(raw)
	}
	return decodeJSON(raw)
}

func decodeTOML(raw []byte) (*Manifest, error) {
	var m Manifest
	if _, err := toml.Decode(string(raw), &m); err != nil {
		return nil, fmt.Errorf("manifest: decode toml: %w", err)
	}
	return &m, nil
}

func decodeJSON(raw []byte) (*Manifest, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("manifest: decode json: %w", err)
	}
	return &m, nil
}
