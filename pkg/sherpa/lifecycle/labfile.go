package lifecycle

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LabInfo is the filesystem-side source of truth for a lab's identity,
// written to {lab_dir}/lab.txt (§6, §4.7 step 3). Inspect reads it after a
// successful Catalog lookup and cross-checks the two; Inspect fails when the
// Catalog lookup fails, and Destroy does not read lab.txt.
type LabInfo struct {
	LabID      string
	Owner      string
	Name       string
	MgmtNet    string
	Gateway    string
	BootServer string
}

// labInfoFields is the fixed key order lab.txt is written and parsed in.
var labInfoFields = []string{"lab_id", "owner", "name", "mgmt_net", "gateway", "boot_server"}

// WriteLabInfo writes {lab_dir}/lab.txt, creating lab_dir if needed.
func WriteLabInfo(labDir string, info *LabInfo) error {
	if err := os.MkdirAll(labDir, 0755); err != nil {
		return fmt.Errorf("lifecycle: mkdir lab dir %s: %w", labDir, err)
	}
	values := map[string]string{
		"lab_id": info.LabID, "owner": info.Owner, "name": info.Name,
		"mgmt_net": info.MgmtNet, "gateway": info.Gateway, "boot_server": info.BootServer,
	}
	var b strings.Builder
	for _, k := range labInfoFields {
		fmt.Fprintf(&b, "%s=%s\n", k, values[k])
	}
	path := filepath.Join(labDir, "lab.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("lifecycle: write %s: %w", path, err)
	}
	return nil
}

// ReadLabInfo reads {lab_dir}/lab.txt. Returns os.ErrNotExist (wrapped) if
// the file is absent, so callers can fall back to a synthesized summary
// per §4.8 step 2.
func ReadLabInfo(labDir string) (*LabInfo, error) {
	path := filepath.Join(labDir, "lab.txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := &LabInfo{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch k {
		case "lab_id":
			info.LabID = v
		case "owner":
			info.Owner = v
		case "name":
			info.Name = v
		case "mgmt_net":
			info.MgmtNet = v
		case "gateway":
			info.Gateway = v
		case "boot_server":
			info.BootServer = v
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("lifecycle: read %s: %w", path, err)
	}
	return info, nil
}
