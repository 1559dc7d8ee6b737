package lifecycle

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// writeSSHConfig aggregates an OpenSSH client config targeting every
// node's management IP (§6 filesystem layout, §D supplemented feature),
// in the style of the teacher's other generated per-lab artifacts.
func writeSSHConfig(labDir string, plans []*NodePlan) error {
	var b strings.Builder
	for _, p := range plans {
		fmt.Fprintf(&b, "Host %s\n", p.Name)
		fmt.Fprintf(&b, "    HostName %s\n", p.MgmtAddress.String())
		fmt.Fprintf(&b, "    User sherpa\n")
		fmt.Fprintf(&b, "    StrictHostKeyChecking no\n")
		fmt.Fprintf(&b, "    UserKnownHostsFile /dev/null\n\n")
	}
	path := filepath.Join(labDir, "ssh_config")
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// testbedNode is one pyATS inventory entry.
type testbedNode struct {
	OS         string            `yaml:"os"`
	Type       string            `yaml:"type"`
	Connections testbedConnections `yaml:"connections"`
}

type testbedConnections struct {
	CLI testbedCLI `yaml:"cli"`
}

type testbedCLI struct {
	Protocol string `yaml:"protocol"`
	IP       string `yaml:"ip"`
	Port     int    `yaml:"port,omitempty"`
}

type testbedDoc struct {
	Testbed struct {
		Name string `yaml:"name"`
	} `yaml:"testbed"`
	Devices map[string]testbedNode `yaml:"devices"`
}

// writeTestbed writes an optional pyATS inventory (§6, §D); Up calls it
// only when the caller sets UpRequest.WriteTestbed.
func writeTestbed(labDir, labName string, plans []*NodePlan) error {
	doc := testbedDoc{Devices: make(map[string]testbedNode, len(plans))}
	doc.Testbed.Name = labName
	for _, p := range plans {
		doc.Devices[p.Name] = testbedNode{
			OS:   p.Image.Model,
			Type: string(p.Image.Kind),
			Connections: testbedConnections{
				CLI: testbedCLI{Protocol: "ssh", IP: p.MgmtAddress.String()},
			},
		}
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("lifecycle: marshal testbed.yaml: %w", err)
	}
	path := filepath.Join(labDir, "testbed.yaml")
	return os.WriteFile(path, out, 0644)
}
