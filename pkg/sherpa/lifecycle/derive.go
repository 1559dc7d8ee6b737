package lifecycle

import (
	"crypto/rand"
	"fmt"
	"net"
)

// kvmOUI is the locally-administered OUI QEMU/KVM uses for generated MAC
// addresses (§3: "a node's MAC uses the KVM OUI prefix").
const kvmOUI = "52:54:00"

// randomMAC returns a KVM-OUI MAC with an independent random suffix, one
// per interface (§3).
func randomMAC() (string, error) {
	suffix := make([]byte, 3)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("lifecycle: generate mac suffix: %w", err)
	}
	return fmt.Sprintf("%s:%02x:%02x:%02x", kvmOUI, suffix[0], suffix[1], suffix[2]), nil
}

// LoopbackAddress returns the deterministic per-node loopback, derived
// solely from the node's 1-based ordinal (§3 invariant): 127.127.{idx}.1.
func LoopbackAddress(nodeIndex int) net.IP {
	return net.IPv4(127, 127, byte(nodeIndex), 1)
}

// BackendName is the tuple (node_name, lab_id) -> backend name mapping
// (§3): "{node_name}-{lab_id}".
func BackendName(nodeName, labID string) string {
	return nodeName + "-" + labID
}
