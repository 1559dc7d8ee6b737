package manifest

import (
	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
	"github.com/sherpa-labs/sherpa/pkg/sherpa/registry"
)

// Validate checks structural invariants (§7/§8) that the Model Registry
// and link graph must satisfy before a manifest can be accepted by Up.
// It never partially validates: every violation found is accumulated and
// returned together via errs.ValidationBuilder.
func Validate(m *Manifest, reg *registry.Registry) error {
	vb := &errs.ValidationBuilder{}

	vb.Add(m.Name != "", "manifest name must not be empty")

	seenNodes := make(map[string]bool, len(m.Nodes))
	schemes := make(map[string]*registry.NodeImage, len(m.Nodes))
	for _, n := range m.Nodes {
		if seenNodes[n.Name] {
			vb.AddErrorf("duplicate node name %q", n.Name)
			continue
		}
		seenNodes[n.Name] = true

		img, err := reg.Get(n.Model)
		if err != nil {
			vb.AddErrorf("node %q: %v", n.Name, err)
			continue
		}
		schemes[n.Name] = img
	}

	checkConnectionDevices(vb, seenNodes, m.Links)
	checkDuplicateInterfaceUsage(vb, m.Links)
	checkInterfaceBounds(vb, schemes, m.Links)
	checkMgmtOverlap(vb, schemes, m.Links)

	return vb.Build()
}

// checkConnectionDevices ensures every link endpoint names a declared node.
func checkConnectionDevices(vb *errs.ValidationBuilder, nodes map[string]bool, links []Link) {
	for _, l := range links {
		if !nodes[l.NodeA] {
			vb.AddErrorf("link references undeclared node %q", l.NodeA)
		}
		if !nodes[l.NodeB] {
			vb.AddErrorf("link references undeclared node %q", l.NodeB)
		}
	}
}

// checkDuplicateInterfaceUsage ensures no (node, interface) pair is used by
// more than one link.
func checkDuplicateInterfaceUsage(vb *errs.ValidationBuilder, links []Link) {
	used := make(map[string]bool)
	mark := func(node, iface string) {
		key := node + "/" + iface
		if used[key] {
			vb.AddErrorf("node %q interface %q is already in use by another link", node, iface)
			return
		}
		used[key] = true
	}
	for _, l := range links {
		mark(l.NodeA, l.IntA)
		mark(l.NodeB, l.IntB)
	}
}

// checkInterfaceBounds ensures every link interface name resolves within
// its node's InterfaceScheme and is not in the reserved range.
func checkInterfaceBounds(vb *errs.ValidationBuilder, schemes map[string]*registry.NodeImage, links []Link) {
	check := func(node, iface string) {
		img, ok := schemes[node]
		if !ok {
			return // already reported by checkConnectionDevices/model lookup
		}
		idx, err := img.Scheme.IdxOf(iface)
		if err != nil {
			vb.AddErrorf("node %q: interface %q is not a valid interface for model %q (limit %d interfaces)", node, iface, img.Model, img.Scheme.Cardinality())
			return
		}
		if img.Scheme.IsReserved(idx) {
			vb.AddErrorf("node %q: interface %q (index %d) is reserved on model %q", node, iface, idx, img.Model)
		}
	}
	for _, l := range links {
		check(l.NodeA, l.IntA)
		check(l.NodeB, l.IntB)
	}
}

// checkMgmtOverlap ensures no link uses a node's dedicated management
// interface.
func checkMgmtOverlap(vb *errs.ValidationBuilder, schemes map[string]*registry.NodeImage, links []Link) {
	overlaps := func(node, iface string) {
		img, ok := schemes[node]
		if !ok || !img.Scheme.HasManagement() {
			return
		}
		idx, err := img.Scheme.IdxOf(iface)
		if err != nil {
			return
		}
		if idx == img.Scheme.ManagementIndex() {
			vb.AddErrorf("node %q: interface %q overlaps with the management interface", node, iface)
		}
	}
	for _, l := range links {
		overlaps(l.NodeA, l.IntA)
		overlaps(l.NodeB, l.IntB)
	}
}
