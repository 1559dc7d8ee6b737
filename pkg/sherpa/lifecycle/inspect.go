package lifecycle

import (
	"github.com/sherpa-labs/sherpa/pkg/sherpa/catalog"
	"github.com/sherpa-labs/sherpa/pkg/util"
)

// InspectResult is the `inspect` RPC result (§6, §D): a lab+node snapshot
// cross-checked against the filesystem source of truth.
type InspectResult struct {
	Lab      *catalog.LabRow
	Nodes    []*catalog.NodeRow
	Links    []*catalog.LinkRow
	LabInfo  *LabInfo
	Warnings []string
}

// Inspect reads the Catalog and {lab_dir}/lab.txt and cross-checks them
// (§9 DESIGN NOTES' "filesystem vs catalog" rule): the two are kept
// deliberately redundant, and a discrepancy is surfaced as a warning
// rather than silently resolved in favor of either side.
func (e *Engine) Inspect(labID string) (*InspectResult, error) {
	lab, err := e.Catalog.GetLab(labID)
	if err != nil {
		return nil, err
	}
	nodes, err := e.Catalog.ListNodes(labID)
	if err != nil {
		return nil, err
	}
	links, err := e.Catalog.ListLinks(labID)
	if err != nil {
		return nil, err
	}

	result := &InspectResult{Lab: lab, Nodes: nodes, Links: links}

	labDir := e.Settings.LabDir(labID)
	info, err := ReadLabInfo(labDir)
	if err != nil {
		result.Warnings = append(result.Warnings, "lab.txt missing or unreadable: "+err.Error())
		return result, nil
	}
	result.LabInfo = info

	if info.Owner != lab.Owner {
		result.Warnings = append(result.Warnings, "lab.txt owner disagrees with catalog")
	}
	if info.MgmtNet != lab.MgmtPrefix {
		result.Warnings = append(result.Warnings, "lab.txt mgmt_net disagrees with catalog mgmt_prefix")
	}
	if len(result.Warnings) > 0 {
		util.WithLab(labID).WithField("warnings", result.Warnings).Warn("inspect: filesystem and catalog disagree")
	}
	return result, nil
}
