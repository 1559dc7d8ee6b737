// Package catalog implements the Catalog (§4.6): the persistent record of
// labs, nodes, and links consulted by the Lifecycle Engine for
// authorization and enumeration. Uses Redis hash tables keyed
// "TABLE|key" (HSet/HGetAll field maps), one table per row kind, keyed
// by lab_id.
package catalog

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"

	"github.com/sherpa-labs/sherpa/pkg/sherpa/errs"
)

const (
	tableLab  = "SHERPA_LAB"
	tableNode = "SHERPA_NODE"
	tableLink = "SHERPA_LINK"

	// catalogDB is a dedicated logical Redis database, mirroring
	// ConfigDBClient's DB-per-concern convention.
	catalogDB = 9
)

// LabRow is the persisted row for one lab.
type LabRow struct {
	LabID       string `json:"lab_id"`
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	MgmtPrefix  string `json:"mgmt_prefix"`
	IsoPrefix   string `json:"iso_prefix"`
	State       string `json:"state"`
	CreatedAt   string `json:"created_at"`
}

// NodeRow is the persisted row for one node within a lab.
type NodeRow struct {
	Name    string `json:"name"`
	Ordinal int    `json:"ordinal"`
	ImageID string `json:"image_id"`
	LabID   string `json:"lab_id"`
}

// LinkRow is the persisted row for one point-to-point link within a lab.
type LinkRow struct {
	Ordinal int    `json:"ordinal"`
	Kind    string `json:"kind"`
	NodeA   string `json:"node_a"`
	NodeB   string `json:"node_b"`
	IntA    string `json:"int_a"`
	IntB    string `json:"int_b"`
	BridgeA string `json:"bridge_a"`
	BridgeB string `json:"bridge_b"`
	VethA   string `json:"veth_a"`
	VethB   string `json:"veth_b"`
	LabID   string `json:"lab_id"`
}

// Catalog is a Redis-backed implementation of §4.6's record store.
type Catalog struct {
	client *redis.Client
	ctx    context.Context
}

// New connects to addr using the catalog's dedicated logical database.
func New(addr string) *Catalog {
	return &Catalog{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: catalogDB}),
		ctx:    context.Background(),
	}
}

// Ping verifies connectivity, used by callers that want to fail fast
// before starting a multi-step Up.
func (c *Catalog) Ping() error {
	return c.client.Ping(c.ctx).Err()
}

func (c *Catalog) Close() error { return c.client.Close() }

func rowKey(table, key string) string { return fmt.Sprintf("%s|%s", table, key) }

// CreateLab inserts a new lab row. It refuses a lab_id whose key already
// exists (an EXISTS check followed by a separate HSET write, so the check
// and the write are not one atomic step); a duplicate lab_id is a
// programming bug per §5's shared-resource policy, not a user error, so it
// surfaces as errs.ErrCatalog.
func (c *Catalog) CreateLab(name, labID, owner, mgmtPrefix, isoPrefix string) (*LabRow, error) {
	key := rowKey(tableLab, labID)
	existed, err := c.client.Exists(c.ctx, key).Result()
	if err != nil {
		return nil, errs.NewCatalogError("create_lab", err)
	}
	if existed > 0 {
		return nil, errs.NewCatalogError("create_lab", fmt.Errorf("lab %q already exists", labID))
	}
	row := &LabRow{LabID: labID, Name: name, Owner: owner, MgmtPrefix: mgmtPrefix, IsoPrefix: isoPrefix, State: "Building"}
	if err := c.setLabFields(key, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (c *Catalog) setLabFields(key string, row *LabRow) error {
	fields := map[string]interface{}{
		"lab_id": row.LabID, "name": row.Name, "owner": row.Owner,
		"mgmt_prefix": row.MgmtPrefix, "iso_prefix": row.IsoPrefix, "state": row.State,
	}
	if err := c.client.HSet(c.ctx, key, fields).Err(); err != nil {
		return errs.NewCatalogError("set_lab", err)
	}
	return nil
}

// SetLabState transitions a lab's recorded lifecycle state (§3).
func (c *Catalog) SetLabState(labID, state string) error {
	key := rowKey(tableLab, labID)
	if err := c.client.HSet(c.ctx, key, "state", state).Err(); err != nil {
		return errs.NewCatalogError("set_lab_state", err)
	}
	return nil
}

// GetLab reads a lab row, returning errs.ErrNotFound when absent.
func (c *Catalog) GetLab(labID string) (*LabRow, error) {
	key := rowKey(tableLab, labID)
	vals, err := c.client.HGetAll(c.ctx, key).Result()
	if err != nil {
		return nil, errs.NewCatalogError("get_lab", err)
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("catalog: lab %q: %w", labID, errs.ErrNotFound)
	}
	return &LabRow{
		LabID: vals["lab_id"], Name: vals["name"], Owner: vals["owner"],
		MgmtPrefix: vals["mgmt_prefix"], IsoPrefix: vals["iso_prefix"], State: vals["state"],
	}, nil
}

// GetLabOwner returns just the owner field, the §4.8 authorization check's
// one dependency on the catalog.
func (c *Catalog) GetLabOwner(labID string) (string, error) {
	row, err := c.GetLab(labID)
	if err != nil {
		return "", err
	}
	return row.Owner, nil
}

// ListLabs returns every lab row in the catalog, used by the Address
// Allocator's in-use check (§4.2) to avoid re-handing-out a subnet still
// recorded against a live lab, and by admin tooling.
func (c *Catalog) ListLabs() ([]*LabRow, error) {
	keys, err := c.client.Keys(c.ctx, rowKey(tableLab, "*")).Result()
	if err != nil {
		return nil, errs.NewCatalogError("list_labs", err)
	}
	rows := make([]*LabRow, 0, len(keys))
	for _, key := range keys {
		vals, err := c.client.HGetAll(c.ctx, key).Result()
		if err != nil {
			return nil, errs.NewCatalogError("list_labs", err)
		}
		if len(vals) == 0 {
			continue
		}
		rows = append(rows, &LabRow{
			LabID: vals["lab_id"], Name: vals["name"], Owner: vals["owner"],
			MgmtPrefix: vals["mgmt_prefix"], IsoPrefix: vals["iso_prefix"], State: vals["state"],
		})
	}
	return rows, nil
}

// DeleteLab removes the lab row. Idempotent: a missing row is not an error
// per §4.8's idempotence rule.
func (c *Catalog) DeleteLab(labID string) error {
	if err := c.client.Del(c.ctx, rowKey(tableLab, labID)).Err(); err != nil {
		return errs.NewCatalogError("delete_lab", err)
	}
	return nil
}

// CreateNode inserts a node row, keyed "lab_id/name" so nodes stay scoped
// to their lab.
func (c *Catalog) CreateNode(name string, ordinal int, imageID, labID string) (*NodeRow, error) {
	row := &NodeRow{Name: name, Ordinal: ordinal, ImageID: imageID, LabID: labID}
	key := rowKey(tableNode, labID+"/"+name)
	fields := map[string]interface{}{
		"name": name, "ordinal": ordinal, "image_id": imageID, "lab_id": labID,
	}
	if err := c.client.HSet(c.ctx, key, fields).Err(); err != nil {
		return nil, errs.NewCatalogError("create_node", err)
	}
	return row, nil
}

// ListNodes returns every node row for a lab.
func (c *Catalog) ListNodes(labID string) ([]*NodeRow, error) {
	keys, err := c.client.Keys(c.ctx, rowKey(tableNode, labID+"/*")).Result()
	if err != nil {
		return nil, errs.NewCatalogError("list_nodes", err)
	}
	rows := make([]*NodeRow, 0, len(keys))
	for _, key := range keys {
		vals, err := c.client.HGetAll(c.ctx, key).Result()
		if err != nil {
			return nil, errs.NewCatalogError("list_nodes", err)
		}
		var ordinal int
		fmt.Sscanf(vals["ordinal"], "%d", &ordinal)
		rows = append(rows, &NodeRow{Name: vals["name"], Ordinal: ordinal, ImageID: vals["image_id"], LabID: vals["lab_id"]})
	}
	return rows, nil
}

// DeleteLabNodes removes every node row for a lab.
func (c *Catalog) DeleteLabNodes(labID string) error {
	keys, err := c.client.Keys(c.ctx, rowKey(tableNode, labID+"/*")).Result()
	if err != nil {
		return errs.NewCatalogError("delete_lab_nodes", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		return errs.NewCatalogError("delete_lab_nodes", err)
	}
	return nil
}

// CreateLink inserts a link row. Endpoints are immutable once written
// (§4.6 invariant); callers must delete and recreate rather than mutate.
func (c *Catalog) CreateLink(ordinal int, kind, nodeA, nodeB, intA, intB, bridgeA, bridgeB, vethA, vethB, labID string) (*LinkRow, error) {
	row := &LinkRow{
		Ordinal: ordinal, Kind: kind, NodeA: nodeA, NodeB: nodeB, IntA: intA, IntB: intB,
		BridgeA: bridgeA, BridgeB: bridgeB, VethA: vethA, VethB: vethB, LabID: labID,
	}
	key := rowKey(tableLink, fmt.Sprintf("%s/%d", labID, ordinal))
	fields := map[string]interface{}{
		"ordinal": ordinal, "kind": kind, "node_a": nodeA, "node_b": nodeB,
		"int_a": intA, "int_b": intB, "bridge_a": bridgeA, "bridge_b": bridgeB,
		"veth_a": vethA, "veth_b": vethB, "lab_id": labID,
	}
	if err := c.client.HSet(c.ctx, key, fields).Err(); err != nil {
		return nil, errs.NewCatalogError("create_link", err)
	}
	return row, nil
}

// ListLinks returns every link row for a lab, ordered by ordinal.
func (c *Catalog) ListLinks(labID string) ([]*LinkRow, error) {
	keys, err := c.client.Keys(c.ctx, rowKey(tableLink, labID+"/*")).Result()
	if err != nil {
		return nil, errs.NewCatalogError("list_links", err)
	}
	rows := make([]*LinkRow, 0, len(keys))
	for _, key := range keys {
		vals, err := c.client.HGetAll(c.ctx, key).Result()
		if err != nil {
			return nil, errs.NewCatalogError("list_links", err)
		}
		var ordinal int
		fmt.Sscanf(vals["ordinal"], "%d", &ordinal)
		rows = append(rows, &LinkRow{
			Ordinal: ordinal, Kind: vals["kind"], NodeA: vals["node_a"], NodeB: vals["node_b"],
			IntA: vals["int_a"], IntB: vals["int_b"], BridgeA: vals["bridge_a"], BridgeB: vals["bridge_b"],
			VethA: vals["veth_a"], VethB: vals["veth_b"], LabID: vals["lab_id"],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ordinal < rows[j].Ordinal })
	return rows, nil
}

// DeleteLabLinks removes every link row for a lab.
func (c *Catalog) DeleteLabLinks(labID string) error {
	keys, err := c.client.Keys(c.ctx, rowKey(tableLink, labID+"/*")).Result()
	if err != nil {
		return errs.NewCatalogError("delete_lab_links", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(c.ctx, keys...).Err(); err != nil {
		return errs.NewCatalogError("delete_lab_links", err)
	}
	return nil
}
