// Package export flattens built graph hierarchies into the design document:
// the JSON contract consumed by the validator, the graph checks, and the
// renderer. Everything downstream of the builder speaks this document, so its
// shape is guarded by the CUE schema in internal/validator.
package export

import (
	"strconv"

	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
)

// DesignDoc is the serialized form of every graph built for one design.
type DesignDoc struct {
	Design  string      `json:"design"`
	Modules []ModuleDoc `json:"modules"`
}

// ModuleDoc carries one module's architecture graph, its detail graphs keyed
// by block, and the signal registry rows the graph checks run over.
type ModuleDoc struct {
	Name         string              `json:"name"`
	Architecture GraphDoc            `json:"architecture"`
	Details      map[string]GraphDoc `json:"details"`
	Signals      []SignalRow         `json:"signals"`
}

// GraphDoc is one graph: control-flow nodes and edges, cluster grouping,
// data-flow overlay, and the def/use bookkeeping keyed by node id.
type GraphDoc struct {
	Name        string              `json:"name"`
	Nodes       []NodeRow           `json:"nodes"`
	Edges       []EdgeRow           `json:"edges"`
	Clusters    []ClusterRow        `json:"clusters"`
	DFGNodes    []DFGNodeRow        `json:"dfg_nodes"`
	DFGEdges    []DFGEdgeRow        `json:"dfg_edges"`
	Defs        map[string]string   `json:"defs"`
	Uses        map[string][]string `json:"uses"`
	ModuleLinks map[string]string   `json:"module_links"`
}

// NodeRow is one control-flow node. Cluster is nil for unclustered nodes.
type NodeRow struct {
	ID      int    `json:"id"`
	Label   string `json:"label"`
	Cluster *int   `json:"cluster,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// EdgeRow is one control-flow or connection edge. Label carries branch tags
// on detail graphs; Signals carries the wire list on architecture graphs.
type EdgeRow struct {
	Src     int      `json:"src"`
	Dst     int      `json:"dst"`
	Label   string   `json:"label,omitempty"`
	Signals []string `json:"signals,omitempty"`
}

// ClusterRow groups node ids under a named, colored box. Links maps a node id
// (as a string key) to the detail graph it drills down into.
type ClusterRow struct {
	ID    int               `json:"id"`
	Name  string            `json:"name"`
	Color string            `json:"color"`
	Nodes []int             `json:"nodes"`
	Links map[string]string `json:"links,omitempty"`
}

// DFGNodeRow is one data-flow value node.
type DFGNodeRow struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// DFGEdgeRow records that the value at Src feeds Dst.
type DFGEdgeRow struct {
	Src int `json:"src"`
	Dst int `json:"dst"`
}

// SignalRow lists which nodes drive, receive, or share a signal.
type SignalRow struct {
	Name      string `json:"name"`
	Drivers   []int  `json:"drivers"`
	Receivers []int  `json:"receivers"`
	Inouts    []int  `json:"inouts"`
}

// BuildDesign converts built hierarchies into the design document. Pure
// conversion: same input yields byte-identical JSON (slices keep build order,
// map keys sort on marshal).
func BuildDesign(name string, hierarchies []*graph.Hierarchy) DesignDoc {
	doc := DesignDoc{
		Design:  name,
		Modules: []ModuleDoc{},
	}
	for _, h := range hierarchies {
		doc.Modules = append(doc.Modules, buildModule(h))
	}
	return doc
}

func buildModule(h *graph.Hierarchy) ModuleDoc {
	mod := ModuleDoc{
		Name:         h.Module,
		Architecture: buildGraph(h.Architecture),
		Details:      map[string]GraphDoc{},
		Signals:      []SignalRow{},
	}
	for _, key := range h.Order {
		mod.Details[key] = buildGraph(h.Details[key])
	}
	for _, name := range h.Signals.Signals() {
		row := SignalRow{
			Name:      name,
			Drivers:   []int{},
			Receivers: []int{},
			Inouts:    []int{},
		}
		for _, b := range h.Signals.Bindings(name) {
			switch b.Dir {
			case graph.Driver:
				row.Drivers = append(row.Drivers, b.Node)
			case graph.Receiver:
				row.Receivers = append(row.Receivers, b.Node)
			default:
				row.Inouts = append(row.Inouts, b.Node)
			}
		}
		mod.Signals = append(mod.Signals, row)
	}
	return mod
}

// buildGraph initializes every collection to empty, not nil: the CUE contract
// requires arrays and objects, never null.
func buildGraph(m *graph.Model) GraphDoc {
	doc := GraphDoc{
		Name:        m.Name,
		Nodes:       []NodeRow{},
		Edges:       []EdgeRow{},
		Clusters:    []ClusterRow{},
		DFGNodes:    []DFGNodeRow{},
		DFGEdges:    []DFGEdgeRow{},
		Defs:        map[string]string{},
		Uses:        map[string][]string{},
		ModuleLinks: map[string]string{},
	}

	for _, n := range m.Nodes {
		row := NodeRow{ID: n.ID, Label: n.Label}
		if cluster, ok := m.NodeCluster[n.ID]; ok {
			c := cluster
			row.Cluster = &c
		}
		if line := m.NodeLine[n.ID]; line > 0 {
			row.Line = line
		}
		doc.Nodes = append(doc.Nodes, row)
	}

	for _, e := range m.Edges {
		row := EdgeRow{Src: e.Src, Dst: e.Dst, Label: e.Label}
		if len(e.Signals) > 0 {
			row.Signals = append([]string{}, e.Signals...)
		}
		doc.Edges = append(doc.Edges, row)
	}

	for _, c := range m.Clusters {
		row := ClusterRow{
			ID:    c.ID,
			Name:  c.Name,
			Color: c.Color,
			Nodes: []int{},
		}
		row.Nodes = append(row.Nodes, c.Nodes...)
		if len(c.Links) > 0 {
			row.Links = map[string]string{}
			for node, key := range c.Links {
				row.Links[strconv.Itoa(node)] = key
			}
		}
		doc.Clusters = append(doc.Clusters, row)
	}

	for _, n := range m.DFGNodes {
		doc.DFGNodes = append(doc.DFGNodes, DFGNodeRow{ID: n.ID, Name: n.Name})
	}
	for _, e := range m.DFGEdges {
		doc.DFGEdges = append(doc.DFGEdges, DFGEdgeRow{Src: e.Src, Dst: e.Dst})
	}

	for node, def := range m.NodeDefs {
		doc.Defs[strconv.Itoa(node)] = def
	}
	for node, uses := range m.NodeUses {
		doc.Uses[strconv.Itoa(node)] = append([]string{}, uses...)
	}
	for node, module := range m.ModuleLinks {
		doc.ModuleLinks[strconv.Itoa(node)] = module
	}

	return doc
}
