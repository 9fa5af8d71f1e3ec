// Package graph holds the intermediate representation the builder
// produces and the renderer consumes: control-flow nodes and edges
// grouped into clusters, a data-flow graph over SSA-versioned values,
// and the per-module signal registry that connection resolution reads.
package graph

import "fmt"

// CFGNode is one control-flow node. IDs are dense indexes into the
// owning model's node list.
type CFGNode struct {
	ID    int
	Label string
}

// CFGEdge is a directed control or connection edge. Label carries a
// branch tag or case value; Signals carries the wire names of an
// architecture connection edge (one or more when buses coalesce).
type CFGEdge struct {
	Src     int
	Dst     int
	Label   string
	Signals []string
}

// Cluster groups nodes for rendering. Links maps member nodes to the
// detail graph key they drill down into.
type Cluster struct {
	ID    int
	Name  string
	Color string
	Nodes []int
	Links map[int]string
}

// DFGNode is one SSA-named value.
type DFGNode struct {
	ID   int
	Name string
}

// DFGEdge means the value at Src feeds the value at Dst.
type DFGEdge struct {
	Src int
	Dst int
}

// Model is one graph under construction: an architecture view or the
// detail view of a single procedural block. It has exactly one writer
// (the traversal populating it) and is read-only afterwards.
type Model struct {
	Name string

	Nodes    []CFGNode
	Edges    []CFGEdge
	Clusters []Cluster

	DFGNodes []DFGNode
	DFGEdges []DFGEdge

	// Side tables keyed by CFG node id.
	NodeCluster map[int]int
	NodeDefs    map[int]string
	NodeUses    map[int][]string
	NodeLine    map[int]int
	ModuleLinks map[int]string

	// SSA is the versioning state behind NewSSAName and LatestSSAName.
	// Every detail model of one module shares the module's state so
	// versions keep increasing across blocks.
	SSA *SSAState

	dfgByName map[string]int
	dfgSeen   map[DFGEdge]bool
}

// NewModel returns an empty model with its own SSA state.
func NewModel(name string) *Model {
	return &Model{
		Name:        name,
		NodeCluster: make(map[int]int),
		NodeDefs:    make(map[int]string),
		NodeUses:    make(map[int][]string),
		NodeLine:    make(map[int]int),
		ModuleLinks: make(map[int]string),
		SSA:         NewSSAState(),
		dfgByName:   make(map[string]int),
		dfgSeen:     make(map[DFGEdge]bool),
	}
}

// AddCluster appends a cluster and returns its id.
func (m *Model) AddCluster(name, color string) int {
	id := len(m.Clusters)
	m.Clusters = append(m.Clusters, Cluster{
		ID:    id,
		Name:  name,
		Color: color,
		Links: make(map[int]string),
	})
	return id
}

// AddCFGNode appends a control-flow node and returns its id. A negative
// cluster leaves the node unclustered.
func (m *Model) AddCFGNode(label string, cluster int) int {
	id := len(m.Nodes)
	m.Nodes = append(m.Nodes, CFGNode{ID: id, Label: label})
	if cluster >= 0 && cluster < len(m.Clusters) {
		m.Clusters[cluster].Nodes = append(m.Clusters[cluster].Nodes, id)
		m.NodeCluster[id] = cluster
	}
	return id
}

// AddCFGEdge appends a control edge. Node existence is the caller's
// contract; ids are not validated here.
func (m *Model) AddCFGEdge(src, dst int, label string) {
	m.Edges = append(m.Edges, CFGEdge{Src: src, Dst: dst, Label: label})
}

// AddBusEdge appends a connection edge carrying one or more signal
// names.
func (m *Model) AddBusEdge(src, dst int, signals []string) {
	m.Edges = append(m.Edges, CFGEdge{Src: src, Dst: dst, Signals: signals})
}

// LinkNode records that a cluster member drills down into the detail
// graph stored under key.
func (m *Model) LinkNode(cluster, node int, key string) {
	if cluster < 0 || cluster >= len(m.Clusters) {
		return
	}
	m.Clusters[cluster].Links[node] = key
}

// NewSSAName allocates the next version of a variable.
func (m *Model) NewSSAName(v string) string {
	return m.SSA.NewName(v)
}

// LatestSSAName returns the most recent version of a variable, or the
// bare name when it has never been assigned in this module.
func (m *Model) LatestSSAName(v string) string {
	return m.SSA.Latest(v)
}

// ResetSSA clears the versioning state. Called once per module before
// traversal.
func (m *Model) ResetSSA() {
	m.SSA.Reset()
}

// DFGNodeID returns the data-flow node for an SSA name, creating it on
// first use.
func (m *Model) DFGNodeID(name string) int {
	if id, ok := m.dfgByName[name]; ok {
		return id
	}
	id := len(m.DFGNodes)
	m.DFGNodes = append(m.DFGNodes, DFGNode{ID: id, Name: name})
	m.dfgByName[name] = id
	return id
}

// AddDFGEdge records a data-flow edge with set semantics: inserting the
// same edge twice stores it once.
func (m *Model) AddDFGEdge(src, dst int) {
	e := DFGEdge{Src: src, Dst: dst}
	if m.dfgSeen[e] {
		return
	}
	m.dfgSeen[e] = true
	m.DFGEdges = append(m.DFGEdges, e)
}

// SSAState is the per-module variable versioning shared by all detail
// graphs of one module.
type SSAState struct {
	count  map[string]int
	latest map[string]string
}

// NewSSAState returns empty versioning state.
func NewSSAState() *SSAState {
	return &SSAState{
		count:  make(map[string]int),
		latest: make(map[string]string),
	}
}

// NewName allocates the next version of a variable, starting at 1.
func (s *SSAState) NewName(v string) string {
	s.count[v]++
	name := fmt.Sprintf("%s_%d", v, s.count[v])
	s.latest[v] = name
	return name
}

// Latest returns the current version of a variable. A variable never
// assigned keeps its bare name, which is how module inputs appear in
// the data-flow graph.
func (s *SSAState) Latest(v string) string {
	if name, ok := s.latest[v]; ok {
		return name
	}
	return v
}

// Reset clears both tables.
func (s *SSAState) Reset() {
	s.count = make(map[string]int)
	s.latest = make(map[string]string)
}
