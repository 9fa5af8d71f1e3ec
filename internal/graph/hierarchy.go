package graph

import "sort"

// Hierarchy is the per-module result: one architecture model plus the
// detail models for each procedural block, keyed by their sub-graph id.
type Hierarchy struct {
	Module       string
	Architecture *Model
	Details      map[string]*Model
	Order        []string
	Signals      *Registry
}

// NewHierarchy returns a hierarchy with an empty architecture model and
// signal registry.
func NewHierarchy(module string) *Hierarchy {
	return &Hierarchy{
		Module:       module,
		Architecture: NewModel("arch"),
		Details:      make(map[string]*Model),
		Signals:      NewRegistry(),
	}
}

// AddDetail stores a detail model under its key, preserving discovery
// order for rendering.
func (h *Hierarchy) AddDetail(key string, m *Model) {
	if _, ok := h.Details[key]; !ok {
		h.Order = append(h.Order, key)
	}
	h.Details[key] = m
}

// Direction of a signal binding relative to the bound node.
type Direction int

const (
	Driver Direction = iota
	Receiver
	Inout
)

// String returns the lower-case direction name.
func (d Direction) String() string {
	switch d {
	case Driver:
		return "driver"
	case Receiver:
		return "receiver"
	case Inout:
		return "inout"
	}
	return "unknown"
}

// Binding ties an architecture node to a signal with a direction.
type Binding struct {
	Node int
	Dir  Direction
}

// Registry indexes which architecture nodes touch each signal. It is
// the input to connection resolution and the signal dump in the export
// document.
type Registry struct {
	bindings map[string][]Binding
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string][]Binding)}
}

// Bind records that a node touches a signal. Exact duplicates are
// dropped so resolution emits one edge per distinct pair.
func (r *Registry) Bind(signal string, node int, dir Direction) {
	if signal == "" {
		return
	}
	for _, b := range r.bindings[signal] {
		if b.Node == node && b.Dir == dir {
			return
		}
	}
	r.bindings[signal] = append(r.bindings[signal], Binding{Node: node, Dir: dir})
}

// Signals returns the registered signal names, sorted.
func (r *Registry) Signals() []string {
	out := make([]string, 0, len(r.bindings))
	for name := range r.bindings {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Bindings returns the bindings recorded for a signal in registration
// order.
func (r *Registry) Bindings(signal string) []Binding {
	return r.bindings[signal]
}
