package render

import (
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
)

func intPtr(i int) *int { return &i }

func archDoc() export.GraphDoc {
	return export.GraphDoc{
		Name: "top_arch",
		Nodes: []export.NodeRow{
			{ID: 0, Label: "FSM Controller\ncase (state)", Cluster: intPtr(0)},
			{ID: 1, Label: "u1\n(sub)", Cluster: intPtr(0)},
		},
		Edges: []export.EdgeRow{
			{Src: 1, Dst: 0, Signals: []string{"req"}},
		},
		Clusters: []export.ClusterRow{
			{ID: 0, Name: "Module: top", Color: "lightgrey", Nodes: []int{0, 1},
				Links: map[string]string{"0": "sub_0"}},
		},
		DFGNodes:    []export.DFGNodeRow{},
		DFGEdges:    []export.DFGEdgeRow{},
		Defs:        map[string]string{},
		Uses:        map[string][]string{},
		ModuleLinks: map[string]string{"1": "sub"},
	}
}

func detailDoc() export.GraphDoc {
	return export.GraphDoc{
		Name: "sub_0",
		Nodes: []export.NodeRow{
			{ID: 0, Label: "Enter always", Cluster: intPtr(0)},
			{ID: 1, Label: "a = b\nDEF: a_1", Cluster: intPtr(0)},
			{ID: 2, Label: "q <= a\nDEF: q_1\nUSE: a_1", Cluster: intPtr(1)},
		},
		Edges: []export.EdgeRow{
			{Src: 0, Dst: 1},
			{Src: 1, Dst: 2},
		},
		Clusters: []export.ClusterRow{
			{ID: 0, Name: "Combinational Logic", Color: "aliceblue", Nodes: []int{0, 1}},
			{ID: 1, Name: "Sequential Logic", Color: "azure", Nodes: []int{2}},
		},
		DFGNodes:    []export.DFGNodeRow{{ID: 0, Name: "b"}, {ID: 1, Name: "a_1"}, {ID: 2, Name: "q_1"}},
		DFGEdges:    []export.DFGEdgeRow{{Src: 0, Dst: 1}, {Src: 1, Dst: 2}},
		Defs:        map[string]string{"1": "a_1", "2": "q_1"},
		Uses:        map[string][]string{"1": {"b"}, "2": {"a_1"}},
		ModuleLinks: map[string]string{},
	}
}

func TestGraphDOTShape(t *testing.T) {
	dot := GraphDOT(archDoc(), DOTOptions{Base: "soc", Module: "top", Format: "svg", InterClusterDFG: true})

	for _, want := range []string{
		`digraph "top_arch" {`,
		"rankdir=TB; splines=ortho;",
		"graph [ranksep=2.0, nodesep=1.5];",
		"subgraph cluster_0 {",
		`label="Module: top"; style=filled; color="lightgrey";`,
		`n0 [label="FSM Controller\ncase (state)", shape=Mdiamond, style=filled, fillcolor=skyblue, URL="viewer.html?file=soc_top_sub_0.svg", target="_top", tooltip="Click to see details"];`,
		`URL="viewer.html?file=soc_sub_arch.svg"`,
		`style="filled,bold"`,
		`fillcolor="#e6f3ff"`,
		`tooltip="Go to module: sub"`,
		`n1 -> n0 [xlabel="req", fontcolor="#00000000", tooltip="req", penwidth=2.0, arrowsize=1.0];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestGraphDOTBusEdges(t *testing.T) {
	g := archDoc()
	g.Edges = []export.EdgeRow{
		{Src: 1, Dst: 0, Signals: []string{"addr", "data"}},
	}
	dot := GraphDOT(g, DOTOptions{Base: "soc", Module: "top", Format: "svg"})
	if !strings.Contains(dot, `xlabel="addr\ndata"`) || !strings.Contains(dot, "penwidth=4.0") {
		t.Errorf("two-signal bus not rendered as list:\n%s", dot)
	}

	g.Edges = []export.EdgeRow{
		{Src: 1, Dst: 0, Signals: []string{"a", "b", "c", "d", "e"}},
	}
	dot = GraphDOT(g, DOTOptions{Base: "soc", Module: "top", Format: "svg"})
	if !strings.Contains(dot, `xlabel="Bus: 5 signals"`) {
		t.Errorf("wide bus not collapsed:\n%s", dot)
	}
	if !strings.Contains(dot, `tooltip="a\nb\nc\nd\ne"`) {
		t.Errorf("wide bus tooltip must keep the full list:\n%s", dot)
	}
}

func TestGraphDOTBranchLabels(t *testing.T) {
	g := detailDoc()
	g.Edges = append(g.Edges, export.EdgeRow{Src: 0, Dst: 2, Label: "True"})
	dot := GraphDOT(g, DOTOptions{Base: "soc", Module: "top", Format: "svg", InterClusterDFG: true})
	if !strings.Contains(dot, `n0 -> n2 [label="True"];`) {
		t.Errorf("branch label must stay visible:\n%s", dot)
	}
	if !strings.Contains(dot, "n0 -> n1;") {
		t.Errorf("plain edge rendered wrong:\n%s", dot)
	}
}

func TestGraphDOTDFGOverlay(t *testing.T) {
	dot := GraphDOT(detailDoc(), DOTOptions{Base: "soc", Module: "top", Format: "svg", InterClusterDFG: true})
	if !strings.Contains(dot, `n1 -> n2 [style=dashed, color=purple, constraint=false, tooltip="a_1 -> q_1"];`) {
		t.Errorf("DFG overlay edge missing:\n%s", dot)
	}
	// b has no definition site here, so b -> a_1 stays out of the overlay.
	if strings.Contains(dot, `tooltip="b -> a_1"`) {
		t.Errorf("input value must not produce an overlay edge:\n%s", dot)
	}
}

func TestGraphDOTDFGOverlayConfined(t *testing.T) {
	dot := GraphDOT(detailDoc(), DOTOptions{Base: "soc", Module: "top", Format: "svg", InterClusterDFG: false})
	if strings.Contains(dot, "style=dashed") {
		t.Errorf("cross-cluster overlay edge must be suppressed:\n%s", dot)
	}
}

func TestEscapeLabel(t *testing.T) {
	got := escapeLabel("say \"hi\"\nback\\slash")
	want := `say \"hi\"\nback\\slash`
	if got != want {
		t.Errorf("escapeLabel = %q, want %q", got, want)
	}
}

func TestNodeAttrsPrecedence(t *testing.T) {
	tests := []struct {
		label string
		want  string
	}{
		{"FSM Controller\ncase (state)", "Mdiamond"},
		{"Counter\ncount <= (count + 1)", "doubleoctagon"},
		{"Combinational Datapath", "octagon"},
		{"Sequential Logic\nq <= d", "darkseagreen1"},
		{"Combinational Logic", "lightgoldenrod"},
		{"if ((a < b))", "diamond"},
		{"q <= d\nDEF: q_1", "darkred"},
		{"y = a\nDEF: y_1", "darkorange"},
	}
	for _, tt := range tests {
		if got := nodeAttrs(tt.label); !strings.Contains(got, tt.want) {
			t.Errorf("nodeAttrs(%q) = %q, want match on %q", tt.label, got, tt.want)
		}
	}
	if got := nodeAttrs("Enter always"); got != "" {
		t.Errorf("nodeAttrs(Enter always) = %q, want graph default", got)
	}
}
