package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
)

// DOTOptions parameterize one graph's DOT emission. Base, Module and
// Format feed the viewer URLs baked into drill-down and
// module-navigation nodes.
type DOTOptions struct {
	Base            string
	Module          string
	Format          string
	InterClusterDFG bool
}

// escapeLabel makes a string safe inside a double-quoted DOT attribute.
// Newlines become the literal \n sequence DOT reads as a line break.
func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

// GraphDOT renders one exported graph to DOT text. Output is a pure
// function of the graph and options, which is what makes the render
// cache's content hashing sound.
func GraphDOT(g export.GraphDoc, opts DOTOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph \"%s\" {\n", escapeLabel(g.Name))
	b.WriteString("  rankdir=TB; splines=ortho;\n")
	b.WriteString("  graph [ranksep=2.0, nodesep=1.5];\n")
	b.WriteString("  node [shape=box, style=filled, fillcolor=white, fontsize=12, fontname=\"Arial\"];\n")
	b.WriteString("  edge [fontname=\"Arial\", fontsize=10, color=\"#555555\"];\n")

	inCluster := make(map[int]bool)
	for i, cl := range g.Clusters {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    label=\"%s\"; style=filled; color=\"%s\";\n", escapeLabel(cl.Name), cl.Color)
		for _, id := range cl.Nodes {
			if id < 0 || id >= len(g.Nodes) {
				continue
			}
			inCluster[id] = true
			writeNode(&b, "    ", g, g.Nodes[id], cl.Links, opts)
		}
		b.WriteString("  }\n")
	}
	for _, n := range g.Nodes {
		if !inCluster[n.ID] {
			writeNode(&b, "  ", g, n, nil, opts)
		}
	}

	for _, e := range g.Edges {
		writeEdge(&b, e)
	}
	writeDFGOverlay(&b, g, opts)

	b.WriteString("}\n")
	return b.String()
}

func writeNode(b *strings.Builder, indent string, g export.GraphDoc, n export.NodeRow, links map[string]string, opts DOTOptions) {
	parts := []string{fmt.Sprintf("label=\"%s\"", escapeLabel(n.Label))}
	if attrs := nodeAttrs(n.Label); attrs != "" {
		parts = append(parts, attrs)
	}
	if key, ok := links[strconv.Itoa(n.ID)]; ok {
		parts = append(parts,
			fmt.Sprintf("URL=\"viewer.html?file=%s_%s_%s.%s\"", opts.Base, opts.Module, key, opts.Format),
			`target="_top"`,
			`tooltip="Click to see details"`)
	}
	if mod, ok := g.ModuleLinks[strconv.Itoa(n.ID)]; ok {
		parts = append(parts,
			fmt.Sprintf("URL=\"viewer.html?file=%s_%s_arch.%s\"", opts.Base, mod, opts.Format),
			`target="_top"`,
			`style="filled,bold"`,
			`fillcolor="#e6f3ff"`,
			fmt.Sprintf("tooltip=\"Go to module: %s\"", escapeLabel(mod)))
	}
	fmt.Fprintf(b, "%sn%d [%s];\n", indent, n.ID, strings.Join(parts, ", "))
}

// writeEdge picks the edge treatment: branch labels stay visible text,
// single wires get a transparent xlabel whose hover tooltip names the
// signal, and buses collapse to a count past three signals with a thick
// stroke.
func writeEdge(b *strings.Builder, e export.EdgeRow) {
	switch {
	case len(e.Signals) == 1:
		safe := escapeLabel(e.Signals[0])
		fmt.Fprintf(b, "  n%d -> n%d [xlabel=\"%s\", fontcolor=\"#00000000\", tooltip=\"%s\", penwidth=2.0, arrowsize=1.0];\n",
			e.Src, e.Dst, safe, safe)
	case len(e.Signals) > 1:
		names := make([]string, len(e.Signals))
		for i, s := range e.Signals {
			names[i] = escapeLabel(s)
		}
		full := strings.Join(names, `\n`)
		visible := full
		if len(e.Signals) > 3 {
			visible = fmt.Sprintf("Bus: %d signals", len(e.Signals))
		}
		fmt.Fprintf(b, "  n%d -> n%d [xlabel=\"%s\", fontcolor=\"#00000000\", tooltip=\"%s\", penwidth=4.0, arrowsize=1.5, color=\"#333333\"];\n",
			e.Src, e.Dst, visible, full)
	case e.Label != "":
		fmt.Fprintf(b, "  n%d -> n%d [label=\"%s\"];\n", e.Src, e.Dst, escapeLabel(e.Label))
	default:
		fmt.Fprintf(b, "  n%d -> n%d;\n", e.Src, e.Dst)
	}
}

// writeDFGOverlay draws a dashed value-flow edge between the nodes that
// define each side of a data-flow edge. Values with no definition site
// in this graph (module inputs, values written in another block) are
// skipped, as are cross-cluster pairs when the overlay is confined.
func writeDFGOverlay(b *strings.Builder, g export.GraphDoc, opts DOTOptions) {
	if len(g.DFGEdges) == 0 || len(g.Defs) == 0 {
		return
	}

	defSite := make(map[string]int, len(g.Defs))
	for id, name := range g.Defs {
		if nid, err := strconv.Atoi(id); err == nil {
			defSite[name] = nid
		}
	}
	names := make(map[int]string, len(g.DFGNodes))
	for _, n := range g.DFGNodes {
		names[n.ID] = n.Name
	}
	clusterOf := func(id int) int {
		if id >= 0 && id < len(g.Nodes) && g.Nodes[id].Cluster != nil {
			return *g.Nodes[id].Cluster
		}
		return -1
	}

	seen := make(map[[2]int]bool)
	for _, e := range g.DFGEdges {
		src, okSrc := defSite[names[e.Src]]
		dst, okDst := defSite[names[e.Dst]]
		if !okSrc || !okDst || src == dst {
			continue
		}
		if !opts.InterClusterDFG && clusterOf(src) != clusterOf(dst) {
			continue
		}
		pair := [2]int{src, dst}
		if seen[pair] {
			continue
		}
		seen[pair] = true
		fmt.Fprintf(b, "  n%d -> n%d [style=dashed, color=purple, constraint=false, tooltip=\"%s\"];\n",
			src, dst, escapeLabel(names[e.Src]+" -> "+names[e.Dst]))
	}
}
