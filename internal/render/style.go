package render

import "regexp"

// styleRule pairs a label pattern with the DOT attributes of matching
// nodes. First match wins, so the assignment catch-alls stay last and
// classification labels stay ahead of the statement text they prefix.
type styleRule struct {
	pattern *regexp.Regexp
	attrs   string
}

var styleRules = []styleRule{
	{regexp.MustCompile(`FSM Controller`), `shape=Mdiamond, style=filled, fillcolor=skyblue`},
	{regexp.MustCompile(`Counter`), `shape=doubleoctagon, style=filled, fillcolor=lightgreen`},
	{regexp.MustCompile(`Datapath`), `shape=octagon, style=filled, fillcolor=lightcoral`},
	{regexp.MustCompile(`Sequential Logic`), `shape=box, style="filled,rounded", fillcolor=darkseagreen1`},
	{regexp.MustCompile(`Combinational Logic`), `shape=box, style="filled,rounded", fillcolor=lightgoldenrod`},
	{regexp.MustCompile(`^if `), `shape=diamond, style=filled, fillcolor=lightcyan, color=teal`},
	{regexp.MustCompile(`<=`), `shape=box3d, style=filled, fillcolor=lightcoral, color=darkred`},
	{regexp.MustCompile(`=`), `shape=box3d, style=filled, fillcolor=lightsalmon, color=darkorange`},
}

// nodeAttrs returns the style attributes for a node label. Empty means
// no rule matched and the graph-level node defaults apply.
func nodeAttrs(label string) string {
	for _, r := range styleRules {
		if r.pattern.MatchString(label) {
			return r.attrs
		}
	}
	return ""
}
