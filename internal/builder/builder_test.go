package builder

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
)

func v(name string) ast.Expr  { return &ast.VarRef{Name: name} }
func k(value string) ast.Expr { return &ast.Const{Value: value} }

func nb(target string, rhs ast.Expr) ast.Stmt {
	return &ast.Assign{Reads: []ast.Expr{rhs}, LHS: v(target), Blocking: false}
}

func clocked(body ...ast.Stmt) *ast.ProcBlock {
	return &ast.ProcBlock{
		Kind: "always",
		Sens: []ast.SenItem{{Edge: "posedge", Signal: "clk"}},
		Body: body,
	}
}

func buildOne(t *testing.T, items ...ast.Item) *graph.Hierarchy {
	t.Helper()
	b := New(Options{IgnoreSignals: []string{"clk", "clock", "rst", "reset"}})
	hiers := b.Build(&ast.Design{Modules: []*ast.Module{{Name: "m", Items: items}}})
	if len(hiers) != 1 {
		t.Fatalf("hierarchies = %d, want 1", len(hiers))
	}
	return hiers[0]
}

func labels(m *graph.Model) []string {
	out := make([]string, len(m.Nodes))
	for i, n := range m.Nodes {
		out[i] = n.Label
	}
	return out
}

func findNode(t *testing.T, m *graph.Model, prefix string) int {
	t.Helper()
	for _, n := range m.Nodes {
		if strings.HasPrefix(n.Label, prefix) {
			return n.ID
		}
	}
	t.Fatalf("no node with label prefix %q among %q", prefix, labels(m))
	return -1
}

func hasEdge(m *graph.Model, src, dst int, label string) bool {
	for _, e := range m.Edges {
		if e.Src == src && e.Dst == dst && e.Label == label {
			return true
		}
	}
	return false
}

func dfgName(m *graph.Model, id int) string {
	for _, n := range m.DFGNodes {
		if n.ID == id {
			return n.Name
		}
	}
	return ""
}

func hasDFGEdge(m *graph.Model, src, dst string) bool {
	for _, e := range m.DFGEdges {
		if dfgName(m, e.Src) == src && dfgName(m, e.Dst) == dst {
			return true
		}
	}
	return false
}

func TestConditionalShape(t *testing.T) {
	h := buildOne(t, clocked(&ast.If{
		Cond: v("en"),
		Then: nb("q", v("d")),
	}))

	detail := h.Details["sub_0"]
	if detail == nil {
		t.Fatal("no detail graph built")
	}
	if len(detail.Nodes) != 4 {
		t.Fatalf("detail nodes = %d (%q), want 4", len(detail.Nodes), labels(detail))
	}

	cond := findNode(t, detail, "if (en)")
	assign := findNode(t, detail, "q <= d")
	join := findNode(t, detail, "EndIf")

	if !hasEdge(detail, cond, assign, "True") {
		t.Error("missing True edge from condition into then-subtree")
	}
	if !hasEdge(detail, assign, join, "") {
		t.Error("missing edge from then-subtree to join")
	}
	if !hasEdge(detail, cond, join, "False") {
		t.Error("missing direct False edge from condition to join")
	}
}

func TestConditionalWithElse(t *testing.T) {
	h := buildOne(t, clocked(&ast.If{
		Cond: &ast.Compare{Op: "==", Operands: []ast.Expr{v("sel"), k("1")}},
		Then: nb("q", v("a")),
		Else: nb("q", v("b")),
	}))

	detail := h.Details["sub_0"]
	cond := findNode(t, detail, "if ((sel == 1))")
	thenN := findNode(t, detail, "q <= a")
	elseN := findNode(t, detail, "q <= b")
	join := findNode(t, detail, "EndIf")

	if !hasEdge(detail, cond, thenN, "True") || !hasEdge(detail, thenN, join, "") {
		t.Error("then arm miswired")
	}
	if !hasEdge(detail, cond, elseN, "False") || !hasEdge(detail, elseN, join, "") {
		t.Error("else arm miswired")
	}

	// The two writes to q get distinct versions.
	if !hasDFGEdge(detail, "a", "q_1") || !hasDFGEdge(detail, "b", "q_2") {
		t.Errorf("branch assignments did not version q independently; DFG nodes: %+v", detail.DFGNodes)
	}
}

// The chain wires the block entry to a compound statement's join node,
// not its condition. Documented behavior of this traversal.
func TestEntryChainsToJoin(t *testing.T) {
	h := buildOne(t, clocked(&ast.If{Cond: v("en"), Then: nb("q", v("d"))}))

	detail := h.Details["sub_0"]
	enter := findNode(t, detail, "Enter always")
	join := findNode(t, detail, "EndIf")
	cond := findNode(t, detail, "if (")

	if !hasEdge(detail, enter, join, "") {
		t.Error("entry should chain to the conditional's returned join node")
	}
	if hasEdge(detail, enter, cond, "") {
		t.Error("entry unexpectedly wired to the condition node")
	}
}

func TestFSMCaseShape(t *testing.T) {
	h := buildOne(t, clocked(&ast.Case{
		Subject: v("state"),
		Items: []ast.CaseItem{
			{Values: []ast.Expr{k("S0")}, Body: []ast.Stmt{nb("next_state", k("S1"))}},
			{Values: []ast.Expr{k("S1")}, Body: []ast.Stmt{nb("next_state", k("S0"))}},
		},
	}))

	arch := h.Architecture
	if got := arch.Nodes[0].Label; got != "FSM Controller" {
		t.Errorf("architecture label = %q, want FSM Controller", got)
	}

	detail := h.Details["sub_0"]
	dispatch := findNode(t, detail, "case (state)")
	armS0 := findNode(t, detail, "S0")
	armS1 := findNode(t, detail, "S1")
	end := findNode(t, detail, "EndCase")

	if !hasEdge(detail, dispatch, armS0, "S0") || !hasEdge(detail, dispatch, armS1, "S1") {
		t.Error("dispatch edges missing or mislabeled")
	}
	if !hasEdge(detail, armS0, end, "") || !hasEdge(detail, armS1, end, "") {
		t.Error("arms do not converge on the end node")
	}

	// Dispatch, two arms, one end node; plus the block entry.
	if len(detail.Nodes) != 5 {
		t.Errorf("detail nodes = %d (%q), want 5", len(detail.Nodes), labels(detail))
	}

	// Arm bodies advance SSA without adding control-flow nodes.
	for _, want := range []string{"next_state_1", "next_state_2"} {
		found := false
		for _, n := range detail.DFGNodes {
			if n.Name == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing DFG node %s among %+v", want, detail.DFGNodes)
		}
	}
}

func TestContinuousAssignment(t *testing.T) {
	h := buildOne(t, &ast.ContAssign{
		Reads: []ast.Expr{&ast.UnknownExpr{Tag: "and", Operands: []ast.Expr{v("a"), v("b")}}},
		LHS:   v("y"),
	})

	arch := h.Architecture
	if len(arch.Nodes) != 1 {
		t.Fatalf("architecture nodes = %d, want 1", len(arch.Nodes))
	}
	if !strings.HasPrefix(arch.Nodes[0].Label, "Continuous Assignment") {
		t.Errorf("label = %q, want Continuous Assignment prefix", arch.Nodes[0].Label)
	}

	bindings := h.Signals.Bindings("y")
	if len(bindings) != 1 || bindings[0].Dir != graph.Driver {
		t.Errorf("y bindings = %+v, want one driver", bindings)
	}
	for _, read := range []string{"a", "b"} {
		bindings := h.Signals.Bindings(read)
		if len(bindings) != 1 || bindings[0].Dir != graph.Receiver {
			t.Errorf("%s bindings = %+v, want one receiver", read, bindings)
		}
	}

	// The unrecognized operator does not interpose an operation node:
	// y_1 draws directly from a and b.
	detail := h.Details["sub_0"]
	if !hasDFGEdge(detail, "a", "y_1") || !hasDFGEdge(detail, "b", "y_1") {
		t.Errorf("DFG edges = %+v over %+v, want a->y_1 and b->y_1", detail.DFGEdges, detail.DFGNodes)
	}
	for _, n := range detail.DFGNodes {
		if strings.HasPrefix(n.Name, "op_result_") {
			t.Errorf("unexpected operation node %s for unrecognized operator", n.Name)
		}
	}
}

func TestInstanceConnections(t *testing.T) {
	drive := func(name string) *ast.Instance {
		return &ast.Instance{Name: name, Module: "sub", Conns: []ast.PortConn{
			{Port: "o", Dir: "out", Expr: v("w")},
		}}
	}
	receive := func(name string) *ast.Instance {
		return &ast.Instance{Name: name, Module: "sub", Conns: []ast.PortConn{
			{Port: "i", Dir: "in", Expr: v("w")},
		}}
	}

	h := buildOne(t, drive("u1"), receive("u2"))
	arch := h.Architecture
	u1 := findNode(t, arch, "u1")
	u2 := findNode(t, arch, "u2")

	if len(arch.Edges) != 1 {
		t.Fatalf("edges = %+v, want exactly one", arch.Edges)
	}
	e := arch.Edges[0]
	if e.Src != u1 || e.Dst != u2 {
		t.Errorf("edge %d->%d, want %d->%d", e.Src, e.Dst, u1, u2)
	}
	if diff := cmp.Diff([]string{"w"}, e.Signals); diff != "" {
		t.Errorf("edge signals mismatch (-want +got):\n%s", diff)
	}

	// A second receiver adds a driver edge but no receiver-to-receiver
	// edge.
	h = buildOne(t, drive("u1"), receive("u2"), receive("u3"))
	arch = h.Architecture
	u1, u2 = findNode(t, arch, "u1"), findNode(t, arch, "u2")
	u3 := findNode(t, arch, "u3")

	if len(arch.Edges) != 2 {
		t.Fatalf("edges = %+v, want two", arch.Edges)
	}
	found12, found13 := false, false
	for _, e := range arch.Edges {
		switch {
		case e.Src == u1 && e.Dst == u2:
			found12 = true
		case e.Src == u1 && e.Dst == u3:
			found13 = true
		case e.Src == u2 && e.Dst == u3, e.Src == u3 && e.Dst == u2:
			t.Error("receivers must not be wired to each other")
		}
	}
	if !found12 || !found13 {
		t.Errorf("driver edges incomplete: u1->u2 %v, u1->u3 %v", found12, found13)
	}
}

func TestBusAggregation(t *testing.T) {
	h := buildOne(t,
		&ast.Instance{Name: "u1", Module: "sub", Conns: []ast.PortConn{
			{Port: "a", Dir: "out", Expr: v("data")},
			{Port: "b", Dir: "out", Expr: v("addr")},
		}},
		&ast.Instance{Name: "u2", Module: "sub", Conns: []ast.PortConn{
			{Port: "a", Dir: "in", Expr: v("data")},
			{Port: "b", Dir: "in", Expr: v("addr")},
		}},
	)

	arch := h.Architecture
	if len(arch.Edges) != 1 {
		t.Fatalf("edges = %+v, want one coalesced bus edge", arch.Edges)
	}
	if diff := cmp.Diff([]string{"addr", "data"}, arch.Edges[0].Signals); diff != "" {
		t.Errorf("bus signals mismatch (-want +got):\n%s", diff)
	}
}

func TestNoDriverFallbackChain(t *testing.T) {
	h := buildOne(t,
		&ast.Instance{Name: "u1", Module: "sub", Conns: []ast.PortConn{
			{Port: "p", Dir: "inout", Expr: v("bus")},
		}},
		&ast.Instance{Name: "u2", Module: "sub", Conns: []ast.PortConn{
			{Port: "p", Dir: "inout", Expr: v("bus")},
		}},
		&ast.Instance{Name: "u3", Module: "sub", Conns: []ast.PortConn{
			{Port: "p", Dir: "inout", Expr: v("bus")},
		}},
	)

	arch := h.Architecture
	if len(arch.Edges) != 2 {
		t.Fatalf("edges = %+v, want pairwise chain of two", arch.Edges)
	}
	if arch.Edges[0].Src != 0 || arch.Edges[0].Dst != 1 || arch.Edges[1].Src != 1 || arch.Edges[1].Dst != 2 {
		t.Errorf("chain = %+v, want 0->1 then 1->2", arch.Edges)
	}
}

func TestIgnoredSignals(t *testing.T) {
	h := buildOne(t,
		&ast.Instance{Name: "u1", Module: "sub", Conns: []ast.PortConn{
			{Port: "c", Dir: "out", Expr: v("sys_CLK_main")},
		}},
		&ast.Instance{Name: "u2", Module: "sub", Conns: []ast.PortConn{
			{Port: "c", Dir: "in", Expr: v("sys_CLK_main")},
		}},
	)
	if len(h.Architecture.Edges) != 0 {
		t.Errorf("edges = %+v, want none for ignore-listed signal", h.Architecture.Edges)
	}
}

func TestPortAggregation(t *testing.T) {
	h := buildOne(t,
		&ast.PortDecl{Name: "a", Dir: "input"},
		&ast.PortDecl{Name: "b", Dir: "input"},
		&ast.PortDecl{Name: "y", Dir: "output"},
		&ast.ContAssign{
			Reads: []ast.Expr{&ast.UnknownExpr{Tag: "and", Operands: []ast.Expr{v("a"), v("b")}}},
			LHS:   v("y"),
		},
	)

	arch := h.Architecture
	inputs := findNode(t, arch, "Inputs")
	outputs := findNode(t, arch, "Outputs")
	assign := findNode(t, arch, "Continuous Assignment")

	if got := arch.Nodes[inputs].Label; got != "Inputs\na\nb" {
		t.Errorf("inputs label = %q", got)
	}

	foundIn, foundOut := false, false
	for _, e := range arch.Edges {
		if e.Src == inputs && e.Dst == assign {
			foundIn = true
			if diff := cmp.Diff([]string{"a", "b"}, e.Signals); diff != "" {
				t.Errorf("input bus mismatch (-want +got):\n%s", diff)
			}
		}
		if e.Src == assign && e.Dst == outputs {
			foundOut = true
		}
	}
	if !foundIn {
		t.Error("missing edge from Inputs to the assignment")
	}
	if !foundOut {
		t.Error("missing edge from the assignment to Outputs")
	}
}

func TestSSAContinuesAcrossBlocks(t *testing.T) {
	h := buildOne(t,
		clocked(nb("x", v("a"))),
		clocked(nb("x", v("b"))),
	)

	first := h.Details["sub_0"]
	second := h.Details["sub_1"]

	if !hasDFGEdge(first, "a", "x_1") {
		t.Errorf("first block should define x_1; DFG = %+v", first.DFGNodes)
	}
	if !hasDFGEdge(second, "b", "x_2") {
		t.Errorf("second block should define x_2; DFG = %+v", second.DFGNodes)
	}
}

func TestSSAResetsBetweenModules(t *testing.T) {
	b := New(Options{})
	mod := func(name string) *ast.Module {
		return &ast.Module{Name: name, Items: []ast.Item{clocked(nb("x", v("a")))}}
	}
	hiers := b.Build(&ast.Design{Modules: []*ast.Module{mod("m1"), mod("m2")}})

	for i, h := range hiers {
		detail := h.Details["sub_0"]
		if !hasDFGEdge(detail, "a", "x_1") {
			t.Errorf("module %d should restart at x_1; DFG = %+v", i, detail.DFGNodes)
		}
	}
}

func TestOperationNodes(t *testing.T) {
	h := buildOne(t, &ast.ContAssign{
		Reads: []ast.Expr{&ast.Arith{Op: "+", Operands: []ast.Expr{v("a"), v("b")}}},
		LHS:   v("y"),
	})

	detail := h.Details["sub_0"]
	op := findNode(t, detail, "OP: ADD")
	if got := detail.Nodes[op].Label; got != "OP: ADD\n(a + b)" {
		t.Errorf("operation label = %q", got)
	}

	result := detail.NodeDefs[op]
	if !strings.HasPrefix(result, "op_result_ADD_") {
		t.Fatalf("operation def = %q", result)
	}
	if !hasDFGEdge(detail, "a", result) || !hasDFGEdge(detail, "b", result) {
		t.Error("operands not wired into the operation result")
	}
	if !hasDFGEdge(detail, result, "y_1") {
		t.Error("operation result not wired into the target")
	}
}

func TestWhileShape(t *testing.T) {
	h := buildOne(t, &ast.ProcBlock{
		Kind: "initial",
		Body: []ast.Stmt{&ast.While{
			Cond: &ast.Compare{Op: "<", Operands: []ast.Expr{v("i"), v("n")}},
			Body: []ast.Stmt{
				&ast.Assign{
					Reads:    []ast.Expr{&ast.Arith{Op: "+", Operands: []ast.Expr{v("i"), k("1")}}},
					LHS:      v("i"),
					Blocking: true,
				},
			},
		}},
	})

	detail := h.Details["sub_0"]
	header := findNode(t, detail, "while ((i < n))")
	body := findNode(t, detail, "i = (i + 1)")
	exit := findNode(t, detail, "EndWhile")

	if !hasEdge(detail, header, body, "True") {
		t.Error("missing True edge into loop body")
	}
	if !hasEdge(detail, body, header, "") {
		t.Error("missing back edge to header")
	}
	if !hasEdge(detail, header, exit, "False") {
		t.Error("missing False edge to exit")
	}
}

func TestInitialConstLabel(t *testing.T) {
	h := buildOne(t, &ast.ProcBlock{
		Kind: "initial",
		Body: []ast.Stmt{&ast.Assign{Reads: []ast.Expr{k("0")}, LHS: v("count"), Blocking: true}},
	})

	if got := h.Architecture.Nodes[0].Label; got != "Init\ncount = 0" {
		t.Errorf("label = %q, want Init\\ncount = 0", got)
	}
}

func TestSelfLoopSuppressed(t *testing.T) {
	h := buildOne(t, clocked(
		nb("count", &ast.Arith{Op: "+", Operands: []ast.Expr{v("count"), k("1")}}),
	))

	if got := h.Architecture.Nodes[0].Label; !strings.HasPrefix(got, "Counter") {
		t.Errorf("label = %q, want Counter prefix", got)
	}
	if len(h.Architecture.Edges) != 0 {
		t.Errorf("edges = %+v, want none (self-loop suppressed)", h.Architecture.Edges)
	}
}

func TestDetailLinks(t *testing.T) {
	h := buildOne(t,
		clocked(nb("q", v("d"))),
		&ast.ContAssign{Reads: []ast.Expr{v("q")}, LHS: v("out")},
	)

	if diff := cmp.Diff([]string{"sub_0", "sub_1"}, h.Order); diff != "" {
		t.Fatalf("detail order mismatch (-want +got):\n%s", diff)
	}
	links := h.Architecture.Clusters[0].Links
	if links[0] != "sub_0" || links[1] != "sub_1" {
		t.Errorf("cluster links = %v", links)
	}
}
