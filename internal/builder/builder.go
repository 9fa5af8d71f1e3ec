// Package builder turns a lowered design into graph hierarchies: one
// architecture graph per module with a node per procedural block,
// instance, and port group, plus a detail control/data-flow graph per
// block. Connection edges between architecture nodes are inferred from
// shared signal names after the module walk.
package builder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/classify"
	"github.com/robert-at-pretension-io/rtl-graph/internal/expr"
	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
)

// Options configure graph construction.
type Options struct {
	// IgnoreSignals are substring patterns (matched case-insensitively)
	// for wires that should never produce connection edges. Clock and
	// reset fanout swamps a diagram otherwise.
	IgnoreSignals []string
}

// Builder converts lowered designs into graph hierarchies.
type Builder struct {
	opts Options
}

// New returns a builder with the given options.
func New(opts Options) *Builder {
	return &Builder{opts: opts}
}

// Build processes every module of a design, in document order. Modules
// never share state: each gets a fresh traversal context.
func (b *Builder) Build(d *ast.Design) []*graph.Hierarchy {
	if d == nil {
		return nil
	}
	out := make([]*graph.Hierarchy, 0, len(d.Modules))
	for _, mod := range d.Modules {
		out = append(out, b.buildModule(mod))
	}
	return out
}

// moduleCtx carries all per-module traversal state so nothing leaks
// between modules.
type moduleCtx struct {
	hier    *graph.Hierarchy
	arch    *graph.Model
	cluster int
	ssa     *graph.SSAState
	subSeq  int

	inputs  []string
	outputs []string
	inouts  []string
}

func (b *Builder) buildModule(mod *ast.Module) *graph.Hierarchy {
	hier := graph.NewHierarchy(mod.Name)
	arch := hier.Architecture
	arch.ResetSSA()

	ctx := &moduleCtx{
		hier:    hier,
		arch:    arch,
		cluster: arch.AddCluster("Module: "+mod.Name, "lightgrey"),
		ssa:     arch.SSA,
	}

	for _, item := range mod.Items {
		switch it := item.(type) {
		case *ast.ProcBlock:
			b.addBlock(ctx, it, classify.Classify(it), it.Kind, it.Body, it.Line)
		case *ast.ContAssign:
			stmt := &ast.Assign{Reads: it.Reads, LHS: it.LHS, Blocking: true, Line: it.Line}
			b.addBlock(ctx, it, classify.Classify(it), "assign", []ast.Stmt{stmt}, it.Line)
		case *ast.UnknownItem:
			b.addBlock(ctx, it, classify.Classify(it), it.Tag, it.Body, it.Line)
		case *ast.Instance:
			b.addInstance(ctx, it)
		case *ast.PortDecl:
			switch it.Dir {
			case "input":
				ctx.inputs = append(ctx.inputs, it.Name)
			case "output":
				ctx.outputs = append(ctx.outputs, it.Name)
			case "inout":
				ctx.inouts = append(ctx.inouts, it.Name)
			}
		case *ast.VarDecl:
			// Plain nets only matter once something reads or writes them.
		}
	}

	b.addPortNodes(ctx)
	b.resolveConnections(ctx)
	return hier
}

// addBlock creates the architecture node for a procedural block or
// assignment, registers its reads and writes, and builds its detail
// graph.
func (b *Builder) addBlock(ctx *moduleCtx, item ast.Item, class, kind string, body []ast.Stmt, line int) {
	var assigns []*ast.Assign
	ast.WalkStmts(body, func(s ast.Stmt) {
		if a, ok := s.(*ast.Assign); ok {
			assigns = append(assigns, a)
		}
	})

	node := ctx.arch.AddCFGNode(blockLabel(item, class, assigns), ctx.cluster)
	if line > 0 {
		ctx.arch.NodeLine[node] = line
	}

	for _, a := range assigns {
		if target := expr.FirstVar(a.LHS); target != "" {
			ctx.hier.Signals.Bind(target, node, graph.Driver)
		}
		for _, r := range a.Reads {
			for _, name := range expr.Vars(r) {
				ctx.hier.Signals.Bind(name, node, graph.Receiver)
			}
		}
	}

	key := fmt.Sprintf("sub_%d", ctx.subSeq)
	ctx.subSeq++
	detail := b.buildDetail(ctx, key, class, kind, body, line)
	ctx.hier.AddDetail(key, detail)
	ctx.arch.LinkNode(ctx.cluster, node, key)
}

// blockLabel composes the architecture label: the classification, plus
// an inline summary when the block is a single assignment. A lone
// constant initializer reads as "Init" instead.
func blockLabel(item ast.Item, class string, assigns []*ast.Assign) string {
	if len(assigns) != 1 {
		return class
	}
	a := assigns[0]
	target := expr.FirstVar(a.LHS)
	if target == "" {
		target = "<unnamed>"
	}
	rhs := a.RHS()

	if blk, ok := item.(*ast.ProcBlock); ok && blk.Kind == "initial" {
		if c, ok := rhs.(*ast.Const); ok {
			return "Init\n" + target + " = " + c.Value
		}
	}
	return class + "\n" + target + " <= " + expr.Format(rhs)
}

// addInstance creates the architecture node for a module instantiation
// and registers every bound signal under the port's direction.
func (b *Builder) addInstance(ctx *moduleCtx, inst *ast.Instance) {
	label := inst.Name
	if inst.Module != "" {
		label += "\n(" + inst.Module + ")"
	}
	node := ctx.arch.AddCFGNode(label, ctx.cluster)
	if inst.Line > 0 {
		ctx.arch.NodeLine[node] = inst.Line
	}
	if inst.Module != "" {
		ctx.arch.ModuleLinks[node] = inst.Module
	}

	for _, conn := range inst.Conns {
		dir := graph.Inout
		switch conn.Dir {
		case "out":
			dir = graph.Driver
		case "in":
			dir = graph.Receiver
		}
		for _, name := range expr.Vars(conn.Expr) {
			ctx.hier.Signals.Bind(name, node, dir)
		}
	}
}

// addPortNodes materializes one aggregated node per port direction. A
// module input drives internal logic, so it registers as a driver; an
// output receives it.
func (b *Builder) addPortNodes(ctx *moduleCtx) {
	groups := []struct {
		title string
		names []string
		dir   graph.Direction
	}{
		{"Inputs", ctx.inputs, graph.Driver},
		{"Outputs", ctx.outputs, graph.Receiver},
		{"Inouts", ctx.inouts, graph.Inout},
	}
	for _, g := range groups {
		if len(g.names) == 0 {
			continue
		}
		label := g.title + "\n" + strings.Join(g.names, "\n")
		node := ctx.arch.AddCFGNode(label, ctx.cluster)
		for _, name := range g.names {
			ctx.hier.Signals.Bind(name, node, g.dir)
		}
	}
}

// resolveConnections turns the signal registry into architecture edges.
// Signals with a known driver get one edge per (driver, receiver) pair;
// signals with bindings but no driver fall back to a best-effort chain
// in node-id order. Parallel edges between the same pair coalesce into
// a single bus edge.
func (b *Builder) resolveConnections(ctx *moduleCtx) {
	type pair struct{ src, dst int }
	buses := make(map[pair][]string)
	var order []pair

	connect := func(src, dst int, signal string) {
		if src == dst {
			return
		}
		p := pair{src, dst}
		if _, ok := buses[p]; !ok {
			order = append(order, p)
		}
		buses[p] = append(buses[p], signal)
	}

	for _, signal := range ctx.hier.Signals.Signals() {
		if b.ignored(signal) {
			continue
		}
		bindings := ctx.hier.Signals.Bindings(signal)

		var drivers, receivers []int
		for _, bind := range bindings {
			switch bind.Dir {
			case graph.Driver:
				drivers = append(drivers, bind.Node)
			case graph.Receiver, graph.Inout:
				receivers = append(receivers, bind.Node)
			}
		}

		if len(drivers) > 0 {
			for _, src := range drivers {
				for _, dst := range receivers {
					connect(src, dst, signal)
				}
			}
			continue
		}

		// No direction information. Chain the participants so the
		// shared wire at least shows up.
		if len(bindings) >= 2 {
			nodes := distinctNodes(bindings)
			for i := 0; i+1 < len(nodes); i++ {
				connect(nodes[i], nodes[i+1], signal)
			}
		}
	}

	for _, p := range order {
		ctx.arch.AddBusEdge(p.src, p.dst, dedupSorted(buses[p]))
	}
}

func (b *Builder) ignored(signal string) bool {
	name := strings.ToLower(signal)
	for _, pattern := range b.opts.IgnoreSignals {
		if pattern != "" && strings.Contains(name, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func distinctNodes(bindings []graph.Binding) []int {
	seen := make(map[int]bool)
	var out []int
	for _, b := range bindings {
		if !seen[b.Node] {
			seen[b.Node] = true
			out = append(out, b.Node)
		}
	}
	sort.Ints(out)
	return out
}

func dedupSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	var prev string
	for i, n := range names {
		if i > 0 && n == prev {
			continue
		}
		out = append(out, n)
		prev = n
	}
	return out
}
