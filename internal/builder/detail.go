package builder

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/classify"
	"github.com/robert-at-pretension-io/rtl-graph/internal/expr"
	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
)

// Operation names for synthetic data-flow nodes, keyed by spelled
// operator within each kind.
var (
	compareKinds = map[string]string{
		"<": "LT", ">": "GT", "==": "EQ", "!=": "NEQ", "<=": "LTE", ">=": "GTE",
	}
	logicalKinds = map[string]string{
		"&&": "LAND", "||": "LOR",
	}
	arithKinds = map[string]string{
		"+": "ADD", "-": "SUB", "*": "MUL", "/": "DIV", "%": "MOD",
		"<<": "SLL", ">>": "SRL", ">>>": "SRA",
	}
	unaryKinds = map[string]string{
		"-": "NEG", "~": "NOT", "!": "LNOT",
	}
)

// buildDetail constructs the statement-level graph for one block. The
// model shares the module's SSA state so versions stay monotonic across
// blocks.
func (b *Builder) buildDetail(ctx *moduleCtx, key, class, kind string, body []ast.Stmt, line int) *graph.Model {
	m := graph.NewModel(key)
	m.SSA = ctx.ssa

	t := &traversal{m: m, cluster: m.AddCluster(class, classify.Color(class))}
	enter := m.AddCFGNode("Enter "+kind, t.cluster)
	if line > 0 {
		m.NodeLine[enter] = line
	}
	t.chain(body, enter)
	return m
}

// traversal walks one block's statements, appending to its model.
type traversal struct {
	m       *graph.Model
	cluster int
}

// chain processes a statement list in document order, wiring each
// statement's returned node to the previous one. It returns the first
// and last returned ids, -1 when the list produced no nodes.
//
// The returned id of a compound statement is its join or exit node, so
// the edge into a conditional lands on its join rather than its
// condition. That mirrors the reference traversal and is the accepted
// limitation of this pass.
func (t *traversal) chain(stmts []ast.Stmt, prev int) (first, last int) {
	first, last = -1, -1
	for _, s := range stmts {
		n := t.stmt(s)
		if n < 0 {
			continue
		}
		if prev >= 0 {
			t.m.AddCFGEdge(prev, n, "")
		}
		if first < 0 {
			first = n
		}
		prev = n
		last = n
	}
	return first, last
}

// stmt processes one statement and returns the node id the parent chain
// should wire to, or -1 when the statement produced no nodes.
func (t *traversal) stmt(s ast.Stmt) int {
	switch x := s.(type) {
	case *ast.Block:
		first, _ := t.chain(x.Stmts, -1)
		return first
	case *ast.If:
		return t.ifStmt(x)
	case *ast.Case:
		return t.caseStmt(x)
	case *ast.While:
		return t.whileStmt(x)
	case *ast.Assign:
		return t.assign(x)
	case *ast.UnknownStmt:
		first, _ := t.chain(x.Kids, -1)
		return first
	}
	return -1
}

func (t *traversal) ifStmt(s *ast.If) int {
	uses := t.latestOf(expr.Vars(s.Cond))

	label := "if (" + expr.Format(s.Cond) + ")"
	if len(uses) > 0 {
		label += "\nUSE: " + strings.Join(uses, ", ")
	}
	cond := t.m.AddCFGNode(label, t.cluster)
	t.m.NodeUses[cond] = uses
	if s.Line > 0 {
		t.m.NodeLine[cond] = s.Line
	}
	t.exprDFG(s.Cond)

	thenNode := -1
	if s.Then != nil {
		thenNode = t.stmt(s.Then)
	}
	elseNode := -1
	if s.Else != nil {
		elseNode = t.stmt(s.Else)
	}

	join := t.m.AddCFGNode("EndIf", t.cluster)
	t.branch(cond, thenNode, join, "True")
	t.branch(cond, elseNode, join, "False")
	return join
}

// branch wires one arm of a conditional: condition to arm on the branch
// label, arm to the join. An absent or empty arm becomes a direct
// labeled edge to the join.
func (t *traversal) branch(cond, arm, join int, tag string) {
	if arm < 0 {
		t.m.AddCFGEdge(cond, join, tag)
		return
	}
	t.m.AddCFGEdge(cond, arm, tag)
	t.m.AddCFGEdge(arm, join, "")
}

// caseStmt builds one dispatch node and one node per arm, all
// converging on an end node. Arm bodies are not expanded into
// control-flow nodes; their assignments still advance SSA state and
// contribute data-flow edges.
func (t *traversal) caseStmt(s *ast.Case) int {
	dispatch := t.m.AddCFGNode("case ("+expr.Format(s.Subject)+")", t.cluster)
	if s.Line > 0 {
		t.m.NodeLine[dispatch] = s.Line
	}
	t.exprDFG(s.Subject)

	end := t.m.AddCFGNode("EndCase", t.cluster)
	for _, item := range s.Items {
		label := "default"
		if len(item.Values) > 0 {
			values := make([]string, len(item.Values))
			for i, v := range item.Values {
				values[i] = expr.Format(v)
			}
			label = strings.Join(values, ", ")
		}
		arm := t.m.AddCFGNode(label, t.cluster)
		t.m.AddCFGEdge(dispatch, arm, label)
		t.m.AddCFGEdge(arm, end, "")

		ast.WalkStmts(item.Body, func(st ast.Stmt) {
			if a, ok := st.(*ast.Assign); ok {
				t.dataOnlyAssign(a)
			}
		})
	}
	return end
}

// whileStmt builds the loop header, the body chain entered on True with
// a back edge to the header, and the False exit.
func (t *traversal) whileStmt(s *ast.While) int {
	header := t.m.AddCFGNode("while ("+expr.Format(s.Cond)+")", t.cluster)
	if s.Line > 0 {
		t.m.NodeLine[header] = s.Line
	}

	first, last := t.chain(s.Body, -1)
	if first >= 0 {
		t.m.AddCFGEdge(header, first, "True")
		t.m.AddCFGEdge(last, header, "")
	}

	exit := t.m.AddCFGNode("EndWhile", t.cluster)
	t.m.AddCFGEdge(header, exit, "False")
	return exit
}

// assign allocates the target's next SSA version, wires the value
// expression's data-flow outputs into it, and emits the annotated
// control-flow node.
func (t *traversal) assign(a *ast.Assign) int {
	target := expr.FirstVar(a.LHS)
	if target == "" {
		target = "<unnamed>"
	}
	rhs := a.RHS()

	uses := t.latestOf(expr.Vars(rhs))
	srcs := t.exprDFG(rhs)
	def := t.m.NewSSAName(target)

	glyph := "="
	if !a.Blocking {
		glyph = "<="
	}
	label := target + " " + glyph + " " + expr.Format(rhs) + "\nDEF: " + def
	if len(uses) > 0 {
		label += "\nUSE: " + strings.Join(uses, ", ")
	}

	node := t.m.AddCFGNode(label, t.cluster)
	t.m.NodeDefs[node] = def
	t.m.NodeUses[node] = uses
	if a.Line > 0 {
		t.m.NodeLine[node] = a.Line
	}

	dst := t.m.DFGNodeID(def)
	for _, src := range srcs {
		t.m.AddDFGEdge(src, dst)
	}
	return node
}

// dataOnlyAssign advances SSA state and data-flow edges for an
// assignment without emitting control-flow nodes. Used inside dispatch
// arms. Operators are not expanded either; the target draws directly
// from the leaf variables.
func (t *traversal) dataOnlyAssign(a *ast.Assign) {
	target := expr.FirstVar(a.LHS)
	if target == "" {
		target = "<unnamed>"
	}
	var srcs []int
	if rhs := a.RHS(); rhs != nil {
		for _, name := range expr.Vars(rhs) {
			srcs = append(srcs, t.m.DFGNodeID(t.m.LatestSSAName(name)))
		}
	}
	dst := t.m.DFGNodeID(t.m.NewSSAName(target))
	for _, src := range srcs {
		t.m.AddDFGEdge(src, dst)
	}
}

// exprDFG lowers an expression for the data-flow graph and returns the
// node ids carrying its results. Recognized operators become synthetic
// operation nodes fed by their operands; leaf variables resolve to
// their latest SSA version; constants contribute nothing; anything else
// passes its operands' results through.
func (t *traversal) exprDFG(e ast.Expr) []int {
	switch x := e.(type) {
	case nil:
		return nil
	case *ast.VarRef:
		return []int{t.m.DFGNodeID(t.m.LatestSSAName(x.Name))}
	case *ast.Const:
		return nil
	case *ast.Compare:
		return t.opDFG(compareKinds[x.Op], x, x.Operands)
	case *ast.Logical:
		return t.opDFG(logicalKinds[x.Op], x, x.Operands)
	case *ast.Arith:
		return t.opDFG(arithKinds[x.Op], x, x.Operands)
	case *ast.Unary:
		return t.opDFG(unaryKinds[x.Op], x, x.Operands)
	case *ast.Ternary:
		return t.passthroughDFG(x.Operands)
	case *ast.UnknownExpr:
		return t.passthroughDFG(x.Operands)
	}
	return nil
}

func (t *traversal) passthroughDFG(operands []ast.Expr) []int {
	var out []int
	for _, op := range operands {
		out = append(out, t.exprDFG(op)...)
	}
	return out
}

// opDFG emits the operation's control-flow node and its synthetic
// result value, wired from the operands' results.
func (t *traversal) opDFG(kind string, whole ast.Expr, operands []ast.Expr) []int {
	var srcs []int
	for _, op := range operands {
		srcs = append(srcs, t.exprDFG(op)...)
	}

	node := t.m.AddCFGNode("OP: "+kind+"\n"+expr.Format(whole), t.cluster)
	result := fmt.Sprintf("op_result_%s_%d", kind, node)
	t.m.NodeDefs[node] = result
	t.m.NodeUses[node] = t.latestOf(expr.Vars(whole))

	id := t.m.DFGNodeID(result)
	for _, src := range srcs {
		t.m.AddDFGEdge(src, id)
	}
	return []int{id}
}

// latestOf maps bare variable names to their current SSA versions.
func (t *traversal) latestOf(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = t.m.LatestSSAName(name)
	}
	return out
}
