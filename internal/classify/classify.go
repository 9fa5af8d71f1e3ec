// Package classify labels procedural blocks with their hardware
// archetype. The rules are heuristics tuned for readable graphs, not a
// semantic analysis: a mislabeled block renders with the wrong shape
// and nothing more.
package classify

import (
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/expr"
)

// Block archetype labels. Renderer styling and lint rules match on
// these exact strings.
const (
	ContinuousAssignment  = "Continuous Assignment"
	FSMController         = "FSM Controller"
	Counter               = "Counter"
	CombinationalDatapath = "Combinational Datapath"
	SequentialLogic       = "Sequential Logic"
	CombinationalLogic    = "Combinational Logic"
)

// clockHints are substrings that mark a sensitivity signal as a clock
// or reset when the frontend reports no explicit edge.
var clockHints = []string{"clk", "clock", "rst", "reset"}

// Classify returns exactly one archetype label for a module item.
func Classify(item ast.Item) string {
	switch it := item.(type) {
	case *ast.ContAssign:
		return ContinuousAssignment
	case *ast.ProcBlock:
		return classifyBlock(it)
	case *ast.UnknownItem:
		return "Block: " + it.Tag
	case *ast.Instance:
		return "Block: instance"
	case *ast.PortDecl:
		return "Block: port"
	case *ast.VarDecl:
		return "Block: var"
	}
	return "Block: unknown"
}

func classifyBlock(b *ast.ProcBlock) string {
	seq := ClockSensitive(b.Sens)

	if seq && containsCase(b.Body) {
		return FSMController
	}
	if seq && hasSelfIncrement(b.Body) {
		return Counter
	}
	if !seq && (containsCase(b.Body) || operatorCount(b.Body) > 3) {
		return CombinationalDatapath
	}
	if seq {
		return SequentialLogic
	}
	return CombinationalLogic
}

// ClockSensitive reports whether a sensitivity list marks a block as
// clocked: an explicit edge trigger, or failing that, a signal whose
// name looks like a clock or reset.
func ClockSensitive(sens []ast.SenItem) bool {
	for _, s := range sens {
		if s.Edge == "posedge" || s.Edge == "negedge" {
			return true
		}
	}
	for _, s := range sens {
		name := strings.ToLower(s.Signal)
		for _, hint := range clockHints {
			if strings.Contains(name, hint) {
				return true
			}
		}
	}
	return false
}

func containsCase(body []ast.Stmt) bool {
	found := false
	ast.WalkStmts(body, func(s ast.Stmt) {
		if _, ok := s.(*ast.Case); ok {
			found = true
		}
	})
	return found
}

// hasSelfIncrement looks for the counter idiom: a non-blocking
// assignment whose target also appears as an addition operand on its
// own right-hand side.
func hasSelfIncrement(body []ast.Stmt) bool {
	found := false
	ast.WalkStmts(body, func(s ast.Stmt) {
		if found {
			return
		}
		a, ok := s.(*ast.Assign)
		if !ok || a.Blocking {
			return
		}
		target := expr.FirstVar(a.LHS)
		if target == "" {
			return
		}
		rhs := a.RHS()
		if rhs == nil {
			return
		}
		ast.WalkExprs(rhs, func(e ast.Expr) {
			add, ok := e.(*ast.Arith)
			if !ok || add.Op != "+" {
				return
			}
			for _, name := range expr.Vars(add) {
				if name == target {
					found = true
				}
			}
		})
	})
	return found
}

// operatorCount tallies the arithmetic and bitwise operators in a block
// body. Blocks with many of them read as datapaths.
func operatorCount(body []ast.Stmt) int {
	n := 0
	ast.WalkStmtExprs(body, func(e ast.Expr) {
		switch x := e.(type) {
		case *ast.Arith:
			if x.Op == "+" || x.Op == "-" || x.Op == "*" {
				n++
			}
		case *ast.UnknownExpr:
			if x.Tag == "and" || x.Tag == "or" || x.Tag == "xor" {
				n++
			}
		}
	})
	return n
}

// Color returns the cluster fill for an archetype label.
func Color(label string) string {
	switch label {
	case FSMController:
		return "aliceblue"
	case Counter:
		return "honeydew"
	case CombinationalDatapath:
		return "mistyrose"
	case SequentialLogic:
		return "azure"
	case CombinationalLogic:
		return "cornsilk"
	case ContinuousAssignment:
		return "lavender"
	}
	return "lightgrey"
}
