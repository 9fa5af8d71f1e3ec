// Package expr renders lowered expressions for display and collects the
// variables they reference. Both operations are pure and total: nil or
// partially formed inputs degrade to empty output, never to a panic.
package expr

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
)

// Format renders an expression subtree to its display string.
//
// Binary comparisons and arithmetic render only their first two
// operands; extra operands are dropped. Ternaries need three operands.
// When a construct has fewer operands than its shape requires, it falls
// through to plain concatenation of whatever is there.
func Format(e ast.Expr) string {
	switch x := e.(type) {
	case nil:
		return ""
	case *ast.VarRef:
		return x.Name
	case *ast.Const:
		return x.Value
	case *ast.Compare:
		if len(x.Operands) >= 2 {
			return "(" + Format(x.Operands[0]) + " " + x.Op + " " + Format(x.Operands[1]) + ")"
		}
		return concat(x.Operands)
	case *ast.Logical:
		parts := make([]string, len(x.Operands))
		for i, op := range x.Operands {
			parts[i] = Format(op)
		}
		return "(" + strings.Join(parts, " "+x.Op+" ") + ")"
	case *ast.Arith:
		if len(x.Operands) >= 2 {
			return "(" + Format(x.Operands[0]) + " " + x.Op + " " + Format(x.Operands[1]) + ")"
		}
		return concat(x.Operands)
	case *ast.Unary:
		if len(x.Operands) >= 1 {
			return x.Op + "(" + Format(x.Operands[0]) + ")"
		}
		return ""
	case *ast.Ternary:
		if len(x.Operands) >= 3 {
			return Format(x.Operands[0]) + " ? " + Format(x.Operands[1]) + " : " + Format(x.Operands[2])
		}
		return concat(x.Operands)
	case *ast.UnknownExpr:
		return concat(x.Operands)
	}
	return ""
}

func concat(operands []ast.Expr) string {
	var b strings.Builder
	for _, op := range operands {
		b.WriteString(Format(op))
	}
	return b.String()
}

// Vars returns the distinct variable names referenced anywhere in the
// expression subtree, sorted.
func Vars(e ast.Expr) []string {
	seen := make(map[string]bool)
	ast.WalkExprs(e, func(x ast.Expr) {
		if v, ok := x.(*ast.VarRef); ok && v.Name != "" {
			seen[v.Name] = true
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// StmtVars returns the distinct variable names referenced anywhere in
// the statement tree, sorted.
func StmtVars(s ast.Stmt) []string {
	seen := make(map[string]bool)
	ast.WalkStmtExprs([]ast.Stmt{s}, func(x ast.Expr) {
		if v, ok := x.(*ast.VarRef); ok && v.Name != "" {
			seen[v.Name] = true
		}
	})
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// FirstVar returns the first variable name in the subtree in document
// order, or "" when it references none.
func FirstVar(e ast.Expr) string {
	if e == nil {
		return ""
	}
	if v, ok := e.(*ast.VarRef); ok {
		return v.Name
	}
	switch x := e.(type) {
	case *ast.Compare:
		return firstVarOf(x.Operands)
	case *ast.Logical:
		return firstVarOf(x.Operands)
	case *ast.Arith:
		return firstVarOf(x.Operands)
	case *ast.Unary:
		return firstVarOf(x.Operands)
	case *ast.Ternary:
		return firstVarOf(x.Operands)
	case *ast.UnknownExpr:
		return firstVarOf(x.Operands)
	}
	return ""
}

func firstVarOf(operands []ast.Expr) string {
	for _, op := range operands {
		if name := FirstVar(op); name != "" {
			return name
		}
	}
	return ""
}
