package ast

import "strings"

// Operator spellings by frontend tag. Tags outside these tables lower
// to UnknownExpr.
var (
	compareOps = map[string]string{
		"lts": "<",
		"gt":  ">",
		"eq":  "==",
		"neq": "!=",
		"lte": "<=",
		"gte": ">=",
	}
	logicalOps = map[string]string{
		"land": "&&",
		"lor":  "||",
	}
	arithOps = map[string]string{
		"add":  "+",
		"sub":  "-",
		"mul":  "*",
		"div":  "/",
		"mod":  "%",
		"shl":  "<<",
		"shr":  ">>",
		"ashr": ">>>",
	}
	unaryOps = map[string]string{
		"neg":  "-",
		"not":  "~",
		"lnot": "!",
	}
)

// LowerDesign converts a decoded XML tree into the typed design model.
// The root may be the document element or the netlist itself.
func LowerDesign(root *Node) *Design {
	d := &Design{}
	if root == nil {
		return d
	}
	netlist := root
	if root.Tag != "netlist" {
		if n := root.Find("netlist"); n != nil {
			netlist = n
		}
	}
	for _, c := range netlist.Children {
		if c.Tag == "module" {
			d.Modules = append(d.Modules, lowerModule(c))
		}
	}
	return d
}

func lowerModule(n *Node) *Module {
	m := &Module{
		Name: n.Name,
		Top:  n.Attrs["topModule"] == "1",
		Line: Line(n.Loc),
	}
	for _, c := range n.Children {
		if item := lowerItem(c); item != nil {
			m.Items = append(m.Items, item)
		}
	}
	return m
}

func lowerItem(n *Node) Item {
	switch n.Tag {
	case "always", "initial":
		return lowerProcBlock(n)
	case "contassign":
		reads, lhs := splitAssign(n)
		return &ContAssign{Reads: reads, LHS: lhs, Line: Line(n.Loc)}
	case "instance", "cell":
		return lowerInstance(n)
	case "var":
		if dir := normalizePortDir(n.Dir); dir != "" {
			return &PortDecl{Name: n.Name, Dir: dir, Line: Line(n.Loc)}
		}
		return &VarDecl{Name: n.Name, Line: Line(n.Loc)}
	case "typetable", "decl", "param", "genvar", "port":
		return nil
	}
	return &UnknownItem{
		Tag:  n.Tag,
		Name: n.Name,
		Body: lowerStmts(n.Children),
		Line: Line(n.Loc),
	}
}

func lowerProcBlock(n *Node) *ProcBlock {
	b := &ProcBlock{Kind: n.Tag, Line: Line(n.Loc)}
	var body []*Node
	for _, c := range n.Children {
		if c.Tag == "sentree" {
			b.Sens = append(b.Sens, lowerSens(c)...)
			continue
		}
		body = append(body, c)
	}
	b.Body = lowerStmts(body)
	return b
}

func lowerSens(tree *Node) []SenItem {
	var out []SenItem
	for _, item := range tree.Children {
		if item.Tag != "senitem" {
			continue
		}
		s := SenItem{Edge: normalizeEdge(item)}
		if s.Signal = item.Name; s.Signal == "" {
			if ref := item.Find("varref"); ref != nil {
				s.Signal = ref.Name
			}
		}
		out = append(out, s)
	}
	return out
}

// normalizeEdge reads the trigger kind from either attribute spelling
// the frontend has used across versions.
func normalizeEdge(item *Node) string {
	edge := item.Attrs["edgeType"]
	if edge == "" {
		edge = item.Attrs["type"]
	}
	switch strings.ToLower(edge) {
	case "pos", "posedge":
		return "posedge"
	case "neg", "negedge":
		return "negedge"
	}
	return ""
}

func lowerInstance(n *Node) *Instance {
	inst := &Instance{Name: n.Name, Line: Line(n.Loc)}
	if inst.Module = n.Attrs["defName"]; inst.Module == "" {
		inst.Module = n.Attrs["submodname"]
	}
	for _, c := range n.Children {
		if c.Tag != "port" {
			continue
		}
		conn := PortConn{Port: c.Name, Dir: normalizeConnDir(c.Dir)}
		if len(c.Children) > 0 {
			conn.Expr = lowerExpr(c.Children[0])
		}
		inst.Conns = append(inst.Conns, conn)
	}
	return inst
}

// normalizePortDir maps a declaration direction attribute onto the
// three port directions, or "" for plain variables.
func normalizePortDir(dir string) string {
	switch strings.ToLower(dir) {
	case "input", "in":
		return "input"
	case "output", "out":
		return "output"
	case "inout":
		return "inout"
	}
	return ""
}

// normalizeConnDir maps an instance port direction onto in/out/inout.
// Unrecognized directions are treated as inout so the connection still
// participates in resolution.
func normalizeConnDir(dir string) string {
	switch strings.ToLower(dir) {
	case "in", "input":
		return "in"
	case "out", "output":
		return "out"
	}
	return "inout"
}

func lowerStmts(nodes []*Node) []Stmt {
	var out []Stmt
	for _, n := range nodes {
		if s := lowerStmt(n); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func lowerStmt(n *Node) Stmt {
	switch n.Tag {
	case "begin":
		return &Block{Name: n.Name, Stmts: lowerStmts(n.Children), Line: Line(n.Loc)}
	case "if":
		s := &If{Line: Line(n.Loc)}
		if len(n.Children) > 0 {
			s.Cond = lowerExpr(n.Children[0])
		}
		if len(n.Children) > 1 {
			s.Then = lowerStmt(n.Children[1])
		}
		if len(n.Children) > 2 {
			s.Else = lowerStmt(n.Children[2])
		}
		return s
	case "casestmt", "case":
		s := &Case{Line: Line(n.Loc)}
		for i, c := range n.Children {
			if i == 0 && c.Tag != "caseitem" {
				s.Subject = lowerExpr(c)
				continue
			}
			if c.Tag == "caseitem" {
				s.Items = append(s.Items, lowerCaseItem(c))
			}
		}
		return s
	case "while":
		s := &While{Line: Line(n.Loc)}
		if len(n.Children) > 0 {
			s.Cond = lowerExpr(n.Children[0])
			s.Body = lowerStmts(n.Children[1:])
		}
		return s
	case "assign", "assignw", "contassign":
		reads, lhs := splitAssign(n)
		return &Assign{Reads: reads, LHS: lhs, Blocking: true, Line: Line(n.Loc)}
	case "assigndly", "nonblockingassign":
		reads, lhs := splitAssign(n)
		return &Assign{Reads: reads, LHS: lhs, Blocking: false, Line: Line(n.Loc)}
	case "sentree", "senitem", "var", "decl", "param", "genvar", "comment":
		// Sensitivity lists and declarations are not statements.
		return nil
	}
	return &UnknownStmt{
		Tag:  n.Tag,
		Name: n.Name,
		Kids: lowerStmts(n.Children),
		Line: Line(n.Loc),
	}
}

func lowerCaseItem(n *Node) CaseItem {
	var item CaseItem
	var body []*Node
	for _, c := range n.Children {
		if c.Tag == "const" {
			item.Values = append(item.Values, lowerExpr(c))
			continue
		}
		body = append(body, c)
	}
	item.Body = lowerStmts(body)
	return item
}

// splitAssign applies the positional convention for assignment-shaped
// constructs: the last child is the write target, everything before it
// is read.
func splitAssign(n *Node) (reads []Expr, lhs Expr) {
	if len(n.Children) == 0 {
		return nil, nil
	}
	last := len(n.Children) - 1
	for _, c := range n.Children[:last] {
		reads = append(reads, lowerExpr(c))
	}
	return reads, lowerExpr(n.Children[last])
}

func lowerExpr(n *Node) Expr {
	if n == nil {
		return nil
	}
	switch n.Tag {
	case "varref", "var":
		return &VarRef{Name: n.Name}
	case "const":
		return &Const{Value: n.Name}
	case "cond", "condbound":
		return &Ternary{Operands: lowerExprs(n.Children)}
	}
	if op, ok := compareOps[n.Tag]; ok {
		return &Compare{Op: op, Operands: lowerExprs(n.Children)}
	}
	if op, ok := logicalOps[n.Tag]; ok {
		return &Logical{Op: op, Operands: lowerExprs(n.Children)}
	}
	if op, ok := arithOps[n.Tag]; ok {
		return &Arith{Op: op, Operands: lowerExprs(n.Children)}
	}
	if op, ok := unaryOps[n.Tag]; ok {
		return &Unary{Op: op, Operands: lowerExprs(n.Children)}
	}
	return &UnknownExpr{Tag: n.Tag, Name: n.Name, Operands: lowerExprs(n.Children)}
}

func lowerExprs(nodes []*Node) []Expr {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]Expr, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, lowerExpr(n))
	}
	return out
}
