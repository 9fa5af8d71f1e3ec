package ast

// The lowered design model. The frontend's open tag set is folded into
// closed statement and expression kinds here, each carrying only the
// fields its shape needs. Constructs the lowering does not recognize
// become Unknown values that keep the raw tag and their lowered
// children, so traversal degrades instead of failing.

// Design is a lowered netlist: every module of one frontend run.
type Design struct {
	Modules []*Module
}

// Module is one module definition with its lowered items.
type Module struct {
	Name  string
	Top   bool
	Line  int
	Items []Item
}

// Item is a direct child of a module body.
type Item interface {
	isItem()
}

// ProcBlock is a procedural block (always or initial).
type ProcBlock struct {
	Kind string // "always" or "initial"
	Sens []SenItem
	Body []Stmt
	Line int
}

// SenItem is one entry of a sensitivity list.
type SenItem struct {
	Edge   string // "posedge", "negedge", or "" for level sensitivity
	Signal string
}

// ContAssign is a module-level continuous assignment.
type ContAssign struct {
	Reads []Expr // children before the write target, value expression first
	LHS   Expr
	Line  int
}

// Instance is a module instantiation.
type Instance struct {
	Name   string
	Module string
	Conns  []PortConn
	Line   int
}

// PortConn is one port binding of an instance.
type PortConn struct {
	Port string
	Dir  string // normalized: "in", "out", or "inout"
	Expr Expr
}

// PortDecl is a module port declaration.
type PortDecl struct {
	Name string
	Dir  string // "input", "output", or "inout"
	Line int
}

// VarDecl is a non-port variable or net declaration.
type VarDecl struct {
	Name string
	Line int
}

// UnknownItem is a module item the lowering has no rule for. Its
// children are lowered as statements so traversal can still descend.
type UnknownItem struct {
	Tag  string
	Name string
	Body []Stmt
	Line int
}

func (*ProcBlock) isItem()   {}
func (*ContAssign) isItem()  {}
func (*Instance) isItem()    {}
func (*PortDecl) isItem()    {}
func (*VarDecl) isItem()     {}
func (*UnknownItem) isItem() {}

// Stmt is one lowered statement.
type Stmt interface {
	isStmt()
}

// Block is a sequential statement list (begin/end).
type Block struct {
	Name  string
	Stmts []Stmt
	Line  int
}

// If is a conditional. Then and Else are single statements and may be
// nil when the branch is absent.
type If struct {
	Cond Expr
	Then Stmt
	Else Stmt
	Line int
}

// Case is a multi-way dispatch.
type Case struct {
	Subject Expr
	Items   []CaseItem
	Line    int
}

// CaseItem is one arm of a dispatch. An empty Values list marks the
// default arm.
type CaseItem struct {
	Values []Expr
	Body   []Stmt
}

// While is a condition-guarded loop.
type While struct {
	Cond Expr
	Body []Stmt
	Line int
}

// Assign is a procedural or continuous assignment. The write target is
// the construct's last child; everything before it is read.
type Assign struct {
	Reads    []Expr // value expression first
	LHS      Expr
	Blocking bool
	Line     int
}

// RHS returns the assigned value expression, or nil when the construct
// carried no value children.
func (a *Assign) RHS() Expr {
	if len(a.Reads) == 0 {
		return nil
	}
	return a.Reads[0]
}

// UnknownStmt is a statement the lowering has no rule for.
type UnknownStmt struct {
	Tag  string
	Name string
	Kids []Stmt
	Line int
}

func (*Block) isStmt()       {}
func (*If) isStmt()          {}
func (*Case) isStmt()        {}
func (*While) isStmt()       {}
func (*Assign) isStmt()      {}
func (*UnknownStmt) isStmt() {}

// Expr is one lowered expression.
type Expr interface {
	isExpr()
}

// VarRef is a reference to a named variable or net.
type VarRef struct {
	Name string
}

// Const is a literal value, kept in its source spelling.
type Const struct {
	Value string
}

// Compare is a relational operator: < > == != <= >=.
type Compare struct {
	Op       string
	Operands []Expr
}

// Logical is a boolean connective: && or ||.
type Logical struct {
	Op       string
	Operands []Expr
}

// Arith is an arithmetic or shift operator: + - * / % << >> >>>.
type Arith struct {
	Op       string
	Operands []Expr
}

// Unary is a prefix operator: - ~ !.
type Unary struct {
	Op       string
	Operands []Expr
}

// Ternary is a conditional expression (cond ? then : else).
type Ternary struct {
	Operands []Expr
}

// UnknownExpr is an expression the lowering has no rule for.
type UnknownExpr struct {
	Tag      string
	Name     string
	Operands []Expr
}

func (*VarRef) isExpr()      {}
func (*Const) isExpr()       {}
func (*Compare) isExpr()     {}
func (*Logical) isExpr()     {}
func (*Arith) isExpr()       {}
func (*Unary) isExpr()       {}
func (*Ternary) isExpr()     {}
func (*UnknownExpr) isExpr() {}

// WalkExprs calls fn for e and then for every operand beneath it, in
// document order. Nil expressions are skipped.
func WalkExprs(e Expr, fn func(Expr)) {
	if e == nil {
		return
	}
	fn(e)
	for _, op := range operandsOf(e) {
		WalkExprs(op, fn)
	}
}

func operandsOf(e Expr) []Expr {
	switch x := e.(type) {
	case *Compare:
		return x.Operands
	case *Logical:
		return x.Operands
	case *Arith:
		return x.Operands
	case *Unary:
		return x.Operands
	case *Ternary:
		return x.Operands
	case *UnknownExpr:
		return x.Operands
	}
	return nil
}

// WalkStmts calls fn for every statement in the trees rooted at stmts,
// nested bodies included, in document order.
func WalkStmts(stmts []Stmt, fn func(Stmt)) {
	for _, s := range stmts {
		walkStmt(s, fn)
	}
}

func walkStmt(s Stmt, fn func(Stmt)) {
	if s == nil {
		return
	}
	fn(s)
	switch x := s.(type) {
	case *Block:
		WalkStmts(x.Stmts, fn)
	case *If:
		walkStmt(x.Then, fn)
		walkStmt(x.Else, fn)
	case *Case:
		for _, item := range x.Items {
			WalkStmts(item.Body, fn)
		}
	case *While:
		WalkStmts(x.Body, fn)
	case *UnknownStmt:
		WalkStmts(x.Kids, fn)
	}
}

// WalkStmtExprs calls fn for every expression appearing anywhere in the
// statement trees rooted at stmts, conditions and targets included.
func WalkStmtExprs(stmts []Stmt, fn func(Expr)) {
	WalkStmts(stmts, func(s Stmt) {
		switch x := s.(type) {
		case *If:
			WalkExprs(x.Cond, fn)
		case *Case:
			WalkExprs(x.Subject, fn)
			for _, item := range x.Items {
				for _, v := range item.Values {
					WalkExprs(v, fn)
				}
			}
		case *While:
			WalkExprs(x.Cond, fn)
		case *Assign:
			for _, r := range x.Reads {
				WalkExprs(r, fn)
			}
			WalkExprs(x.LHS, fn)
		}
	})
}
