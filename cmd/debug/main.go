package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/expr"
)

// Scratch tool for inspecting what the frontend actually emits: dumps
// the raw tag tree of an XML file (or an inline sample), then the
// lowered statement kinds per module.
const sample = `<verilator_xml>
<netlist>
  <module name="fsm" topModule="1" loc="f,1,1,1,10">
    <var name="clk" dir="input" loc="f,2,3,2,6"/>
    <var name="state" loc="f,3,3,3,8"/>
    <always loc="f,4,3,4,20">
      <sentree><senitem edgeType="POS"><varref name="clk"/></senitem></sentree>
      <begin>
        <casestmt loc="f,5,5,5,20">
          <varref name="state"/>
          <caseitem><const name="0"/><assigndly><const name="1"/><varref name="state"/></assigndly></caseitem>
          <caseitem><assigndly><const name="0"/><varref name="state"/></assigndly></caseitem>
        </casestmt>
      </begin>
    </always>
  </module>
</netlist>
</verilator_xml>`

func main() {
	var root *ast.Node
	var err error
	if len(os.Args) > 1 {
		f, ferr := os.Open(os.Args[1])
		if ferr != nil {
			fmt.Println("open:", ferr)
			os.Exit(1)
		}
		root, err = ast.Decode(f)
		_ = f.Close()
	} else {
		root, err = ast.Decode(strings.NewReader(sample))
	}
	if err != nil {
		fmt.Println("decode:", err)
		os.Exit(1)
	}

	var dump func(n *ast.Node, depth int)
	dump = func(n *ast.Node, depth int) {
		line := strings.Repeat("  ", depth) + n.Tag
		if n.Name != "" {
			line += " name=" + n.Name
		}
		if n.Dir != "" {
			line += " dir=" + n.Dir
		}
		keys := make([]string, 0, len(n.Attrs))
		for k := range n.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line += fmt.Sprintf(" %s=%s", k, n.Attrs[k])
		}
		fmt.Println(line)
		for _, c := range n.Children {
			dump(c, depth+1)
		}
	}
	dump(root, 0)

	design := ast.LowerDesign(root)
	for _, mod := range design.Modules {
		fmt.Printf("\nmodule %s top=%v (%d items):\n", mod.Name, mod.Top, len(mod.Items))
		for i, item := range mod.Items {
			fmt.Printf("  [%d] %s\n", i, kind(item))
			if pb, ok := item.(*ast.ProcBlock); ok {
				for _, s := range pb.Sens {
					fmt.Printf("      sens %s %s\n", s.Edge, s.Signal)
				}
				for _, s := range pb.Body {
					dumpStmt(s, 3)
				}
			}
		}
	}
}

func dumpStmt(s ast.Stmt, depth int) {
	indent := strings.Repeat("  ", depth)
	switch st := s.(type) {
	case *ast.Block:
		fmt.Printf("%sbegin %s\n", indent, st.Name)
		for _, c := range st.Stmts {
			dumpStmt(c, depth+1)
		}
	case *ast.If:
		fmt.Printf("%sif %s\n", indent, expr.Format(st.Cond))
		if st.Then != nil {
			dumpStmt(st.Then, depth+1)
		}
		if st.Else != nil {
			fmt.Printf("%selse\n", indent)
			dumpStmt(st.Else, depth+1)
		}
	case *ast.Case:
		fmt.Printf("%scase %s (%d items)\n", indent, expr.Format(st.Subject), len(st.Items))
		for _, item := range st.Items {
			values := make([]string, 0, len(item.Values))
			for _, v := range item.Values {
				values = append(values, expr.Format(v))
			}
			label := strings.Join(values, ", ")
			if label == "" {
				label = "default"
			}
			fmt.Printf("%s  %s:\n", indent, label)
			for _, c := range item.Body {
				dumpStmt(c, depth+2)
			}
		}
	case *ast.While:
		fmt.Printf("%swhile %s\n", indent, expr.Format(st.Cond))
		for _, c := range st.Body {
			dumpStmt(c, depth+1)
		}
	case *ast.Assign:
		op := "<="
		if st.Blocking {
			op = "="
		}
		reads := make([]string, 0, len(st.Reads))
		for _, r := range st.Reads {
			reads = append(reads, expr.Format(r))
		}
		fmt.Printf("%s%s %s %s\n", indent, expr.Format(st.LHS), op, strings.Join(reads, ", "))
	case *ast.UnknownStmt:
		fmt.Printf("%sunknown <%s>\n", indent, st.Tag)
		for _, c := range st.Kids {
			dumpStmt(c, depth+1)
		}
	default:
		fmt.Printf("%s%s\n", indent, kind(s))
	}
}

func kind(v interface{}) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*ast.")
}
