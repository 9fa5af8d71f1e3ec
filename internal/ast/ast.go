package ast

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Node is one element of the frontend's XML syntax tree. Nodes are
// read-only after decoding; the lowering pass converts them into the
// typed design structures the rest of the pipeline works with.
type Node struct {
	Tag      string
	Name     string
	Loc      string
	Dir      string
	Attrs    map[string]string
	Children []*Node
}

// Decode reads a Verilator XML document into a Node tree and returns
// the root element.
func Decode(r io.Reader) (*Node, error) {
	dec := xml.NewDecoder(r)

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decoding xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Tag: t.Name.Local}
			for _, a := range t.Attr {
				switch a.Name.Local {
				case "name":
					n.Name = a.Value
				case "loc":
					n.Loc = a.Value
				case "dir":
					n.Dir = a.Value
				case "direction":
					// Older frontend versions spell the attribute out.
					if n.Dir == "" {
						n.Dir = a.Value
					}
				default:
					if n.Attrs == nil {
						n.Attrs = make(map[string]string)
					}
					n.Attrs[a.Name.Local] = a.Value
				}
			}
			if len(stack) == 0 {
				if root == nil {
					root = n
				}
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("decoding xml: document contains no elements")
	}
	return root, nil
}

// Line extracts the source line from a loc attribute of the form
// "file,line,col,endline,endcol". Malformed locators report line 0.
func Line(loc string) int {
	parts := strings.Split(loc, ",")
	if len(parts) < 2 {
		return 0
	}
	n, err := strconv.Atoi(parts[1])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Child returns the first direct child with the given tag, or nil.
func (n *Node) Child(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

// Find returns the first descendant with the given tag in document
// order, or nil. The receiver itself is not considered.
func (n *Node) Find(tag string) *Node {
	for _, c := range n.Children {
		if c.Tag == tag {
			return c
		}
		if d := c.Find(tag); d != nil {
			return d
		}
	}
	return nil
}

// FindAll returns every descendant with the given tag in document order.
func (n *Node) FindAll(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
		out = append(out, c.FindAll(tag)...)
	}
	return out
}
