package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
)

// instanceGraph maps a module name to the set of module types it
// instantiates.
type instanceGraph map[string]map[string]bool

func buildInstanceGraph(d *ast.Design) instanceGraph {
	g := make(instanceGraph)
	for _, mod := range d.Modules {
		for _, item := range mod.Items {
			inst, ok := item.(*ast.Instance)
			if !ok {
				continue
			}
			if inst.Module == "" || inst.Module == mod.Name {
				continue
			}
			if g[mod.Name] == nil {
				g[mod.Name] = make(map[string]bool)
			}
			g[mod.Name][inst.Module] = true
		}
	}
	return g
}

// rootModules picks the starting points for the fan-out report: modules
// the frontend marked as top, else modules nothing instantiates.
func rootModules(d *ast.Design, g instanceGraph) []string {
	var roots []string
	for _, mod := range d.Modules {
		if mod.Top {
			roots = append(roots, mod.Name)
		}
	}
	if len(roots) == 0 {
		instantiated := make(map[string]bool)
		for _, children := range g {
			for child := range children {
				instantiated[child] = true
			}
		}
		for _, mod := range d.Modules {
			if !instantiated[mod.Name] {
				roots = append(roots, mod.Name)
			}
		}
	}
	sort.Strings(roots)
	return roots
}

type fanoutReport struct {
	Root   string
	Levels [][]string
}

func computeFanout(root string, children instanceGraph) fanoutReport {
	visited := map[string]bool{root: true}
	frontier := []string{root}
	var levels [][]string

	for len(frontier) > 0 {
		var next []string
		for _, f := range frontier {
			for child := range children[f] {
				if visited[child] {
					continue
				}
				visited[child] = true
				next = append(next, child)
			}
		}
		if len(next) == 0 {
			break
		}
		sort.Strings(next)
		levels = append(levels, next)
		frontier = next
	}

	return fanoutReport{Root: root, Levels: levels}
}

func formatFanoutReport(report fanoutReport) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("  %s\n", report.Root))
	for i, level := range report.Levels {
		b.WriteString(fmt.Sprintf("    level %d (%d): %s\n", i+1, len(level), strings.Join(level, ", ")))
	}
	return b.String()
}
