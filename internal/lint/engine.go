// Package lint evaluates OPA policies against the exported design document.
// The built-in rules cover structural smells the graphs make visible
// (multiple drivers, floating signals, blocks the classifier gave up on);
// projects extend them by pointing checks.rulesDir at their own .rego files.
package lint

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/open-policy-agent/opa/rego"

	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
)

//go:embed rules/*.rego
var builtinRules embed.FS

// Engine evaluates graph-check rules against design documents.
type Engine struct {
	queries map[string]rego.PreparedEvalQuery
}

// Finding is one rule hit, reported with module and signal context.
type Finding struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Module   string `json:"module"`
	Message  string `json:"message"`
	Signal   string `json:"signal,omitempty"`
}

// Report is the full evaluation result. Findings never fail a run; the
// summary feeds the pipeline's text and JSON output.
type Report struct {
	Findings []Finding `json:"findings"`
	Summary  Summary   `json:"summary"`
}

// Summary provides aggregate counts by severity.
type Summary struct {
	Total    int `json:"total"`
	Info     int `json:"info"`
	Warnings int `json:"warnings"`
	Errors   int `json:"errors"`
}

// New creates an engine from the embedded rules plus any .rego files in
// extraDir. An empty extraDir loads built-ins only.
func New(extraDir string) (*Engine, error) {
	entries, err := builtinRules.ReadDir("rules")
	if err != nil {
		return nil, fmt.Errorf("listing built-in rules: %w", err)
	}

	var modules []func(*rego.Rego)
	for _, entry := range entries {
		name := "rules/" + entry.Name()
		content, err := builtinRules.ReadFile(name)
		if err != nil {
			return nil, fmt.Errorf("reading built-in rule %s: %w", entry.Name(), err)
		}
		modules = append(modules, rego.Module(name, string(content)))
	}

	if extraDir != "" {
		files, err := filepath.Glob(filepath.Join(extraDir, "*.rego"))
		if err != nil {
			return nil, fmt.Errorf("finding rules in %s: %w", extraDir, err)
		}
		for _, f := range files {
			content, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", f, err)
			}
			modules = append(modules, rego.Module(f, string(content)))
		}
	}

	engine := &Engine{queries: make(map[string]rego.PreparedEvalQuery)}

	opts := append(modules, rego.Query("data.rtl.lint.all_findings"))
	query, err := rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing findings query: %w", err)
	}
	engine.queries["findings"] = query

	opts = append(modules, rego.Query("data.rtl.lint.summary"))
	query, err = rego.New(opts...).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("preparing summary query: %w", err)
	}
	engine.queries["summary"] = query

	return engine, nil
}

// Evaluate runs the rules against the document. Configured severities
// override rule defaults; severity "off" drops a rule entirely.
func (e *Engine) Evaluate(ctx context.Context, doc export.DesignDoc, rules map[string]string) (*Report, error) {
	if rules == nil {
		rules = map[string]string{}
	}
	input := map[string]interface{}{
		"doc":   doc,
		"rules": rules,
	}
	inputMap, err := structToMap(input)
	if err != nil {
		return nil, fmt.Errorf("converting input: %w", err)
	}

	report := &Report{Findings: []Finding{}}

	rs, err := e.queries["findings"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating findings: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		findings, ok := rs[0].Expressions[0].Value.([]interface{})
		if ok {
			for _, f := range findings {
				fmap, ok := f.(map[string]interface{})
				if !ok {
					continue
				}
				report.Findings = append(report.Findings, Finding{
					Rule:     getString(fmap, "rule"),
					Severity: getString(fmap, "severity"),
					Module:   getString(fmap, "module"),
					Message:  getString(fmap, "message"),
					Signal:   getString(fmap, "signal"),
				})
			}
		}
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Module != b.Module {
			return a.Module < b.Module
		}
		if a.Rule != b.Rule {
			return a.Rule < b.Rule
		}
		if a.Signal != b.Signal {
			return a.Signal < b.Signal
		}
		return a.Message < b.Message
	})

	rs, err = e.queries["summary"].Eval(ctx, rego.EvalInput(inputMap))
	if err != nil {
		return nil, fmt.Errorf("evaluating summary: %w", err)
	}
	if len(rs) > 0 && len(rs[0].Expressions) > 0 {
		smap, ok := rs[0].Expressions[0].Value.(map[string]interface{})
		if ok {
			report.Summary = Summary{
				Total:    getInt(smap, "total"),
				Info:     getInt(smap, "info"),
				Warnings: getInt(smap, "warnings"),
				Errors:   getInt(smap, "errors"),
			}
		}
	}

	return report, nil
}

// Helper functions
func structToMap(v interface{}) (map[string]interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	return result, err
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func getInt(m map[string]interface{}, key string) int {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case float64:
			return int(n)
		case json.Number:
			i, _ := n.Int64()
			return int(i)
		}
	}
	return 0
}
