// Package pipeline runs the whole conversion: resolve inputs, invoke
// the Verilator frontend, decode and lower the AST, build the graph
// hierarchies, export the design document, validate it, run the graph
// checks, and render. Stages execute in order on one goroutine; every
// stage is recorded by the timing recorder, and non-fatal degradations
// accumulate into the final error instead of aborting the run.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/builder"
	"github.com/robert-at-pretension-io/rtl-graph/internal/config"
	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
	"github.com/robert-at-pretension-io/rtl-graph/internal/lint"
	"github.com/robert-at-pretension-io/rtl-graph/internal/render"
	"github.com/robert-at-pretension-io/rtl-graph/internal/validator"
	"github.com/robert-at-pretension-io/rtl-graph/internal/verilator"
)

// Pipeline drives a full run from input files to rendered graphs.
type Pipeline struct {
	// Configuration loaded from rtl_graph.json
	Config *config.Config

	// Verbose output
	Verbose bool

	// Progress output (lightweight, streaming)
	Progress bool

	// Trace output (progress + per-module graph summaries)
	Trace bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string

	// Stop after writing DOT text, skipping Graphviz
	NoRender bool

	// Keep the DOT text next to rendered images
	KeepDOT bool

	// OutputBase overrides the file stem derived from the first input
	OutputBase string
}

// RunResult is the structured result of one run.
// This can be serialized to JSON for programmatic consumption.
type RunResult struct {
	// Design name used as the output file stem
	Design string `json:"design"`

	// Graph-check findings
	Findings []lint.Finding `json:"findings"`

	// Summary counts by severity
	Summary ResultSummary `json:"summary"`

	// Decode and build statistics
	Stats DesignStats `json:"stats"`

	// Per-module breakdown
	Modules []ModuleResult `json:"modules"`

	// Written graph files
	Outputs []render.Output `json:"outputs"`

	// Non-fatal degradations encountered along the way
	Errors []string `json:"errors,omitempty"`
}

// ResultSummary provides aggregate finding counts.
type ResultSummary struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// DesignStats provides counts of decoded and built elements.
type DesignStats struct {
	Files     int `json:"files"`
	Modules   int `json:"modules"`
	Blocks    int `json:"blocks"`
	Instances int `json:"instances"`
	Graphs    int `json:"graphs"`
	Signals   int `json:"signals"`
}

// ModuleResult provides per-module graph counts.
type ModuleResult struct {
	Name      string `json:"name"`
	Blocks    int    `json:"blocks"`
	Instances int    `json:"instances"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	Signals   int    `json:"signals"`
}

// New creates a Pipeline with default configuration.
func New() *Pipeline {
	return &Pipeline{Config: config.DefaultConfig()}
}

// NewWithConfig creates a Pipeline with the given configuration.
func NewWithConfig(cfg *config.Config) *Pipeline {
	return &Pipeline{Config: cfg}
}

// Run executes the pipeline over the given inputs. Verilog sources go
// through one shared frontend invocation; .xml inputs decode directly.
func (p *Pipeline) Run(ctx context.Context, inputs []string) error {
	runStart := time.Now()
	pipelineErrs := make([]error, 0)
	recordPipelineErr := func(err error) {
		pipelineErrs = append(pipelineErrs, err)
	}

	// 0. Load configuration if not already loaded
	if p.Config == nil {
		cfg, err := config.Load(".")
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		p.Config = cfg
	}

	timing := newTimingRecorder(runStart, p.resolveTimingPath())
	if err := timing.Err(); err != nil {
		recordPipelineErr(fmt.Errorf("timing output disabled: %w", err))
	}
	defer timing.Close()

	progressEnabled := (p.Verbose || p.Progress || p.Trace) && !p.JSONOutput

	// 1. Resolve the input file list
	stepStart := time.Now()
	sources, astFiles, err := p.resolveInputs(inputs)
	if err != nil {
		return err
	}
	if len(sources) == 0 && len(astFiles) == 0 {
		return fmt.Errorf("no input files: pass Verilog sources or configure file patterns")
	}
	if !p.JSONOutput {
		fmt.Printf("Found %d Verilog files, %d AST files\n", len(sources), len(astFiles))
	}
	base := p.designName(sources, astFiles)
	resolveDuration := time.Since(stepStart)
	timing.RecordStage("resolve", stepStart, resolveDuration, "")

	// 2. Frontend: one Verilator run covers every source file so
	// cross-file references resolve.
	stepStart = time.Now()
	xmlPaths := append([]string{}, astFiles...)
	frontendStatus := "skipped"
	if len(sources) > 0 {
		bin, err := verilator.ResolveBinary(p.Config.Verilator.Binary)
		if err != nil {
			return err
		}
		tmp, err := os.CreateTemp("", "rtl-graph-*.xml")
		if err != nil {
			return fmt.Errorf("frontend temp file: %w", err)
		}
		tmpPath := tmp.Name()
		_ = tmp.Close()
		defer os.Remove(tmpPath)

		fileStart := time.Now()
		if err := verilator.GenerateXML(ctx, bin, sources, p.Config.Top, p.Config.Verilator.ExtraArgs, tmpPath); err != nil {
			return err
		}
		timing.RecordFile("frontend", tmpPath, "generated", fileStart, time.Since(fileStart))
		xmlPaths = append(xmlPaths, tmpPath)
		frontendStatus = ""
	}
	frontendDuration := time.Since(stepStart)
	timing.RecordStage("frontend", stepStart, frontendDuration, frontendStatus)

	// 3. Decode each AST and merge the lowered modules
	stepStart = time.Now()
	design := &ast.Design{}
	for _, path := range xmlPaths {
		fileStart := time.Now()
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		root, decErr := ast.Decode(f)
		_ = f.Close()
		if decErr != nil {
			return fmt.Errorf("decode %s: %w", path, decErr)
		}
		lowered := ast.LowerDesign(root)
		design.Modules = append(design.Modules, lowered.Modules...)
		timing.RecordFile("decode", path, "decoded", fileStart, time.Since(fileStart))
	}
	if !p.JSONOutput {
		fmt.Printf("Decoded %d modules\n", len(design.Modules))
	}
	decodeDuration := time.Since(stepStart)
	timing.RecordStage("decode", stepStart, decodeDuration, "")

	// 4. Build one hierarchy per module. One module per Build call so
	// progress streams as modules finish.
	stepStart = time.Now()
	b := builder.New(builder.Options{IgnoreSignals: p.Config.Graph.IgnoreSignals})
	if progressEnabled {
		fmt.Printf("\n=== Build Progress ===\n")
	}
	hierarchies := make([]*graph.Hierarchy, 0, len(design.Modules))
	for i, mod := range design.Modules {
		moduleStart := time.Now()
		built := b.Build(&ast.Design{Modules: []*ast.Module{mod}})
		hierarchies = append(hierarchies, built...)
		moduleDuration := time.Since(moduleStart)
		timing.RecordFile("build", mod.Name, "built", moduleStart, moduleDuration)
		if progressEnabled && len(built) > 0 {
			h := built[len(built)-1]
			fmt.Printf("  [%d/%d] %s (%d blocks, %d instances, %d edges, %s)\n",
				i+1, len(design.Modules), mod.Name, len(h.Order),
				len(h.Architecture.ModuleLinks), len(h.Architecture.Edges),
				formatDuration(moduleDuration))
			if p.Trace {
				for _, line := range formatModuleSummary(h) {
					fmt.Printf("    %s\n", line)
				}
			}
		}
	}
	buildDuration := time.Since(stepStart)
	timing.RecordStage("build", stepStart, buildDuration, "")

	// Verbose output for debugging
	if p.Verbose && !p.JSONOutput {
		children := buildInstanceGraph(design)
		if roots := rootModules(design, children); len(roots) > 0 {
			fmt.Printf("\n=== Instantiation Hierarchy ===\n")
			for _, root := range roots {
				fmt.Print(formatFanoutReport(computeFanout(root, children)))
			}
		}

		fmt.Printf("\n=== Verbose: Architecture Nodes ===\n")
		for _, h := range hierarchies {
			for _, n := range h.Architecture.Nodes {
				fmt.Printf("  %s[%d]: %s\n", h.Module, n.ID, firstLine(n.Label))
			}
		}
		fmt.Printf("\n=== Verbose: Signal Registry ===\n")
		for _, h := range hierarchies {
			for _, name := range h.Signals.Signals() {
				var drivers, receivers, inouts []int
				for _, bind := range h.Signals.Bindings(name) {
					switch bind.Dir {
					case graph.Driver:
						drivers = append(drivers, bind.Node)
					case graph.Receiver:
						receivers = append(receivers, bind.Node)
					default:
						inouts = append(inouts, bind.Node)
					}
				}
				fmt.Printf("  %s.%s: drivers=%v receivers=%v inouts=%v\n",
					h.Module, name, drivers, receivers, inouts)
			}
		}
		fmt.Printf("\n=== Verbose: Detail Graphs ===\n")
		for _, h := range hierarchies {
			for _, key := range h.Order {
				d := h.Details[key]
				fmt.Printf("  %s.%s: nodes=%d edges=%d defs=%d dfg_edges=%d\n",
					h.Module, key, len(d.Nodes), len(d.Edges), len(d.NodeDefs), len(d.DFGEdges))
			}
		}
	}

	// 5. Export the design document
	stepStart = time.Now()
	doc := export.BuildDesign(base, hierarchies)
	exportDuration := time.Since(stepStart)
	timing.RecordStage("export", stepStart, exportDuration, "")

	// 6. Validate the document before anything consumes it (CUE
	// contract enforcement)
	stepStart = time.Now()
	v, err := validator.New()
	if err != nil {
		return fmt.Errorf("CRITICAL: Failed to initialize design validator: %w", err)
	}
	if err := v.Validate(doc); err != nil {
		if !p.JSONOutput {
			fmt.Printf("\n=== Contract Violations ===\n")
			for _, msg := range v.ValidationErrors(doc) {
				fmt.Printf("  ✗ %s\n", msg)
			}
		}
		return fmt.Errorf("CRITICAL: Design contract violation (builder -> consumers mismatch): %w", err)
	}
	validateDuration := time.Since(stepStart)
	timing.RecordStage("validate", stepStart, validateDuration, "")

	// 7. Graph checks
	stepStart = time.Now()
	engine, err := lint.New(p.Config.Checks.RulesDir)
	if err != nil {
		return fmt.Errorf("initialize graph checks: %w", err)
	}
	report, err := engine.Evaluate(ctx, doc, p.Config.Checks.Rules)
	if err != nil {
		return fmt.Errorf("graph check evaluation failed: %w", err)
	}
	fv, err := validator.NewFindingsValidator()
	if err != nil {
		return fmt.Errorf("CRITICAL: Failed to initialize findings validator: %w", err)
	}
	if err := fv.Validate(report); err != nil {
		return fmt.Errorf("CRITICAL: Findings contract violation: %w", err)
	}
	checksDuration := time.Since(stepStart)
	timing.RecordStage("checks", stepStart, checksDuration, "")

	// 8. Render every graph
	stepStart = time.Now()
	format := p.Config.Output.Format
	renderStatus := ""
	if p.NoRender {
		format = "dot"
		renderStatus = "dot_only"
	}
	opts := render.Options{
		OutDir:          p.Config.Output.Dir,
		Base:            base,
		Format:          format,
		LayoutEngine:    p.Config.Output.LayoutEngine,
		KeepDOT:         p.KeepDOT,
		InterClusterDFG: p.Config.InterClusterDFG(),
	}
	if p.Config.CacheEnabled() {
		opts.CacheDir = p.Config.Cache.Dir
	}
	renderer, err := render.New(opts)
	if err != nil {
		return err
	}
	outputs, renderErrs := renderer.RenderDesign(ctx, doc)
	for _, rerr := range renderErrs {
		recordPipelineErr(rerr)
	}
	renderDuration := time.Since(stepStart)
	timing.RecordStage("render", stepStart, renderDuration, renderStatus)

	// 9. Summarize
	result := RunResult{
		Design:   base,
		Findings: report.Findings,
		Summary: ResultSummary{
			Total:    report.Summary.Total,
			Errors:   report.Summary.Errors,
			Warnings: report.Summary.Warnings,
			Info:     report.Summary.Info,
		},
		Stats: DesignStats{
			Files:   len(sources) + len(astFiles),
			Modules: len(hierarchies),
		},
		Modules: []ModuleResult{},
		Outputs: outputs,
	}
	for _, h := range hierarchies {
		signals := h.Signals.Signals()
		result.Stats.Blocks += len(h.Order)
		result.Stats.Instances += len(h.Architecture.ModuleLinks)
		result.Stats.Graphs += 1 + len(h.Order)
		result.Stats.Signals += len(signals)
		result.Modules = append(result.Modules, ModuleResult{
			Name:      h.Module,
			Blocks:    len(h.Order),
			Instances: len(h.Architecture.ModuleLinks),
			Nodes:     len(h.Architecture.Nodes),
			Edges:     len(h.Architecture.Edges),
			Signals:   len(signals),
		})
	}
	for _, perr := range pipelineErrs {
		result.Errors = append(result.Errors, perr.Error())
	}

	if p.JSONOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		if len(report.Findings) > 0 {
			fmt.Printf("\n=== Graph Checks ===\n")
			for _, f := range report.Findings {
				icon := "ℹ"
				if f.Severity == "error" {
					icon = "✗"
				} else if f.Severity == "warning" {
					icon = "⚠"
				}
				fmt.Printf("%s [%s] %s - %s\n", icon, f.Rule, f.Module, f.Message)
			}
		}

		fmt.Printf("\n=== Rendered Graphs ===\n")
		for _, out := range outputs {
			if out.Cached {
				fmt.Printf("  ✅ %s (cached)\n", out.Path)
			} else {
				fmt.Printf("  ✅ %s\n", out.Path)
			}
			if out.Warnings != "" {
				fmt.Printf("  ⚠ %s\n", out.Warnings)
			}
		}

		fmt.Printf("\n=== Check Summary ===\n")
		fmt.Printf("  Errors:   %d\n", result.Summary.Errors)
		fmt.Printf("  Warnings: %d\n", result.Summary.Warnings)
		fmt.Printf("  Info:     %d\n", result.Summary.Info)

		fmt.Printf("\n=== Design Summary ===\n")
		fmt.Printf("  Files:     %d\n", result.Stats.Files)
		fmt.Printf("  Modules:   %d\n", result.Stats.Modules)
		fmt.Printf("  Blocks:    %d\n", result.Stats.Blocks)
		fmt.Printf("  Instances: %d\n", result.Stats.Instances)
		fmt.Printf("  Graphs:    %d\n", result.Stats.Graphs)
		fmt.Printf("  Signals:   %d\n", result.Stats.Signals)
	}

	if progressEnabled {
		fmt.Printf("\n=== Timing Summary ===\n")
		fmt.Printf("  resolve:  %s\n", formatDuration(resolveDuration))
		fmt.Printf("  frontend: %s\n", formatDuration(frontendDuration))
		fmt.Printf("  decode:   %s\n", formatDuration(decodeDuration))
		fmt.Printf("  build:    %s\n", formatDuration(buildDuration))
		fmt.Printf("  export:   %s\n", formatDuration(exportDuration))
		fmt.Printf("  validate: %s\n", formatDuration(validateDuration))
		fmt.Printf("  checks:   %s\n", formatDuration(checksDuration))
		fmt.Printf("  render:   %s\n", formatDuration(renderDuration))
		fmt.Printf("  total:    %s\n", formatDuration(time.Since(runStart)))
	}
	timing.RecordStage("total", runStart, time.Since(runStart), "")

	if len(pipelineErrs) > 0 {
		return fmt.Errorf("pipeline errors:\n%s", formatPipelineErrors(pipelineErrs))
	}
	return nil
}

// resolveInputs splits explicit arguments into Verilog sources and
// ready-made AST files. With no arguments the configured file patterns
// resolve against the working directory.
func (p *Pipeline) resolveInputs(inputs []string) (sources, astFiles []string, err error) {
	if len(inputs) == 0 {
		files, err := p.Config.ResolveFiles(".")
		if err != nil {
			return nil, nil, fmt.Errorf("resolving file patterns: %w", err)
		}
		return files, nil, nil
	}
	for _, in := range inputs {
		switch strings.ToLower(filepath.Ext(in)) {
		case ".v", ".sv":
			sources = append(sources, in)
		case ".xml":
			astFiles = append(astFiles, in)
		default:
			return nil, nil, fmt.Errorf("unsupported input %s: expected .v, .sv or .xml", in)
		}
	}
	return sources, astFiles, nil
}

// designName picks the output file stem: the explicit override, else
// the first input's base name.
func (p *Pipeline) designName(sources, astFiles []string) string {
	if p.OutputBase != "" {
		return p.OutputBase
	}
	first := ""
	if len(sources) > 0 {
		first = sources[0]
	} else if len(astFiles) > 0 {
		first = astFiles[0]
	}
	if first == "" {
		return "design"
	}
	stem := filepath.Base(first)
	return strings.TrimSuffix(stem, filepath.Ext(stem))
}

func formatPipelineErrors(errs []error) string {
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func envBool(key string) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return val == "1" || val == "true" || val == "yes" || val == "on"
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	case d < time.Minute:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%.2fm", d.Minutes())
	default:
		return fmt.Sprintf("%.2fh", d.Hours())
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// formatModuleSummary produces the trace lines shown under a module's
// progress entry.
func formatModuleSummary(h *graph.Hierarchy) []string {
	lines := []string{
		fmt.Sprintf("graphs: nodes=%d edges=%d clusters=%d details=%d signals=%d",
			len(h.Architecture.Nodes), len(h.Architecture.Edges), len(h.Architecture.Clusters),
			len(h.Order), len(h.Signals.Signals())),
	}
	if names := summarizeList(h.Signals.Signals(), 6); names != "" {
		lines = append(lines, "signals: "+names)
	}
	if names := summarizeInstances(h, 4); names != "" {
		lines = append(lines, "instances: "+names)
	}
	return lines
}

func summarizeInstances(h *graph.Hierarchy, max int) string {
	var names []string
	for id, module := range h.Architecture.ModuleLinks {
		label := ""
		if id >= 0 && id < len(h.Architecture.Nodes) {
			label = firstLine(h.Architecture.Nodes[id].Label)
		}
		if label == "" {
			names = append(names, module)
			continue
		}
		names = append(names, fmt.Sprintf("%s->%s", label, module))
	}
	return summarizeList(names, max)
}

func summarizeList(items []string, max int) string {
	if len(items) == 0 {
		return ""
	}
	sort.Strings(items)
	if len(items) > max {
		return fmt.Sprintf("%s, ... (+%d more)", strings.Join(items[:max], ", "), len(items)-max)
	}
	return strings.Join(items, ", ")
}
