package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/config"
)

// sampleXML is a two-module design: top wires a continuous assignment
// into a clocked register and an instance of sub.
const sampleXML = `<verilator_xml>
<netlist>
  <module name="top" topModule="1" loc="d,1,1,1,10">
    <var name="clk" dir="input" loc="d,2,3,2,6"/>
    <var name="d" dir="input" loc="d,3,3,3,4"/>
    <var name="q" dir="output" loc="d,4,3,4,4"/>
    <var name="w" loc="d,5,3,5,4"/>
    <contassign loc="d,6,3,6,20"><varref name="d"/><varref name="w"/></contassign>
    <always loc="d,7,3,7,20">
      <sentree><senitem edgeType="POS"><varref name="clk"/></senitem></sentree>
      <begin>
        <assigndly loc="d,8,5,8,15"><varref name="w"/><varref name="q"/></assigndly>
      </begin>
    </always>
    <instance name="u_sub" defName="sub" loc="d,10,3,10,20">
      <port name="x" dir="in"><varref name="w"/></port>
    </instance>
  </module>
  <module name="sub" loc="s,1,1,1,10">
    <var name="x" dir="input" loc="s,2,3,2,4"/>
  </module>
</netlist>
</verilator_xml>`

func writeSampleXML(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soc.xml")
	if err := os.WriteFile(path, []byte(sampleXML), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	dir := t.TempDir()
	cfg.Output.Dir = filepath.Join(dir, "graphs")
	cfg.Output.Format = "dot"
	cfg.Cache.Dir = filepath.Join(dir, "cache")
	return cfg
}

func runForTest(t *testing.T, p *Pipeline, inputs []string) (string, error) {
	t.Helper()
	reader, writer, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe stdout: %v", err)
	}
	oldStdout := os.Stdout
	os.Stdout = writer

	runErr := p.Run(context.Background(), inputs)
	_ = writer.Close()
	os.Stdout = oldStdout

	output, err := io.ReadAll(reader)
	_ = reader.Close()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	return string(output), runErr
}

func TestRunFromXML(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithConfig(cfg)
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	for _, name := range []string{
		"soc_top_arch.dot",
		"soc_top_sub_0.dot",
		"soc_top_sub_1.dot",
		"soc_sub_arch.dot",
	} {
		if _, err := os.Stat(filepath.Join(cfg.Output.Dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "viewer.html")); !os.IsNotExist(err) {
		t.Error("viewer.html written for dot format")
	}

	if !strings.Contains(output, "Found 0 Verilog files, 1 AST files") {
		t.Errorf("missing resolve line in output:\n%s", output)
	}
	if !strings.Contains(output, "Decoded 2 modules") {
		t.Errorf("missing decode line in output:\n%s", output)
	}
	if !strings.Contains(output, "=== Rendered Graphs ===") || !strings.Contains(output, "✅") {
		t.Errorf("missing render report in output:\n%s", output)
	}
	if !strings.Contains(output, "=== Design Summary ===") {
		t.Errorf("missing design summary in output:\n%s", output)
	}
}

func TestRunJSONOutput(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithConfig(cfg)
	p.JSONOutput = true
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	var result RunResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		t.Fatalf("output is not one JSON document: %v\noutput:\n%s", err, output)
	}

	if result.Design != "soc" {
		t.Errorf("design = %q, want soc", result.Design)
	}
	want := DesignStats{Files: 1, Modules: 2, Blocks: 2, Instances: 1, Graphs: 4, Signals: 5}
	if diff := cmp.Diff(want, result.Stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if len(result.Findings) != 0 || result.Summary.Total != 0 {
		t.Errorf("clean design produced findings: %+v", result.Findings)
	}
	if len(result.Outputs) != 4 {
		t.Errorf("outputs = %d, want 4", len(result.Outputs))
	}
	if len(result.Modules) != 2 || result.Modules[0].Name != "top" {
		t.Fatalf("modules = %+v", result.Modules)
	}
	top := result.Modules[0]
	if top.Blocks != 2 || top.Instances != 1 || top.Nodes != 5 || top.Edges != 4 {
		t.Errorf("top counts = %+v", top)
	}
}

func TestRunProgressOutput(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithConfig(cfg)
	p.Progress = true
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	if !strings.Contains(output, "=== Build Progress ===") {
		t.Errorf("missing build progress banner:\n%s", output)
	}
	if !strings.Contains(output, "[1/2] top (") || !strings.Contains(output, "[2/2] sub (") {
		t.Errorf("missing per-module progress lines:\n%s", output)
	}
	if !strings.Contains(output, "=== Timing Summary ===") {
		t.Errorf("missing timing summary:\n%s", output)
	}
}

func TestRunVerboseSections(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithConfig(cfg)
	p.Verbose = true
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	if !strings.Contains(output, "=== Instantiation Hierarchy ===") {
		t.Errorf("missing hierarchy banner:\n%s", output)
	}
	if !strings.Contains(output, "level 1 (1): sub") {
		t.Errorf("missing fan-out level for sub:\n%s", output)
	}
	if !strings.Contains(output, "=== Verbose: Signal Registry ===") {
		t.Errorf("missing signal registry section:\n%s", output)
	}
	if !strings.Contains(output, "top.w: drivers=[0] receivers=[1 2]") {
		t.Errorf("missing registry line for w:\n%s", output)
	}
}

func TestRunTraceSummaries(t *testing.T) {
	cfg := testConfig(t)
	p := NewWithConfig(cfg)
	p.Trace = true
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	if !strings.Contains(output, "graphs: nodes=5 edges=4 clusters=1 details=2 signals=4") {
		t.Errorf("missing trace graph summary for top:\n%s", output)
	}
	if !strings.Contains(output, "instances: u_sub->sub") {
		t.Errorf("missing trace instance summary:\n%s", output)
	}
}

func TestRunCachedSecondPass(t *testing.T) {
	cfg := testConfig(t)
	xml := writeSampleXML(t)

	output, err := runForTest(t, NewWithConfig(cfg), []string{xml})
	if err != nil {
		t.Fatalf("first run: %v\noutput:\n%s", err, output)
	}
	if strings.Contains(output, "(cached)") {
		t.Fatalf("first run reported cached outputs:\n%s", output)
	}

	output, err = runForTest(t, NewWithConfig(cfg), []string{xml})
	if err != nil {
		t.Fatalf("second run: %v\noutput:\n%s", err, output)
	}
	if !strings.Contains(output, "(cached)") {
		t.Errorf("second run rendered from scratch:\n%s", output)
	}
}

func TestRunNoRenderForcesDOT(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output.Format = "svg"
	p := NewWithConfig(cfg)
	p.NoRender = true
	xml := writeSampleXML(t)

	output, err := runForTest(t, p, []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "soc_top_arch.dot")); err != nil {
		t.Errorf("missing DOT output: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Output.Dir, "viewer.html")); !os.IsNotExist(err) {
		t.Error("viewer.html written in no-render mode")
	}
}

func TestRunTimingJSONL(t *testing.T) {
	cfg := testConfig(t)
	timingPath := filepath.Join(t.TempDir(), "timing.jsonl")
	t.Setenv("RTL_GRAPH_TIMING_JSONL", timingPath)
	xml := writeSampleXML(t)

	output, err := runForTest(t, NewWithConfig(cfg), []string{xml})
	if err != nil {
		t.Fatalf("run: %v\noutput:\n%s", err, output)
	}

	data, err := os.ReadFile(timingPath)
	if err != nil {
		t.Fatalf("read timing file: %v", err)
	}
	stages := make(map[string]bool)
	kinds := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var event timingEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			t.Fatalf("bad JSONL line %q: %v", line, err)
		}
		if event.Kind == "stage" {
			stages[event.Phase] = true
		}
		kinds[event.Kind] = true
		if event.EndMS < event.StartMS {
			t.Errorf("event %+v ends before it starts", event)
		}
	}
	for _, phase := range []string{"resolve", "frontend", "decode", "build", "export", "validate", "checks", "render", "total"} {
		if !stages[phase] {
			t.Errorf("missing stage event %q in %s", phase, data)
		}
	}
	if !kinds["file"] {
		t.Error("no per-file events recorded")
	}
}

func TestRunRejectsUnknownInput(t *testing.T) {
	p := NewWithConfig(testConfig(t))
	_, err := runForTest(t, p, []string{"design.vhd"})
	if err == nil || !strings.Contains(err.Error(), "unsupported input") {
		t.Fatalf("err = %v, want unsupported input", err)
	}
}

func TestResolveInputsSplit(t *testing.T) {
	p := New()
	sources, astFiles, err := p.resolveInputs([]string{"a.v", "b.SV", "c.xml"})
	if err != nil {
		t.Fatalf("resolveInputs: %v", err)
	}
	if diff := cmp.Diff([]string{"a.v", "b.SV"}, sources); diff != "" {
		t.Errorf("sources mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"c.xml"}, astFiles); diff != "" {
		t.Errorf("ast files mismatch (-want +got):\n%s", diff)
	}
}

func TestDesignName(t *testing.T) {
	p := New()
	if got := p.designName([]string{filepath.Join("rtl", "soc.v")}, nil); got != "soc" {
		t.Errorf("designName = %q, want soc", got)
	}
	if got := p.designName(nil, []string{filepath.Join("build", "core.xml")}); got != "core" {
		t.Errorf("designName = %q, want core", got)
	}
	p.OutputBase = "chip"
	if got := p.designName([]string{"soc.v"}, nil); got != "chip" {
		t.Errorf("designName = %q, want chip", got)
	}
}

func TestResolveTimingPath(t *testing.T) {
	p := New()
	if got := p.resolveTimingPath(); got != "" {
		t.Errorf("path = %q, want empty", got)
	}

	p.Timing = true
	if got := p.resolveTimingPath(); got != "timing.jsonl" {
		t.Errorf("path = %q, want timing.jsonl", got)
	}
	p.TimingPath = filepath.Join("out", "t.jsonl")
	if got := p.resolveTimingPath(); got != p.TimingPath {
		t.Errorf("path = %q, want %q", got, p.TimingPath)
	}

	t.Setenv("RTL_GRAPH_TIMING_JSONL", "env.jsonl")
	if got := p.resolveTimingPath(); got != "env.jsonl" {
		t.Errorf("path = %q, env override lost", got)
	}
}

func TestResolveTimingPathEnvToggle(t *testing.T) {
	p := New()
	t.Setenv("RTL_GRAPH_TIMING", "yes")
	if got := p.resolveTimingPath(); got != "timing.jsonl" {
		t.Errorf("path = %q, want timing.jsonl", got)
	}
	t.Setenv("RTL_GRAPH_TIMING", "0")
	if got := p.resolveTimingPath(); got != "" {
		t.Errorf("path = %q, want empty", got)
	}
}

func TestInstanceFanout(t *testing.T) {
	d := &ast.Design{Modules: []*ast.Module{
		{Name: "top", Top: true, Items: []ast.Item{
			&ast.Instance{Name: "u_core", Module: "core"},
			&ast.Instance{Name: "u_io", Module: "io"},
		}},
		{Name: "core", Items: []ast.Item{
			&ast.Instance{Name: "u_alu", Module: "alu"},
		}},
		{Name: "io"},
		{Name: "alu"},
	}}
	children := buildInstanceGraph(d)

	if diff := cmp.Diff([]string{"top"}, rootModules(d, children)); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}

	report := computeFanout("top", children)
	want := fanoutReport{Root: "top", Levels: [][]string{{"core", "io"}, {"alu"}}}
	if diff := cmp.Diff(want, report); diff != "" {
		t.Errorf("fanout mismatch (-want +got):\n%s", diff)
	}

	text := formatFanoutReport(report)
	if !strings.Contains(text, "level 1 (2): core, io") || !strings.Contains(text, "level 2 (1): alu") {
		t.Errorf("report text = %q", text)
	}
}

func TestRootModulesWithoutTopMarker(t *testing.T) {
	d := &ast.Design{Modules: []*ast.Module{
		{Name: "a", Items: []ast.Item{&ast.Instance{Name: "u", Module: "b"}}},
		{Name: "b"},
	}}
	children := buildInstanceGraph(d)
	if diff := cmp.Diff([]string{"a"}, rootModules(d, children)); diff != "" {
		t.Errorf("roots mismatch (-want +got):\n%s", diff)
	}
}
