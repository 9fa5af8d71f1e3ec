// =============================================================================
// RTL Graph Converter - Main Entry Point
// =============================================================================
//
// This tool turns a Verilog design into hierarchical graphs: an
// architecture graph per module showing blocks, instances and port
// groups, plus a control/data-flow detail graph per procedural block.
//
// THE PIPELINE:
//   1. Verilator parses the sources and emits its AST as XML
//   2. Decoder lowers the XML into a typed design model
//   3. GraphBuilder classifies blocks and resolves signal connections
//   4. CUE Validator enforces the document contract (crash on mismatch)
//   5. OPA evaluates graph checks against the exported document
//   6. Renderer writes DOT and drives Graphviz
//
// WHEN INVESTIGATING A WRONG GRAPH:
//   Start at the beginning of the pipeline, not the end!
//   Frontend issues → Lowering issues → Builder issues
//
// See: DESIGN.md for the complete architecture.
// =============================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/config"
	"github.com/robert-at-pretension-io/rtl-graph/internal/pipeline"
)

var validFormats = map[string]bool{"svg": true, "png": true, "pdf": true, "dot": true}
var validEngines = map[string]bool{"dot": true, "fdp": true, "neato": true, "circo": true, "twopi": true}

type cliOptions struct {
	verbose        bool
	progress       bool
	trace          bool
	jsonOutput     bool
	timing         bool
	timingPath     string
	configPath     string
	top            string
	format         string
	layoutEngine   string
	outputBase     string
	noRender       bool
	keepDOT        bool
	noInterCluster bool
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit()
		return
	case "-h", "--help", "help":
		printUsage()
		return
	}

	opts, inputs, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	run(opts, inputs)
}

func parseArgs(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	var inputs []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-v", "--verbose":
			opts.verbose = true
		case "--progress":
			opts.progress = true
		case "--trace":
			opts.trace = true
		case "--json":
			opts.jsonOutput = true
		case "--timing":
			opts.timing = true
		case "--no-render":
			opts.noRender = true
		case "--keep-dot":
			opts.keepDOT = true
		case "--no-inter-cluster-dfg":
			opts.noInterCluster = true
		case "-c", "--config":
			val, err := flagValue(args, &i, arg)
			if err != nil {
				return opts, nil, err
			}
			opts.configPath = val
		case "-t", "--top":
			val, err := flagValue(args, &i, arg)
			if err != nil {
				return opts, nil, err
			}
			opts.top = val
		case "-f", "--format":
			val, err := flagValue(args, &i, arg)
			if err != nil {
				return opts, nil, err
			}
			if !validFormats[val] {
				return opts, nil, fmt.Errorf("unsupported format %q: expected svg, png, pdf or dot", val)
			}
			opts.format = val
		case "--layout-engine":
			val, err := flagValue(args, &i, arg)
			if err != nil {
				return opts, nil, err
			}
			if !validEngines[val] {
				return opts, nil, fmt.Errorf("unsupported layout engine %q: expected dot, fdp, neato, circo or twopi", val)
			}
			opts.layoutEngine = val
		case "-o", "--output":
			val, err := flagValue(args, &i, arg)
			if err != nil {
				return opts, nil, err
			}
			opts.outputBase = val
		default:
			if strings.HasPrefix(arg, "--timing=") {
				opts.timing = true
				opts.timingPath = strings.TrimPrefix(arg, "--timing=")
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return opts, nil, fmt.Errorf("unknown option %s (see --help)", arg)
			}
			inputs = append(inputs, arg)
		}
	}
	return opts, inputs, nil
}

func flagValue(args []string, i *int, flag string) (string, error) {
	*i++
	if *i >= len(args) {
		return "", fmt.Errorf("%s requires an argument", flag)
	}
	return args[*i], nil
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: rtl-graph [command] [options] <file.v|file.sv|file.xml ...>

Commands:
  init                    Create a rtl_graph.json configuration file
  <files>                 Convert Verilog sources or Verilator XML ASTs

Options:
  -v, --verbose           Enable verbose output
      --progress          Stream per-module build progress
      --trace             Progress plus per-module graph summaries
      --json              Emit one JSON result document on stdout
      --timing[=path]     Write stage timings as JSONL (default: timing.jsonl)
  -c, --config <file>     Use an explicit config file
  -t, --top <module>      Top module passed to the frontend
  -f, --format <fmt>      Output format: svg, png, pdf or dot
      --layout-engine <engine>
                          Graphviz engine: dot, fdp, neato, circo or twopi
  -o, --output <base>     Output file stem (default: first input's name)
      --no-render         Stop after writing DOT files
      --keep-dot          Keep DOT text next to rendered images
      --no-inter-cluster-dfg
                          Drop data-flow edges that cross block boundaries
  -h, --help              Show this help message

Configuration:
  rtl-graph looks for configuration in:
    1. ./rtl_graph.json
    2. ./.rtl_graph.json
    3. ~/.config/rtl_graph/config.json

  Run 'rtl-graph init' to create a default configuration file.`)
}

func runInit() {
	configPath := "rtl_graph.json"

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Source file patterns and the top module")
	fmt.Println("  - Output directory, format and layout engine")
	fmt.Println("  - Ignored signals and check severities")
}

func run(opts cliOptions, inputs []string) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.LoadFile(opts.configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", opts.configPath, err)
			os.Exit(1)
		}
	} else {
		cfg, err = config.Load(".")
		if err != nil {
			fmt.Printf("Warning: Could not load config: %v (using defaults)\n", err)
			cfg = config.DefaultConfig()
		}
	}

	// CLI flags override the file
	if opts.top != "" {
		cfg.Top = opts.top
	}
	if opts.format != "" {
		cfg.Output.Format = opts.format
	}
	if opts.layoutEngine != "" {
		cfg.Output.LayoutEngine = opts.layoutEngine
	}
	if opts.noInterCluster {
		off := false
		cfg.Graph.InterClusterDFG = &off
	}

	p := pipeline.NewWithConfig(cfg)
	p.Verbose = opts.verbose
	p.Progress = opts.progress
	p.Trace = opts.trace
	p.JSONOutput = opts.jsonOutput
	p.Timing = opts.timing
	p.TimingPath = opts.timingPath
	p.NoRender = opts.noRender
	p.KeepDOT = opts.keepDOT
	p.OutputBase = opts.outputBase

	if err := p.Run(context.Background(), inputs); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
