package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/ast"
	"github.com/robert-at-pretension-io/rtl-graph/internal/builder"
	"github.com/robert-at-pretension-io/rtl-graph/internal/config"
	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
	"github.com/robert-at-pretension-io/rtl-graph/internal/graph"
	"github.com/robert-at-pretension-io/rtl-graph/internal/validator"
	"github.com/robert-at-pretension-io/rtl-graph/internal/verilator"
)

func main() {
	output := flag.String("output", "", "write design JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write design JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous design JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: rtl-export [--output file] [--delta-from prev.json --delta-out delta.json] <file.v|file.xml ...>")
		os.Exit(1)
	}

	cfg, err := config.Load(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	doc, err := buildDesign(context.Background(), cfg, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *output != "" {
		if err := writeJSON(*output, doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing design: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding design: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readDesign(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := export.ComputeDelta(prev, doc)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildDesign runs the front half of the pipeline: frontend for Verilog
// sources, decode, build, export, contract validation. Rendering and
// graph checks are the main tool's business.
func buildDesign(ctx context.Context, cfg *config.Config, inputs []string) (export.DesignDoc, error) {
	var sources, xmlPaths []string
	for _, in := range inputs {
		switch strings.ToLower(filepath.Ext(in)) {
		case ".v", ".sv":
			sources = append(sources, in)
		case ".xml":
			xmlPaths = append(xmlPaths, in)
		default:
			return export.DesignDoc{}, fmt.Errorf("unsupported input %s: expected .v, .sv or .xml", in)
		}
	}

	if len(sources) > 0 {
		bin, err := verilator.ResolveBinary(cfg.Verilator.Binary)
		if err != nil {
			return export.DesignDoc{}, err
		}
		tmp, err := os.CreateTemp("", "rtl-export-*.xml")
		if err != nil {
			return export.DesignDoc{}, fmt.Errorf("frontend temp file: %w", err)
		}
		tmpPath := tmp.Name()
		_ = tmp.Close()
		defer os.Remove(tmpPath)
		if err := verilator.GenerateXML(ctx, bin, sources, cfg.Top, cfg.Verilator.ExtraArgs, tmpPath); err != nil {
			return export.DesignDoc{}, err
		}
		xmlPaths = append(xmlPaths, tmpPath)
	}

	design := &ast.Design{}
	for _, path := range xmlPaths {
		f, err := os.Open(path)
		if err != nil {
			return export.DesignDoc{}, fmt.Errorf("open %s: %w", path, err)
		}
		root, decErr := ast.Decode(f)
		_ = f.Close()
		if decErr != nil {
			return export.DesignDoc{}, fmt.Errorf("decode %s: %w", path, decErr)
		}
		lowered := ast.LowerDesign(root)
		design.Modules = append(design.Modules, lowered.Modules...)
	}

	b := builder.New(builder.Options{IgnoreSignals: cfg.Graph.IgnoreSignals})
	var hierarchies []*graph.Hierarchy
	hierarchies = append(hierarchies, b.Build(design)...)

	stem := filepath.Base(inputs[0])
	doc := export.BuildDesign(strings.TrimSuffix(stem, filepath.Ext(stem)), hierarchies)

	v, err := validator.New()
	if err != nil {
		return export.DesignDoc{}, fmt.Errorf("CRITICAL: Failed to initialize design validator: %w", err)
	}
	if err := v.Validate(doc); err != nil {
		return export.DesignDoc{}, fmt.Errorf("CRITICAL: Design contract violation: %w", err)
	}
	return doc, nil
}

func readDesign(path string) (export.DesignDoc, error) {
	f, err := os.Open(path)
	if err != nil {
		return export.DesignDoc{}, err
	}
	defer func() { _ = f.Close() }()

	var doc export.DesignDoc
	if err := json.NewDecoder(f).Decode(&doc); err != nil {
		return export.DesignDoc{}, err
	}
	return doc, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
