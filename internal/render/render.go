// Package render turns exported design documents into Graphviz DOT text
// and rendered image files. It owns all presentation syntax: node
// styling, viewer links, the dot subprocess, and the content-hash cache
// that skips unchanged graphs.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/robert-at-pretension-io/rtl-graph/internal/export"
)

// Options configure one renderer.
type Options struct {
	OutDir          string
	Base            string
	Format          string // svg, png, pdf or dot
	LayoutEngine    string
	DotBinary       string // empty resolves RTL_GRAPH_DOT, then PATH
	KeepDOT         bool
	InterClusterDFG bool
	CacheDir        string // empty disables the render cache
}

// Output describes one written graph file.
type Output struct {
	Module   string `json:"module"`
	Graph    string `json:"graph"`
	Path     string `json:"path"`
	Cached   bool   `json:"cached"`
	Warnings string `json:"warnings,omitempty"`
}

// Renderer writes every graph of a design document.
type Renderer struct {
	opts   Options
	dotBin string
	cache  *renderCache
}

// New prepares the output directory, resolves the layout binary and
// loads the render cache. Format "dot" needs no Graphviz install.
func New(opts Options) (*Renderer, error) {
	if opts.Format == "" {
		opts.Format = "svg"
	}
	if opts.LayoutEngine == "" {
		opts.LayoutEngine = "dot"
	}
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("output dir: %w", err)
	}

	r := &Renderer{opts: opts}
	if opts.Format != "dot" {
		bin, err := ResolveDot(opts.DotBinary)
		if err != nil {
			return nil, err
		}
		r.dotBin = bin
	}
	if opts.CacheDir != "" {
		r.cache = newRenderCache(opts.CacheDir)
		if err := r.cache.Load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// RenderDesign writes the architecture and detail graphs of every
// module, the architecture first. Failures are collected per graph so
// one bad render does not abort the rest of the design.
func (r *Renderer) RenderDesign(ctx context.Context, doc export.DesignDoc) ([]Output, []error) {
	outputs := []Output{}
	var errs []error

	if r.opts.Format != "dot" {
		if err := writeViewer(r.opts.OutDir); err != nil {
			errs = append(errs, fmt.Errorf("write viewer: %w", err))
		}
	}

	for _, mod := range doc.Modules {
		keys := append([]string{"arch"}, sortedDetailKeys(mod.Details)...)
		for _, key := range keys {
			g := mod.Architecture
			if key != "arch" {
				g = mod.Details[key]
			}
			out, err := r.renderGraph(ctx, mod.Name, key, g)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			outputs = append(outputs, out)
		}
	}

	if r.cache != nil {
		if err := r.cache.Save(); err != nil {
			errs = append(errs, err)
		}
	}
	return outputs, errs
}

func (r *Renderer) renderGraph(ctx context.Context, module, key string, g export.GraphDoc) (Output, error) {
	dotSrc := GraphDOT(g, DOTOptions{
		Base:            r.opts.Base,
		Module:          module,
		Format:          r.opts.Format,
		InterClusterDFG: r.opts.InterClusterDFG,
	})
	stem := fmt.Sprintf("%s_%s_%s", r.opts.Base, module, key)
	outPath := filepath.Join(r.opts.OutDir, stem+"."+r.opts.Format)
	out := Output{Module: module, Graph: key, Path: outPath}

	if r.opts.KeepDOT && r.opts.Format != "dot" {
		if err := os.WriteFile(filepath.Join(r.opts.OutDir, stem+".dot"), []byte(dotSrc), 0o644); err != nil {
			return out, fmt.Errorf("write %s.dot: %w", stem, err)
		}
	}

	hash := hashText(dotSrc)
	if r.cache != nil && r.cache.Fresh(outPath, hash) {
		out.Cached = true
		return out, nil
	}

	if r.opts.Format == "dot" {
		if err := os.WriteFile(outPath, []byte(dotSrc), 0o644); err != nil {
			return out, fmt.Errorf("write %s: %w", outPath, err)
		}
	} else {
		warnings, err := renderDOT(ctx, r.dotBin, r.opts.LayoutEngine, r.opts.Format, dotSrc, outPath)
		if err != nil {
			return out, err
		}
		out.Warnings = warnings
	}
	if r.cache != nil {
		r.cache.Put(outPath, hash)
	}
	return out, nil
}

// sortedDetailKeys orders detail graphs by their numeric suffix so
// sub_10 follows sub_9 rather than sub_1.
func sortedDetailKeys(details map[string]export.GraphDoc) []string {
	keys := make([]string, 0, len(details))
	for key := range details {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		an, aerr := strconv.Atoi(a[strings.LastIndex(a, "_")+1:])
		bn, berr := strconv.Atoi(b[strings.LastIndex(b, "_")+1:])
		if aerr == nil && berr == nil && an != bn {
			return an < bn
		}
		return a < b
	})
	return keys
}
