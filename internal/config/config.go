package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the top-level configuration for rtl-graph
type Config struct {
	// Top is the design's top module name; empty lets Verilator pick
	Top string `json:"top,omitempty"`

	// Files is a list of glob patterns for HDL sources, resolved
	// relative to the input root; ** recurses
	Files []string `json:"files,omitempty"`

	// Output controls where and how graphs are written
	Output OutputConfig `json:"output,omitempty"`

	// Graph contains graph construction options
	Graph GraphConfig `json:"graph,omitempty"`

	// Checks contains graph check configuration
	Checks ChecksConfig `json:"checks,omitempty"`

	// Cache controls render cache behavior
	Cache CacheConfig `json:"cache,omitempty"`

	// Verilator contains frontend invocation options
	Verilator VerilatorConfig `json:"verilator,omitempty"`
}

// OutputConfig controls rendered output
type OutputConfig struct {
	// Dir is the output directory (relative to the working directory if not absolute)
	Dir string `json:"dir,omitempty"`

	// Format is the rendered format: "svg", "png", "pdf" or "dot"
	Format string `json:"format,omitempty"`

	// LayoutEngine is the Graphviz engine: "dot", "fdp", "neato", "circo", "twopi"
	LayoutEngine string `json:"layoutEngine,omitempty"`
}

// GraphConfig contains graph construction options
type GraphConfig struct {
	// IgnoreSignals lists substring patterns of signal names never
	// wired by connection resolution (matched case-insensitively)
	IgnoreSignals []string `json:"ignoreSignals,omitempty"`

	// InterClusterDFG draws data-flow edges across cluster boundaries
	InterClusterDFG *bool `json:"interClusterDFG,omitempty"`
}

// ChecksConfig contains graph check configuration
type ChecksConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// RulesDir is an extra directory of rego rules loaded next to the built-ins
	RulesDir string `json:"rulesDir,omitempty"`
}

// CacheConfig controls render cache behavior
type CacheConfig struct {
	// Enabled turns on render cache usage
	Enabled *bool `json:"enabled,omitempty"`

	// Dir is the cache directory (relative to the working directory if not absolute)
	Dir string `json:"dir,omitempty"`
}

// VerilatorConfig contains frontend invocation options
type VerilatorConfig struct {
	// Binary overrides the verilator executable path
	Binary string `json:"binary,omitempty"`

	// ExtraArgs are appended to every frontend invocation
	ExtraArgs []string `json:"extraArgs,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		Files: []string{"*.v", "*.sv", "**/*.v", "**/*.sv"},
		Output: OutputConfig{
			Dir:          "rtl_graphs",
			Format:       "svg",
			LayoutEngine: "dot",
		},
		Graph: GraphConfig{
			IgnoreSignals:   []string{"clk", "clock", "rst", "reset"},
			InterClusterDFG: boolPtr(true),
		},
		Checks: ChecksConfig{
			Rules: map[string]string{},
		},
		Cache: CacheConfig{
			Enabled: boolPtr(true),
			Dir:     ".rtl_graph_cache",
		},
	}
}

func boolPtr(v bool) *bool {
	return &v
}

// Load finds and loads the configuration file
// Search order:
//  1. ./rtl_graph.json (current working directory)
//  2. ./.rtl_graph.json (current working directory)
//  3. <rootPath>/rtl_graph.json (if different from cwd)
//  4. ~/.config/rtl_graph/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	searchPaths := []string{
		filepath.Join(cwd, "rtl_graph.json"),
		filepath.Join(cwd, ".rtl_graph.json"),
	}

	// If rootPath is a directory and different from cwd, also check there
	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			searchPaths = append(searchPaths,
				filepath.Join(rootPath, "rtl_graph.json"),
				filepath.Join(rootPath, ".rtl_graph.json"),
			)
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "rtl_graph", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	// No config found, return defaults
	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if len(c.Files) == 0 {
		c.Files = []string{"*.v", "*.sv", "**/*.v", "**/*.sv"}
	}

	if c.Output.Dir == "" {
		c.Output.Dir = "rtl_graphs"
	}
	if c.Output.Format == "" {
		c.Output.Format = "svg"
	}
	if c.Output.LayoutEngine == "" {
		c.Output.LayoutEngine = "dot"
	}

	// An explicit empty list means "wire everything", so only nil
	// falls back to the clock/reset heuristics.
	if c.Graph.IgnoreSignals == nil {
		c.Graph.IgnoreSignals = []string{"clk", "clock", "rst", "reset"}
	}
	if c.Graph.InterClusterDFG == nil {
		c.Graph.InterClusterDFG = boolPtr(true)
	}

	if c.Checks.Rules == nil {
		c.Checks.Rules = make(map[string]string)
	}

	if c.Cache.Dir == "" {
		c.Cache.Dir = ".rtl_graph_cache"
	}
	if c.Cache.Enabled == nil {
		c.Cache.Enabled = boolPtr(true)
	}
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// CacheEnabled reports whether the render cache is on
func (c *Config) CacheEnabled() bool {
	return c.Cache.Enabled == nil || *c.Cache.Enabled
}

// InterClusterDFG reports whether data-flow edges may cross cluster boundaries
func (c *Config) InterClusterDFG() bool {
	return c.Graph.InterClusterDFG == nil || *c.Graph.InterClusterDFG
}
