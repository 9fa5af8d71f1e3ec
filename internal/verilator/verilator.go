// Package verilator drives the external Verilator frontend to produce
// the XML AST the decoder consumes.
package verilator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
)

// ResolveBinary locates the verilator executable. The
// RTL_GRAPH_VERILATOR environment variable wins, then the configured
// path, then PATH.
func ResolveBinary(configured string) (string, error) {
	if env := os.Getenv("RTL_GRAPH_VERILATOR"); env != "" {
		return env, nil
	}
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath("verilator")
	if err != nil {
		return "", fmt.Errorf("'verilator' not found: install Verilator or set RTL_GRAPH_VERILATOR")
	}
	return path, nil
}

// GenerateXML runs one Verilator invocation over the source files,
// writing the AST XML to outPath. All files go through a single run so
// cross-file references resolve inside Verilator.
func GenerateXML(ctx context.Context, binary string, files []string, top string, extraArgs []string, outPath string) error {
	args := []string{"--xml-only", "--xml-output", outPath, "-Wno-fatal"}
	if top != "" {
		args = append(args, "--top-module", top)
	}
	args = append(args, extraArgs...)
	args = append(args, files...)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("verilator failed: %w\n%s%s", err, stderr.String(), stdout.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		return fmt.Errorf("verilator reported success but wrote no AST: %w", err)
	}
	return nil
}
