package render

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ResolveDot locates the Graphviz dot binary. The RTL_GRAPH_DOT
// environment variable wins, then the configured path, then PATH.
func ResolveDot(configured string) (string, error) {
	if env := os.Getenv("RTL_GRAPH_DOT"); env != "" {
		return env, nil
	}
	if configured != "" {
		return configured, nil
	}
	path, err := exec.LookPath("dot")
	if err != nil {
		return "", fmt.Errorf("'dot' (Graphviz) not found: install Graphviz or set RTL_GRAPH_DOT")
	}
	return path, nil
}

// renderDOT runs the layout engine over one DOT document, writing the
// output file. Graphviz warnings on stderr are returned to the caller
// even when the render succeeds.
func renderDOT(ctx context.Context, dotBin, engine, format, dotSrc, outPath string) (string, error) {
	cmd := exec.CommandContext(ctx, dotBin, "-K"+engine, "-T"+format, "-o", outPath)
	cmd.Stdin = strings.NewReader(dotSrc)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("dot failed for %s: %w\n%s", outPath, err, stderr.String())
	}
	return strings.TrimSpace(stderr.String()), nil
}
