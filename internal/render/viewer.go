package render

import (
	_ "embed"
	"os"
	"path/filepath"
)

//go:embed viewer.html
var viewerHTML []byte

// writeViewer drops the static viewer page into the output directory so
// the URL attributes baked into the graphs resolve.
func writeViewer(dir string) error {
	return os.WriteFile(filepath.Join(dir, "viewer.html"), viewerHTML, 0o644)
}
