package render

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const cacheManifestVersion = 1

type cacheEntry struct {
	ContentHash string `json:"content_hash"`
}

type cacheManifest struct {
	Version int                   `json:"version"`
	Entries map[string]cacheEntry `json:"entries"`
}

// renderCache skips Graphviz runs whose DOT input has not changed since
// the output file was last produced. Entries are keyed by output path.
type renderCache struct {
	dir      string
	manifest cacheManifest
}

func newRenderCache(dir string) *renderCache {
	return &renderCache{
		dir: dir,
		manifest: cacheManifest{
			Version: cacheManifestVersion,
			Entries: make(map[string]cacheEntry),
		},
	}
}

func (c *renderCache) manifestPath() string {
	return filepath.Join(c.dir, "manifest.json")
}

func (c *renderCache) Load() error {
	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("cache mkdir: %w", err)
	}
	data, err := os.ReadFile(c.manifestPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read cache manifest: %w", err)
	}
	var m cacheManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parse cache manifest: %w", err)
	}
	if m.Version != cacheManifestVersion {
		// Reset on version mismatch
		c.manifest = cacheManifest{Version: cacheManifestVersion, Entries: make(map[string]cacheEntry)}
		return nil
	}
	if m.Entries == nil {
		m.Entries = make(map[string]cacheEntry)
	}
	c.manifest = m
	return nil
}

func (c *renderCache) Save() error {
	return writeJSONAtomic(c.manifestPath(), c.manifest)
}

// Fresh reports whether the output at path was produced from DOT text
// with this hash and still exists on disk.
func (c *renderCache) Fresh(outPath, contentHash string) bool {
	entry, ok := c.manifest.Entries[outPath]
	if !ok || entry.ContentHash != contentHash {
		return false
	}
	if _, err := os.Stat(outPath); err != nil {
		return false
	}
	return true
}

func (c *renderCache) Put(outPath, contentHash string) {
	c.manifest.Entries[outPath] = cacheEntry{ContentHash: contentHash}
}

func hashText(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cache json: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.json")
	if err != nil {
		return fmt.Errorf("temp cache file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
