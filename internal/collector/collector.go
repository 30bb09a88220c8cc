// Package collector walks a project tree and produces the ordered queue of
// indexable files, applying the inclusion/exclusion rules.
package collector

import (
	"os"
	"path/filepath"
	"strings"
)

// IndexDirName is the project-local directory holding semlens state; it is
// never indexed.
const IndexDirName = ".semlens"

// hiddenPrefix marks directories to skip wholesale.
const hiddenPrefix = "."

// noiseDirs are well-known directories that never contain indexable source.
var noiseDirs = map[string]bool{
	"node_modules": true,
	"vendor":       true,
	"build":        true,
	"dist":         true,
	"target":       true,
	"out":          true,
	"bin":          true,
	"obj":          true,
	"__pycache__":  true,
	"venv":         true,
}

// allowedExtensions is the fixed allow-list of source and config file types.
var allowedExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".java": true, ".kt": true, ".rb": true, ".rs": true,
	".c": true, ".h": true, ".cpp": true, ".cc": true, ".hpp": true,
	".cs": true, ".php": true, ".swift": true, ".scala": true, ".sh": true,
	".sql": true, ".html": true, ".css": true, ".md": true, ".json": true,
	".yaml": true, ".yml": true, ".toml": true, ".xml": true, ".txt": true,
	".gradle": true, ".properties": true,
}

// Collector discovers candidate files under a root directory.
type Collector struct {
	root string
}

// New creates a Collector for the given project root.
func New(root string) *Collector {
	return &Collector{root: root}
}

// Collect walks the tree and returns candidate file paths in traversal
// order. Order is not significant for correctness. Unreadable subtrees are
// skipped rather than failing the walk.
func (c *Collector) Collect() ([]string, error) {
	var files []string

	err := filepath.Walk(c.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() {
			if path == c.root {
				return nil
			}
			if SkipDir(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if Indexable(path) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// SkipDir reports whether a directory name should be excluded from the walk.
func SkipDir(name string) bool {
	if strings.HasPrefix(name, hiddenPrefix) {
		return true
	}
	if name == IndexDirName {
		return true
	}
	return noiseDirs[name]
}

// Indexable reports whether a file's extension is on the allow-list.
func Indexable(path string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(path))]
}
