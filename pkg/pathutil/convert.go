// Package pathutil converts the absolute paths the file table stores into
// root-relative paths for user-facing output.
package pathutil

import (
	"path/filepath"
	"strings"
)

// ToRelative returns absPath relative to rootDir. Relative inputs, paths
// outside the root and paths that cannot be made relative are returned
// unchanged.
//
//   - ToRelative("/src/app/web/handler.go", "/src/app") → "web/handler.go"
//   - ToRelative("/elsewhere/x.go", "/src/app") → "/elsewhere/x.go"
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" || !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	relPath, err := filepath.Rel(filepath.Clean(rootDir), absPath)
	if err != nil {
		// e.g. different volumes on Windows
		return absPath
	}
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}
	return relPath
}

// ToRelativeAll converts every path in paths. The input is not modified.
func ToRelativeAll(paths []string, rootDir string) []string {
	if paths == nil {
		return nil
	}
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = ToRelative(p, rootDir)
	}
	return out
}
