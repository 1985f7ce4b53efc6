package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/reindex/internal/config"
	rerrors "github.com/standardbeagle/reindex/internal/errors"
)

func writeFile(t *testing.T, root, rel string, content []byte) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
	require.NoError(t, os.WriteFile(p, content, 0644))
	return p
}

func fixture(t *testing.T) (string, *config.Config) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "main.go", []byte("package main\n"))
	writeFile(t, root, "lib/util.py", []byte("def f():\n    pass\n"))
	writeFile(t, root, "node_modules/dep/index.js", []byte("module.exports = 1\n"))
	writeFile(t, root, "assets/logo.png", []byte{0x89, 0x50, 0x4E, 0x47})
	writeFile(t, root, "blob.go", []byte("package x\x00\x00\x00\x00"))
	writeFile(t, root, "big.go", []byte("package big\n"+strings.Repeat("// padding\n", 200)))
	writeFile(t, root, "notes.txt", []byte("todo\n"))

	cfg := config.Default(root)
	cfg.Index.MaxFileSize = 1024
	return root, cfg
}

func TestScan_Defaults(t *testing.T) {
	root, cfg := fixture(t)

	files, err := Scan(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "util.py"),
		filepath.Join(root, "main.go"),
	}, files)
}

func TestScan_IncludePatterns(t *testing.T) {
	root, cfg := fixture(t)
	cfg.Include = []string{"**/*.txt", "lib/**"}

	files, err := Scan(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "lib", "util.py"),
		filepath.Join(root, "notes.txt"),
	}, files)
}

func TestScan_ExcludePatterns(t *testing.T) {
	root, cfg := fixture(t)
	cfg.Exclude = append(cfg.Exclude, "lib/**")

	files, err := Scan(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "main.go")}, files)
}

func TestScan_MaxFileCount(t *testing.T) {
	_, cfg := fixture(t)
	cfg.Index.MaxFileCount = 1

	files, err := Scan(cfg)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestScan_MissingRoot(t *testing.T) {
	cfg := config.Default(filepath.Join(t.TempDir(), "nope"))

	_, err := Scan(cfg)
	require.Error(t, err)
	var fileErr *rerrors.FileError
	assert.ErrorAs(t, err, &fileErr)
}

func TestFilter_ExcludedDir(t *testing.T) {
	cfg := config.Default("/ws")
	f := NewFilter(cfg)

	assert.True(t, f.ExcludedDir("/ws/node_modules"))
	assert.True(t, f.ExcludedDir("/ws/pkg/vendor"))
	assert.False(t, f.ExcludedDir("/ws"))
	assert.False(t, f.ExcludedDir("/ws/internal"))
}
