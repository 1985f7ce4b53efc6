package pathutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToRelative(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	tests := []struct {
		name     string
		absPath  string
		rootDir  string
		expected string
	}{
		{"file in root", "/src/app/main.go", "/src/app", "main.go"},
		{"nested", "/src/app/web/handler.go", "/src/app", "web/handler.go"},
		{"root itself", "/src/app", "/src/app", "."},
		{"unclean root", "/src/app/main.go", "/src/app/", "main.go"},
		{"already relative", "web/handler.go", "/src/app", "web/handler.go"},
		{"outside root", "/elsewhere/x.go", "/src/app", "/elsewhere/x.go"},
		{"dot-dot prefixed name inside root", "/src/app/..hidden/x.go", "/src/app", "..hidden/x.go"},
		{"empty root", "/src/app/main.go", "", "/src/app/main.go"},
		{"empty path", "", "/src/app", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, filepath.FromSlash(tt.expected), ToRelative(tt.absPath, tt.rootDir))
		})
	}
}

func TestToRelativeAll(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}
	in := []string{"/src/app/a.go", "/other/b.go"}
	out := ToRelativeAll(in, "/src/app")

	assert.Equal(t, []string{"a.go", "/other/b.go"}, out)
	assert.Equal(t, "/src/app/a.go", in[0], "input untouched")
	assert.Nil(t, ToRelativeAll(nil, "/src/app"))
}
