package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIgnored(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/book.py", false},
		{"node_modules/left-pad/index.js", true},
		{"src/__pycache__/book.cpython-311.pyc", true},
		{".git/config", true},
		{"a/b/.venv/lib/x.py", true},
		{"package-lock.json", true},
		{"sub/dir/Cargo.lock", true},
		{"docs/design.md", false},
		{"vendor/pkg/mod.go", true},
		{"Target/file.py", false}, // case-sensitive path component, lowercased match only on known names
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Ignored(tt.path), tt.path)
	}
}

func TestDocDiscovery(t *testing.T) {
	tests := []struct {
		path    string
		sdd     bool
		srs     bool
	}{
		{"docs/sdd.md", true, false},
		{"docs/SDD.md", true, false},
		{"design.md", true, false},
		{"docs/software-design.md", true, false},
		{"docs/architecture.md", true, false},
		{"traceability-matrix.md", true, false},
		{"docs/srs.md", false, true},
		{"requirements.md", false, true},
		{"documentation/requirements.md", false, true},
		{"docs/Software-Requirements.md", false, true},
		// Not in a recognized location.
		{"deep/nested/dir/sdd.md", false, false},
		// Not a recognized filename.
		{"docs/readme.md", false, false},
		{"docs/notes.md", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.sdd, IsSDDPath(tt.path), "sdd: %s", tt.path)
		assert.Equal(t, tt.srs, IsSRSPath(tt.path), "srs: %s", tt.path)
		assert.Equal(t, tt.sdd || tt.srs, IsDocPath(tt.path), "doc: %s", tt.path)
	}
}

func TestIsCodePath(t *testing.T) {
	assert.True(t, IsCodePath("src/book.py"))
	assert.True(t, IsCodePath("src/auth/Service.JAVA"))
	assert.True(t, IsCodePath("cmd/main.go"))
	assert.False(t, IsCodePath("docs/sdd.md"))
	assert.False(t, IsCodePath("Makefile"))
	assert.False(t, IsCodePath("image.png"))
}

func TestSplitDocs(t *testing.T) {
	files := []File{
		{Path: "docs/sdd.md", Content: "# design"},
		{Path: "docs/srs.md", Content: "# reqs"},
		{Path: "src/book.py", Content: "class Book: pass"},
		{Path: "assets/logo.png", Binary: true},
		{Path: "README.md", Content: "readme"},
	}
	sdd, srs, code := SplitDocs(files)
	assert.Len(t, sdd, 1)
	assert.Len(t, srs, 1)
	assert.Len(t, code, 1)
	assert.Equal(t, "docs/sdd.md", sdd[0].Path)
	assert.Equal(t, "docs/srs.md", srs[0].Path)
	assert.Equal(t, "src/book.py", code[0].Path)
}

func TestSplitDocsSkipsBinaries(t *testing.T) {
	// A binary file whose name collides with a doc pattern is still skipped.
	files := []File{{Path: "docs/design.md", Binary: true}}
	sdd, srs, code := SplitDocs(files)
	assert.Empty(t, sdd)
	assert.Empty(t, srs)
	assert.Empty(t, code)
}
