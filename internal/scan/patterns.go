package scan

import (
	"path"
	"strings"
)

// Fixed ignore list for repository snapshots: VCS metadata, dependency
// caches, build outputs, bytecode dirs, virtualenvs.
var ignoredDirs = map[string]bool{
	".git": true, ".github": true, ".vscode": true, ".idea": true,
	"node_modules": true, "__pycache__": true, ".venv": true, "venv": true,
	"env": true, "target": true, "build": true, "dist": true, ".next": true,
	"coverage": true, "vendor": true, ".pytest_cache": true, ".mypy_cache": true,
}

var ignoredFiles = map[string]bool{
	"package-lock.json": true, "yarn.lock": true, "pnpm-lock.yaml": true,
	"poetry.lock": true, "pipfile.lock": true, "cargo.lock": true,
	"composer.lock": true, "gemfile.lock": true, "go.sum": true,
	".ds_store": true,
}

// Ignored reports whether a path is excluded from snapshots. Directory names
// match exactly; file names match case-insensitively.
func Ignored(filePath string) bool {
	for _, part := range strings.Split(filePath, "/") {
		if ignoredDirs[part] {
			return true
		}
	}
	return ignoredFiles[strings.ToLower(path.Base(filePath))]
}

// Document discovery. Filenames are matched case-insensitively against a
// fixed list, under the repo root or a docs directory.

var sddFilenames = map[string]bool{
	"design.md": true, "sdd.md": true, "software-design.md": true,
	"architecture.md": true, "traceability.md": true, "traceability-matrix.md": true,
}

var srsFilenames = map[string]bool{
	"requirements.md": true, "srs.md": true, "software-requirements.md": true,
}

func inDocLocation(filePath string) bool {
	dir := strings.ToLower(path.Dir(filePath))
	return dir == "." || dir == "docs" || dir == "documentation"
}

// IsSDDPath reports whether the path looks like a software design document.
func IsSDDPath(filePath string) bool {
	return inDocLocation(filePath) && sddFilenames[strings.ToLower(path.Base(filePath))]
}

// IsSRSPath reports whether the path looks like a requirements specification.
func IsSRSPath(filePath string) bool {
	return inDocLocation(filePath) && srsFilenames[strings.ToLower(path.Base(filePath))]
}

// IsDocPath reports whether the path is any tracked documentation file.
func IsDocPath(filePath string) bool {
	return IsSDDPath(filePath) || IsSRSPath(filePath)
}

// Code files become code components. Components are identified by path only,
// so this is a pure extension check.
var codeExtensions = map[string]bool{
	".py": true, ".java": true, ".js": true, ".jsx": true, ".ts": true,
	".tsx": true, ".go": true, ".c": true, ".h": true, ".cpp": true,
	".hpp": true, ".cs": true, ".rb": true, ".rs": true, ".php": true,
	".kt": true, ".swift": true, ".scala": true,
}

// IsCodePath reports whether the path counts as a code component.
func IsCodePath(filePath string) bool {
	return codeExtensions[strings.ToLower(path.Ext(filePath))]
}
