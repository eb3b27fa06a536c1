package errors

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
)

// moduleNameRegex matches the module names `go mod graph` prints.
// It is looser than golang.org/x/mod/module.CheckPath because the main
// module may be named without a dot ("example", "scriptweaver").
var moduleNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_~][a-zA-Z0-9._~+/-]*$`)

// ValidateModuleName validates a module name received from the preview UI.
// It rejects names that could not have come from a module graph.
//
// The validation rules are intentionally conservative:
//   - No empty names
//   - No control characters
//   - No whitespace, '@' or ':' (those split graph lines)
//   - Maximum length of 500 characters
func ValidateModuleName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidModule, "module name cannot be empty")
	}

	if len(name) > 500 {
		return New(ErrCodeInvalidModule, "module name too long (max 500 characters)")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidModule, "module name contains invalid control characters")
		}
	}

	if !moduleNameRegex.MatchString(name) {
		return New(ErrCodeInvalidModule, "invalid module name: %q", name)
	}

	return nil
}

// ValidatePath validates a path relative to the served workspace root.
// It prevents path traversal attacks and ensures reasonable path length.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	if strings.Contains(path, "..") {
		return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// exportFormats maps export file extensions to format names.
var exportFormats = map[string]string{
	".pdf": "pdf",
	".png": "png",
	".svg": "svg",
}

// ExportFormat returns the export format implied by the extension of path.
// Only PDF, PNG and SVG are supported.
func ExportFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := exportFormats[ext]; ok {
		return f, nil
	}
	if ext == "" {
		return "", New(ErrCodeInvalidFormat, "export path %q has no extension (want .pdf, .png or .svg)", path)
	}
	return "", New(ErrCodeInvalidFormat, "unsupported export format %q (want .pdf, .png or .svg)", ext)
}
