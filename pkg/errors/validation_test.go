package errors

import (
	"strings"
	"testing"
)

func TestValidateModuleName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "example", false},
		{"valid domain path", "github.com/google/uuid", false},
		{"valid gopkg.in", "gopkg.in/yaml.v3", false},
		{"valid sentinel", "all_mods", false},
		{"valid tilde", "example.com/~user/mod", false},

		{"empty", "", true},
		{"too long", strings.Repeat("a", 501), true},
		{"with version", "golang.org/x/mod@v0.18.0", true},
		{"with space", "foo bar", true},
		{"with colon", "go:1.21", true},
		{"null byte", "foo\x00bar", true},
		{"newline", "foo\nbar", true},
		{"leading dash", "-mod", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateModuleName(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateModuleName(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil && !Is(err, ErrCodeInvalidModule) {
				t.Errorf("ValidateModuleName(%q) code = %v, want %v", tt.input, GetCode(err), ErrCodeInvalidModule)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"valid simple", "cmd", false},
		{"valid nested", "services/api/go", false},
		{"valid current", ".", false},
		{"valid with dots", "v1.2.3/mod", false},

		{"empty", "", true},
		{"too long", string(make([]byte, 600)), true},
		{"absolute path", "/etc/passwd", true},
		{"path traversal", "../../../etc/passwd", true},
		{"path traversal middle", "foo/../bar", true},
		{"null byte", "foo\x00bar", true},
		{"backslash", "foo\\bar", true},
		{"control char", "foo\x01bar", true},
		{"newline", "foo\nbar", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePath(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestExportFormat(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"graph.svg", "svg", false},
		{"out/graph.PNG", "png", false},
		{"/tmp/deps.pdf", "pdf", false},
		{"graph.jpg", "", true},
		{"graph", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := ExportFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExportFormat(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExportFormat(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if err != nil && !Is(err, ErrCodeInvalidFormat) {
				t.Errorf("ExportFormat(%q) code = %v, want %v", tt.path, GetCode(err), ErrCodeInvalidFormat)
			}
		})
	}
}

func TestErrorCodesAreUnique(t *testing.T) {
	codes := []Code{
		ErrCodeInvalidInput,
		ErrCodeInvalidModule,
		ErrCodeInvalidFormat,
		ErrCodeInvalidPath,
		ErrCodeInvalidConfig,
		ErrCodeNotFound,
		ErrCodeFileNotFound,
		ErrCodeDocumentNotFound,
		ErrCodeToolNotFound,
		ErrCodeScanFailed,
		ErrCodeRenderFailed,
		ErrCodeExportFailed,
		ErrCodeChannelClosed,
		ErrCodeUnknownMessage,
		ErrCodeRemote,
		ErrCodeStorage,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeUnsupported,
	}

	seen := make(map[Code]bool)
	for _, code := range codes {
		if seen[code] {
			t.Errorf("duplicate error code: %s", code)
		}
		seen[code] = true
	}
}
