package modgraph

import (
	"bytes"
	"context"
	stderrors "errors"
	"os/exec"
	"strings"
	"time"

	"github.com/matzehuels/modgraph/pkg/errors"
	"github.com/matzehuels/modgraph/pkg/observability"
)

// NeedScanNotice is the user-facing notice for any scan failure.
const NeedScanNotice = "Need run 'go mod graph' first."

// Scanner produces module graph text for the module rooted at dir.
type Scanner interface {
	Scan(ctx context.Context, dir string) (string, error)
}

// GoModGraph runs `go mod graph`.
type GoModGraph struct {
	Command string   // go binary; "go" when empty
	Args    []string // arguments; ["mod", "graph"] when nil
	Env     []string // extra environment, appended to the process environment
}

// NewGoModGraph returns a scanner using the given go binary.
func NewGoModGraph(command string) *GoModGraph {
	return &GoModGraph{Command: command}
}

// Scan runs the command in dir and returns its standard output.
//
// A missing binary returns a TOOL_NOT_FOUND error. A non-zero exit, or any
// output on standard error even with a zero exit, returns SCAN_FAILED with
// the diagnostic text in the message.
func (s *GoModGraph) Scan(ctx context.Context, dir string) (string, error) {
	command := s.Command
	if command == "" {
		command = "go"
	}
	args := s.Args
	if args == nil {
		args = []string{"mod", "graph"}
	}

	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = dir
	if len(s.Env) > 0 {
		cmd.Env = append(cmd.Environ(), s.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	diag := strings.TrimSpace(stderr.String())

	var execErr *exec.Error
	switch {
	case stderrors.As(err, &execErr):
		return "", errors.Wrap(errors.ErrCodeToolNotFound, err, "%s not found", command)
	case ctx.Err() != nil:
		return "", ctx.Err()
	case err != nil && diag != "":
		return "", errors.Wrap(errors.ErrCodeScanFailed, err, "%s", diag)
	case err != nil:
		return "", errors.Wrap(errors.ErrCodeScanFailed, err, "%s %s failed in %s", command, strings.Join(args, " "), dir)
	case diag != "":
		return "", errors.New(errors.ErrCodeScanFailed, "%s", diag)
	}
	return stdout.String(), nil
}

var _ Scanner = (*GoModGraph)(nil)

// ScannerFunc adapts a function to [Scanner].
type ScannerFunc func(ctx context.Context, dir string) (string, error)

// Scan calls f.
func (f ScannerFunc) Scan(ctx context.Context, dir string) (string, error) {
	return f(ctx, dir)
}

// Load scans dir and parses the result.
func Load(ctx context.Context, s Scanner, dir string) (*Graph, error) {
	observability.Preview().OnScanStart(ctx, dir)
	start := time.Now()

	text, err := s.Scan(ctx, dir)
	if err != nil {
		observability.Preview().OnScanComplete(ctx, dir, 0, time.Since(start), err)
		return nil, err
	}

	g, err := Parse(strings.NewReader(text))
	if err != nil {
		err = errors.Wrap(errors.ErrCodeScanFailed, err, "read module graph")
		observability.Preview().OnScanComplete(ctx, dir, 0, time.Since(start), err)
		return nil, err
	}
	observability.Preview().OnScanComplete(ctx, dir, g.EdgeCount(), time.Since(start), nil)
	return g, nil
}
