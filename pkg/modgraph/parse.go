package modgraph

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/mod/module"
)

// Parse reads `go mod graph` output and builds the graph. Lines that are not
// requirement lines are skipped. The only error is a read error from r.
func Parse(r io.Reader) (*Graph, error) {
	g := New()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		from, to, ok := ParseLine(sc.Text())
		if ok {
			g.AddEdge(from, to)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

// ParseString is Parse for in-memory text.
func ParseString(s string) *Graph {
	g, _ := Parse(strings.NewReader(s))
	return g
}

// ParseLine splits one requirement line "from[@version] to@version".
// A line is accepted only when it holds exactly one space, at least one '@'
// and no ':'. The from side defaults to [CurrentVersion].
func ParseLine(line string) (from, to module.Version, ok bool) {
	line = strings.TrimRight(line, "\r")
	if line == "" || strings.Count(line, " ") != 1 || !strings.Contains(line, "@") || strings.Contains(line, ":") {
		return from, to, false
	}

	left, right, _ := strings.Cut(line, " ")
	toPath, toVersion, found := strings.Cut(right, "@")
	if !found || left == "" || toPath == "" {
		return from, to, false
	}

	from = module.Version{Path: left, Version: CurrentVersion}
	if p, v, found := strings.Cut(left, "@"); found {
		from = module.Version{Path: p, Version: v}
	}
	if from.Path == "" {
		return from, to, false
	}
	return from, module.Version{Path: toPath, Version: toVersion}, true
}
