package cache

// Keyer generates cache keys.
type Keyer interface {
	// GraphKey keys `go mod graph` output for a module directory.
	GraphKey(dir string, opts GraphKeyOpts) string

	// RenderKey keys a rendered image by the hash of its DOT source.
	RenderKey(sourceHash string, opts RenderKeyOpts) string
}

// GraphKeyOpts holds the inputs that change scan output besides the
// directory itself.
type GraphKeyOpts struct {
	ManifestHash string `json:"manifest_hash"` // Hash of go.mod and go.sum
	GoCommand    string `json:"go_command"`
}

// RenderKeyOpts holds the inputs that change a rendered image.
type RenderKeyOpts struct {
	Format string `json:"format"` // svg, png, pdf
	Layout string `json:"layout"` // Graphviz layout engine
}

// DefaultKeyer hashes key material with SHA-256.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// GraphKey returns "graph:<sha256>".
func (DefaultKeyer) GraphKey(dir string, opts GraphKeyOpts) string {
	return hashKey("graph", dir, opts)
}

// RenderKey returns "render:<sha256>".
func (DefaultKeyer) RenderKey(sourceHash string, opts RenderKeyOpts) string {
	return hashKey("render", sourceHash, opts)
}
