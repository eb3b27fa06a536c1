package cache

// ScopedKeyer wraps a Keyer with a prefix. This is useful when several tools
// or users share one Redis database:
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "modgraph:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// GraphKey generates a prefixed key for scan output.
func (k *ScopedKeyer) GraphKey(dir string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(dir, opts)
}

// RenderKey generates a prefixed key for rendered images.
func (k *ScopedKeyer) RenderKey(sourceHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(sourceHash, opts)
}
