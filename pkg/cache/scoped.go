package cache

// ScopedKeyer prepends a fixed prefix to the keys of another Keyer, so that
// several tenants or environments can share one backend.
//
//	staging := NewScopedKeyer(NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner (DefaultKeyer when nil) with prefix.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SolutionKey returns the prefixed solution key.
func (k *ScopedKeyer) SolutionKey(problemHash, paramsHash string) string {
	return k.prefix + k.inner.SolutionKey(problemHash, paramsHash)
}

// GraphKey returns the prefixed graph key.
func (k *ScopedKeyer) GraphKey(problemHash string, opts GraphKeyOpts) string {
	return k.prefix + k.inner.GraphKey(problemHash, opts)
}
