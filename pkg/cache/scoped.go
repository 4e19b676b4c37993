package cache

// ScopedKeyer prefixes every key from an inner Keyer. The print service
// scopes keys by styles directory so that two services sharing one redis
// do not collide:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "styles:"+Hash([]byte(dir))[:12]+":")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner, or the default keyer when inner is nil.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

func (k *ScopedKeyer) RenderKey(styleHash string, opts RenderKeyOpts) string {
	return k.prefix + k.inner.RenderKey(styleHash, opts)
}
