package secure

// KeyMaterial wraps sensitive key data with automatic wiping on Close().
// Use it for temporary key storage that must be cleaned up on every exit
// path, including error and panic paths, per spec.md §9 "Secure wipe".
type KeyMaterial struct {
	data   []byte
	closed bool
}

// NewKeyMaterial copies data into an owned buffer so the caller's original
// slice is unaffected by later wiping.
func NewKeyMaterial(data []byte) *KeyMaterial {
	if data == nil {
		return &KeyMaterial{}
	}
	copied := make([]byte, len(data))
	copy(copied, data)
	return &KeyMaterial{data: copied}
}

// Bytes returns the underlying key data, or nil once closed.
func (km *KeyMaterial) Bytes() []byte {
	if km == nil || km.closed {
		return nil
	}
	return km.data
}

// Len reports the key length, 0 once closed.
func (km *KeyMaterial) Len() int {
	if km == nil || km.closed || km.data == nil {
		return 0
	}
	return len(km.data)
}

// Close wipes the key data. Idempotent.
func (km *KeyMaterial) Close() {
	if km == nil || km.closed {
		return
	}
	Zero(km.data)
	km.data = nil
	km.closed = true
}

// Context accumulates every secret buffer produced during a single
// PackageWriter/PackageReader call (pre-keys, derived working keys, shared
// secrets, KDF intermediates) so a single Close() wipes all of them on the
// normal, error, or panic path. Components register their secrets with
// Track as they derive them; the owning writer/reader defers Close
// immediately after construction.
type Context struct {
	secrets [][]byte
	closed  bool
}

// NewContext returns an empty secret-tracking context.
func NewContext() *Context {
	return &Context{}
}

// Track registers buf for wiping when the context closes, and returns it
// unchanged for convenient chaining: key := ctx.Track(derivedKey).
func (c *Context) Track(buf []byte) []byte {
	if c.closed {
		return buf
	}
	c.secrets = append(c.secrets, buf)
	return buf
}

// Close wipes every tracked secret. Idempotent.
func (c *Context) Close() {
	if c.closed {
		return
	}
	ZeroMultiple(c.secrets...)
	c.secrets = nil
	c.closed = true
}
