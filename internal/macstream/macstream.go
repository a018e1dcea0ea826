// Package macstream implements MacStream (C5): a pass-through decorator
// that feeds every byte crossing it, in either direction, into a keyed MAC.
// Grounded on the teacher's CipherSuite.mac field and internal/header's
// pattern of writing ordered fields into an hmac.New accumulator before
// Sum(nil).
package macstream

import (
	"hash"
	"io"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// Writer feeds bytes written to it into both the MAC and an underlying
// io.Writer.
type Writer struct {
	underlying io.Writer
	mac        hash.Hash
	finished   bool
	tag        []byte
}

func NewWriter(w io.Writer, mac hash.Hash) *Writer {
	return &Writer{underlying: w, mac: mac}
}

func (w *Writer) Write(p []byte) (int, error) {
	if w.finished {
		return 0, obcerrors.Wrap(obcerrors.IoError, "write after MacStream finish")
	}
	w.mac.Write(p)
	return w.underlying.Write(p)
}

// Update mixes extra bytes into the MAC without forwarding them to the
// underlying stream, e.g. the serialized cipher/auth/KDF configuration
// mixed into the manifest MAC after the ciphertext body.
func (w *Writer) Update(extra []byte) error {
	if w.finished {
		return obcerrors.Wrap(obcerrors.IoError, "update after MacStream finish")
	}
	w.mac.Write(extra)
	return nil
}

// Finish is exactly-once; subsequent calls return the same tag.
func (w *Writer) Finish() []byte {
	if !w.finished {
		w.finished = true
		w.tag = w.mac.Sum(nil)
	}
	return w.tag
}

// Tag returns the MAC tag; valid only after Finish.
func (w *Writer) Tag() []byte { return w.tag }

// Reader feeds bytes read from an underlying io.Reader into the MAC as they
// pass through.
type Reader struct {
	underlying io.Reader
	mac        hash.Hash
	finished   bool
	tag        []byte
}

func NewReader(r io.Reader, mac hash.Hash) *Reader {
	return &Reader{underlying: r, mac: mac}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.underlying.Read(p)
	if n > 0 {
		r.mac.Write(p[:n])
	}
	return n, err
}

// Update mixes extra bytes into the MAC (see Writer.Update).
func (r *Reader) Update(extra []byte) error {
	if r.finished {
		return obcerrors.Wrap(obcerrors.IoError, "update after MacStream finish")
	}
	r.mac.Write(extra)
	return nil
}

func (r *Reader) Finish() []byte {
	if !r.finished {
		r.finished = true
		r.tag = r.mac.Sum(nil)
	}
	return r.tag
}

func (r *Reader) Tag() []byte { return r.tag }
