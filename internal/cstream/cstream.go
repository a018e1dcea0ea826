// Package cstream implements CipherStream (C4): a read/write decorator
// that drives an engine.Variant one fixed-size operation at a time,
// smoothing its output through a ring buffer so the underlying stream only
// ever receives whole-operation-sized writes. Construction refuses any
// engine.Variant built from an AEAD mode — authentication in this system is
// always the separate MacStream (internal/macstream); an AEAD mode's
// internal tag would duplicate and conflict with that.
package cstream

import (
	"io"

	"github.com/obscurcore/obscurcore/internal/engine"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
)

// ringFactor sizes out_ring relative to operation_size: 256 operations of
// headroom when encrypting (the writer drains lazily), 4 when decrypting
// (the reader drains eagerly into the caller's buffer).
const (
	writeRingFactor = 256
	readRingFactor  = 4
)

func checkNotAEAD(v engine.Variant) error {
	if v.IsAEAD() {
		return obcerrors.NewConfigError("mode", errAEADInCipherStream())
	}
	return nil
}

// Writer encrypts (or otherwise forward-processes) bytes written to it and
// forwards whole-operation ciphertext chunks to an underlying io.Writer.
type Writer struct {
	underlying io.Writer
	variant    engine.Variant
	opSize     int

	opBuf   []byte // accumulates the current partial operation
	tempBuf []byte // reused scratch buffer for one engine emission
	ring    *ring

	bytesIn  int64
	bytesOut int64
	finished bool
}

// NewWriter builds a CipherStream writer around an already-keyed variant.
func NewWriter(w io.Writer, v engine.Variant) (*Writer, error) {
	if err := checkNotAEAD(v); err != nil {
		return nil, err
	}
	opSize := v.OperationSize()
	return &Writer{
		underlying: w,
		variant:    v,
		opSize:     opSize,
		opBuf:      make([]byte, 0, opSize),
		tempBuf:    make([]byte, 0, opSize+v.Overhead()),
		ring:       newRing(opSize * writeRingFactor),
	}, nil
}

// Write accepts plaintext bytes, feeding the engine in exact-operation-size
// strides and retaining any trailing partial operation in op_buf.
func (w *Writer) Write(p []byte) (int, error) {
	total := len(p)
	w.bytesIn += int64(total)

	for len(p) > 0 {
		space := w.opSize - len(w.opBuf)
		take := space
		if take > len(p) {
			take = len(p)
		}
		w.opBuf = append(w.opBuf, p[:take]...)
		p = p[take:]

		if len(w.opBuf) == w.opSize {
			if err := w.processBuffered(); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

func (w *Writer) processBuffered() error {
	w.tempBuf = w.tempBuf[:cap(w.tempBuf)]
	n, err := w.variant.Process(w.tempBuf, w.opBuf)
	if err != nil {
		return err
	}
	w.ring.push(w.tempBuf[:n])
	w.bytesOut += int64(n)
	w.opBuf = w.opBuf[:0]

	if w.ring.spare() < w.opSize {
		return w.drainRing()
	}
	return nil
}

func (w *Writer) drainRing() error {
	data := w.ring.drain()
	if len(data) == 0 {
		return nil
	}
	_, err := w.underlying.Write(data)
	return err
}

// Finish calls process_final on whatever remains in op_buf, drains the ring
// fully, and is a no-op on any call after the first.
func (w *Writer) Finish() error {
	if w.finished {
		return nil
	}
	w.finished = true

	dst := make([]byte, len(w.opBuf)+w.variant.Overhead())
	n, err := w.variant.ProcessFinal(dst, w.opBuf)
	if err != nil {
		return err
	}
	w.ring.push(dst[:n])
	w.bytesOut += int64(n)
	w.opBuf = w.opBuf[:0]
	return w.drainRing()
}

// BytesIn reports plaintext bytes accepted so far.
func (w *Writer) BytesIn() int64 { return w.bytesIn }

// BytesOut reports ciphertext bytes the engine has produced so far. Bytes
// still buffered in the ring are counted; Finish drains them to the
// underlying stream.
func (w *Writer) BytesOut() int64 { return w.bytesOut }

// Reader decrypts (or otherwise reverse-processes) bytes pulled from an
// underlying io.Reader.
type Reader struct {
	underlying io.Reader
	variant    engine.Variant
	opSize     int

	opBuf    []byte
	tempBuf  []byte
	ring     *ring
	eof      bool
	finished bool

	bytesIn  int64
	bytesOut int64
}

// NewReader builds a CipherStream reader around an already-keyed variant.
func NewReader(r io.Reader, v engine.Variant) (*Reader, error) {
	if err := checkNotAEAD(v); err != nil {
		return nil, err
	}
	opSize := v.OperationSize()
	return &Reader{
		underlying: r,
		variant:    v,
		opSize:     opSize,
		opBuf:      make([]byte, 0, opSize),
		tempBuf:    make([]byte, 0, opSize+v.Overhead()),
		ring:       newRing(opSize * readRingFactor),
	}, nil
}

// Read fills p with plaintext, pulling one operation's worth of underlying
// ciphertext at a time. Returns io.EOF once the underlying stream and ring
// are both exhausted and Finish has run.
func (r *Reader) Read(p []byte) (int, error) {
	if r.ring.len() > 0 {
		return r.drainRingInto(p), nil
	}
	if r.finished {
		return 0, io.EOF
	}

	if err := r.fillOpBuf(); err != nil && err != io.EOF {
		return 0, err
	}

	if len(r.opBuf) == r.opSize {
		n, err := r.processOperation(p)
		if err != nil {
			return 0, err
		}
		return n, nil
	}

	// underlying is exhausted with a partial (or empty) trailing operation:
	// this is the last chunk, route it through process_final.
	n, err := r.processFinal(p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *Reader) drainRingInto(p []byte) int {
	data := r.ring.drain()
	n := copy(p, data)
	if n < len(data) {
		r.ring.push(data[n:])
	}
	return n
}

func (r *Reader) fillOpBuf() error {
	for len(r.opBuf) < r.opSize && !r.eof {
		buf := make([]byte, r.opSize-len(r.opBuf))
		n, err := r.underlying.Read(buf)
		if n > 0 {
			r.opBuf = append(r.opBuf, buf[:n]...)
			r.bytesIn += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				r.eof = true
				return io.EOF
			}
			return err
		}
	}
	return nil
}

func (r *Reader) processOperation(p []byte) (int, error) {
	if len(p) >= r.opSize {
		n, err := r.variant.Process(p, r.opBuf)
		if err != nil {
			return 0, err
		}
		r.bytesOut += int64(n)
		r.opBuf = r.opBuf[:0]
		return n, nil
	}

	r.tempBuf = r.tempBuf[:cap(r.tempBuf)]
	n, err := r.variant.Process(r.tempBuf, r.opBuf)
	if err != nil {
		return 0, err
	}
	r.bytesOut += int64(n)
	r.opBuf = r.opBuf[:0]
	copied := copy(p, r.tempBuf[:n])
	if copied < n {
		r.ring.push(r.tempBuf[copied:n])
	}
	return copied, nil
}

func (r *Reader) processFinal(p []byte) (int, error) {
	if r.finished {
		return 0, io.EOF
	}
	r.finished = true

	dst := make([]byte, len(r.opBuf)+r.variant.Overhead())
	n, err := r.variant.ProcessFinal(dst, r.opBuf)
	if err != nil {
		return 0, err
	}
	r.bytesOut += int64(n)
	r.opBuf = r.opBuf[:0]

	copied := copy(p, dst[:n])
	if copied < n {
		r.ring.push(dst[copied:n])
	}
	if copied == 0 && n == 0 {
		return 0, io.EOF
	}
	return copied, nil
}

// BytesIn reports ciphertext bytes pulled from the underlying stream so far.
func (r *Reader) BytesIn() int64 { return r.bytesIn }

// BytesOut reports plaintext bytes produced so far.
func (r *Reader) BytesOut() int64 { return r.bytesOut }

type aeadInCipherStreamErr struct{}

func (e *aeadInCipherStreamErr) Error() string {
	return "AEAD cipher modes may not be used inside a CipherStream; authentication is performed by MacStream"
}
func errAEADInCipherStream() error { return &aeadInCipherStreamErr{} }
