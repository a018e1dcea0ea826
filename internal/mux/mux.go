// Package mux implements PayloadMux (C9): interleaving N independent
// Encrypt-then-MAC item pipelines into a single physical stream under a
// deterministic, PRNG-driven schedule (spec.md §4.8). A WriteMux and a
// ReadMux built from the same seed and scheme reproduce the identical
// segment-by-segment interleaving, so a reader never needs markers or
// length-prefixed frames to find item boundaries — only the manifest's
// declared internal_length per item and the reproduced schedule.
package mux

import (
	"context"
	"io"

	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/primreg"
	"github.com/obscurcore/obscurcore/internal/prng"
	"github.com/obscurcore/obscurcore/internal/secure"
)

// WriteItem pairs a manifest entry with the plaintext source that fills it.
type WriteItem struct {
	Meta   *manifest.PayloadItem
	Source io.Reader
}

type writeState struct {
	item      *WriteItem
	pipe      *writePipeline
	remaining int64 // plaintext bytes not yet fed into the pipeline
	completed bool
}

// WriteMux drives the write-side interleaving loop.
type WriteMux struct {
	outer     io.Writer
	items     []*writeState
	scheme    Scheme
	scheduler *Scheduler
	src       *prng.Source
	reg       *primreg.Registry
	lookup    PreKeyLookup
}

// NewWriteMux builds a WriteMux. seed is the PayloadConfig.PrngConfig
// value that must also seed the matching ReadMux. lookup resolves pre-keys
// for items that do not carry explicit cipher/auth keys; it may be nil if
// every item is explicitly keyed.
func NewWriteMux(outer io.Writer, items []*WriteItem, scheme Scheme, seed []byte, lookup PreKeyLookup, reg *primreg.Registry) (*WriteMux, error) {
	src, err := prng.New(seed)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.ConfigInvalid, "build mux prng: "+err.Error())
	}
	states := make([]*writeState, len(items))
	for i, it := range items {
		states[i] = &writeState{item: it, remaining: int64(it.Meta.ExternalLength)}
	}
	return &WriteMux{
		outer:     outer,
		items:     states,
		scheme:    scheme,
		scheduler: NewScheduler(src, len(items)),
		src:       src,
		reg:       reg,
		lookup:    lookup,
	}, nil
}

// Run transfers every item to completion, interleaved per the scheme and
// schedule. Each step transfers exactly min(SegmentSize, remaining
// plaintext bytes) of the selected item — a count derived purely from the
// item's declared external_length, never from how a particular Read call
// happened to chunk its input. That keeps the (index, byte_count)
// schedule (MUX-3) a function of the seed and the item lengths alone, so a
// ReadMux built over the same seed and lengths reproduces it exactly.
func (m *WriteMux) Run(ctx context.Context) error {
	buf := make([]byte, m.scheme.SegmentSize())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := m.scheduler.NextSource(m.completedSlice())
		if idx == -1 {
			break
		}
		st := m.items[idx]

		if pad := m.scheme.OnSelect(m.src, idx); pad > 0 {
			if _, err := io.CopyN(m.outer, prng.NewReader(m.src), int64(pad)); err != nil {
				return obcerrors.Wrap(obcerrors.IoError, "write frameshift padding: "+err.Error())
			}
		}

		if st.pipe == nil {
			pipe, err := m.openPipeline(st)
			if err != nil {
				return err
			}
			st.pipe = pipe
		}

		step := int64(m.scheme.SegmentSize())
		if st.remaining < step {
			step = st.remaining
		}
		if step > 0 {
			chunk := buf[:step]
			if _, err := io.ReadFull(st.item.Source, chunk); err != nil {
				return obcerrors.Wrap(obcerrors.LengthMismatch, "item "+st.item.Meta.RelativePath+" source shorter than declared external_length: "+err.Error())
			}
			if _, err := st.pipe.cipherW.Write(chunk); err != nil {
				return obcerrors.Wrap(obcerrors.IoError, "write item ciphertext: "+err.Error())
			}
			st.remaining -= step
		}

		if st.remaining == 0 {
			if err := m.completeItem(st); err != nil {
				return err
			}
		}
	}
	return m.checkAllCompleted()
}

func (m *WriteMux) openPipeline(st *writeState) (*writePipeline, error) {
	cipherKey, macKey, err := resolveItemKeys(st.item.Meta, m.lookup, m.reg)
	if err != nil {
		return nil, err
	}
	defer secure.ZeroMultiple(cipherKey, macKey)
	return newWritePipeline(m.outer, st.item.Meta, cipherKey, macKey, m.reg)
}

// completeItem implements the write-side item completion procedure
// (spec.md §4.8): finish the CipherStream, record the ciphertext byte
// count as internal_length, mix the item's authenticatable metadata clone
// into its MacStream, and capture the resulting tag.
func (m *WriteMux) completeItem(st *writeState) error {
	if err := st.pipe.cipherW.Finish(); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "finish item cipher stream: "+err.Error())
	}
	st.item.Meta.InternalLength = uint64(st.pipe.cipherW.BytesOut())

	clone := st.item.Meta.AuthenticatableClone()
	cloneBytes, err := manifest.MarshalPayloadItem(&clone)
	if err != nil {
		return err
	}
	if err := st.pipe.macW.Update(cloneBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix item metadata into mac: "+err.Error())
	}
	st.item.Meta.AuthTag = st.pipe.macW.Finish()
	st.completed = true
	return nil
}

func (m *WriteMux) completedSlice() []bool {
	out := make([]bool, len(m.items))
	for i, st := range m.items {
		out[i] = st.completed
	}
	return out
}

func (m *WriteMux) checkAllCompleted() error {
	for _, st := range m.items {
		if !st.completed {
			return obcerrors.Wrap(obcerrors.ConfigInvalid, "item "+st.item.Meta.RelativePath+" never reached EOF")
		}
	}
	return nil
}

// ReadItem pairs a manifest entry (already decoded, with its internal
// length and auth tag populated from the manifest) with the sink its
// recovered plaintext should be written to.
type ReadItem struct {
	Meta *manifest.PayloadItem
	Sink io.Writer
}

type readState struct {
	item      *ReadItem
	pipe      *readPipeline
	remaining int64 // plaintext bytes not yet recovered
	completed bool
}

// ReadMux drives the read-side interleaving loop, the mirror image of
// WriteMux: given the same seed, scheme, and item order, it reproduces the
// identical schedule so each segment it reads belongs to the item the
// scheduler says it does.
type ReadMux struct {
	outer     io.Reader
	items     []*readState
	scheme    Scheme
	scheduler *Scheduler
	src       *prng.Source
	reg       *primreg.Registry
	lookup    PreKeyLookup
}

func NewReadMux(outer io.Reader, items []*ReadItem, scheme Scheme, seed []byte, lookup PreKeyLookup, reg *primreg.Registry) (*ReadMux, error) {
	src, err := prng.New(seed)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.ConfigInvalid, "build mux prng: "+err.Error())
	}
	states := make([]*readState, len(items))
	for i, it := range items {
		states[i] = &readState{item: it, remaining: int64(it.Meta.ExternalLength)}
	}
	return &ReadMux{
		outer:     outer,
		items:     states,
		scheme:    scheme,
		scheduler: NewScheduler(src, len(items)),
		src:       src,
		reg:       reg,
		lookup:    lookup,
	}, nil
}

// Run recovers every item to completion and verifies each one's MAC tag
// against the value recorded in its manifest entry. Mirrors WriteMux.Run:
// each step recovers exactly min(SegmentSize, remaining plaintext bytes)
// of the selected item, the same schedule-determining quantity the writer
// used, computed here from the same declared external_length rather than
// from how cipherR.Read happens to chunk its output.
func (m *ReadMux) Run(ctx context.Context) error {
	buf := make([]byte, m.scheme.SegmentSize())
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		idx := m.scheduler.NextSource(m.completedSlice())
		if idx == -1 {
			break
		}
		st := m.items[idx]

		if pad := m.scheme.OnSelect(m.src, idx); pad > 0 {
			if _, err := io.CopyN(io.Discard, m.outer, int64(pad)); err != nil {
				return obcerrors.Wrap(obcerrors.IoError, "read frameshift padding: "+err.Error())
			}
		}

		if st.pipe == nil {
			pipe, err := m.openPipeline(st)
			if err != nil {
				return err
			}
			st.pipe = pipe
		}

		step := int64(m.scheme.SegmentSize())
		if st.remaining < step {
			step = st.remaining
		}
		if step > 0 {
			chunk := buf[:step]
			if _, err := io.ReadFull(st.pipe.cipherR, chunk); err != nil {
				return obcerrors.Wrap(obcerrors.LengthMismatch, "item "+st.item.Meta.RelativePath+" ciphertext shorter than declared internal_length: "+err.Error())
			}
			if _, err := st.item.Sink.Write(chunk); err != nil {
				return obcerrors.Wrap(obcerrors.IoError, "write item plaintext: "+err.Error())
			}
			st.remaining -= step
		}

		if st.remaining == 0 {
			if err := m.completeItem(st); err != nil {
				return err
			}
		}
	}
	return m.checkAllCompleted()
}

func (m *ReadMux) openPipeline(st *readState) (*readPipeline, error) {
	cipherKey, macKey, err := resolveItemKeys(st.item.Meta, m.lookup, m.reg)
	if err != nil {
		return nil, err
	}
	defer secure.ZeroMultiple(cipherKey, macKey)
	return newReadPipeline(m.outer, st.item.Meta, cipherKey, macKey, m.reg)
}

// completeItem implements the read-side item completion procedure: mix the
// same authenticatable metadata clone into the MacStream and compare the
// recomputed tag against the manifest's stored one in constant time.
func (m *ReadMux) completeItem(st *readState) error {
	clone := st.item.Meta.AuthenticatableClone()
	cloneBytes, err := manifest.MarshalPayloadItem(&clone)
	if err != nil {
		return err
	}
	if err := st.pipe.macR.Update(cloneBytes); err != nil {
		return obcerrors.Wrap(obcerrors.IoError, "mix item metadata into mac: "+err.Error())
	}
	computed := st.pipe.macR.Finish()
	if !secure.EqualConstantTime(computed, st.item.Meta.AuthTag) {
		return obcerrors.NewAuthError(obcerrors.ScopeItem)
	}
	st.completed = true
	return nil
}

func (m *ReadMux) completedSlice() []bool {
	out := make([]bool, len(m.items))
	for i, st := range m.items {
		out[i] = st.completed
	}
	return out
}

func (m *ReadMux) checkAllCompleted() error {
	for _, st := range m.items {
		if !st.completed {
			return obcerrors.Wrap(obcerrors.ConfigInvalid, "item "+st.item.Meta.RelativePath+" never completed")
		}
	}
	return nil
}
