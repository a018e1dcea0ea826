package mux

import (
	"github.com/vmihailenco/msgpack/v5"

	"github.com/obscurcore/obscurcore/internal/obcerrors"
	"github.com/obscurcore/obscurcore/internal/prng"
)

// segmentSize is op_buf_size from spec.md §4.8: the per-step transfer cap
// for whichever item the scheduler selects.
const segmentSize = 4096

// Scheme is the PayloadMux scheme variant contract: every variant shares
// the same outer scheduling loop, differing only in what (if anything)
// happens between segment transitions.
type Scheme interface {
	Name() string
	SegmentSize() int
	// OnSelect is called once per scheduling step, before transferring
	// itemIdx's segment, and returns how many bytes of CSPRNG padding to
	// write directly into the outer stream (outside every item's MAC).
	OnSelect(src *prng.Source, itemIdx int) int
}

// SimpleScheme interleaves items with no inter-segment padding.
type SimpleScheme struct{}

func NewSimpleScheme() *SimpleScheme { return &SimpleScheme{} }

func (s *SimpleScheme) Name() string                               { return "Simple" }
func (s *SimpleScheme) SegmentSize() int                           { return segmentSize }
func (s *SimpleScheme) OnSelect(src *prng.Source, itemIdx int) int { return 0 }

// FrameshiftConfig is FrameshiftScheme's serialized scheme_config.
type FrameshiftConfig struct {
	PadMin int `msgpack:"pad_min"`
	PadMax int `msgpack:"pad_max"`
}

// FrameshiftScheme emits a random padding run of [PadMin,PadMax] CSPRNG
// bytes directly into the outer stream ahead of every segment, outside any
// item's MAC — a reader skips it by knowing the manifest-declared internal
// lengths, never by scanning for a marker.
type FrameshiftScheme struct {
	cfg FrameshiftConfig
}

func NewFrameshiftScheme(cfg FrameshiftConfig) (*FrameshiftScheme, error) {
	if cfg.PadMin < 0 || cfg.PadMax < cfg.PadMin {
		return nil, obcerrors.NewConfigError("frameshift", errBadPadRange())
	}
	return &FrameshiftScheme{cfg: cfg}, nil
}

func (s *FrameshiftScheme) Name() string     { return "Frameshift" }
func (s *FrameshiftScheme) SegmentSize() int { return segmentSize }

func (s *FrameshiftScheme) OnSelect(src *prng.Source, itemIdx int) int {
	if s.cfg.PadMax == s.cfg.PadMin {
		return s.cfg.PadMin
	}
	return src.NextInt(s.cfg.PadMin, s.cfg.PadMax+1)
}

// MarshalSchemeConfig serializes a scheme-specific config for
// PayloadConfig.SchemeConfig.
func MarshalSchemeConfig(v interface{}) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, obcerrors.Wrap(obcerrors.FormatInvalid, "marshal scheme config: "+err.Error())
	}
	return b, nil
}

// UnmarshalFrameshiftConfig parses a PayloadConfig.SchemeConfig blob for
// the Frameshift scheme.
func UnmarshalFrameshiftConfig(data []byte) (FrameshiftConfig, error) {
	var cfg FrameshiftConfig
	if err := msgpack.Unmarshal(data, &cfg); err != nil {
		return cfg, obcerrors.Wrap(obcerrors.FormatInvalid, "unmarshal frameshift config: "+err.Error())
	}
	return cfg, nil
}

// SchemeByName builds a Scheme from its PayloadConfig-declared name and
// opaque config bytes.
func SchemeByName(name string, schemeConfig []byte) (Scheme, error) {
	switch name {
	case "Simple":
		return NewSimpleScheme(), nil
	case "Frameshift":
		cfg, err := UnmarshalFrameshiftConfig(schemeConfig)
		if err != nil {
			return nil, err
		}
		return NewFrameshiftScheme(cfg)
	default:
		return nil, obcerrors.NewConfigError("payload_config.scheme_name", errUnknownScheme(name))
	}
}

type unknownSchemeErr struct{ name string }

func (e *unknownSchemeErr) Error() string { return "unknown payload mux scheme: " + e.name }
func errUnknownScheme(name string) error  { return &unknownSchemeErr{name: name} }

type badPadRangeErr struct{}

func (e *badPadRangeErr) Error() string { return "frameshift pad_min/pad_max out of range" }
func errBadPadRange() error             { return &badPadRangeErr{} }
