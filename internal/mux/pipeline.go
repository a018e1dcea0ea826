package mux

import (
	"hash"
	"io"

	"github.com/obscurcore/obscurcore/internal/cstream"
	"github.com/obscurcore/obscurcore/internal/engine"
	"github.com/obscurcore/obscurcore/internal/macstream"
	"github.com/obscurcore/obscurcore/internal/manifest"
	"github.com/obscurcore/obscurcore/internal/primreg"
)

// buildEngineConfig translates a manifest.CipherConfig plus a resolved key
// into an engine.Config.
func buildEngineConfig(cfg manifest.CipherConfig, key []byte) engine.Config {
	return engine.Config{
		BlockCipherName:  cfg.BlockCipherName,
		StreamCipherName: cfg.StreamCipherName,
		Mode:             engine.Mode(cfg.Mode),
		Padding:          engine.Padding(cfg.Padding),
		Key:              key,
		IVOrNonce:        cfg.IVOrNonce,
	}
}

// writePipeline is the Encrypt-then-MAC stack for one item, writer side:
// plaintext flows in through cipherW, which emits ciphertext into macW,
// which forwards it unchanged onto the outer stream while accumulating
// the MAC.
type writePipeline struct {
	mac     hash.Hash
	macW    *macstream.Writer
	cipher  engine.Variant
	cipherW *cstream.Writer
}

func newWritePipeline(outer io.Writer, item *manifest.PayloadItem, cipherKey, macKey []byte, reg *primreg.Registry) (*writePipeline, error) {
	macFactory, err := reg.Mac(item.AuthCfg.MacName)
	if err != nil {
		return nil, err
	}
	mac, err := macFactory.New(macKey)
	if err != nil {
		return nil, err
	}
	macW := macstream.NewWriter(outer, mac)

	variant, err := engine.New(buildEngineConfig(item.CipherCfg, cipherKey), reg)
	if err != nil {
		return nil, err
	}
	cipherW, err := cstream.NewWriter(macW, variant)
	if err != nil {
		return nil, err
	}
	return &writePipeline{mac: mac, macW: macW, cipher: variant, cipherW: cipherW}, nil
}

// readPipeline is the reader-side counterpart: outer ciphertext bytes for
// this item only (bounded by an io.LimitReader over item.InternalLength)
// flow through macR, which both forwards them to cipherR and accumulates
// the same MAC the writer computed, and cipherR emits plaintext.
type readPipeline struct {
	mac     hash.Hash
	macR    *macstream.Reader
	cipher  engine.Variant
	cipherR *cstream.Reader
}

func newReadPipeline(outer io.Reader, item *manifest.PayloadItem, cipherKey, macKey []byte, reg *primreg.Registry) (*readPipeline, error) {
	macFactory, err := reg.Mac(item.AuthCfg.MacName)
	if err != nil {
		return nil, err
	}
	mac, err := macFactory.New(macKey)
	if err != nil {
		return nil, err
	}
	limited := io.LimitReader(outer, int64(item.InternalLength))
	macR := macstream.NewReader(limited, mac)

	variant, err := engine.New(buildEngineConfig(item.CipherCfg, cipherKey), reg)
	if err != nil {
		return nil, err
	}
	engine.SetForDecrypt(variant)
	cipherR, err := cstream.NewReader(macR, variant)
	if err != nil {
		return nil, err
	}
	return &readPipeline{mac: mac, macR: macR, cipher: variant, cipherR: cipherR}, nil
}
