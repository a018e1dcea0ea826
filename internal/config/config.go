// Package config loads the default primitive choices PackageWriter/the CLI
// fall back to when a caller doesn't name one explicitly: cipher/MAC/KDF
// names, PRNG name, and Frameshift pad bounds. Grounded on the teacher's
// flag-then-built-in-default precedence in internal/cli/root.go and
// encrypt.go's flag set, generalized from "flag or fixed built-in" to
// "flag, then environment override, then TOML file, then built-in
// default" via github.com/BurntSushi/toml — already an indirect teacher
// dependency (pulled in by fyne), promoted here to a direct one since
// config loading is a concern every package-writing path can exercise.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Defaults names the primitive choices a caller can leave unspecified.
type Defaults struct {
	BlockCipherName  string `toml:"block_cipher"`
	StreamCipherName string `toml:"stream_cipher"`
	Mode             string `toml:"mode"`
	Padding          string `toml:"padding"`
	MacName          string `toml:"mac"`
	KdfAlgorithm     string `toml:"kdf_algorithm"`
	ScryptN          int    `toml:"scrypt_n"`
	ScryptR          int    `toml:"scrypt_r"`
	ScryptP          int    `toml:"scrypt_p"`
	PBKDF2Iterations int    `toml:"pbkdf2_iterations"`
	PBKDF2HashName   string `toml:"pbkdf2_hash"`
	PrngName         string `toml:"prng"`
	PayloadScheme    string `toml:"payload_scheme"`
	FrameshiftPadMin int    `toml:"frameshift_pad_min"`
	FrameshiftPadMax int    `toml:"frameshift_pad_max"`
}

// Config is the top-level TOML document shape.
type Config struct {
	Defaults Defaults `toml:"defaults"`
}

// Default returns the built-in configuration: XChaCha20-equivalent stream
// cipher, HMAC-SHA3-512, scrypt at an interactive cost, the Simple payload
// scheme with no Frameshift padding beyond a small fixed range.
func Default() Config {
	return Config{Defaults: Defaults{
		StreamCipherName: "chacha20",
		MacName:          "hmac-sha3-512",
		KdfAlgorithm:     "scrypt",
		ScryptN:          1 << 15,
		ScryptR:          8,
		ScryptP:          1,
		PBKDF2Iterations: 600_000,
		PBKDF2HashName:   "sha3-512",
		PrngName:         "chacha20-csprng",
		PayloadScheme:    "Simple",
		FrameshiftPadMin: 16,
		FrameshiftPadMax: 256,
	}}
}

// Load reads a TOML file at path over Default()'s values, then applies
// environment overrides. A missing file at path is not an error — it
// falls back to Default() silently, the same way the teacher's CLI flags
// fall back to their declared defaults when unset. An empty path skips
// the file entirely.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	return applyEnvOverrides(cfg), nil
}

// applyEnvOverrides applies environment overrides for individual defaults
// without editing the TOML file, for CI and scripted use. Precedence is:
// CLI flag (applied by the caller after Load) > environment > TOML file >
// Default().
func applyEnvOverrides(cfg Config) Config {
	if v := os.Getenv("OBSCURCORE_MAC"); v != "" {
		cfg.Defaults.MacName = v
	}
	if v := os.Getenv("OBSCURCORE_KDF_ALGORITHM"); v != "" {
		cfg.Defaults.KdfAlgorithm = v
	}
	if v := os.Getenv("OBSCURCORE_PAYLOAD_SCHEME"); v != "" {
		cfg.Defaults.PayloadScheme = v
	}
	return cfg
}
