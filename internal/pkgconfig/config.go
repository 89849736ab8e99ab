// Package pkgconfig holds the process-wide configuration objects threaded
// explicitly through Core A and Core B components. Nothing here is a
// package-level mutable variable; every
// component that needs a path, a key, or an LLM location takes one of these
// structs as a constructor argument.
package pkgconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Paths collects the on-disk locations a single-node install resolves
// everything else from.
type Paths struct {
	// DataDir is the root of the mutable runtime state: packs/, the chunk
	// store database, the vector index, and update state.json.
	DataDir string `yaml:"data_dir"`
	// AppDir is the read-only installation directory (binaries, bundled
	// defaults); the llama.cpp binary is looked up under AppDir/bin as a
	// fallback behind DataDir/bin.
	AppDir string `yaml:"app_dir"`
	// RemoteDir is the root a channel's packs are fetched from (a local
	// directory in the offline single-node deployment).
	RemoteDir string `yaml:"remote_dir"`
}

func (p Paths) PacksDir() string   { return join(p.DataDir, "packs") }
func (p Paths) DBPath() string     { return join(p.DataDir, "app.db") }
func (p Paths) VectorDir() string  { return join(p.DataDir, "vector") }
func (p Paths) BinDir() string     { return join(p.DataDir, "bin") }
func (p Paths) AppBinDir() string  { return join(p.AppDir, "bin") }
func (p Paths) ModelDir() string   { return join(p.DataDir, "models") }

func join(parts ...string) string {
	out := ""
	for i, p := range parts {
		if p == "" {
			continue
		}
		if out == "" {
			out = p
		} else {
			out += "/" + p
		}
		_ = i
	}
	return out
}

// Channel identifies which update channel a node tracks and the Ed25519
// public key (base64, raw 32 bytes) used to verify that channel's packs.
type Channel struct {
	Name      string `yaml:"channel"`
	PublicKey string `yaml:"public_key_b64"`
}

// LLM locates the sidecar LLM subprocess and its default generation
// parameters.
type LLM struct {
	BinPath   string  `yaml:"bin_path"`
	ModelPath string  `yaml:"model_path"`
	Timeout   int     `yaml:"timeout_sec"`
	Temp      float64 `yaml:"temperature"`
	TopP      float64 `yaml:"top_p"`
	TopK      int     `yaml:"top_k"`
}

// Retrieval tunes the defaults for query planning and hybrid fusion;
// overfetch factors are fixed constants (not configurable), so they
// are not fields here.
type Retrieval struct {
	DefaultTopN     int `yaml:"default_top_n"`
	PlannerMaxAtoms int `yaml:"planner_max_atoms"`
}

// Config is the root, file-backed configuration object. It is loaded once
// at process start and threaded explicitly into every constructor that
// needs it; nothing reads it from a package global.
type Config struct {
	Paths     Paths     `yaml:"paths"`
	Channel   Channel   `yaml:"channel"`
	LLM       LLM       `yaml:"llm"`
	Retrieval Retrieval `yaml:"retrieval"`
}

// Default returns a Config with the same fallbacks the Python prototype
// applied when environment variables were unset.
func Default(dataDir, appDir string) Config {
	return Config{
		Paths: Paths{DataDir: dataDir, AppDir: appDir},
		LLM: LLM{
			Timeout: 120,
			Temp:    0.1,
			TopP:    0.95,
			TopK:    40,
		},
		Retrieval: Retrieval{
			DefaultTopN:     10,
			PlannerMaxAtoms: 6,
		},
	}
}

// Load reads a YAML config file, overlaying it on Default(dataDir, appDir).
func Load(path, dataDir, appDir string) (Config, error) {
	cfg := Default(dataDir, appDir)
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
