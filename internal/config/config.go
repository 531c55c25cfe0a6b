// Package config loads and saves the engine's tunables the same way the
// teacher loads its own settings (config.go): a TOML file under an
// XDG-style directory, written once at first run and re-read on every
// subsequent start.
package config

import (
	"bytes"
	"log"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EngineConfig holds the knobs spec.md's Open Questions ask to be made
// configurable, plus the frame rate and lock-key set the design notes
// say should be precomputed once at startup.
type EngineConfig struct {
	FrameRate int // animation ticks per second, spec.md §4.C10 default 60
	// ShapeRectSanityLimit is the maximum number of bounding rectangles
	// the shape engine will accept from the server before treating the
	// window as unshaped (spec.md §9 Open Questions; original uses 4096).
	ShapeRectSanityLimit int
	// NoSyncDebugMask: sync(mask) is a no-op when mask&NoSyncDebugMask != 0.
	NoSyncDebugMask uint32
	// LockModifiers names modifier bits treated as "lock keys". The grab
	// manager does not read this field; it expands grabs over its own
	// fixed Lock/Mod2/Mod3 set (spec.md §4.C7).
	LockModifiers []string
	// SystrayScreen selects which screen's _NET_SYSTEM_TRAY_S<N>
	// selection the systray module acquires.
	SystrayScreen int
}

const fileName = "e16go.toml"

// Default returns the engine configuration used when no config file is
// present yet, mirroring the teacher's initializeConfigIfNot defaults.
func Default() EngineConfig {
	return EngineConfig{
		FrameRate:            60,
		ShapeRectSanityLimit: 4096,
		NoSyncDebugMask:      0,
		LockModifiers:        []string{"Lock", "Mod2", "Mod3", "Mod5"},
		SystrayScreen:        0,
	}
}

// Dir resolves the configuration directory, falling back to
// $HOME/.config/e16go when $XDG_CONFIG_HOME is unset, exactly the
// pattern of the teacher's xdgOrFallback/configDir helpers.
func Dir() string {
	return filepath.Join(xdgOrFallback("XDG_CONFIG_HOME", filepath.Join(os.Getenv("HOME"), ".config")), "e16go")
}

// EnsureInitialized writes the default config file if one does not yet
// exist, matching the teacher's initializeConfigIfNot.
func EnsureInitialized() error {
	dir := Dir()
	if ok, err := exists(dir); err != nil {
		return err
	} else if !ok {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	f := filepath.Join(dir, fileName)
	if ok, err := exists(f); err != nil {
		return err
	} else if !ok {
		log.Println("initializing engine config")
		return Save(Default())
	}
	return nil
}

// Load reads the engine config from disk.
func Load() (EngineConfig, error) {
	f := filepath.Join(Dir(), fileName)
	var cfg EngineConfig
	if _, err := toml.DecodeFile(f, &cfg); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// Save writes the engine config to disk, creating Dir() if needed.
func Save(cfg EngineConfig) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}
	f := filepath.Join(Dir(), fileName)
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(&cfg); err != nil {
		return err
	}
	return os.WriteFile(f, buf.Bytes(), 0o644)
}

func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func xdgOrFallback(xdg, fallback string) string {
	dir := os.Getenv(xdg)
	if dir != "" {
		if ok, err := exists(dir); ok && err == nil {
			return dir
		}
	}
	return fallback
}
