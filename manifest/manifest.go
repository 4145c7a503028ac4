// Package manifest handles angstrom.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/angstrom/vm"
)

// FileName is the name of the project configuration file.
const FileName = "angstrom.toml"

// Manifest represents an angstrom.toml project configuration.
type Manifest struct {
	Project Project  `toml:"project"`
	VM      VMConfig `toml:"vm"`
	Log     Log      `toml:"log"`

	// Dir is the directory containing the angstrom.toml file (set at load
	// time). Empty for the default manifest.
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMConfig configures the virtual machine.
type VMConfig struct {
	StackSize   int  `toml:"stack-size"`
	GCThreshold int  `toml:"gc-threshold"`
	Trace       bool `toml:"trace"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	Path      string `toml:"path"`
}

// Default returns the manifest used when no angstrom.toml is found.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

func (m *Manifest) applyDefaults() {
	if m.VM.StackSize <= 0 {
		m.VM.StackSize = vm.DefaultStackSize
	}
	if m.VM.GCThreshold <= 0 {
		m.VM.GCThreshold = vm.DefaultGCThreshold
	}
}

// Load parses an angstrom.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find an angstrom.toml file, then
// loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// EntryPath returns the absolute path of the project entry script, or ""
// when none is configured.
func (m *Manifest) EntryPath() string {
	if m.Project.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Project.Entry) || m.Dir == "" {
		return m.Project.Entry
	}
	return filepath.Join(m.Dir, m.Project.Entry)
}

// LogPath returns the absolute path of the log file, or "" to log to
// stderr.
func (m *Manifest) LogPath() string {
	if m.Log.Path == "" || filepath.IsAbs(m.Log.Path) || m.Dir == "" {
		return m.Log.Path
	}
	return filepath.Join(m.Dir, m.Log.Path)
}

// VMOptions converts the [vm] section into VM construction parameters.
// Tracing needs a writer and is wired by the caller.
func (m *Manifest) VMOptions() vm.Config {
	return vm.Config{
		StackSize:   m.VM.StackSize,
		GCThreshold: m.VM.GCThreshold,
	}
}
