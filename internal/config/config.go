// Package config handles packaging manifest parsing and location resolution.
package config

import (
	"os"
	"path/filepath"

	"github.com/a-lang/a/internal/types"
)

// ManifestEnvVar names a manifest to use when --manifest is not given.
const ManifestEnvVar = "APACK_MANIFEST"

// DefaultDocs are the documentation files every package carries.
var DefaultDocs = []string{"README.md", "syntax.md"}

// Installers overrides the embedded installer scripts with files on disk.
type Installers struct {
	Posix   string `yaml:"posix,omitempty" toml:"posix,omitempty" json:"posix,omitempty"`
	Windows string `yaml:"windows,omitempty" toml:"windows,omitempty" json:"windows,omitempty"`
}

// Manifest describes what goes into a distribution package besides the binary.
type Manifest struct {
	Docs       []string   `yaml:"docs" toml:"docs" json:"docs"`
	Formats    []string   `yaml:"formats" toml:"formats" json:"formats"`
	Installers Installers `yaml:"installers" toml:"installers" json:"installers"`

	// Dir is the directory relative paths in the manifest resolve against.
	Dir string `yaml:"-" toml:"-" json:"-"`
}

// Default returns the manifest used when no file is given.
func Default() *Manifest {
	return &Manifest{
		Docs:    append([]string(nil), DefaultDocs...),
		Formats: []string{types.ArchiveTarGz.String()},
	}
}

// ArchiveFormats returns the configured formats in order, without duplicates.
func (m *Manifest) ArchiveFormats() []types.ArchiveFormat {
	seen := make(map[types.ArchiveFormat]bool, len(m.Formats))
	var out []types.ArchiveFormat
	for _, f := range m.Formats {
		af := types.ArchiveFormat(f)
		if seen[af] {
			continue
		}
		seen[af] = true
		out = append(out, af)
	}
	return out
}

// Resolve returns p joined to the manifest directory unless it is absolute.
func (m *Manifest) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) || m.Dir == "" {
		return p
	}
	return filepath.Join(m.Dir, p)
}

// manifestNames are searched in order inside the working directory.
var manifestNames = []string{
	"apack.toml",
	"apack.yaml",
	"apack.yml",
	"apack.json",
	".apack.toml",
	".apack.yaml",
	".apack.yml",
	".apack.json",
}

// Find locates a manifest. An explicit path must exist; otherwise the
// APACK_MANIFEST environment variable and then dir are searched. It returns
// "" with a nil error when nothing is found, since the manifest is optional.
func Find(dir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", types.Wrap(types.KindConfiguration, "manifest", err,
				"specified manifest not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(ManifestEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	for _, name := range manifestNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", nil
}

// Load reads and parses a manifest from the given path. Missing fields take
// their defaults.
func Load(path string) (*Manifest, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, "manifest", err, "failed to read manifest")
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, types.Newf(types.KindConfiguration, "manifest",
			"unable to detect file format for %s", path).
			WithHint("Use a .toml, .yaml or .json extension.")
	}

	m, err := parse(content, format)
	if err != nil {
		return nil, types.Wrap(types.KindConfiguration, "manifest", err, "invalid manifest %s", path)
	}
	if abs, err := filepath.Abs(filepath.Dir(path)); err == nil {
		m.Dir = abs
	}

	if err := Validate(m); err != nil {
		return nil, types.Wrap(types.KindConfiguration, "manifest", err, "invalid manifest %s", path)
	}
	return m, nil
}

// LoadOrDefault finds and loads a manifest, falling back to Default.
func LoadOrDefault(dir, explicitPath string) (*Manifest, error) {
	path, err := Find(dir, explicitPath)
	if err != nil {
		return nil, err
	}
	if path == "" {
		m := Default()
		m.Dir = dir
		return m, nil
	}
	return Load(path)
}
