// Package templates provides the embedded installer scripts shipped in every
// distribution package.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"

	"github.com/a-lang/a/internal/platform"
)

//go:embed install.sh install.ps1
var templatesFS embed.FS

const (
	// Posix is the installer for Linux and macOS packages.
	Posix = "install.sh"
	// Windows is the installer for Windows packages.
	Windows = "install.ps1"
)

// Template is an installer script with metadata.
type Template struct {
	Name        string
	Description string
	Mode        fs.FileMode
	Content     []byte
}

var templateDescriptions = map[string]string{
	Posix:   "POSIX shell installer (Linux, macOS)",
	Windows: "PowerShell installer (Windows)",
}

// List returns all available template names sorted alphabetically.
func List() []string {
	entries, err := templatesFS.ReadDir(".")
	if err != nil {
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	content, err := templatesFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("template '%s' not found (available: %s): %w", name, strings.Join(List(), ", "), err)
	}
	return newTemplate(name, content), nil
}

// NameFor returns the installer name a target's package carries.
func NameFor(t platform.Target) string {
	if t.IsWindows() {
		return Windows
	}
	return Posix
}

// ForTarget returns the installer for t. A non-empty override path replaces
// the embedded script with a file on disk, keeping the packaged name.
func ForTarget(t platform.Target, override string) (*Template, error) {
	name := NameFor(t)
	if override == "" {
		return Get(name)
	}
	content, err := os.ReadFile(override)
	if err != nil {
		return nil, fmt.Errorf("failed to read installer override: %w", err)
	}
	tmpl := newTemplate(name, content)
	tmpl.Description = "Custom installer (" + override + ")"
	return tmpl, nil
}

// GetDescription returns the description for a template.
func GetDescription(name string) string {
	if desc, ok := templateDescriptions[name]; ok {
		return desc
	}
	return "Custom installer"
}

// Validate checks that the script is non-empty and, for the POSIX installer,
// that it parses as POSIX shell.
func (t *Template) Validate() error {
	if len(bytes.TrimSpace(t.Content)) == 0 {
		return fmt.Errorf("installer %s is empty", t.Name)
	}
	if t.Name != Posix {
		return nil
	}
	parser := syntax.NewParser(syntax.Variant(syntax.LangPOSIX))
	if _, err := parser.Parse(bytes.NewReader(t.Content), t.Name); err != nil {
		return fmt.Errorf("installer %s is not valid POSIX shell: %w", t.Name, err)
	}
	if !bytes.HasPrefix(t.Content, []byte("#!")) {
		return fmt.Errorf("installer %s has no #! line", t.Name)
	}
	return nil
}

func newTemplate(name string, content []byte) *Template {
	mode := fs.FileMode(0o644)
	if name == Posix {
		mode = 0o755
	}
	return &Template{
		Name:        name,
		Description: GetDescription(name),
		Mode:        mode,
		Content:     content,
	}
}
