// Package platform resolves the host (or an explicit override) into the
// canonical os/arch pair used for release asset names and staging paths.
//
// The canonical spellings are fixed: os is one of windows, macos, linux and
// arch is one of x86_64, aarch64, i686. Every alias the Go toolchain, uname
// or compiler triples produce is normalized here and nowhere else.
package platform

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/a-lang/a/internal/types"
)

// BinaryBase is the name of the shipped executable without extension.
const BinaryBase = "a"

const stepDetect = "detect platform"

// OS is a canonical operating system name.
type OS string

const (
	OSWindows OS = "windows"
	OSMacOS   OS = "macos"
	OSLinux   OS = "linux"
)

// Arch is a canonical CPU architecture name.
type Arch string

const (
	ArchX86_64  Arch = "x86_64"
	ArchAArch64 Arch = "aarch64"
	ArchI686    Arch = "i686"
)

// osAliases maps every accepted spelling to its canonical OS.
var osAliases = map[string]OS{
	"windows": OSWindows,
	"win":     OSWindows,
	"win32":   OSWindows,
	"win64":   OSWindows,
	"darwin":  OSMacOS,
	"macos":   OSMacOS,
	"mac":     OSMacOS,
	"osx":     OSMacOS,
	"apple":   OSMacOS,
	"linux":   OSLinux,
}

// archAliases maps every accepted spelling to its canonical Arch.
var archAliases = map[string]Arch{
	"x86_64":  ArchX86_64,
	"amd64":   ArchX86_64,
	"x64":     ArchX86_64,
	"x86-64":  ArchX86_64,
	"aarch64": ArchAArch64,
	"arm64":   ArchAArch64,
	"armv8":   ArchAArch64,
	"i686":    ArchI686,
	"i386":    ArchI686,
	"386":     ArchI686,
	"x86":     ArchI686,
}

// Target is an immutable os/arch pair.
type Target struct {
	OS   OS   `json:"os" yaml:"os"`
	Arch Arch `json:"arch" yaml:"arch"`
}

// NormalizeOS converts an OS alias to its canonical form.
func NormalizeOS(s string) (OS, error) {
	if os, ok := osAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return os, nil
	}
	return "", types.Newf(types.KindUnsupportedPlatform, stepDetect, "unsupported operating system %q", s).
		WithHint("supported operating systems: windows, macos, linux")
}

// NormalizeArch converts an architecture alias to its canonical form.
func NormalizeArch(s string) (Arch, error) {
	if arch, ok := archAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return arch, nil
	}
	return "", types.Newf(types.KindUnsupportedPlatform, stepDetect, "unsupported architecture %q", s).
		WithHint("supported architectures: x86_64, aarch64, i686")
}

// For builds a Target from any pair of OS and architecture aliases,
// typically runtime.GOOS and runtime.GOARCH.
func For(goos, goarch string) (Target, error) {
	os, err := NormalizeOS(goos)
	if err != nil {
		return Target{}, err
	}
	arch, err := NormalizeArch(goarch)
	if err != nil {
		return Target{}, err
	}
	return Target{OS: os, Arch: arch}, nil
}

// Detect returns the Target the running binary was built for.
func Detect() (Target, error) {
	return For(runtime.GOOS, runtime.GOARCH)
}

// Parse resolves an explicit target override. Accepted forms:
//
//	linux-x86_64, darwin/arm64, macos_aarch64      (os then arch)
//	aarch64-apple-darwin, x86_64-unknown-linux-gnu (compiler triples)
//	x86_64-pc-windows-msvc
func Parse(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Detect()
	}
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '-' || r == '/' || r == '_'
	})
	// x86_64 and x86-64 contain a separator themselves; stitch them back together.
	parts = rejoinX86_64(parts)

	if len(parts) == 2 {
		if t, err := For(parts[0], parts[1]); err == nil {
			return t, nil
		}
		if t, err := For(parts[1], parts[0]); err == nil {
			return t, nil
		}
	}

	if len(parts) >= 2 {
		arch, err := NormalizeArch(parts[0])
		if err == nil {
			for _, p := range parts[1:] {
				if os, ok := osAliases[p]; ok {
					return Target{OS: os, Arch: arch}, nil
				}
			}
		}
	}

	return Target{}, types.Newf(types.KindUnsupportedPlatform, stepDetect, "cannot map target %q to a supported platform", s).
		WithHint("use <os>-<arch>, e.g. linux-x86_64 or macos-aarch64")
}

func rejoinX86_64(parts []string) []string {
	out := make([]string, 0, len(parts))
	for i := 0; i < len(parts); i++ {
		if parts[i] == "x86" && i+1 < len(parts) && parts[i+1] == "64" {
			out = append(out, "x86_64")
			i++
			continue
		}
		out = append(out, parts[i])
	}
	return out
}

// Supported returns every Target a release is expected to carry an asset for.
func Supported() []Target {
	return []Target{
		{OS: OSLinux, Arch: ArchX86_64},
		{OS: OSLinux, Arch: ArchAArch64},
		{OS: OSMacOS, Arch: ArchX86_64},
		{OS: OSMacOS, Arch: ArchAArch64},
		{OS: OSWindows, Arch: ArchX86_64},
		{OS: OSWindows, Arch: ArchAArch64},
	}
}

// String returns "<os>-<arch>".
func (t Target) String() string {
	return fmt.Sprintf("%s-%s", t.OS, t.Arch)
}

// IsWindows reports whether the target uses Windows conventions.
func (t Target) IsWindows() bool {
	return t.OS == OSWindows
}

// ExeSuffix returns ".exe" on Windows and "" elsewhere.
func (t Target) ExeSuffix() string {
	if t.IsWindows() {
		return ".exe"
	}
	return ""
}

// BinaryName returns the executable filename inside an install or staging
// bin directory, e.g. "a" or "a.exe".
func (t Target) BinaryName() string {
	return BinaryBase + t.ExeSuffix()
}

// AssetName returns the release asset and raw package filename,
// e.g. "a-linux-x86_64" or "a-windows-x86_64.exe".
func (t Target) AssetName() string {
	return fmt.Sprintf("%s-%s-%s%s", BinaryBase, t.OS, t.Arch, t.ExeSuffix())
}

// ArchiveName returns the compressed package filename, e.g. "a-macos-aarch64.tar.gz".
func (t Target) ArchiveName(format types.ArchiveFormat) string {
	return fmt.Sprintf("%s-%s-%s%s", BinaryBase, t.OS, t.Arch, format.Extension())
}

// ElevationHint names how to gain the privilege a system-wide install
// needs on t.
func (t Target) ElevationHint() string {
	if t.IsWindows() {
		return "Run the command from a terminal opened with \"Run as administrator\"."
	}
	return "Re-run the command with sudo."
}

// ElevationHint is Target.ElevationHint for the host OS.
func ElevationHint() string {
	if runtime.GOOS == "windows" {
		return Target{OS: OSWindows}.ElevationHint()
	}
	return Target{}.ElevationHint()
}
