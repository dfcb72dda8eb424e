package platform

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/a-lang/a/internal/types"
)

func TestDetect(t *testing.T) {
	want, err := For(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("test host %s/%s is not a supported platform", runtime.GOOS, runtime.GOARCH)
	}

	got, err := Detect()
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if got != want {
		t.Errorf("Detect() = %v, want %v", got, want)
	}
}

func TestFor(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         Target
	}{
		{"linux", "amd64", Target{OSLinux, ArchX86_64}},
		{"linux", "arm64", Target{OSLinux, ArchAArch64}},
		{"darwin", "arm64", Target{OSMacOS, ArchAArch64}},
		{"darwin", "amd64", Target{OSMacOS, ArchX86_64}},
		{"windows", "amd64", Target{OSWindows, ArchX86_64}},
		{"windows", "386", Target{OSWindows, ArchI686}},
		{"macos", "aarch64", Target{OSMacOS, ArchAArch64}},
		{"Linux", "X86_64", Target{OSLinux, ArchX86_64}},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			got, err := For(tt.goos, tt.goarch)
			if err != nil {
				t.Fatalf("For() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("For() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestForUnsupported(t *testing.T) {
	tests := []struct {
		goos, goarch string
	}{
		{"freebsd", "amd64"},
		{"linux", "mips"},
		{"plan9", "riscv64"},
	}

	for _, tt := range tests {
		t.Run(tt.goos+"/"+tt.goarch, func(t *testing.T) {
			_, err := For(tt.goos, tt.goarch)
			if !errors.Is(err, types.ErrUnsupportedPlatform) {
				t.Errorf("For() error = %v, want UnsupportedPlatform", err)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Target
	}{
		{"linux-x86_64", Target{OSLinux, ArchX86_64}},
		{"macos-aarch64", Target{OSMacOS, ArchAArch64}},
		{"darwin/arm64", Target{OSMacOS, ArchAArch64}},
		{"windows_amd64", Target{OSWindows, ArchX86_64}},
		{"arm64-linux", Target{OSLinux, ArchAArch64}},
		{"aarch64-apple-darwin", Target{OSMacOS, ArchAArch64}},
		{"x86_64-unknown-linux-gnu", Target{OSLinux, ArchX86_64}},
		{"x86_64-pc-windows-msvc", Target{OSWindows, ArchX86_64}},
		{"i686-pc-windows-gnu", Target{OSWindows, ArchI686}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"linux", "sparc-sun-solaris", "freebsd-x86_64", "x86_64-unknown-freebsd"} {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			if !errors.Is(err, types.ErrUnsupportedPlatform) {
				t.Errorf("Parse(%q) error = %v, want UnsupportedPlatform", input, err)
			}
		})
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		target  Target
		asset   string
		binary  string
		archive string
	}{
		{Target{OSLinux, ArchX86_64}, "a-linux-x86_64", "a", "a-linux-x86_64.tar.gz"},
		{Target{OSMacOS, ArchAArch64}, "a-macos-aarch64", "a", "a-macos-aarch64.tar.gz"},
		{Target{OSWindows, ArchX86_64}, "a-windows-x86_64.exe", "a.exe", "a-windows-x86_64.tar.gz"},
	}

	for _, tt := range tests {
		t.Run(tt.target.String(), func(t *testing.T) {
			if got := tt.target.AssetName(); got != tt.asset {
				t.Errorf("AssetName() = %q, want %q", got, tt.asset)
			}
			if got := tt.target.BinaryName(); got != tt.binary {
				t.Errorf("BinaryName() = %q, want %q", got, tt.binary)
			}
			if got := tt.target.ArchiveName(types.ArchiveTarGz); got != tt.archive {
				t.Errorf("ArchiveName() = %q, want %q", got, tt.archive)
			}
		})
	}
}

func TestAssetNamesAreUnique(t *testing.T) {
	seen := make(map[string]Target)
	for _, target := range Supported() {
		name := target.AssetName()
		if prev, ok := seen[name]; ok {
			t.Errorf("%v and %v share asset name %q", prev, target, name)
		}
		seen[name] = target

		parsed, err := Parse(target.String())
		if err != nil {
			t.Errorf("Parse(%q) error = %v", target.String(), err)
			continue
		}
		if parsed != target {
			t.Errorf("Parse(String()) = %v, want %v", parsed, target)
		}
	}
}

func TestDetectNative(t *testing.T) {
	build, err := Detect()
	if err != nil {
		t.Skip("unsupported test host")
	}

	orig, origTranslated := kernelArch, translated
	t.Cleanup(func() { kernelArch, translated = orig, origTranslated })
	translated = func() bool { return false }

	t.Run("kernel differs", func(t *testing.T) {
		kernelArch = func(context.Context) (string, error) { return "arm64", nil }
		got, err := DetectNative(context.Background())
		if err != nil {
			t.Fatalf("DetectNative() error = %v", err)
		}
		if got.Arch != ArchAArch64 || got.OS != build.OS {
			t.Errorf("DetectNative() = %v, want %s-aarch64", got, build.OS)
		}
	})

	t.Run("lookup fails", func(t *testing.T) {
		kernelArch = func(context.Context) (string, error) { return "", errors.New("no sysctl") }
		got, err := DetectNative(context.Background())
		if err != nil {
			t.Fatalf("DetectNative() error = %v", err)
		}
		if got != build {
			t.Errorf("DetectNative() = %v, want build target %v", got, build)
		}
	})

	t.Run("unknown kernel arch", func(t *testing.T) {
		kernelArch = func(context.Context) (string, error) { return "s390x", nil }
		got, err := DetectNative(context.Background())
		if err != nil {
			t.Fatalf("DetectNative() error = %v", err)
		}
		if got != build {
			t.Errorf("DetectNative() = %v, want build target %v", got, build)
		}
	})
}

func TestNativeForRosetta(t *testing.T) {
	origArch, origTranslated := kernelArch, translated
	t.Cleanup(func() { kernelArch, translated = origArch, origTranslated })

	// uname inside a translated process reports the emulated architecture.
	kernelArch = func(context.Context) (string, error) { return "x86_64", nil }
	translated = func() bool { return true }

	tests := []struct {
		name  string
		build Target
		want  Target
	}{
		{"translated macos build", Target{OSMacOS, ArchX86_64}, Target{OSMacOS, ArchAArch64}},
		{"native macos build", Target{OSMacOS, ArchAArch64}, Target{OSMacOS, ArchX86_64}},
		{"linux ignores the flag", Target{OSLinux, ArchX86_64}, Target{OSLinux, ArchX86_64}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nativeFor(context.Background(), tt.build)
			if err != nil {
				t.Fatalf("nativeFor() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("nativeFor(%v) = %v, want %v", tt.build, got, tt.want)
			}
		})
	}

	translated = func() bool { return false }
	if got, _ := nativeFor(context.Background(), Target{OSMacOS, ArchX86_64}); got != (Target{OSMacOS, ArchX86_64}) {
		t.Errorf("untranslated intel mac = %v, want macos-x86_64", got)
	}
}

func TestIsEmulated(t *testing.T) {
	if !IsEmulated(Target{OSMacOS, ArchX86_64}, Target{OSMacOS, ArchAArch64}) {
		t.Error("x86_64 build on aarch64 kernel should be emulated")
	}
	if IsEmulated(Target{OSLinux, ArchX86_64}, Target{OSLinux, ArchX86_64}) {
		t.Error("identical targets are not emulated")
	}
}
