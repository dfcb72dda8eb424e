package platform

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/host"
)

// kernelArch is a test seam for gopsutil's kernel architecture lookup.
//
//nolint:gochecknoglobals // Test seam requires a package-level variable.
var kernelArch = func(ctx context.Context) (string, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	return info.KernelArch, nil
}

// DetectNative returns the Target matching the machine rather than the
// build of the running binary. The two differ when an x86_64 build runs
// under Rosetta on Apple silicon or under WoW64 on an aarch64 Windows
// machine.
//
// Rosetta hides itself from uname, so on macOS the translation flag is
// checked first; everywhere else the kernel architecture decides. If
// neither can be determined or mapped, the build Target is returned
// unchanged.
func DetectNative(ctx context.Context) (Target, error) {
	build, err := Detect()
	if err != nil {
		return Target{}, err
	}
	return nativeFor(ctx, build)
}

func nativeFor(ctx context.Context, build Target) (Target, error) {
	if build.OS == OSMacOS && build.Arch == ArchX86_64 && translated() {
		return Target{OS: OSMacOS, Arch: ArchAArch64}, nil
	}

	raw, err := kernelArch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Target{}, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
		}
		return build, nil
	}

	arch, err := NormalizeArch(raw)
	if err != nil {
		return build, nil
	}

	return Target{OS: build.OS, Arch: arch}, nil
}

// IsEmulated reports whether native differs from build only in architecture.
func IsEmulated(build, native Target) bool {
	return build.OS == native.OS && build.Arch != native.Arch
}
