package platform

import "golang.org/x/sys/unix"

// translated reports whether the process runs under Rosetta. The sysctl is
// missing on Intel Macs, which reads as not translated.
//
//nolint:gochecknoglobals // Test seam requires a package-level variable.
var translated = func() bool {
	v, err := unix.SysctlUint32("sysctl.proc_translated")
	return err == nil && v == 1
}
