//go:build !darwin

package platform

//nolint:gochecknoglobals // Test seam requires a package-level variable.
var translated = func() bool { return false }
