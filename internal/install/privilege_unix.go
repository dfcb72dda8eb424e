//go:build unix

package install

import "golang.org/x/sys/unix"

func isElevated() bool {
	return unix.Geteuid() == 0
}

func dirWritable(dir string) bool {
	return unix.Access(dir, unix.W_OK) == nil
}
