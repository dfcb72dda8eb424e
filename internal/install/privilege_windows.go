//go:build windows

package install

import (
	"os"

	"golang.org/x/sys/windows"
)

func isElevated() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}

// dirWritable probes with a real file; ACLs make a mode check meaningless.
func dirWritable(dir string) bool {
	f, err := os.CreateTemp(dir, ".a-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
