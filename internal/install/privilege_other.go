//go:build !unix && !windows

package install

import "os"

func isElevated() bool {
	return false
}

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
