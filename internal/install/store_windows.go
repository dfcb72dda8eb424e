//go:build windows

package install

// DefaultPathStore returns the registry-backed environment store. home is
// unused on Windows.
func DefaultPathStore(string) PathStore {
	return &RegistryStore{}
}
