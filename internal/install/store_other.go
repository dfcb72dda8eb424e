//go:build !windows

package install

// DefaultPathStore returns the shell profile store rooted at home.
func DefaultPathStore(home string) PathStore {
	return NewProfileStore(home)
}
