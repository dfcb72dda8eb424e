//go:build windows

package install

import (
	"errors"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"

	"github.com/a-lang/a/internal/types"
)

const (
	userEnvKey   = `Environment`
	systemEnvKey = `SYSTEM\CurrentControlSet\Control\Session Manager\Environment`

	hwndBroadcast   = 0xffff
	wmSettingChange = 0x001A
	smtoAbortIfHung = 0x0002
)

var procSendMessageTimeout = windows.NewLazySystemDLL("user32.dll").NewProc("SendMessageTimeoutW")

// RegistryStore persists PATH entries in the per-user or machine
// environment key and notifies running programs of the change.
type RegistryStore struct{}

func (RegistryStore) key(scope types.Scope) (registry.Key, string) {
	if scope.IsSystem() {
		return registry.LOCAL_MACHINE, systemEnvKey
	}
	return registry.CURRENT_USER, userEnvKey
}

// Describe names the registry key for scope.
func (r RegistryStore) Describe(scope types.Scope) string {
	if scope.IsSystem() {
		return `HKLM\` + systemEnvKey
	}
	return `HKCU\` + userEnvKey
}

// Entries returns the Path value of the scope's environment key.
func (r RegistryStore) Entries(scope types.Scope) ([]string, error) {
	root, path := r.key(scope)
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer func() { _ = k.Close() }()

	value, _, err := k.GetStringValue("Path")
	if errors.Is(err, registry.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return SplitPath(value, ";"), nil
}

// Append adds dir to the scope's Path value as REG_EXPAND_SZ, keeping any
// %VAR% references in existing entries unexpanded.
func (r RegistryStore) Append(scope types.Scope, dir string) error {
	root, path := r.key(scope)
	k, err := registry.OpenKey(root, path, registry.QUERY_VALUE|registry.SET_VALUE)
	if err != nil {
		return err
	}
	defer func() { _ = k.Close() }()

	value, _, err := k.GetStringValue("Path")
	if err != nil && !errors.Is(err, registry.ErrNotExist) {
		return err
	}
	value = strings.TrimRight(value, ";")
	if value != "" {
		value += ";"
	}
	if err := k.SetExpandStringValue("Path", value+dir); err != nil {
		return err
	}

	broadcastEnvironmentChange()
	return nil
}

// broadcastEnvironmentChange tells Explorer and other top-level windows to
// reload the environment, so new terminals see the updated Path.
func broadcastEnvironmentChange() {
	env, err := windows.UTF16PtrFromString("Environment")
	if err != nil {
		return
	}
	var result uintptr
	_, _, _ = procSendMessageTimeout.Call(
		hwndBroadcast,
		wmSettingChange,
		0,
		uintptr(unsafe.Pointer(env)),
		smtoAbortIfHung,
		5000,
		uintptr(unsafe.Pointer(&result)),
	)
}
