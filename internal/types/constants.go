// Package types provides type-safe constants shared by the a distribution toolchain.
//
// This package centralizes the enumerated types used throughout the codebase,
// replacing magic strings with typed constants that provide compile-time safety
// and validation methods.
//
// SYNC REQUIREMENT: the scope names must stay in sync with:
//   - internal/templates/install.sh and install.ps1 (scope selector arguments)
//   - internal/install/guard.go (destination directories per scope)
package types

import (
	"fmt"
	"slices"
	"strings"
)

// Scope represents the installation scope (user or system).
type Scope string

const (
	// ScopeUser installs for the current user only; never needs elevation.
	ScopeUser Scope = "user"
	// ScopeSystem installs for every user on the machine and requires elevation.
	ScopeSystem Scope = "system"
)

// AllScopes returns all valid scopes.
func AllScopes() []Scope {
	return []Scope{ScopeUser, ScopeSystem}
}

// Validate checks if the Scope is a valid value.
// Empty scope is considered valid (defaults to user scope).
func (s Scope) Validate() error {
	switch s {
	case ScopeUser, ScopeSystem, "":
		return nil
	default:
		return fmt.Errorf("invalid scope '%s' (must be user or system)", s)
	}
}

// String returns the string representation of the Scope.
func (s Scope) String() string {
	return string(s)
}

// IsSystem returns true if the scope is system.
func (s Scope) IsSystem() bool {
	return s == ScopeSystem
}

// Default returns the default scope if empty, otherwise returns the current scope.
func (s Scope) Default() Scope {
	if s == "" {
		return ScopeUser
	}
	return s
}

// ParseScope parses a string into a Scope.
// "all-users", "allusers", "machine" and "global" are accepted as aliases for
// system so the installer scripts can forward their own spelling unchanged.
func ParseScope(s string) (Scope, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all-users", "allusers", "machine", "global":
		return ScopeSystem, nil
	}
	scope := Scope(strings.ToLower(strings.TrimSpace(s)))
	if err := scope.Validate(); err != nil {
		return "", err
	}
	return scope.Default(), nil
}

// ArchiveFormat represents a compressed archive flavour produced by the packager.
type ArchiveFormat string

const (
	// ArchiveTarGz is the gzip-compressed tarball every target gets.
	ArchiveTarGz ArchiveFormat = "tar.gz"
	// ArchiveTarXz is the optional xz-compressed tarball.
	ArchiveTarXz ArchiveFormat = "tar.xz"
)

// Extension returns the filename suffix (with leading dot) for the format.
func (f ArchiveFormat) Extension() string {
	return "." + string(f)
}

// String returns the string representation of the ArchiveFormat.
func (f ArchiveFormat) String() string {
	return string(f)
}

// AllArchiveFormats returns all archive formats the packager can write.
func AllArchiveFormats() []ArchiveFormat {
	return []ArchiveFormat{ArchiveTarGz, ArchiveTarXz}
}

// Validate checks if the ArchiveFormat is a valid value.
func (f ArchiveFormat) Validate() error {
	if slices.Contains(AllArchiveFormats(), f) {
		return nil
	}
	return fmt.Errorf("invalid archive format '%s' (must be tar.gz or tar.xz)", f)
}
