package types

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure of the update, install or packaging pipeline.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedPlatform
	KindNetwork
	KindNotFound
	KindProtocol
	KindNoMatchingAsset
	KindIncompleteDownload
	KindCorruptArtifact
	KindInsufficientPrivilege
	KindRestartRequired
	KindPathPersistence
	KindConfiguration
	KindPackaging
	KindInstall
)

// Sentinels for errors.Is. Every *Error unwraps to the sentinel of its Kind.
var (
	ErrUnsupportedPlatform   = errors.New("unsupported platform")
	ErrNetwork               = errors.New("network error")
	ErrNotFound              = errors.New("not found")
	ErrProtocol              = errors.New("malformed release feed response")
	ErrNoMatchingAsset       = errors.New("no matching asset")
	ErrIncompleteDownload    = errors.New("incomplete download")
	ErrCorruptArtifact       = errors.New("corrupt artifact")
	ErrInsufficientPrivilege = errors.New("insufficient privilege")
	ErrRestartRequired       = errors.New("restart required")
	ErrPathPersistence       = errors.New("could not persist PATH change")
	ErrConfiguration         = errors.New("configuration error")
	ErrPackaging             = errors.New("packaging failed")
	ErrInstall               = errors.New("could not write installed binary")
	errUnknown               = errors.New("error")
)

var kindNames = map[Kind]string{
	KindUnknown:               "Unknown",
	KindUnsupportedPlatform:   "UnsupportedPlatform",
	KindNetwork:               "NetworkError",
	KindNotFound:              "NotFound",
	KindProtocol:              "ProtocolError",
	KindNoMatchingAsset:       "NoMatchingAsset",
	KindIncompleteDownload:    "IncompleteDownload",
	KindCorruptArtifact:       "CorruptArtifact",
	KindInsufficientPrivilege: "InsufficientPrivilege",
	KindRestartRequired:       "RestartRequired",
	KindPathPersistence:       "PathPersistence",
	KindConfiguration:         "Configuration",
	KindPackaging:             "Packaging",
	KindInstall:               "InstallFailed",
}

// String returns the name of the kind as used in user-facing reports.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Sentinel returns the errors.Is target for the kind.
func (k Kind) Sentinel() error {
	switch k {
	case KindUnsupportedPlatform:
		return ErrUnsupportedPlatform
	case KindNetwork:
		return ErrNetwork
	case KindNotFound:
		return ErrNotFound
	case KindProtocol:
		return ErrProtocol
	case KindNoMatchingAsset:
		return ErrNoMatchingAsset
	case KindIncompleteDownload:
		return ErrIncompleteDownload
	case KindCorruptArtifact:
		return ErrCorruptArtifact
	case KindInsufficientPrivilege:
		return ErrInsufficientPrivilege
	case KindRestartRequired:
		return ErrRestartRequired
	case KindPathPersistence:
		return ErrPathPersistence
	case KindConfiguration:
		return ErrConfiguration
	case KindPackaging:
		return ErrPackaging
	case KindInstall:
		return ErrInstall
	}
	return errUnknown
}

// Error is the typed failure returned by every pipeline step.
// Expected and Actual are filled in where a comparison failed
// (asset filename, byte count, checksum).
type Error struct {
	Kind     Kind
	Step     string
	Message  string
	Expected string
	Actual   string
	Hint     string
	Err      error
}

// Error formats the failure as "step: message (expected X, got Y): cause".
func (e *Error) Error() string {
	var sb strings.Builder
	if e.Step != "" {
		sb.WriteString(e.Step)
		sb.WriteString(": ")
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Sentinel().Error()
	}
	sb.WriteString(msg)
	switch {
	case e.Expected != "" && e.Actual != "":
		fmt.Fprintf(&sb, " (expected %s, got %s)", e.Expected, e.Actual)
	case e.Expected != "":
		fmt.Fprintf(&sb, " (expected %s)", e.Expected)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.Sentinel()}
	}
	return []error{e.Kind.Sentinel(), e.Err}
}

// Newf builds an *Error of the given kind for a pipeline step.
func Newf(kind Kind, step, format string, args ...any) *Error {
	return &Error{Kind: kind, Step: step, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, step string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Step: step, Message: fmt.Sprintf(format, args...), Err: cause}
}

// WithExpected records the expected and actual values of a failed comparison.
func (e *Error) WithExpected(expected, actual string) *Error {
	e.Expected = expected
	e.Actual = actual
	return e
}

// WithHint records an actionable next step for the user.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnknown
}
