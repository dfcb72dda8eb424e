package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/charmbracelet/fang"

	"github.com/a-lang/a/internal/output"
	"github.com/a-lang/a/internal/types"
)

func TestExitCode(t *testing.T) {
	restart := types.Newf(types.KindRestartRequired, "replace binary", "staged")
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"typed", types.Newf(types.KindNetwork, "resolve release", "offline"), ExitFailure},
		{"restart", fmt.Errorf("update: %w", restart), ExitRestartRequired},
		{"explicit", &ExitError{Code: 7}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestFinish(t *testing.T) {
	var buf bytes.Buffer
	text := output.NewWriter(&buf, output.FormatText)

	if err := finish(text, nil); err != nil {
		t.Errorf("finish(nil) = %v", err)
	}

	plain := types.Newf(types.KindNetwork, "resolve release", "offline")
	if err := finish(text, plain); err != error(plain) {
		t.Errorf("finish kept %v, want the error unchanged", err)
	}

	restart := types.Newf(types.KindRestartRequired, "replace binary", "staged")
	var exitErr *ExitError
	if err := finish(text, restart); !errors.As(err, &exitErr) || exitErr.Code != ExitRestartRequired || exitErr.Reported {
		t.Errorf("finish(restart) = %#v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("text mode wrote %q; errors are printed by the handler", buf.String())
	}

	structured := output.NewWriter(&buf, output.FormatJSON)
	err := finish(structured, plain)
	if !errors.As(err, &exitErr) || !exitErr.Reported || !errors.Is(err, types.ErrNetwork) {
		t.Errorf("finish(json) = %#v", err)
	}
	var doc map[string]output.ErrorReport
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil || doc["error"].Kind != "NetworkError" {
		t.Errorf("json error document = %q, %v", buf.String(), err)
	}
}

func TestErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	err := types.Newf(types.KindInsufficientPrivilege, "authorize scope", "system-wide install requires elevated privilege").
		WithHint("Re-run with sudo.")
	errorHandler(&buf, fang.Styles{}, fmt.Errorf("install: %w", err))
	for _, want := range []string{"authorize scope: system-wide install requires elevated privilege", "Re-run with sudo."} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("handler output missing %q:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	errorHandler(&buf, fang.Styles{}, &ExitError{Code: 1, Err: err, Reported: true})
	if buf.Len() != 0 {
		t.Errorf("reported error printed again: %q", buf.String())
	}
}

func TestVersionCommand(t *testing.T) {
	pinHost(t)
	info := BuildInfo{Version: "v1.2.0", Commit: "abc1234", Date: "unknown", DefaultRepo: "a-lang/a"}

	stdout, _, err := run(t, newRootCmd(info), "", "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "a v1.2.0") || !strings.Contains(stdout, "linux-x86_64") || strings.Contains(stdout, "built:") {
		t.Errorf("stdout = %q", stdout)
	}

	stdout, _, err = run(t, newRootCmd(info), "", "version", "-o", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "version: v1.2.0") || !strings.Contains(stdout, "repo: a-lang/a") {
		t.Errorf("yaml = %q", stdout)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	pinHost(t)
	_, _, err := run(t, newRootCmd(BuildInfo{}), "", "version", "-o", "xml")
	if !errors.Is(err, types.ErrConfiguration) {
		t.Errorf("err = %v, want a configuration error", err)
	}
}

func TestCompletionCommand(t *testing.T) {
	for _, shell := range []string{"bash", "zsh", "fish", "powershell"} {
		t.Run(shell, func(t *testing.T) {
			stdout, _, err := run(t, newRootCmd(BuildInfo{}), "", "completion", shell)
			if err != nil {
				t.Fatal(err)
			}
			if !strings.Contains(stdout, "__a_") && !strings.Contains(stdout, "_a") {
				t.Errorf("%s completion looks empty: %q", shell, stdout[:min(len(stdout), 80)])
			}
		})
	}

	if _, _, err := run(t, newRootCmd(BuildInfo{}), "", "completion", "tcsh"); err == nil {
		t.Error("completion accepted an unknown shell")
	}
}
