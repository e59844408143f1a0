// Package tools invokes the external statistical programs (plink, coloc,
// FINEMAP/eCAVIAR, fastenloc, SMR, S-PrediXcan, FUSION) through their
// file-in/file-out contracts.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/carbocation/colotools"
	"github.com/sirupsen/logrus"
)

type ErrorKind int

const (
	// NotFound means the binary is not on $PATH. This is a configuration
	// problem and is fatal for every unit that would use the tool.
	NotFound ErrorKind = iota

	// ExitStatus means the process ran and exited non-zero.
	ExitStatus

	// EmptyOutput means the process exited cleanly but an expected output
	// file is absent or empty. Tools commonly do this when there is simply
	// nothing to report.
	EmptyOutput
)

func (k ErrorKind) String() string {
	switch k {
	case NotFound:
		return "binary not found"
	case ExitStatus:
		return "non-zero exit"
	case EmptyOutput:
		return "empty output"
	}

	return "unknown"
}

type ToolError struct {
	Tool     string
	Kind     ErrorKind
	ExitCode int
	Output   string
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Tool, e.Kind)
	switch e.Kind {
	case ExitStatus:
		msg = fmt.Sprintf("%s (%d)", msg, e.ExitCode)
	case EmptyOutput:
		msg = fmt.Sprintf("%s: %s", msg, e.Output)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stderr != "" {
		msg = fmt.Sprintf("%s; stderr: %s", msg, e.Stderr)
	}

	return msg
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// Recoverable reports whether the failure only affects the current unit of
// work.
func (e *ToolError) Recoverable() bool {
	return e.Kind != NotFound
}

// IsNotFound reports whether err is, or wraps, a NotFound ToolError.
func IsNotFound(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && te.Kind == NotFound
}

// maxStderr bounds how much of a failed process's stderr is kept in its
// error.
const maxStderr = 2048

// Runner starts external processes.
type Runner struct {
	Log *logrus.Entry
}

// Invoke runs binary with args and waits for it. Each path in outputs must
// exist and be non-empty afterwards.
func (r Runner) Invoke(ctx context.Context, binary string, args []string, outputs ...string) error {
	path, err := exec.LookPath(binary)
	if err != nil {
		return &ToolError{Tool: binary, Kind: NotFound, Err: err}
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Stderr = &stderr

	if r.Log != nil {
		r.Log.WithField("tool", binary).Debugln("→", binary, strings.Join(args, " "))
	}

	if err := cmd.Run(); err != nil {
		te := &ToolError{Tool: binary, Kind: ExitStatus, ExitCode: -1, Err: err, Stderr: tail(stderr.String())}
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			te.ExitCode = ee.ExitCode()
		}
		return te
	}

	for _, output := range outputs {
		if !colotools.NonEmptyFile(output) {
			return &ToolError{Tool: binary, Kind: EmptyOutput, Output: output, Stderr: tail(stderr.String())}
		}
	}

	return nil
}

func tail(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxStderr {
		s = "..." + s[len(s)-maxStderr:]
	}

	return s
}
