package printer

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"unicode/utf8"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// Launcher runs platform commands.
type Launcher interface {
	// Output runs a command to completion and returns at most limit bytes
	// of its standard output.
	Output(ctx context.Context, limit int, name string, args ...string) ([]byte, error)

	// Start launches a command without waiting for it.
	Start(ctx context.Context, name string, args ...string) error

	// Run runs a command to completion.
	Run(ctx context.Context, name string, args ...string) error
}

// ExecLauncher implements Launcher with os/exec.
type ExecLauncher struct{}

// Output implements Launcher. Failure to start and a non-zero exit are
// SUBPROCESS_FAILED; failure to read stdout is READ_FAILED.
func (ExecLauncher) Output(ctx context.Context, limit int, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeSubprocessFailed, err, "pipe %s", name)
	}
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.ErrCodeSubprocessFailed, err, "start %s", name)
	}

	out, readErr := io.ReadAll(io.LimitReader(stdout, int64(limit)))
	if readErr == nil {
		// Keep the pipe flowing so the command can exit.
		_, _ = io.Copy(io.Discard, stdout)
	}
	waitErr := cmd.Wait()

	if readErr != nil {
		return nil, errs.Wrap(errs.ErrCodeReadFailed, readErr, "read %s output", name)
	}
	if waitErr != nil {
		return nil, errs.Wrap(errs.ErrCodeSubprocessFailed, waitErr, "%s%s", name, detail(stderr.String()))
	}
	return out, nil
}

// Start implements Launcher. The command outlives ctx; it is reaped in the
// background.
func (ExecLauncher) Start(_ context.Context, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return errs.Wrap(errs.ErrCodeLaunchFailed, err, "start %s", name)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// Run implements Launcher. Failure to start or a non-zero exit is
// LAUNCH_FAILED.
func (ExecLauncher) Run(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.ErrCodeLaunchFailed, err, "%s%s", name, detail(string(out)))
	}
	return nil
}

func detail(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(s) > maxDetail {
		n := maxDetail
		for n > 0 && !utf8.RuneStart(s[n]) {
			n--
		}
		s = s[:n] + "..."
	}
	return ": " + s
}

// maxDetail bounds the command output quoted in an error.
const maxDetail = 512
