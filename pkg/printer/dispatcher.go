package printer

import (
	"bytes"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/observability"
)

// Defaults for Dispatcher.
const (
	DefaultMaxOutput = 1024
	DefaultTimeout   = 10 * time.Second
)

// List is an ordered list of printer names. It never contains empty names
// but may contain duplicates if the platform reports them.
type List []string

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLauncher replaces the process launcher.
func WithLauncher(l Launcher) Option { return func(d *Dispatcher) { d.launcher = l } }

// WithPlatform replaces the build-time platform.
func WithPlatform(p Platform) Option { return func(d *Dispatcher) { d.platform = p } }

// WithMaxOutput bounds how much status output is read.
func WithMaxOutput(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxOutput = n
		}
	}
}

// WithTimeout bounds the status command and synchronous submissions.
// Zero or negative disables the bound.
func WithTimeout(t time.Duration) Option { return func(d *Dispatcher) { d.timeout = t } }

// WithLogger sets the dispatcher's logger.
func WithLogger(l *log.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// Dispatcher lists printers and submits jobs.
type Dispatcher struct {
	launcher  Launcher
	platform  Platform
	maxOutput int
	timeout   time.Duration
	logger    *log.Logger
}

// NewDispatcher returns a dispatcher for the build-time platform.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		launcher:  ExecLauncher{},
		platform:  DefaultPlatform(),
		maxOutput: DefaultMaxOutput,
		timeout:   DefaultTimeout,
		logger:    log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Platform returns the platform in use.
func (d *Dispatcher) Platform() Platform { return d.platform }

// List runs the platform status command and returns the installed
// printers. An empty result is NO_PRINTERS, distinct from the command
// failing (SUBPROCESS_FAILED) or its output being unreadable (READ_FAILED).
func (d *Dispatcher) List(ctx context.Context) (_ List, err error) {
	start := time.Now()
	var names List
	defer func() {
		observability.Dispatch().OnListPrinters(ctx, len(names), time.Since(start), err)
	}()

	cmd := d.platform.StatusCommand
	if len(cmd) == 0 {
		return nil, errs.New(errs.ErrCodeSubprocessFailed, "platform %s has no status command", d.platform.Name)
	}

	ctx, cancel := d.bound(ctx)
	defer cancel()

	out, err := d.launcher.Output(ctx, d.maxOutput+1, cmd[0], cmd[1:]...)
	if err != nil {
		if errs.GetCode(err) == "" {
			err = errs.Wrap(errs.ErrCodeSubprocessFailed, err, "%s", strings.Join(cmd, " "))
		}
		return nil, err
	}

	// The bound applies to raw bytes; UTF-16 output shrinks when decoded.
	truncated := len(out) > d.maxOutput
	if truncated {
		out = out[:d.maxOutput]
	}
	out = decode(out)
	if truncated {
		out = dropPartialLine(out)
		d.logger.Warn("printer list truncated", "limit", d.maxOutput)
	}

	names = ParseList(out, d.platform.Header)
	if len(names) == 0 {
		return nil, errs.New(errs.ErrCodeNoPrinters, "%s reported no printers", cmd[0])
	}
	d.logger.Debug("listed printers", "count", len(names), "duration", time.Since(start))
	return names, nil
}

// Print submits file to the named printer. Only submission is confirmed.
func (d *Dispatcher) Print(ctx context.Context, file, printer string) (err error) {
	defer func() { observability.Dispatch().OnPrint(ctx, printer, err) }()

	if strings.TrimSpace(printer) == "" {
		return errs.New(errs.ErrCodeArgument, "no printer selected")
	}
	if info, statErr := os.Stat(file); statErr != nil {
		return errs.Wrap(errs.ErrCodeArgument, statErr, "document to print")
	} else if info.IsDir() {
		return errs.New(errs.ErrCodeArgument, "%s is a directory", file)
	}
	if d.platform.PrintCommand == nil {
		return errs.New(errs.ErrCodeLaunchFailed, "platform %s cannot print", d.platform.Name)
	}

	cmd := d.platform.PrintCommand(printer, file)
	if d.platform.Detached {
		err = d.launcher.Start(ctx, cmd[0], cmd[1:]...)
	} else {
		runCtx, cancel := d.bound(ctx)
		defer cancel()
		err = d.launcher.Run(runCtx, cmd[0], cmd[1:]...)
	}
	if err != nil {
		if errs.GetCode(err) == "" {
			err = errs.Wrap(errs.ErrCodeLaunchFailed, err, "%s", cmd[0])
		}
		return err
	}
	d.logger.Info("submitted print job", "printer", printer, "file", file)
	return nil
}

func (d *Dispatcher) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// ParseList splits status output into printer names. The first line is
// dropped when header is true; every line is trimmed and blank lines are
// skipped. Order is preserved.
func ParseList(out []byte, header bool) List {
	lines := strings.Split(strings.ReplaceAll(string(out), "\r\n", "\n"), "\n")
	if header && len(lines) > 0 {
		lines = lines[1:]
	}
	names := make(List, 0, len(lines))
	for _, line := range lines {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// truncateLines cuts out to at most limit bytes, ending at the last
// complete line.
func truncateLines(out []byte, limit int) []byte {
	return dropPartialLine(out[:limit])
}

// dropPartialLine removes everything after the last newline.
func dropPartialLine(out []byte) []byte {
	if i := bytes.LastIndexByte(out, '\n'); i >= 0 {
		return out[:i+1]
	}
	return out[:0]
}

// decode converts status output to UTF-8. wmic writes UTF-16 with a byte
// order mark when its output is redirected.
func decode(out []byte) []byte {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(dec, out)
	if err != nil {
		return out
	}
	return decoded
}
