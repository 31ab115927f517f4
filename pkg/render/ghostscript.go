package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Ghostscript defaults.
const (
	DefaultResolution = 150
	PagePattern       = "page-%06d.png"

	closeGrace = 5 * time.Second
	stderrTail = 4 << 10
)

// DefaultGhostscript returns the Ghostscript console binary name for the
// current platform.
func DefaultGhostscript() string {
	if runtime.GOOS == "windows" {
		return "gswin64c"
	}
	return "gs"
}

// GhostscriptConfig configures a Ghostscript interpreter process.
type GhostscriptConfig struct {
	Binary     string   // executable name or path; DefaultGhostscript() if empty
	Resolution int      // output resolution in DPI
	OutputDir  string   // directory that receives rendered pages
	ReadDirs   []string // directories scripts may read documents from
}

// Args returns the command-line arguments for the interpreter process.
func (c GhostscriptConfig) Args() []string {
	res := c.Resolution
	if res <= 0 {
		res = DefaultResolution
	}
	args := []string{
		"-q", "-dNOPAUSE", "-dNOPROMPT", "-dSAFER",
		"-sDEVICE=png16m",
		"-r" + strconv.Itoa(res),
		"-dGraphicsAlphaBits=4",
		"-dTextAlphaBits=4",
		"-sOutputFile=" + filepath.Join(c.OutputDir, PagePattern),
	}
	for _, dir := range c.ReadDirs {
		args = append(args, "--permit-file-read="+strings.TrimSuffix(dir, string(filepath.Separator))+string(filepath.Separator))
	}
	return append(args, "-")
}

// GhostscriptStarter returns a Starter that launches Ghostscript with cfg.
func GhostscriptStarter(cfg GhostscriptConfig, logger *log.Logger) Starter {
	return func(ctx context.Context) (Interpreter, error) {
		return StartGhostscript(ctx, cfg, logger)
	}
}

// Ghostscript is a running gs process reading PostScript from stdin.
type Ghostscript struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  <-chan string
	done   chan struct{}
	stderr *tailBuffer
	token  string
	logger *log.Logger

	mu      sync.Mutex
	closed  bool
	waitErr error
}

// StartGhostscript launches the interpreter and waits until it answers a
// no-op script.
func StartGhostscript(ctx context.Context, cfg GhostscriptConfig, logger *log.Logger) (*Ghostscript, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	bin := cfg.Binary
	if bin == "" {
		bin = DefaultGhostscript()
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return nil, fmt.Errorf("ghostscript not found (%s): install it with your package manager (apt install ghostscript, brew install ghostscript)", bin)
	}
	if cfg.OutputDir == "" {
		return nil, errors.New("ghostscript: no output directory")
	}

	cmd := exec.Command(path, cfg.Args()...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("ghostscript stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ghostscript stdout: %w", err)
	}
	stderr := &tailBuffer{max: stderrTail}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", path, err)
	}

	lines := make(chan string, 16)
	g := &Ghostscript{
		cmd:    cmd,
		stdin:  stdin,
		lines:  lines,
		done:   make(chan struct{}),
		stderr: stderr,
		token:  "barsheet-status-" + uuid.NewString(),
		logger: logger,
	}
	go g.read(stdout, lines)

	logger.Debug("started ghostscript", "pid", cmd.Process.Pid, "args", cfg.Args())

	if code, err := g.Run(ctx, ""); err != nil || code != 0 {
		g.kill()
		if err == nil {
			err = fmt.Errorf("exit code %d", code)
		}
		return nil, fmt.Errorf("ghostscript did not become ready: %w", err)
	}
	return g, nil
}

// read forwards stdout lines until the process closes it, then reaps the
// process.
func (g *Ghostscript) read(stdout io.Reader, lines chan<- string) {
	sc := bufio.NewScanner(stdout)
	for sc.Scan() {
		lines <- sc.Text()
	}
	close(lines)
	err := g.cmd.Wait()
	g.mu.Lock()
	g.waitErr = err
	g.mu.Unlock()
	close(g.done)
}

// Run implements Interpreter.
func (g *Ghostscript) Run(ctx context.Context, script string) (int, error) {
	g.mu.Lock()
	closed := g.closed
	g.mu.Unlock()
	if closed {
		return 0, errors.New("ghostscript: interpreter closed")
	}

	wrapped := fmt.Sprintf("{ %s\n} stopped { clear cleardictstack (\\n%s 1\\n) } { (\\n%s 0\\n) } ifelse print flush\n",
		script, g.token, g.token)
	if _, err := io.WriteString(g.stdin, wrapped); err != nil {
		g.kill()
		return 0, g.failure(fmt.Errorf("write script: %w", err))
	}

	for {
		select {
		case line, ok := <-g.lines:
			if !ok {
				<-g.done
				return 0, g.failure(errors.New("interpreter exited"))
			}
			status, found := strings.CutPrefix(strings.TrimSpace(line), g.token+" ")
			if !found {
				if line != "" {
					g.logger.Debug("ghostscript", "output", line)
				}
				continue
			}
			code, err := strconv.Atoi(status)
			if err != nil {
				g.kill()
				return 0, g.failure(fmt.Errorf("malformed status %q", status))
			}
			return code, nil
		case <-ctx.Done():
			g.kill()
			return 0, g.failure(ctx.Err())
		}
	}
}

// Close ends the process by closing stdin, killing it if it does not exit
// within a grace period. Close is safe to call more than once.
func (g *Ghostscript) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	_ = g.stdin.Close()
	go g.drain()
	select {
	case <-g.done:
		return nil
	case <-time.After(closeGrace):
		if err := g.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return fmt.Errorf("kill ghostscript: %w", err)
		}
		<-g.done
		return nil
	}
}

func (g *Ghostscript) kill() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	_ = g.stdin.Close()
	_ = g.cmd.Process.Kill()
	go g.drain()
}

// drain discards unread output so the reader can reach EOF.
func (g *Ghostscript) drain() {
	for range g.lines {
	}
}

// failure decorates err with the tail of the interpreter's stderr.
func (g *Ghostscript) failure(err error) error {
	if tail := strings.TrimSpace(g.stderr.String()); tail != "" {
		return fmt.Errorf("ghostscript: %w: %s", err, tail)
	}
	return fmt.Errorf("ghostscript: %w", err)
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
