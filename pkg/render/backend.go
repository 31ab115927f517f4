package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/observability"
)

// DefaultTimeout bounds one render, erase and document run together.
const DefaultTimeout = 30 * time.Second

// eraseScript clears residual page state before every render.
const eraseScript = "erasepage"

// Option configures a Backend.
type Option func(*Backend)

// WithTimeout bounds each render. Zero or negative disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.timeout = d }
}

// WithLogger sets the backend's logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// Backend converts PostScript files into PNG previews using one shared
// interpreter instance. All methods are safe for concurrent use; renders
// are serialised.
type Backend struct {
	mu       sync.Mutex
	start    Starter
	interp   Interpreter
	imageDir string
	timeout  time.Duration
	logger   *log.Logger
}

// NewBackend returns a stopped backend. Pages produced by the interpreter
// are expected in imageDir, and previews are written there.
func NewBackend(start Starter, imageDir string, opts ...Option) *Backend {
	b := &Backend{
		start:    start,
		imageDir: imageDir,
		timeout:  DefaultTimeout,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Started reports whether an interpreter instance is running.
func (b *Backend) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.interp != nil
}

// EnsureStarted starts the interpreter if it is not running. Calling it
// again once started is a no-op.
func (b *Backend) EnsureStarted(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.interp != nil {
		return nil
	}
	if b.start == nil {
		return errs.New(errs.ErrCodeRenderNotStarted, "no interpreter configured")
	}

	ctx, cancel := b.bound(ctx)
	defer cancel()

	interp, err := b.start(ctx)
	observability.Render().OnInterpreterStart(ctx, err)
	if err != nil {
		return errs.Wrap(errs.ErrCodeRenderNotStarted, err, "start interpreter")
	}
	b.interp = interp
	b.logger.Debug("interpreter started")
	return nil
}

// Render rasterizes the document at psPath and returns the path of a new
// PNG image. Two renders of the same document produce two files with the
// same content.
func (b *Backend) Render(ctx context.Context, psPath string) (_ string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.interp == nil {
		return "", errs.New(errs.ErrCodeRenderNotStarted, "render requested before the interpreter was started")
	}
	if _, statErr := os.Stat(psPath); statErr != nil {
		return "", errs.Wrap(errs.ErrCodeArgument, statErr, "document %s", psPath)
	}

	hooks := observability.Render()
	start := time.Now()
	hooks.OnRenderStart(ctx, psPath)
	defer func() {
		hooks.OnRenderComplete(ctx, psPath, time.Since(start), err)
	}()

	ctx, cancel := b.bound(ctx)
	defer cancel()

	if err := b.clearPages(); err != nil {
		return "", err
	}
	if err := b.run(ctx, eraseScript); err != nil {
		return "", err
	}
	if err := b.run(ctx, fmt.Sprintf("(%s) run", quote(psPath))); err != nil {
		return "", err
	}

	out, err := b.collectPage()
	if err != nil {
		return "", err
	}
	b.logger.Debug("rendered preview", "document", psPath, "image", out, "duration", time.Since(start))
	return out, nil
}

// Shutdown stops the interpreter. It is safe to call more than once and
// on a backend that was never started.
func (b *Backend) Shutdown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.teardown(context.Background(), false)
}

// run executes one script and maps the outcome to a coded error. A fatal
// interpreter error tears the instance down.
func (b *Backend) run(ctx context.Context, script string) error {
	code, err := b.interp.Run(ctx, script)
	if err != nil {
		if cerr := b.teardown(ctx, true); cerr != nil {
			b.logger.Warn("interpreter teardown failed", "error", cerr)
		}
		return errs.Wrap(errs.ErrCodeRenderFatal, err, "interpreter failed running %q; restart required", script)
	}
	if code != 0 {
		return errs.New(errs.ErrCodeRenderFailed, "interpreter rejected %q (exit code %d)", script, code)
	}
	return nil
}

func (b *Backend) teardown(ctx context.Context, fatal bool) error {
	if b.interp == nil {
		return nil
	}
	err := b.interp.Close()
	b.interp = nil
	observability.Render().OnInterpreterStop(ctx, fatal)
	b.logger.Debug("interpreter stopped", "fatal", fatal)
	return err
}

// pages lists interpreter output pages in the image directory, oldest first.
func (b *Backend) pages() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(b.imageDir, "page-*.png"))
	if err != nil {
		return nil, err
	}
	slices.Sort(matches)
	return matches, nil
}

// clearPages removes pages left behind by an earlier failed render.
func (b *Backend) clearPages() error {
	stale, err := b.pages()
	if err != nil {
		return errs.Wrap(errs.ErrCodeRenderFailed, err, "list pages")
	}
	for _, p := range stale {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errs.Wrap(errs.ErrCodeRenderFailed, err, "remove stale page")
		}
	}
	return nil
}

// collectPage moves the last page produced to a fresh preview path.
func (b *Backend) collectPage() (string, error) {
	produced, err := b.pages()
	if err != nil {
		return "", errs.Wrap(errs.ErrCodeRenderFailed, err, "list pages")
	}
	if len(produced) == 0 {
		return "", errs.New(errs.ErrCodeRenderFailed, "document produced no page")
	}
	if len(produced) > 1 {
		b.logger.Warn("document produced several pages; previewing the last", "pages", len(produced))
	}

	out := filepath.Join(b.imageDir, "preview-"+uuid.NewString()+".png")
	last := produced[len(produced)-1]
	if err := os.Rename(last, out); err != nil {
		return "", errs.Wrap(errs.ErrCodeRenderFailed, err, "move page")
	}
	for _, p := range produced[:len(produced)-1] {
		_ = os.Remove(p)
	}
	return out, nil
}

func (b *Backend) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}

// quote escapes s for a PostScript string literal.
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
