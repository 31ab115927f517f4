// Package app wires the barsheet components into one context object that
// owns the process's scope, render backend and printer dispatcher.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/barsheet/pkg/barcode"
	"github.com/matzehuels/barsheet/pkg/cache"
	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/pipeline"
	"github.com/matzehuels/barsheet/pkg/printer"
	"github.com/matzehuels/barsheet/pkg/render"
	"github.com/matzehuels/barsheet/pkg/scope"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// Settings are the tunables an App is built from.
type Settings struct {
	Ghostscript    string
	Resolution     int
	RenderTimeout  time.Duration
	PrinterTimeout time.Duration
	MaxOutput      int
	StatusCommand  []string
	MaxLength      int
	TempDir        string // parent of the scope directory; os.TempDir() if empty
	Cache          cache.Cache
	CacheTTL       time.Duration
}

// Option overrides a collaborator, mainly for tests.
type Option func(*options)

type options struct {
	starter  render.Starter
	launcher printer.Launcher
	encoder  barcode.Encoder
	layouter sheet.Layouter
	platform *printer.Platform
}

// WithStarter replaces the Ghostscript interpreter starter.
func WithStarter(s render.Starter) Option { return func(o *options) { o.starter = s } }

// WithLauncher replaces the printer process launcher.
func WithLauncher(l printer.Launcher) Option { return func(o *options) { o.launcher = l } }

// WithEncoder replaces the barcode encoder.
func WithEncoder(e barcode.Encoder) Option { return func(o *options) { o.encoder = e } }

// WithLayouter replaces the sheet layouter.
func WithLayouter(l sheet.Layouter) Option { return func(o *options) { o.layouter = l } }

// WithPlatform replaces the build-time printer platform.
func WithPlatform(p printer.Platform) Option { return func(o *options) { o.platform = &p } }

// App owns exactly one scope and one render backend for its lifetime.
// Its methods are safe for concurrent use; generate and render calls are
// serialised.
type App struct {
	mu         sync.Mutex
	scope      *scope.Scope
	runner     *pipeline.Runner
	backend    *render.Backend
	dispatcher *printer.Dispatcher
	cache      cache.Cache
	cacheTTL   time.Duration
	resolution int
	logger     *log.Logger
	preview    string // latest preview image
	closed     bool
}

// New acquires the scope and builds every component. The render
// interpreter is not started until the first preview. If New fails,
// nothing it acquired is left behind.
func New(s Settings, logger *log.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var scopeOpts []scope.Option
	if s.TempDir != "" {
		scopeOpts = append(scopeOpts, scope.WithParent(s.TempDir))
	}
	sc, err := scope.Open(scopeOpts...)
	if err != nil {
		return nil, err
	}
	logger.Debug("opened scope", "dir", sc.Dir())

	if s.Resolution <= 0 {
		s.Resolution = render.DefaultResolution
	}
	if s.Cache == nil {
		s.Cache = cache.NewNullCache()
	}

	encoder := o.encoder
	if encoder == nil {
		encoder = barcode.NewCode128(s.MaxLength)
	}

	starter := o.starter
	if starter == nil {
		starter = render.GhostscriptStarter(render.GhostscriptConfig{
			Binary:     s.Ghostscript,
			Resolution: s.Resolution,
			OutputDir:  sc.Dir(),
			ReadDirs:   []string{sc.Dir()},
		}, logger)
	}

	dispOpts := []printer.Option{
		printer.WithLogger(logger),
		printer.WithMaxOutput(s.MaxOutput),
	}
	if s.PrinterTimeout != 0 {
		dispOpts = append(dispOpts, printer.WithTimeout(s.PrinterTimeout))
	}
	platform := printer.DefaultPlatform()
	if o.platform != nil {
		platform = *o.platform
	} else if platform.Name == "windows" && s.Ghostscript != "" {
		platform = printer.Windows(s.Ghostscript)
	}
	if len(s.StatusCommand) > 0 {
		platform.StatusCommand = s.StatusCommand
	}
	dispOpts = append(dispOpts, printer.WithPlatform(platform))
	if o.launcher != nil {
		dispOpts = append(dispOpts, printer.WithLauncher(o.launcher))
	}

	renderOpts := []render.Option{render.WithLogger(logger)}
	if s.RenderTimeout != 0 {
		renderOpts = append(renderOpts, render.WithTimeout(s.RenderTimeout))
	}

	return &App{
		scope:      sc,
		runner:     pipeline.NewRunner(encoder, o.layouter, logger),
		backend:    render.NewBackend(starter, sc.Dir(), renderOpts...),
		dispatcher: printer.NewDispatcher(dispOpts...),
		cache:      s.Cache,
		cacheTTL:   s.CacheTTL,
		resolution: s.Resolution,
		logger:     logger,
	}, nil
}

// ScopeDir returns the directory holding the document and previews.
func (a *App) ScopeDir() string { return a.scope.Dir() }

// Generate builds the sheet and commits it to the scope file.
func (a *App) Generate(ctx context.Context, requests []pipeline.Request, props sheet.Properties, grid sheet.Grid) (pipeline.Artifact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return "", err
	}
	return a.runner.Generate(ctx, requests, props, grid, a.scope)
}

// GenerateJob is Generate for a parsed job file.
func (a *App) GenerateJob(ctx context.Context, job *pipeline.Job) (pipeline.Artifact, error) {
	return a.Generate(ctx, job.Barcodes, job.Properties, job.Layout)
}

// Preview is a rendered preview image.
type Preview struct {
	Path   string
	Cached bool
}

// Preview renders artifact to a new PNG in the scope directory, starting
// the interpreter on first use. Previews of documents rendered before are
// served from the cache. Only the latest image is kept: the one returned by
// the previous call is removed once a new one exists.
func (a *App) Preview(ctx context.Context, artifact pipeline.Artifact) (Preview, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.checkOpen(); err != nil {
		return Preview{}, err
	}

	doc, err := os.ReadFile(artifact.String())
	if err != nil {
		return Preview{}, errs.Wrap(errs.ErrCodeArgument, err, "read document")
	}
	key := cache.PreviewKey(doc, a.resolution)

	if data, ok, err := a.cache.Get(ctx, key); err != nil {
		a.logger.Warn("preview cache read failed", "error", err)
	} else if ok {
		path := filepath.Join(a.scope.Dir(), "preview-"+uuid.NewString()+".png")
		werr := os.WriteFile(path, data, 0o644)
		if werr == nil {
			a.logger.Debug("preview cache hit", "image", path)
			a.replacePreview(path)
			return Preview{Path: path, Cached: true}, nil
		}
		a.logger.Warn("could not write cached preview", "error", werr)
	}

	if err := a.backend.EnsureStarted(ctx); err != nil {
		return Preview{}, err
	}
	path, err := a.backend.Render(ctx, artifact.String())
	if err != nil {
		return Preview{}, err
	}

	if data, err := os.ReadFile(path); err == nil {
		if err := a.cache.Set(ctx, key, data, a.cacheTTL); err != nil {
			a.logger.Warn("preview cache write failed", "error", err)
		}
	}
	a.replacePreview(path)
	return Preview{Path: path}, nil
}

// replacePreview records path as the latest preview and removes the one
// before it. Requires a.mu.
func (a *App) replacePreview(path string) {
	prev := a.preview
	a.preview = path
	if prev == "" || prev == path {
		return
	}
	if err := os.Remove(prev); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("could not remove previous preview", "image", prev, "error", err)
	}
}

// Printers lists the installed printers.
func (a *App) Printers(ctx context.Context) (printer.List, error) {
	return a.dispatcher.List(ctx)
}

// Print submits artifact to the named printer.
func (a *App) Print(ctx context.Context, artifact pipeline.Artifact, name string) error {
	return a.dispatcher.Print(ctx, artifact.String(), name)
}

// Close stops the interpreter and releases the scope. It is safe to call
// more than once. A failure to close the scope file is logged as a warning;
// a failure to remove it is logged as an error. Both are returned.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true

	var errList []error
	if err := a.backend.Shutdown(); err != nil {
		a.logger.Warn("interpreter shutdown failed", "error", err)
		errList = append(errList, fmt.Errorf("shutdown interpreter: %w", err))
	}

	if err := a.scope.Close(); err != nil {
		if errs.Is(err, errs.ErrCodeCloseFailed) {
			a.logger.Warn("could not close temporary file", "path", a.scope.Path(), "error", err)
		}
		if errs.Is(err, errs.ErrCodeRemoveFailed) {
			a.logger.Error("could not remove temporary files", "dir", a.scope.Dir(), "error", err)
		}
		errList = append(errList, err)
	}

	if err := a.cache.Close(); err != nil {
		errList = append(errList, fmt.Errorf("close cache: %w", err))
	}
	return errors.Join(errList...)
}

func (a *App) checkOpen() error {
	if a.closed {
		return errs.New(errs.ErrCodeInternal, "app is closed")
	}
	return nil
}
