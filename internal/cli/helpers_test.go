package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/barsheet/internal/app"
	"github.com/matzehuels/barsheet/pkg/cache"
	"github.com/matzehuels/barsheet/pkg/printer"
	"github.com/matzehuels/barsheet/pkg/render"
)

// captureOutput redirects user-facing output to w until restore is called.
func captureOutput(w io.Writer) (restore func()) {
	prev := out
	out = w
	return func() { out = prev }
}

// fakeInterpreter writes a tiny PNG page for every script that runs a file.
type fakeInterpreter struct {
	dir string
}

func (f *fakeInterpreter) Run(_ context.Context, script string) (int, error) {
	if !strings.Contains(script, ") run") {
		return 0, nil
	}
	return 0, os.WriteFile(filepath.Join(f.dir, fmt.Sprintf(render.PagePattern, 1)), testPNG, 0o644)
}

func (f *fakeInterpreter) Close() error { return nil }

// testPNG is a valid 1x1 PNG.
var testPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xff, 0xff, 0x3f,
	0x00, 0x05, 0xfe, 0x02, 0xfe, 0xa7, 0x35, 0x81, 0x84, 0x00, 0x00, 0x00,
	0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

// fakeLauncher answers the status command with a fixed listing and records
// print submissions.
type fakeLauncher struct {
	listing string
	printed [][]string
}

func (f *fakeLauncher) Output(_ context.Context, _ int, _ string, _ ...string) ([]byte, error) {
	return []byte(f.listing), nil
}

func (f *fakeLauncher) Start(_ context.Context, name string, args ...string) error {
	f.printed = append(f.printed, append([]string{name}, args...))
	return nil
}

func (f *fakeLauncher) Run(ctx context.Context, name string, args ...string) error {
	return f.Start(ctx, name, args...)
}

// newTestCLI returns a CLI whose App uses fakes for Ghostscript and the
// printer commands, with all output captured.
func newTestCLI(t *testing.T) (*CLI, *fakeLauncher, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	t.Cleanup(captureOutput(&buf))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_CACHE_HOME", t.TempDir())

	c := New(io.Discard, log.InfoLevel)
	launcher := &fakeLauncher{listing: "Office_Laser\nLabel Printer\n"}
	c.newApp = func(cfg *Config, noCache bool) (*app.App, error) {
		var a *app.App
		starter := func(context.Context) (render.Interpreter, error) {
			return &fakeInterpreter{dir: a.ScopeDir()}, nil
		}
		a, err := app.New(app.Settings{
			Resolution:    cfg.Render.Resolution,
			RenderTimeout: cfg.Render.Timeout,
			MaxOutput:     cfg.Printer.MaxOutput,
			MaxLength:     cfg.Defaults.MaxLength,
			TempDir:       t.TempDir(),
			Cache:         cache.NewNullCache(),
		}, c.Logger,
			app.WithStarter(starter),
			app.WithLauncher(launcher),
			app.WithPlatform(printer.CUPS()),
		)
		return a, err
	}
	return c, launcher, &buf
}

// execute runs the root command with args.
func execute(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

func writeJob(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
