// Package cli implements the barsheet command-line interface.
package cli

import (
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/barsheet/internal/app"
	"github.com/matzehuels/barsheet/pkg/buildinfo"
	"github.com/matzehuels/barsheet/pkg/cache"
	"github.com/matzehuels/barsheet/pkg/pipeline"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "barsheet"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	configPath string
	config     *Config

	// newApp builds the App for a command; replaced in tests.
	newApp func(cfg *Config, noCache bool) (*app.App, error)
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	c := &CLI{Logger: newLogger(w, level)}
	c.newApp = c.buildApp
	return c
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "barsheet lays out Code 128 barcode sheets, previews and prints them",
		Long: `barsheet turns a job file listing barcode texts and quantities into a
printable PostScript sheet. Sheets can be previewed as PNG through Ghostscript
and sent to any installed printer.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			registerLogHooks(c.Logger)
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default: "+defaultConfigHint()+")")

	root.AddCommand(c.generateCommand())
	root.AddCommand(c.previewCommand())
	root.AddCommand(c.printCommand())
	root.AddCommand(c.printersCommand())
	root.AddCommand(c.hintsCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// App Factory
// =============================================================================

// buildApp creates the App for one command invocation.
func (c *CLI) buildApp(cfg *Config, noCache bool) (*app.App, error) {
	ch := newCache(noCache || !cfg.Render.Cache)
	return app.New(app.Settings{
		Ghostscript:    cfg.Render.Ghostscript,
		Resolution:     cfg.Render.Resolution,
		RenderTimeout:  cfg.Render.Timeout,
		PrinterTimeout: cfg.Printer.Timeout,
		MaxOutput:      cfg.Printer.MaxOutput,
		StatusCommand:  cfg.Printer.StatusCommand,
		MaxLength:      cfg.Defaults.MaxLength,
		Cache:          ch,
		CacheTTL:       cfg.Render.CacheTTL,
	}, c.Logger)
}

func newCache(disabled bool) cache.Cache {
	if disabled {
		return cache.NewNullCache()
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache()
	}
	c, err := cache.NewFileCache(dir)
	if err != nil {
		return cache.NewNullCache()
	}
	return c
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/barsheet/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// configDir returns the config directory using XDG standard (~/.config/barsheet/).
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// =============================================================================
// Job Helpers
// =============================================================================

// layoutFlags are the per-command overrides of a job's layout.
type layoutFlags struct {
	rows, cols int
	units      string
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.rows, "rows", 0, "override the job's row count")
	cmd.Flags().IntVar(&f.cols, "cols", 0, "override the job's column count")
	cmd.Flags().StringVar(&f.units, "units", "", "override the job's units: p, mm, cm, in")
}

// loadJob reads a job file on top of the config defaults, then applies
// flag overrides.
func (c *CLI) loadJob(path string, f layoutFlags) (*pipeline.Job, error) {
	base := pipeline.NewJob()
	if c.config != nil {
		c.config.Defaults.apply(base)
	}
	job, err := pipeline.LoadJobOnto(path, base)
	if err != nil {
		return nil, err
	}
	if f.rows > 0 {
		job.Layout.Rows = f.rows
	}
	if f.cols > 0 {
		job.Layout.Cols = f.cols
	}
	if f.units != "" {
		if err := job.Properties.Set(sheet.FieldUnits, f.units); err != nil {
			return nil, err
		}
	}
	return job, nil
}
