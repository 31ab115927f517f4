package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/matzehuels/barsheet/pkg/cache"
	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/pipeline"
	"github.com/matzehuels/barsheet/pkg/printer"
	"github.com/matzehuels/barsheet/pkg/render"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

const configFileName = "config.toml"

// =============================================================================
// Config
// =============================================================================

// Config is the optional user configuration file.
type Config struct {
	Render   RenderConfig   `toml:"render"`
	Printer  PrinterConfig  `toml:"printer"`
	Defaults DefaultsConfig `toml:"defaults"`
}

// RenderConfig controls the Ghostscript preview backend.
type RenderConfig struct {
	Ghostscript string        `toml:"ghostscript"`
	Resolution  int           `toml:"resolution"`
	Timeout     time.Duration `toml:"timeout"`
	Cache       bool          `toml:"cache"`
	CacheTTL    time.Duration `toml:"cache_ttl"`
}

// PrinterConfig controls printer enumeration and dispatch.
type PrinterConfig struct {
	Timeout   time.Duration `toml:"timeout"`
	MaxOutput int           `toml:"max_output"`

	// StatusCommand replaces the platform's printer listing command.
	StatusCommand []string `toml:"status_command,omitempty"`
}

// DefaultsConfig supplies job values that a job file leaves unset.
type DefaultsConfig struct {
	Rows      int    `toml:"rows"`
	Cols      int    `toml:"cols"`
	Units     string `toml:"units"`
	MaxLength int    `toml:"max_length"`
}

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	cfg := &Config{Render: RenderConfig{Cache: true}}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.Render.Ghostscript == "" {
		c.Render.Ghostscript = render.DefaultGhostscript()
	}
	if c.Render.Resolution == 0 {
		c.Render.Resolution = render.DefaultResolution
	}
	if c.Render.Timeout == 0 {
		c.Render.Timeout = render.DefaultTimeout
	}
	if c.Render.CacheTTL == 0 {
		c.Render.CacheTTL = cache.DefaultTTL
	}
	if c.Printer.Timeout == 0 {
		c.Printer.Timeout = printer.DefaultTimeout
	}
	if c.Printer.MaxOutput == 0 {
		c.Printer.MaxOutput = printer.DefaultMaxOutput
	}
	if c.Defaults.Rows == 0 {
		c.Defaults.Rows = pipeline.DefaultGrid.Rows
	}
	if c.Defaults.Cols == 0 {
		c.Defaults.Cols = pipeline.DefaultGrid.Cols
	}
	if c.Defaults.Units == "" {
		c.Defaults.Units = string(sheet.DefaultUnit)
	}
	if c.Defaults.MaxLength == 0 {
		c.Defaults.MaxLength = pipeline.DefaultMaxLength
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Render.Resolution < 0:
		return errs.New(errs.ErrCodeInvalidInput, "render.resolution must be positive")
	case c.Render.Timeout < 0, c.Printer.Timeout < 0, c.Render.CacheTTL < 0:
		return errs.New(errs.ErrCodeInvalidInput, "timeouts must not be negative")
	case c.Printer.MaxOutput < 0:
		return errs.New(errs.ErrCodeInvalidInput, "printer.max_output must be positive")
	case c.Defaults.Rows < 0 || c.Defaults.Cols < 0:
		return errs.New(errs.ErrCodeInvalidInput, "defaults.rows and defaults.cols must be positive")
	case c.Defaults.MaxLength < 0:
		return errs.New(errs.ErrCodeInvalidInput, "defaults.max_length must be positive")
	}
	if len(c.Printer.StatusCommand) > 0 && strings.TrimSpace(c.Printer.StatusCommand[0]) == "" {
		return errs.New(errs.ErrCodeInvalidInput, "printer.status_command needs a program name")
	}
	if _, err := sheet.ParseUnit(c.Defaults.Units); err != nil {
		return fmt.Errorf("defaults.units: %w", err)
	}
	return nil
}

// apply copies the job defaults onto a fresh job.
func (d DefaultsConfig) apply(job *pipeline.Job) {
	job.Layout = sheet.Grid{Rows: d.Rows, Cols: d.Cols}
	if u, err := sheet.ParseUnit(d.Units); err == nil {
		job.Properties.Units = u
	}
}

// ParseConfig decodes a config on top of the defaults. Unknown keys are errors.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidInput, err, "parse config")
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, errs.New(errs.ErrCodeInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveConfigPath returns the explicit --config path or the XDG default.
func (c *CLI) resolveConfigPath() (path string, explicit bool, err error) {
	if c.configPath != "" {
		return c.configPath, true, nil
	}
	dir, err := configDir()
	if err != nil {
		return "", false, err
	}
	return filepath.Join(dir, configFileName), false, nil
}

// loadConfig reads the config file into c.config. A missing default file
// is not an error; a missing --config file is.
func (c *CLI) loadConfig() error {
	path, explicit, err := c.resolveConfigPath()
	if err != nil {
		c.config = DefaultConfig()
		return nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) && !explicit {
		c.config = DefaultConfig()
		return nil
	}
	if err != nil {
		return errs.Wrap(errs.ErrCodeInvalidInput, err, "read config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	c.Logger.Debug("loaded config", "path", path)
	c.config = cfg
	return nil
}

func defaultConfigHint() string {
	return filepath.Join("$XDG_CONFIG_HOME", appName, configFileName)
}

// =============================================================================
// config Command
// =============================================================================

func (c *CLI) configCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the configuration file path",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _, err := c.resolveConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := encodeConfig(c.config)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	})

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with the defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConfigInit(force)
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

func (c *CLI) runConfigInit(force bool) error {
	path, _, err := c.resolveConfigPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !force {
		printWarning("%s already exists", path)
		printNextStep("Overwrite with", "barsheet config init --force")
		return nil
	}
	data, err := encodeConfig(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "create config directory")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "write config")
	}
	printSuccess("Wrote configuration")
	printFile(path)
	return nil
}

func encodeConfig(cfg *Config) ([]byte, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, errs.Wrap(errs.ErrCodeInternal, err, "encode config")
	}
	return buf.Bytes(), nil
}
