package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/barsheet/internal/app"
	errs "github.com/matzehuels/barsheet/pkg/errors"
	"github.com/matzehuels/barsheet/pkg/pipeline"
)

// generateOpts holds the flags of the generate command.
type generateOpts struct {
	output string
	layout layoutFlags
}

func (c *CLI) generateCommand() *cobra.Command {
	opts := generateOpts{}

	cmd := &cobra.Command{
		Use:   "generate <job.toml>",
		Short: "Write the PostScript sheet for a job file",
		Long: `Generate encodes every barcode in the job file as Code 128, lays the
labels out on the configured grid and writes the PostScript document.

The grid must hold exactly as many labels as the job produces: a 2x3 grid
needs six labels in total across all barcode quantities.`,
		Example: `  barsheet generate labels.toml
  barsheet generate labels.toml -o out/labels.ps --rows 3 --cols 2`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default: <job>.ps)")
	opts.layout.register(cmd)

	return cmd
}

func (c *CLI) runGenerate(ctx context.Context, jobPath string, opts generateOpts) error {
	job, err := c.loadJob(jobPath, opts.layout)
	if err != nil {
		return err
	}
	output := opts.output
	if output == "" {
		output = replaceExt(jobPath, ".ps")
	}

	return c.withApp(ctx, false, func(a *app.App) error {
		prog := newProgress(loggerFromContext(ctx))
		artifact, err := a.GenerateJob(ctx, job)
		if err != nil {
			return err
		}
		if err := copyFile(artifact.String(), output); err != nil {
			return err
		}
		prog.done("Generated sheet")

		printSuccess("Generated barcode sheet")
		printSheetStats(len(job.Barcodes), pipeline.Count(job.Barcodes), job.Layout.Rows, job.Layout.Cols)
		printFile(output)
		printNextStep("Preview with", "barsheet preview "+jobPath)
		return nil
	})
}

// =============================================================================
// Shared Helpers
// =============================================================================

// withApp builds an App, runs fn and tears the App down. Teardown problems
// are logged by App.Close; only a failed directory removal is returned, and
// only when fn succeeded.
func (c *CLI) withApp(ctx context.Context, noCache bool, fn func(*app.App) error) (err error) {
	cfg := c.config
	if cfg == nil {
		cfg = DefaultConfig()
	}
	a, err := c.newApp(cfg, noCache)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil && errs.Is(cerr, errs.ErrCodeRemoveFailed) {
			err = cerr
		}
	}()
	return fn(a)
}

// copyFile copies src to dst, creating dst's directory.
func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "read %s", src)
	}
	if dir := filepath.Dir(dst); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "create %s", dir)
		}
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return errs.Wrap(errs.ErrCodeFileWriteFailed, err, "write %s", dst)
	}
	return nil
}

// replaceExt swaps path's extension for ext.
func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}
