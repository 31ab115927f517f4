package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/barsheet/internal/app"
	"github.com/matzehuels/barsheet/pkg/render"
)

// previewOpts holds the flags of the preview command.
type previewOpts struct {
	output    string
	thumbnail int
	noCache   bool
	watch     bool
	layout    layoutFlags
}

func (c *CLI) previewCommand() *cobra.Command {
	opts := previewOpts{}

	cmd := &cobra.Command{
		Use:   "preview <job.toml>",
		Short: "Render a PNG preview of a job's sheet with Ghostscript",
		Long: `Preview generates the sheet for a job file and rasterizes it with
Ghostscript. Previews are cached by document content unless --no-cache is set.

With --watch the job file is watched and the preview is refreshed after
every change until interrupted.`,
		Example: `  barsheet preview labels.toml
  barsheet preview labels.toml -o sheet.png --thumbnail 300
  barsheet preview labels.toml --watch`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPreview(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output image (default: <job>.png)")
	cmd.Flags().IntVar(&opts.thumbnail, "thumbnail", 0, "scale the image down to this width in pixels")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "always render, ignoring cached previews")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "refresh the preview whenever the job file changes")
	opts.layout.register(cmd)

	return cmd
}

func (c *CLI) runPreview(ctx context.Context, jobPath string, opts previewOpts) error {
	if opts.output == "" {
		opts.output = replaceExt(jobPath, ".png")
	}

	return c.withApp(ctx, opts.noCache, func(a *app.App) error {
		err := c.previewOnce(ctx, a, jobPath, opts)
		if !opts.watch {
			return err
		}
		if err != nil {
			reportFailure(err)
		}

		logger := loggerFromContext(ctx)
		printInfo("Watching %s for changes (Ctrl+C to stop)", jobPath)
		w := newFileWatcher(jobPath, logger, func(ctx context.Context) {
			if err := c.previewOnce(ctx, a, jobPath, opts); err != nil {
				reportFailure(err)
			}
		})
		return w.Run(ctx)
	})
}

// previewOnce loads the job, generates the sheet and writes the preview image.
func (c *CLI) previewOnce(ctx context.Context, a *app.App, jobPath string, opts previewOpts) error {
	job, err := c.loadJob(jobPath, opts.layout)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Rendering preview...")
	spinner.Start()

	prog := newProgress(loggerFromContext(ctx))
	artifact, err := a.GenerateJob(ctx, job)
	if err != nil {
		spinner.Stop()
		return err
	}
	preview, err := a.Preview(ctx, artifact)
	if err != nil {
		spinner.Stop()
		return err
	}

	if opts.thumbnail > 0 {
		err = render.Thumbnail(preview.Path, opts.output, opts.thumbnail)
	} else {
		err = copyFile(preview.Path, opts.output)
	}
	if err != nil {
		spinner.Stop()
		return err
	}
	prog.done("Rendered preview")

	spinner.StopWithSuccess("Rendered preview")
	printPreviewStats(c.resolution(), preview.Cached)
	printFile(opts.output)
	return nil
}

func (c *CLI) resolution() int {
	if c.config == nil {
		return render.DefaultResolution
	}
	return c.config.Render.Resolution
}

// reportFailure prints err and its hint without ending the command.
func reportFailure(err error) {
	printError("%v", err)
	if h := hintFor(err); h != "" {
		printDetail("%s", h)
	}
}
