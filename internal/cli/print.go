package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/matzehuels/barsheet/internal/app"
	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// printOpts holds the flags of the print command.
type printOpts struct {
	printer string
	layout  layoutFlags
}

func (c *CLI) printCommand() *cobra.Command {
	opts := printOpts{}

	cmd := &cobra.Command{
		Use:   "print <job.toml>",
		Short: "Generate a job's sheet and send it to a printer",
		Long: `Print generates the sheet for a job file and submits it to the named
printer. Only submission is confirmed; the printer queue reports the rest.

List installed printers with 'barsheet printers'.`,
		Example: `  barsheet print labels.toml --printer Office_Laser`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrint(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.printer, "printer", "p", "", "printer name (required)")
	opts.layout.register(cmd)
	_ = cmd.MarkFlagRequired("printer")

	return cmd
}

func (c *CLI) runPrint(ctx context.Context, jobPath string, opts printOpts) error {
	if opts.printer == "" {
		return errs.New(errs.ErrCodeArgument, "no printer given")
	}
	job, err := c.loadJob(jobPath, opts.layout)
	if err != nil {
		return err
	}

	return c.withApp(ctx, true, func(a *app.App) error {
		artifact, err := a.GenerateJob(ctx, job)
		if err != nil {
			return err
		}
		if err := a.Print(ctx, artifact, opts.printer); err != nil {
			return err
		}
		printSuccess("Sent sheet to %s", StyleHighlight.Render(opts.printer))
		return nil
	})
}

func (c *CLI) printersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "printers",
		Short: "List installed printers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPrinters(cmd.Context())
		},
	}
}

func (c *CLI) runPrinters(ctx context.Context) error {
	return c.withApp(ctx, true, func(a *app.App) error {
		list, err := a.Printers(ctx)
		if err != nil {
			return err
		}
		printInfo("%s installed", plural(len(list), "printer"))
		for _, name := range list {
			printFile(name)
		}
		if len(list) > 0 {
			printNextStep("Print with", "barsheet print <job.toml> --printer "+quoteArg(list[0]))
		}
		return nil
	})
}

// quoteArg single-quotes s for a shell when it contains spaces.
func quoteArg(s string) string {
	for _, r := range s {
		if r == ' ' || r == '\t' {
			return "'" + s + "'"
		}
	}
	return s
}
