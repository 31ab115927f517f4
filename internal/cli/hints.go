package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// hints maps each error code to the message shown after a failing command.
var hints = map[errs.Code]string{
	errs.ErrCodeTempCreationFailed: "Could not create the temporary working directory. Check that the temp directory is writable",
	errs.ErrCodeCloseFailed:        "Could not close the working file. Nothing was lost",
	errs.ErrCodeRemoveFailed:       "Could not remove the temporary working directory. It may need deleting by hand",
	errs.ErrCodeDataLength:         "Invalid text length: a barcode text is empty or too long",
	errs.ErrCodeCharInvalid:        "Invalid character: a barcode text includes a character Code 128 cannot encode. Remove it before regenerating",
	errs.ErrCodeInvalidCodeSet:     "Invalid Code 128 code set",
	errs.ErrCodeArgument:           "Argument error",
	errs.ErrCodeInvalidLayout:      "Invalid layout: the number of rows and columns does not match the number of barcodes",
	errs.ErrCodeInvalidProperty:    "Invalid property: values must be non-negative decimals and units one of p, mm, cm, in",
	errs.ErrCodeFileResetFailed:    "Could not reset the file contents. No PostScript was written",
	errs.ErrCodeFileWriteFailed:    "Could not write to the file. No PostScript was written",
	errs.ErrCodeFlushFailed:        "Could not flush output. Printed barcodes may be clipped",
	errs.ErrCodeRenderFailed:       "The preview could not be rendered from this document",
	errs.ErrCodeRenderFatal:        "Ghostscript stopped unexpectedly. It will be restarted on the next preview",
	errs.ErrCodeRenderNotStarted:   "Ghostscript is not running. Check that it is installed or set render.ghostscript in the config",
	errs.ErrCodeSubprocessFailed:   "Could not get the list of printers. Check the output of the printer status command",
	errs.ErrCodeReadFailed:         "Could not read the printer list",
	errs.ErrCodeNoPrinters:         "No printers are installed",
	errs.ErrCodeLaunchFailed:       "Could not start the print job",
	errs.ErrCodeInvalidInput:       "The job or config file is invalid",
	errs.ErrCodeInternal:           "Internal error",
}

// hintFor returns the hint for the first coded error in err's tree, or a
// generic message naming the unknown code.
func hintFor(err error) string {
	if err == nil {
		return ""
	}
	for _, code := range errs.Codes(err) {
		if h, ok := hints[code]; ok {
			return h
		}
	}
	if code := errs.GetCode(err); code != "" {
		return fmt.Sprintf("Unknown error: received unknown error code %s", code)
	}
	return ""
}

// Hint returns the hint for err; main uses it after a failing command.
func Hint(err error) string {
	return hintFor(err)
}

func (c *CLI) hintsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hints [code]",
		Short: "List error codes and what they mean",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				code := errs.Code(strings.ToUpper(args[0]))
				h, ok := hints[code]
				if !ok {
					return errs.New(errs.ErrCodeArgument, "unknown error code %q", args[0])
				}
				printKeyValue(string(code), h)
				return nil
			}
			codes := make([]string, 0, len(hints))
			for code := range hints {
				codes = append(codes, string(code))
			}
			slices.Sort(codes)
			for _, code := range codes {
				fmt.Fprintln(out, styleCode.Render(code))
				printDetail("%s", hints[errs.Code(code)])
			}
			return nil
		},
	}
}
