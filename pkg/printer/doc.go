// Package printer enumerates installed printers and submits print jobs.
//
// Both operations shell out to platform tools through a [Launcher]. The
// [Platform] describing which tools to call is chosen at build time: CUPS
// (lpstat / lp) on Unix-like systems, wmic and Ghostscript's mswinpr2
// device on Windows.
//
//	d := printer.NewDispatcher(printer.WithLogger(logger))
//	names, err := d.List(ctx)
//	if errors.Is(err, errors.ErrCodeNoPrinters) {
//	    // nothing installed, which is not the same as lpstat failing
//	}
//	err = d.Print(ctx, "/tmp/barsheet-123/sheet.ps", names[0])
//
// Print confirms job submission only; it never waits for the job to
// finish printing.
package printer
