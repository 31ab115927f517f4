// Package render rasterizes PostScript sheets into PNG previews.
//
// # Overview
//
// A [Backend] owns at most one long-lived [Interpreter] and reuses it for
// every render. Starting the interpreter is lazy and explicit:
//
//	b := render.NewBackend(render.GhostscriptStarter(cfg, logger), imageDir)
//	if err := b.EnsureStarted(ctx); err != nil {
//	    return err
//	}
//	defer b.Shutdown()
//
//	png, err := b.Render(ctx, "/tmp/barsheet-123/sheet.ps")
//
// Each render first erases the page left over from the previous run, then
// interprets the document and moves the produced page to a fresh
// preview-<uuid>.png path.
//
// # Failure Modes
//
// A script the interpreter rejects is RENDER_FAILED and the interpreter is
// kept. A dead or hung interpreter is RENDER_FATAL: it is torn down and
// [Backend.EnsureStarted] must run again before the next render. Rendering
// before the interpreter is started is RENDER_NOT_STARTED.
//
// # Ghostscript
//
// [Ghostscript] drives a single gs process over stdin. Every script is
// wrapped in "stopped" and followed by a status line carrying a per-process
// token, which is how a run's exit code is read back from stdout.
package render
