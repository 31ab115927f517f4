// Package pkg holds the barsheet libraries.
//
// A job (barcode texts with quantities, a grid and sheet properties) flows
// through these packages:
//
//	[pipeline] Job
//	     ↓
//	[barcode] Code 128 symbols
//	     ↓
//	[sheet] PostScript document
//	     ↓
//	[scope] committed to the process's temporary file
//	     ↓
//	[render] PNG preview through Ghostscript   or   [printer] print job
//
// Supporting packages:
//   - [errors]: coded errors shared by every stage
//   - [cache]: rendered previews keyed by document hash
//   - [observability]: hooks for generate, render, dispatch and cache events
//   - [buildinfo]: version information set at link time
//
// The cmd/barsheet binary wires these together through internal/app.
package pkg
