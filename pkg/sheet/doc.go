// Package sheet describes how barcodes are arranged on a printed page and
// writes that arrangement out as PostScript.
//
// # Data Model
//
// [Properties] holds the rendering configuration: a [Unit] for lengths, four
// page margins, the width of one bar module, bar height, the padding between
// barcodes, column width and font size. [Grid] holds the rows and columns of
// the page layout.
//
// Properties are normally edited field by field from user input with
// [Properties.Set], which rejects anything that is not a plain decimal and
// leaves the previous value in place.
//
// # Layout
//
// A [Layouter] turns encoded symbols into a complete PostScript document.
// [PostScript] is the implementation used by the pipeline. It requires the
// grid to hold exactly one cell per symbol:
//
//	doc, err := sheet.NewPostScript().Layout(symbols, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2})
//	if errors.Is(err, errors.ErrCodeInvalidLayout) {
//	    // rows * cols does not match the number of symbols
//	}
package sheet
