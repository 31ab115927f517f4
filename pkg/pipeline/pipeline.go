// Package pipeline builds barcode sheets: it expands requests into
// instances, encodes them, lays them out as PostScript and commits the
// document to the process's scope file.
//
// # Architecture
//
// Generation runs four stages in order:
//
//  1. Expand: drop empty and zero-quantity requests, repeat the rest
//  2. Encode: one [barcode.Symbol] per instance
//  3. Layout: the [sheet.Layouter] turns symbols into PostScript
//  4. Commit: the document atomically replaces the scope file
//
// The first failing stage aborts the call and its coded error is returned
// unchanged. Symbols are released on every exit path and the scope file
// keeps its previous contents unless the commit succeeded.
//
// # Usage
//
//	sc, err := scope.Open()
//	if err != nil {
//	    return err
//	}
//	defer sc.Close()
//
//	runner := pipeline.NewRunner(nil, nil, logger)
//	artifact, err := runner.Generate(ctx, []pipeline.Request{
//	    {Text: "ABC123", Quantity: 2},
//	}, sheet.DefaultProperties(), sheet.Grid{Rows: 1, Cols: 2}, sc)
package pipeline

import (
	"math"

	"github.com/matzehuels/barsheet/pkg/barcode"
	"github.com/matzehuels/barsheet/pkg/sheet"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// MaxRequests is the number of entries a job may list.
	MaxRequests = 128

	// MaxQuantity is the number of copies one entry may request.
	MaxQuantity = 100

	// MaxInstances bounds the labels one sheet may hold.
	MaxInstances = MaxRequests * MaxQuantity

	// DefaultMaxLength bounds the text of one entry.
	DefaultMaxLength = barcode.DefaultMaxLength
)

// DefaultGrid is the layout used when a job has none.
var DefaultGrid = sheet.DefaultGrid

// =============================================================================
// Requests and Artifacts
// =============================================================================

// Request is one barcode entry: its text and how many copies to print.
// A Quantity of zero or less omits the entry.
type Request struct {
	Text     string `toml:"text" json:"text"`
	Quantity int    `toml:"quantity" json:"quantity"`
}

// Artifact is the absolute path of the generated PostScript document. It
// stays valid until the owning scope is closed.
type Artifact string

// String returns the path.
func (a Artifact) String() string { return string(a) }

// Expand returns one text per instance, in request order. Requests with
// empty text or a non-positive quantity contribute nothing.
func Expand(requests []Request) []string {
	out := make([]string, 0, min(Count(requests), MaxInstances))
	for _, r := range requests {
		if r.Text == "" || r.Quantity <= 0 {
			continue
		}
		for range r.Quantity {
			out = append(out, r.Text)
		}
	}
	return out
}

// Count returns the number of instances Expand would produce, saturating
// at math.MaxInt.
func Count(requests []Request) int {
	n := 0
	for _, r := range requests {
		if r.Text == "" || r.Quantity <= 0 {
			continue
		}
		if r.Quantity > math.MaxInt-n {
			return math.MaxInt
		}
		n += r.Quantity
	}
	return n
}
