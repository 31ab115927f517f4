// Package barcode encodes barcode text into bar patterns.
//
// The [Encoder] interface is the contract the generation pipeline consumes;
// [Code128] implements it on top of github.com/boombuler/barcode. Encoding
// failures carry the codes DATA_LENGTH, CHAR_INVALID, INVALID_CODE_SET and
// ARGUMENT_ERROR from pkg/errors.
package barcode

import (
	"image/color"
	"unicode/utf8"

	bb "github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// DefaultMaxLength is the longest text accepted by Code128 unless
// configured otherwise.
const DefaultMaxLength = 20

// libraryMaxLength is the hard limit of the underlying encoder.
const libraryMaxLength = 80

// Encoder turns one barcode text into a Symbol.
type Encoder interface {
	Encode(text string) (*Symbol, error)
}

// Symbol is one encoded barcode instance: the module pattern, left to right,
// and the human-readable text printed under it.
//
// A Symbol is owned by the generation call that produced it and must be
// released when that call returns.
type Symbol struct {
	Text    string
	Kind    string
	Modules []bool // true = bar, false = space

	onRelease func()
}

// Width returns the number of modules in the symbol.
func (s *Symbol) Width() int { return len(s.Modules) }

// Bars returns the symbol as runs of (start, width) for each bar.
// Adjacent dark modules are merged into one run.
func (s *Symbol) Bars() [][2]int {
	var runs [][2]int
	for i := 0; i < len(s.Modules); {
		if !s.Modules[i] {
			i++
			continue
		}
		start := i
		for i < len(s.Modules) && s.Modules[i] {
			i++
		}
		runs = append(runs, [2]int{start, i - start})
	}
	return runs
}

// Release drops the module buffer. It is safe to call more than once.
func (s *Symbol) Release() {
	if s == nil || s.Modules == nil {
		return
	}
	s.Modules = nil
	if s.onRelease != nil {
		s.onRelease()
		s.onRelease = nil
	}
}

// Released reports whether Release has been called.
func (s *Symbol) Released() bool { return s.Modules == nil }

// NewSymbol builds a Symbol from a module pattern. onRelease, if not nil,
// runs once when the symbol is released.
func NewSymbol(text, kind string, modules []bool, onRelease func()) *Symbol {
	return &Symbol{Text: text, Kind: kind, Modules: modules, onRelease: onRelease}
}

// Code128 encodes text as Code 128 with automatic code-set selection.
type Code128 struct {
	// MaxLength bounds the text length in characters. Zero means DefaultMaxLength.
	MaxLength int
}

// NewCode128 returns a Code128 encoder with the given length bound.
func NewCode128(maxLength int) *Code128 {
	return &Code128{MaxLength: maxLength}
}

// Encode implements Encoder.
func (c *Code128) Encode(text string) (*Symbol, error) {
	if !utf8.ValidString(text) {
		return nil, errs.New(errs.ErrCodeArgument, "text is not valid UTF-8")
	}

	maxLen := c.MaxLength
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	n := utf8.RuneCountInString(text)
	if n == 0 || n > maxLen || n > libraryMaxLength {
		return nil, errs.New(errs.ErrCodeDataLength, "text length %d outside 1..%d", n, min(maxLen, libraryMaxLength))
	}

	for i, r := range text {
		if r > 127 {
			return nil, errs.New(errs.ErrCodeCharInvalid, "character %q at offset %d cannot be encoded in Code 128", r, i)
		}
	}

	code, err := code128.Encode(text)
	if err != nil {
		return nil, errs.Wrap(errs.ErrCodeInvalidCodeSet, err, "no code set can encode %q", text)
	}
	return NewSymbol(text, code.Metadata().CodeKind, modules(code), nil), nil
}

// modules reads the single-row bar pattern out of a 1D barcode image.
func modules(code bb.Barcode) []bool {
	bounds := code.Bounds()
	out := make([]bool, bounds.Dx())
	for x := bounds.Min.X; x < bounds.Max.X; x++ {
		out[x-bounds.Min.X] = isDark(code.At(x, bounds.Min.Y))
	}
	return out
}

func isDark(c color.Color) bool {
	y := color.Gray16Model.Convert(c).(color.Gray16).Y
	return y < 0x8000
}
