package sheet

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matzehuels/barsheet/pkg/barcode"
	errs "github.com/matzehuels/barsheet/pkg/errors"
)

func symbol(text string, modules ...bool) *barcode.Symbol {
	return barcode.NewSymbol(text, "test", modules, nil)
}

func TestPostScriptLayout(t *testing.T) {
	syms := []*barcode.Symbol{
		symbol("A1", true, false, true, true),
		symbol("B2", true, true, false, true),
	}
	doc, err := NewPostScript().Layout(syms, DefaultProperties(), Grid{Rows: 1, Cols: 2})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}

	s := string(doc)
	if !strings.HasPrefix(s, "%!PS-Adobe-3.0\n") {
		t.Errorf("missing PostScript header: %q", s[:min(len(s), 20)])
	}
	if !strings.HasSuffix(s, "showpage\n%%EOF\n") {
		t.Error("document does not end with showpage")
	}
	if got := strings.Count(s, "rectfill"); got != 4 {
		t.Errorf("rectfill count = %d, want 4 (two runs per symbol)", got)
	}
	for _, text := range []string{"(A1)", "(B2)"} {
		if !strings.Contains(s, text) {
			t.Errorf("document missing text %s", text)
		}
	}
}

func TestPostScriptLayoutMismatch(t *testing.T) {
	syms := []*barcode.Symbol{symbol("A", true), symbol("B", true), symbol("C", true)}
	_, err := NewPostScript().Layout(syms, DefaultProperties(), Grid{Rows: 1, Cols: 2})
	if !errs.Is(err, errs.ErrCodeInvalidLayout) {
		t.Fatalf("Layout() error = %v, want INVALID_LAYOUT", err)
	}
}

func TestPostScriptLayoutInvalidProperties(t *testing.T) {
	props := DefaultProperties()
	props.BarHeight = 0
	_, err := NewPostScript().Layout([]*barcode.Symbol{symbol("A", true)}, props, Grid{Rows: 1, Cols: 1})
	if !errs.Is(err, errs.ErrCodeInvalidProperty) {
		t.Fatalf("Layout() error = %v, want INVALID_PROPERTY", err)
	}
}

func TestPostScriptLayoutReleasedSymbol(t *testing.T) {
	s := symbol("A", true)
	s.Release()
	_, err := NewPostScript().Layout([]*barcode.Symbol{s}, DefaultProperties(), Grid{Rows: 1, Cols: 1})
	if !errs.Is(err, errs.ErrCodeArgument) {
		t.Fatalf("Layout() error = %v, want ARGUMENT_ERROR", err)
	}
}

func TestPostScriptDeterministic(t *testing.T) {
	syms := []*barcode.Symbol{symbol("X", true, false, true)}
	a, _ := NewPostScript().Layout(syms, DefaultProperties(), Grid{Rows: 1, Cols: 1})
	b, _ := NewPostScript().Layout(syms, DefaultProperties(), Grid{Rows: 1, Cols: 1})
	if !bytes.Equal(a, b) {
		t.Error("same input produced different documents")
	}
}

func TestPostScriptOptions(t *testing.T) {
	props := DefaultProperties()
	props.FontSize = 0
	doc, err := NewPostScript(WithPageSize(612, 792), WithTitle("labels")).
		Layout([]*barcode.Symbol{symbol("X", true)}, props, Grid{Rows: 1, Cols: 1})
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	s := string(doc)
	for _, want := range []string{"%%Title: labels", "%%BoundingBox: 0 0 612 792", "/PageSize [612 792]"} {
		if !strings.Contains(s, want) {
			t.Errorf("document missing %q", want)
		}
	}
	if strings.Contains(s, "ctext\n") || strings.Contains(s, "findfont") {
		t.Error("font size 0 should omit text")
	}
}

func TestEscape(t *testing.T) {
	tests := map[string]string{
		"plain":  "plain",
		"a(b)c":  `a\(b\)c`,
		`back\`:  `back\\`,
		"tab\tx": `tab\011x`,
	}
	for in, want := range tests {
		if got := escape(in); got != want {
			t.Errorf("escape(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNum(t *testing.T) {
	tests := map[float64]string{0: "0", 1.5: "1.5", 72: "72", 0.33333: "0.333", -0.0001: "0"}
	for in, want := range tests {
		if got := num(in); got != want {
			t.Errorf("num(%v) = %q, want %q", in, got, want)
		}
	}
}
