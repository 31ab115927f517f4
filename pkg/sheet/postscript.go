package sheet

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/matzehuels/barsheet/pkg/barcode"
	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// Layouter arranges encoded symbols on a page and returns the document.
type Layouter interface {
	Layout(symbols []*barcode.Symbol, props Properties, grid Grid) ([]byte, error)
}

// A4 page size in points.
const (
	A4Width  = 595.0
	A4Height = 842.0
)

// textGap is the space between the bars and the text baseline, as a
// fraction of the font size.
const textGap = 1.2

// PostScriptOption configures a PostScript layouter.
type PostScriptOption func(*PostScript)

// WithPageSize sets the page size in points.
func WithPageSize(width, height float64) PostScriptOption {
	return func(p *PostScript) { p.pageWidth, p.pageHeight = width, height }
}

// WithTitle sets the %%Title comment of the document.
func WithTitle(title string) PostScriptOption {
	return func(p *PostScript) { p.title = title }
}

// WithFont sets the PostScript font used for the human-readable text.
func WithFont(name string) PostScriptOption {
	return func(p *PostScript) { p.font = name }
}

// PostScript lays symbols out row by row, left to right, as a single-page
// PostScript document.
type PostScript struct {
	pageWidth  float64
	pageHeight float64
	title      string
	font       string
}

// NewPostScript returns a layouter for A4 pages.
func NewPostScript(opts ...PostScriptOption) *PostScript {
	p := &PostScript{
		pageWidth:  A4Width,
		pageHeight: A4Height,
		title:      "barsheet",
		font:       "Helvetica",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Layout implements Layouter.
func (p *PostScript) Layout(symbols []*barcode.Symbol, props Properties, grid Grid) ([]byte, error) {
	if err := grid.Check(len(symbols)); err != nil {
		return nil, err
	}
	if err := props.Validate(); err != nil {
		return nil, err
	}
	for i, s := range symbols {
		if s == nil || s.Released() {
			return nil, errs.New(errs.ErrCodeArgument, "symbol %d has no module data", i)
		}
	}

	m := measure(props)

	var buf bytes.Buffer
	p.writeHeader(&buf, props)
	for i, s := range symbols {
		row, col := i/grid.Cols, i%grid.Cols
		x := m.left + float64(col)*(m.column+m.padding)
		top := p.pageHeight - m.top - float64(row)*(m.cell+m.padding)
		writeSymbol(&buf, s, m, x, top)
	}
	buf.WriteString("showpage\n%%EOF\n")
	return buf.Bytes(), nil
}

// metrics holds Properties converted to points.
type metrics struct {
	left, top float64
	module    float64
	bar       float64
	padding   float64
	column    float64
	font      float64
	cell      float64
}

func measure(props Properties) metrics {
	u := props.Units
	m := metrics{
		left:    u.Points(props.LeftMargin),
		top:     u.Points(props.TopMargin),
		module:  u.Points(props.BarWidth),
		bar:     u.Points(props.BarHeight),
		padding: u.Points(props.Padding),
		column:  u.Points(props.ColumnWidth),
		font:    props.FontSize,
	}
	m.cell = m.bar
	if m.font > 0 {
		m.cell += m.font * textGap
	}
	return m
}

func (p *PostScript) writeHeader(buf *bytes.Buffer, props Properties) {
	buf.WriteString("%!PS-Adobe-3.0\n")
	fmt.Fprintf(buf, "%%%%Title: %s\n", p.title)
	buf.WriteString("%%Creator: barsheet\n")
	buf.WriteString("%%Pages: 1\n")
	fmt.Fprintf(buf, "%%%%BoundingBox: 0 0 %.0f %.0f\n", p.pageWidth, p.pageHeight)
	buf.WriteString("%%EndComments\n")
	// ctext: ( string ) x y ctext, centred on x.
	buf.WriteString("/ctext { moveto dup stringwidth pop 2 div neg 0 rmoveto show } bind def\n")
	fmt.Fprintf(buf, "<< /PageSize [%s %s] >> setpagedevice\n", num(p.pageWidth), num(p.pageHeight))
	if props.FontSize > 0 {
		fmt.Fprintf(buf, "/%s findfont %s scalefont setfont\n", p.font, num(props.FontSize))
	}
	buf.WriteString("0 setgray\n")
}

// writeSymbol draws one symbol in the cell whose top-left corner is (x, top).
func writeSymbol(buf *bytes.Buffer, s *barcode.Symbol, m metrics, x, top float64) {
	width := float64(s.Width()) * m.module
	if width < m.column {
		x += (m.column - width) / 2
	}
	bottom := top - m.bar

	fmt.Fprintf(buf, "%% %s\n", comment(s.Text))
	for _, run := range s.Bars() {
		fmt.Fprintf(buf, "%s %s %s %s rectfill\n",
			num(x+float64(run[0])*m.module), num(bottom),
			num(float64(run[1])*m.module), num(m.bar))
	}
	if m.font > 0 {
		fmt.Fprintf(buf, "(%s) %s %s ctext\n", escape(s.Text), num(x+width/2), num(bottom-m.font*textGap))
	}
}

func num(v float64) string {
	s := fmt.Sprintf("%.3f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimSuffix(s, ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// escape quotes text for a PostScript string literal.
func escape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '(' || r == ')' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			fmt.Fprintf(&b, "\\%03o", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// comment keeps text on one DSC-safe line.
func comment(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
}
