package sheet

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	errs "github.com/matzehuels/barsheet/pkg/errors"
)

// Unit is the length unit used by Properties.
type Unit string

// Supported units.
const (
	UnitPoint      Unit = "p"
	UnitMillimetre Unit = "mm"
	UnitCentimetre Unit = "cm"
	UnitInch       Unit = "in"
)

// DefaultUnit is used when no unit is configured.
const DefaultUnit = UnitMillimetre

// pointsPer maps each unit to its size in PostScript points.
var pointsPer = map[Unit]float64{
	UnitPoint:      1,
	UnitMillimetre: 72 / 25.4,
	UnitCentimetre: 72 / 2.54,
	UnitInch:       72,
}

// ParseUnit validates a unit identifier.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := pointsPer[u]; !ok {
		return "", errs.New(errs.ErrCodeInvalidProperty, "invalid unit %q (must be one of: p, mm, cm, in)", s)
	}
	return u, nil
}

// Points converts v in unit u to points.
func (u Unit) Points(v float64) float64 {
	if f, ok := pointsPer[u]; ok {
		return v * f
	}
	return v * pointsPer[DefaultUnit]
}

// Properties is the rendering configuration for a sheet. Lengths are in
// Units, except FontSize which is always in points.
type Properties struct {
	Units        Unit    `toml:"units" json:"units"`
	LeftMargin   float64 `toml:"left_margin" json:"left_margin"`
	RightMargin  float64 `toml:"right_margin" json:"right_margin"`
	TopMargin    float64 `toml:"top_margin" json:"top_margin"`
	BottomMargin float64 `toml:"bottom_margin" json:"bottom_margin"`
	BarWidth     float64 `toml:"bar_width" json:"bar_width"`   // width of one narrow module
	BarHeight    float64 `toml:"bar_height" json:"bar_height"` // height of the bars, text excluded
	Padding      float64 `toml:"padding" json:"padding"`       // space between neighbouring barcodes
	ColumnWidth  float64 `toml:"column_width" json:"column_width"`
	FontSize     float64 `toml:"font_size" json:"font_size"`
}

// DefaultProperties returns the properties used when nothing is configured.
func DefaultProperties() Properties {
	return Properties{
		Units:        DefaultUnit,
		LeftMargin:   10,
		RightMargin:  10,
		TopMargin:    10,
		BottomMargin: 10,
		BarWidth:     0.33,
		BarHeight:    15,
		Padding:      5,
		ColumnWidth:  90,
		FontSize:     10,
	}
}

// Field names accepted by Set.
const (
	FieldUnits        = "units"
	FieldLeftMargin   = "left_margin"
	FieldRightMargin  = "right_margin"
	FieldTopMargin    = "top_margin"
	FieldBottomMargin = "bottom_margin"
	FieldBarWidth     = "bar_width"
	FieldBarHeight    = "bar_height"
	FieldPadding      = "padding"
	FieldColumnWidth  = "column_width"
	FieldFontSize     = "font_size"
)

// Fields lists every field name accepted by Set, in display order.
var Fields = []string{
	FieldUnits,
	FieldLeftMargin, FieldRightMargin, FieldTopMargin, FieldBottomMargin,
	FieldBarWidth, FieldBarHeight, FieldPadding, FieldColumnWidth, FieldFontSize,
}

// decimalPattern accepts plain decimals only: no sign, no exponent.
var decimalPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)$`)

// ParseDecimal parses user input as a non-negative decimal literal.
func ParseDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !decimalPattern.MatchString(s) {
		return 0, errs.New(errs.ErrCodeInvalidProperty, "%q is not a decimal number", s)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, errs.Wrap(errs.ErrCodeInvalidProperty, err, "parse %q", s)
	}
	return v, nil
}

// Set updates one field from user input. On invalid input the receiver is
// left unchanged, so it always holds the last valid value.
func (p *Properties) Set(field, value string) error {
	if field == FieldUnits {
		u, err := ParseUnit(value)
		if err != nil {
			return err
		}
		p.Units = u
		return nil
	}

	dst := p.field(field)
	if dst == nil {
		return errs.New(errs.ErrCodeInvalidProperty, "unknown property %q", field)
	}
	v, err := ParseDecimal(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = v
	return nil
}

func (p *Properties) field(name string) *float64 {
	switch name {
	case FieldLeftMargin:
		return &p.LeftMargin
	case FieldRightMargin:
		return &p.RightMargin
	case FieldTopMargin:
		return &p.TopMargin
	case FieldBottomMargin:
		return &p.BottomMargin
	case FieldBarWidth:
		return &p.BarWidth
	case FieldBarHeight:
		return &p.BarHeight
	case FieldPadding:
		return &p.Padding
	case FieldColumnWidth:
		return &p.ColumnWidth
	case FieldFontSize:
		return &p.FontSize
	}
	return nil
}

// Validate checks that the properties describe a drawable sheet.
func (p Properties) Validate() error {
	if _, ok := pointsPer[p.Units]; !ok {
		return errs.New(errs.ErrCodeInvalidProperty, "invalid unit %q", p.Units)
	}
	for _, name := range Fields[1:] {
		if v := *p.field(name); v < 0 {
			return errs.New(errs.ErrCodeInvalidProperty, "%s must not be negative (got %g)", name, v)
		}
	}
	if p.BarWidth == 0 {
		return errs.New(errs.ErrCodeInvalidProperty, "bar_width must be positive")
	}
	if p.BarHeight == 0 {
		return errs.New(errs.ErrCodeInvalidProperty, "bar_height must be positive")
	}
	return nil
}

// Grid is the page layout in rows and columns.
type Grid struct {
	Rows int `toml:"rows" json:"rows"`
	Cols int `toml:"cols" json:"cols"`
}

// DefaultGrid is one row of two barcodes.
var DefaultGrid = Grid{Rows: 1, Cols: 2}

// Cells returns Rows * Cols.
func (g Grid) Cells() int { return g.Rows * g.Cols }

// Check reports INVALID_LAYOUT unless the grid has exactly n cells.
func (g Grid) Check(n int) error {
	if g.Rows <= 0 || g.Cols <= 0 {
		return errs.New(errs.ErrCodeInvalidLayout, "rows and cols must be positive (got %dx%d)", g.Rows, g.Cols)
	}
	if g.Cells() != n {
		return errs.New(errs.ErrCodeInvalidLayout, "%d rows x %d cols = %d cells, but there are %d barcodes", g.Rows, g.Cols, g.Cells(), n)
	}
	return nil
}
