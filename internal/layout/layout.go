// pattern: Functional Core

// Package layout places floating windows inside a parent region.
package layout

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// borderCells is the number of cells a bordered float loses on each axis.
const borderCells = 2

// ErrInvalidLayoutRequest is matched by every error Resolve returns.
var ErrInvalidLayoutRequest = errors.New("invalid layout request")

// InvalidRequestError describes why a Request was rejected.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidLayoutRequest, e.Reason)
}

// Is reports whether target is ErrInvalidLayoutRequest.
func (e *InvalidRequestError) Is(target error) bool {
	return target == ErrInvalidLayoutRequest
}

func invalid(format string, args ...any) error {
	return &InvalidRequestError{Reason: fmt.Sprintf(format, args...)}
}

// Relative names the region a placement is measured against.
type Relative int

const (
	RelativeEditor Relative = iota // whole screen
	RelativeWindow                 // a reference window
	RelativeCursor                 // the cursor position
)

// String returns the value Neovim expects for the "relative" key.
func (r Relative) String() string {
	switch r {
	case RelativeWindow:
		return "win"
	case RelativeCursor:
		return "cursor"
	default:
		return "editor"
	}
}

// Anchor is the corner of a float used as its position reference.
type Anchor string

const (
	NorthWest Anchor = "NW"
	NorthEast Anchor = "NE"
	SouthWest Anchor = "SW"
	SouthEast Anchor = "SE"
)

// Alignment is a named policy mapping a parent region to an anchor and offsets.
type Alignment int

const (
	AlignNone Alignment = iota
	AlignCenter
	AlignNorth
	AlignSouth
	AlignEast
	AlignWest
	AlignNorthEast
	AlignNorthWest
	AlignSouthEast
	AlignSouthWest
)

var alignmentNames = map[Alignment]string{
	AlignNone:      "none",
	AlignCenter:    "center",
	AlignNorth:     "north",
	AlignSouth:     "south",
	AlignEast:      "east",
	AlignWest:      "west",
	AlignNorthEast: "north-east",
	AlignNorthWest: "north-west",
	AlignSouthEast: "south-east",
	AlignSouthWest: "south-west",
}

func (a Alignment) String() string {
	if name, ok := alignmentNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Alignment(%d)", int(a))
}

// ParseAlignment accepts the names produced by Alignment.String.
// Underscores and case are ignored, so "NORTH_EAST" parses too.
func ParseAlignment(s string) (Alignment, error) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if norm == "" {
		return AlignNone, nil
	}
	for a, name := range alignmentNames {
		if name == norm {
			return a, nil
		}
	}
	return AlignNone, fmt.Errorf("unknown alignment %q", s)
}

// Alignments lists every alignment except AlignNone, in declaration order.
func Alignments() []Alignment {
	return []Alignment{
		AlignCenter, AlignNorth, AlignSouth, AlignEast, AlignWest,
		AlignNorthEast, AlignNorthWest, AlignSouthEast, AlignSouthWest,
	}
}

// Size is either an absolute number of cells or a fraction of the parent.
type Size struct {
	cells    int
	fraction float64
	relative bool
}

// Cells returns an absolute size.
func Cells(n int) Size { return Size{cells: n} }

// Fraction returns a size proportional to the parent, f in (0,1].
func Fraction(f float64) Size { return Size{fraction: f, relative: true} }

// IsFraction reports whether s is proportional.
func (s Size) IsFraction() bool { return s.relative }

// CellCount returns the absolute size; zero for fractions.
func (s Size) CellCount() int { return s.cells }

// Ratio returns the proportional size; zero for absolute sizes.
func (s Size) Ratio() float64 { return s.fraction }

func (s Size) String() string {
	if s.relative {
		return fmt.Sprintf("%g", s.fraction)
	}
	return fmt.Sprintf("%d", s.cells)
}

func (s Size) validate(axis string) error {
	if s.relative {
		if math.IsNaN(s.fraction) || s.fraction <= 0 || s.fraction > 1 {
			return invalid("%s fraction %g outside (0,1]", axis, s.fraction)
		}
		return nil
	}
	if s.cells < 0 {
		return invalid("%s cells %d is negative", axis, s.cells)
	}
	return nil
}

// resolve turns s into cells against a parent dimension, reserving border cells.
func (s Size) resolve(parent int) int {
	if !s.relative {
		return s.cells
	}
	n := int(math.RoundToEven(s.fraction * float64(parent-borderCells)))
	if n < 0 {
		return 0
	}
	return n
}

// edge picks an offset along one axis.
type edge int

const (
	edgeStart  edge = iota // 0
	edgeMiddle             // (parent - size) / 2
	edgeEnd                // parent
)

func (e edge) offset(parent, size int) int {
	switch e {
	case edgeMiddle:
		return (parent - size) / 2
	case edgeEnd:
		return parent
	default:
		return 0
	}
}

type alignRule struct {
	anchor Anchor
	row    edge
	col    edge
}

// Outward placements anchor the float's far corner on the parent edge.
var alignmentTable = map[Alignment]alignRule{
	AlignCenter:    {NorthWest, edgeMiddle, edgeMiddle},
	AlignNorth:     {NorthWest, edgeStart, edgeMiddle},
	AlignSouth:     {SouthWest, edgeEnd, edgeMiddle},
	AlignEast:      {NorthEast, edgeMiddle, edgeEnd},
	AlignWest:      {NorthWest, edgeMiddle, edgeStart},
	AlignNorthEast: {NorthEast, edgeStart, edgeEnd},
	AlignNorthWest: {NorthWest, edgeStart, edgeStart},
	AlignSouthEast: {SouthEast, edgeEnd, edgeEnd},
	AlignSouthWest: {SouthWest, edgeEnd, edgeStart},
}

// Dimensions is the size of the parent region in cells.
type Dimensions struct {
	Width  int
	Height int
}

// Request describes the float to place.
// Anchor, Row and Col are only read when Alignment is AlignNone.
type Request struct {
	Width     Size
	Height    Size
	Relative  Relative
	Alignment Alignment
	Anchor    Anchor
	Row       int
	Col       int
}

// Placement is a resolved float position, ready for nvim_open_win.
type Placement struct {
	Relative Relative
	Anchor   Anchor
	Row      int
	Col      int
	Width    int
	Height   int
}

// Resolve computes where a float goes. It has no side effects.
func Resolve(req Request, parent Dimensions) (Placement, error) {
	if err := req.Width.validate("width"); err != nil {
		return Placement{}, err
	}
	if err := req.Height.validate("height"); err != nil {
		return Placement{}, err
	}
	if req.Relative == RelativeCursor && req.Alignment != AlignNone {
		return Placement{}, invalid("alignment %s cannot be combined with cursor-relative placement", req.Alignment)
	}

	w := req.Width.resolve(parent.Width)
	h := req.Height.resolve(parent.Height)

	p := Placement{Relative: req.Relative, Width: w, Height: h}

	if req.Alignment == AlignNone {
		p.Anchor = req.Anchor
		if p.Anchor == "" {
			p.Anchor = NorthWest
		}
		p.Row = req.Row
		p.Col = req.Col
		return p, nil
	}

	rule, ok := alignmentTable[req.Alignment]
	if !ok {
		return Placement{}, invalid("unknown alignment %d", int(req.Alignment))
	}
	p.Anchor = rule.anchor
	p.Row = rule.row.offset(parent.Height, h)
	p.Col = rule.col.offset(parent.Width, w)

	return p, nil
}
