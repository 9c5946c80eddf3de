package svg

import "github.com/egandro/cpuctl/pkg/cpuctl"

// CoreMap renders the cores of a system as a grid, one row per SMT
// sibling group.
type CoreMap struct {
	cores []cpuctl.CoreStatus
	title string

	groups [][]int
	byCPU  map[int]cpuctl.CoreStatus
	dims   mapDimensions
}

type svgLabel struct {
	X, Y int
	Text string
}

type svgCell struct {
	X, Y, Width, Height int
	Fill, TextColor     string
	Text, SubText       string
	TextX, TextY        int
	SubTextY            int
}

type svgLegendStop struct {
	Offset string
	Color  string
}

type svgData struct {
	Width, Height, CenterX int
	Title, Specs, Stats    string
	RowLabels              []svgLabel
	Cells                  []svgCell

	LegendX, LegendY int
	LegendWidth      int
	LegendStops      []svgLegendStop
}

type mapDimensions struct {
	width       int
	height      int
	paddingLeft int
	columns     int
}
