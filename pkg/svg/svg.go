package svg

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"text/template"

	"github.com/egandro/cpuctl/pkg/cpuctl"
)

const (
	cellSize        = 64
	paddingTop      = 110
	basePaddingLeft = 100
	legendHeight    = 14
	legendGap       = 30
)

// New prepares a core map for the given snapshot.
func New(cores []cpuctl.CoreStatus, title string) *CoreMap {
	m := &CoreMap{
		cores: cores,
		title: title,
		byCPU: make(map[int]cpuctl.CoreStatus, len(cores)),
	}
	m.prepareData()
	m.dims = m.calculateDimensions()
	return m
}

// prepareData groups cores into sibling sets ordered by their lowest member.
func (m *CoreMap) prepareData() {
	for _, c := range m.cores {
		m.byCPU[c.CPU] = c
	}

	seen := make(map[int]bool, len(m.cores))
	ids := make([]int, 0, len(m.cores))
	for id := range m.byCPU {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if seen[id] {
			continue
		}
		group := []int{id}
		seen[id] = true
		for _, sib := range m.byCPU[id].Siblings {
			if _, known := m.byCPU[sib]; known && !seen[sib] {
				group = append(group, sib)
				seen[sib] = true
			}
		}
		sort.Ints(group)
		m.groups = append(m.groups, group)
	}
}

func (m *CoreMap) calculateDimensions() mapDimensions {
	var dims mapDimensions
	for _, g := range m.groups {
		if len(g) > dims.columns {
			dims.columns = len(g)
		}
	}

	// Title: font-size 20, bold (~12px/char)
	titleW := len(m.title) * 12
	// Stats: font-size 14 (~8px/char)
	statsW := len(m.statisticsText()) * 8

	reqTextW := titleW
	if statsW > reqTextW {
		reqTextW = statsW
	}
	reqTextW += 40

	dims.paddingLeft = basePaddingLeft
	gridW := dims.columns * cellSize
	reqGridW := dims.paddingLeft + gridW + 20

	dims.width = reqGridW
	if reqTextW > dims.width {
		dims.width = reqTextW
		dims.paddingLeft += (dims.width - reqGridW) / 2
	}

	dims.height = paddingTop + len(m.groups)*cellSize + legendGap + legendHeight + 40
	return dims
}

func (m *CoreMap) specsText() string {
	online := 0
	for _, c := range m.cores {
		if c.Online {
			online++
		}
	}
	cpuStr := "CPU"
	if len(m.cores) != 1 {
		cpuStr = "CPUs"
	}
	groupStr := "Core"
	if len(m.groups) != 1 {
		groupStr = "Cores"
	}
	return fmt.Sprintf("%d %s | %d %s | %d Online", len(m.groups), groupStr, len(m.cores), cpuStr, online)
}

func (m *CoreMap) statisticsText() string {
	var lo, hi, sum uint64
	n := 0
	for _, c := range m.cores {
		if !c.Online || c.FrequencyKHz == 0 {
			continue
		}
		if n == 0 || c.FrequencyKHz < lo {
			lo = c.FrequencyKHz
		}
		if c.FrequencyKHz > hi {
			hi = c.FrequencyKHz
		}
		sum += c.FrequencyKHz
		n++
	}
	if n == 0 {
		return "No frequency data"
	}
	return fmt.Sprintf("Min: %s | Max: %s | Mean: %s", formatMHz(lo), formatMHz(hi), formatMHz(sum/uint64(n)))
}

func formatMHz(khz uint64) string {
	return fmt.Sprintf("%d MHz", khz/1000)
}

// Generate renders the map as an SVG document.
func (m *CoreMap) Generate() (string, error) {
	if len(m.cores) == 0 {
		return "", fmt.Errorf("no core data available")
	}

	data := svgData{
		Width:   m.dims.width,
		Height:  m.dims.height,
		CenterX: m.dims.width / 2,
		Title:   m.title,
		Specs:   m.specsText(),
		Stats:   m.statisticsText(),
	}

	for row, group := range m.groups {
		y := paddingTop + row*cellSize
		data.RowLabels = append(data.RowLabels, svgLabel{
			X:    m.dims.paddingLeft - 10,
			Y:    y + cellSize/2,
			Text: "Core " + cpuctl.FormatCPUList(group),
		})

		for col, id := range group {
			x := m.dims.paddingLeft + col*cellSize
			data.Cells = append(data.Cells, m.cell(m.byCPU[id], x, y))
		}
	}

	data.LegendX = m.dims.paddingLeft
	data.LegendY = paddingTop + len(m.groups)*cellSize + legendGap
	data.LegendWidth = m.dims.columns * cellSize
	for _, s := range colorStops {
		data.LegendStops = append(data.LegendStops, svgLegendStop{
			Offset: fmt.Sprintf("%.0f%%", s.val*100),
			Color:  s.col.String(),
		})
	}

	tmpl, err := template.New("svg").Parse(svgTemplateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse SVG template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute SVG template: %w", err)
	}

	return buf.String(), nil
}

func (m *CoreMap) cell(c cpuctl.CoreStatus, x, y int) svgCell {
	cell := svgCell{
		X:         x,
		Y:         y,
		Width:     cellSize,
		Height:    cellSize,
		Fill:      noFreqFill,
		TextColor: defaultTextCol,
		Text:      fmt.Sprintf("cpu%d", c.CPU),
		TextX:     x + cellSize/2,
		TextY:     y + cellSize/2 - 6,
		SubTextY:  y + cellSize/2 + 12,
	}

	switch {
	case !c.Online:
		cell.Fill = offlineFill
		cell.TextColor = offlineText
		cell.SubText = "offline"
	case c.FrequencyKHz > 0:
		col, tc := calculateCellColor(frequencyRatio(c.FrequencyKHz, c.MinKHz, c.MaxKHz))
		cell.Fill = col.String()
		cell.TextColor = tc
		cell.SubText = formatMHz(c.FrequencyKHz)
	}
	return cell
}

//go:embed templates/coremap.svg.tmpl
var svgTemplateStr string
