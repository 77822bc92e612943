package report

import (
	"encoding/json"
	"fmt"

	"github.com/mattn/go-runewidth"
	"github.com/xuri/excelize/v2"
)

const (
	headerFill    = "4F81BD"
	headerFont    = "FFFFFF"
	percentFormat = "+0.00%;-0.00%;0.00%"

	maxColWidth = 60
	colPadding  = 2
)

var thinBorder = []excelize.Border{
	{Type: "left", Color: "000000", Style: 1},
	{Type: "right", Color: "000000", Style: 1},
	{Type: "top", Color: "000000", Style: 1},
	{Type: "bottom", Color: "000000", Style: 1},
}

func headerStyle() excelize.Style {
	return excelize.Style{
		Font: &excelize.Font{Bold: true, Color: headerFont},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFill}, Pattern: 1},
	}
}

func percentStyle() excelize.Style {
	format := percentFormat
	return excelize.Style{CustomNumFmt: &format}
}

func titleStyle() excelize.Style {
	return excelize.Style{Font: &excelize.Font{Bold: true}}
}

func noteStyle() excelize.Style {
	return excelize.Style{Font: &excelize.Font{Italic: true}}
}

// styleSet registers each distinct style once and remembers what every id
// stands for, so a border can later be merged into a cell's existing style.
type styleSet struct {
	f     *excelize.File
	byID  map[int]excelize.Style
	byKey map[string]int
}

func newStyleSet(f *excelize.File) *styleSet {
	return &styleSet{f: f, byID: map[int]excelize.Style{}, byKey: map[string]int{}}
}

func (s *styleSet) id(st excelize.Style) (int, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return 0, err
	}
	key := string(b)
	if id, ok := s.byKey[key]; ok {
		return id, nil
	}
	id, err := s.f.NewStyle(&st)
	if err != nil {
		return 0, fmt.Errorf("failed to create style: %w", err)
	}
	s.byKey[key] = id
	s.byID[id] = st
	return id, nil
}

// bordered returns the style id with a thin box border added. Ids not created
// through the set are treated as the default style.
func (s *styleSet) bordered(id int) (int, error) {
	st := s.byID[id]
	st.Border = thinBorder
	return s.id(st)
}

// styleSheet applies the header look to headerRows, borders every non-empty
// cell, and sizes each column to its longest value.
func (s *styleSet) styleSheet(sheet string, headerRows []int) error {
	rows, err := s.f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	isHeader := map[int]bool{}
	for _, r := range headerRows {
		isHeader[r] = true
	}

	var widths []int
	for r, row := range rows {
		rowNum := r + 1
		for c, value := range row {
			if c >= len(widths) {
				widths = append(widths, 0)
			}
			if w := runewidth.StringWidth(value); w > widths[c] {
				widths[c] = w
			}
			if value == "" {
				continue
			}

			cell, err := excelize.CoordinatesToCellName(c+1, rowNum)
			if err != nil {
				return err
			}
			current, err := s.f.GetCellStyle(sheet, cell)
			if err != nil {
				return err
			}
			if isHeader[rowNum] {
				if current, err = s.id(headerStyle()); err != nil {
					return err
				}
			}
			styled, err := s.bordered(current)
			if err != nil {
				return err
			}
			if err := s.f.SetCellStyle(sheet, cell, cell, styled); err != nil {
				return err
			}
		}
	}

	for c, w := range widths {
		col, err := excelize.ColumnNumberToName(c + 1)
		if err != nil {
			return err
		}
		if err := s.f.SetColWidth(sheet, col, col, columnWidth(w)); err != nil {
			return fmt.Errorf("failed to size column %s of %s: %w", col, sheet, err)
		}
	}
	return nil
}

// columnWidth pads the longest value and caps the result.
func columnWidth(longest int) float64 {
	return float64(min(longest+colPadding, maxColWidth))
}
