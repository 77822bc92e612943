package report

import (
	"fmt"
	"strings"

	"github.com/ortelius/gitlab-vuln-report/model"
	"github.com/ortelius/gitlab-vuln-report/util"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// SummarySheet is the name of the totals sheet, always first in the workbook.
const SummarySheet = "Summary"

// maxSheetName is the spreadsheet limit on sheet name length.
const maxSheetName = 31

const (
	percentTitle = "Percent change of CURRENT open vs last N days (positive = increase)"
	percentNote  = "Note: '-' appears when current open count is 0 and window count > 0."
	chartTitle   = "Vulnerabilities Summary"
)

// Options control optional parts of the workbook.
type Options struct {
	Chart  bool // add a column chart of the summary table
	Logger *zap.Logger
}

// SheetName is the lower-cased group name cut to the sheet name limit.
// Two groups that collide after truncation share a sheet.
func SheetName(group string) string {
	return util.Truncate(util.Lower(group), maxSheetName)
}

type workbook struct {
	f          *excelize.File
	styles     *styleSet
	headerRows map[string][]int
	logger     *zap.Logger
}

// NewWorkbook renders r into an in-memory workbook. The caller owns the
// returned file and must Close it.
func NewWorkbook(r *Report, opts Options) (*excelize.File, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	f := excelize.NewFile()
	w := &workbook{
		f:          f,
		styles:     newStyleSet(f),
		headerRows: map[string][]int{},
		logger:     opts.Logger,
	}
	if err := w.render(r, opts); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

// Write renders r and saves it to path.
func Write(r *Report, path string, opts Options) error {
	f, err := NewWorkbook(r, opts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook %s: %w", path, err)
	}
	return nil
}

func (w *workbook) render(r *Report, opts Options) error {
	// The default first sheet becomes Summary, so every group sheet lands after it.
	if err := w.f.SetSheetName(w.f.GetSheetName(0), SummarySheet); err != nil {
		return fmt.Errorf("failed to create %s sheet: %w", SummarySheet, err)
	}

	for _, g := range r.Groups {
		if err := w.writeGroup(g); err != nil {
			return err
		}
	}
	if err := w.writeSummary(r.Summary); err != nil {
		return err
	}
	if err := w.writePercentChanges(r.PercentChanges, len(r.Summary)+1); err != nil {
		return err
	}

	for _, sheet := range w.f.GetSheetList() {
		if err := w.styles.styleSheet(sheet, w.headerRows[sheet]); err != nil {
			return err
		}
	}

	if opts.Chart {
		if err := w.addSummaryChart(len(r.Summary)); err != nil {
			return err
		}
	}
	w.f.SetActiveSheet(0)
	return nil
}

func (w *workbook) writeGroup(g GroupReport) error {
	sheet := SheetName(g.Group.Name)
	if idx, _ := w.f.GetSheetIndex(sheet); idx != -1 {
		w.logger.Warn("Sheet name collision, rows will be overwritten", zap.String("sheet", sheet), zap.String("group", g.Group.Name))
	}
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", sheet, err)
	}

	if err := w.setRow(sheet, 1, toRow(model.ProjectColumns)); err != nil {
		return err
	}
	w.headerRows[sheet] = append(w.headerRows[sheet], 1)

	for i, row := range g.Rows {
		values := append([]any{row.Group, row.Project}, toRow(row.Counts.Values())...)
		if err := w.setRow(sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (w *workbook) writeSummary(summary []model.SummaryRow) error {
	if err := w.setRow(SummarySheet, 1, toRow(model.SummaryColumns)); err != nil {
		return err
	}
	w.headerRows[SummarySheet] = append(w.headerRows[SummarySheet], 1)

	for i, s := range summary {
		values := append([]any{s.Group}, toRow(s.Counts.Values())...)
		if err := w.setRow(SummarySheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

// writePercentChanges appends the percent-change block two rows below lastRow:
// a title, a header, one row per group and a closing note.
func (w *workbook) writePercentChanges(rows []model.PercentChangeRow, lastRow int) error {
	titleRow := lastRow + 2
	if err := w.setStyledCell(SummarySheet, 1, titleRow, percentTitle, titleStyle()); err != nil {
		return err
	}

	headerRow := titleRow + 1
	if err := w.setRow(SummarySheet, headerRow, toRow(model.PercentChangeColumns)); err != nil {
		return err
	}
	w.headerRows[SummarySheet] = append(w.headerRows[SummarySheet], headerRow)

	for i, r := range rows {
		rowNum := headerRow + 1 + i
		if err := w.setCell(SummarySheet, 1, rowNum, r.Group); err != nil {
			return err
		}
		for j, change := range r.Changes {
			col := j + 2
			if v, ok := change.Value(); ok {
				if err := w.setStyledCell(SummarySheet, col, rowNum, v, percentStyle()); err != nil {
					return err
				}
				continue
			}
			if err := w.setCell(SummarySheet, col, rowNum, change.String()); err != nil {
				return err
			}
		}
	}

	noteRow := headerRow + len(rows) + 2
	return w.setStyledCell(SummarySheet, 1, noteRow, percentNote, noteStyle())
}

// addSummaryChart draws the numeric summary columns per group.
func (w *workbook) addSummaryChart(groups int) error {
	if groups == 0 {
		return nil
	}
	last := groups + 1
	sheetRef := "'" + strings.ReplaceAll(SummarySheet, "'", "''") + "'"

	var series []excelize.ChartSeries
	for i := range model.CountColumns {
		col, err := excelize.ColumnNumberToName(i + 2)
		if err != nil {
			return err
		}
		series = append(series, excelize.ChartSeries{
			Name:       fmt.Sprintf("%s!$%s$1", sheetRef, col),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", sheetRef, last),
			Values:     fmt.Sprintf("%s!$%s$2:$%s$%d", sheetRef, col, col, last),
		})
	}

	chart := &excelize.Chart{
		Type:      excelize.Col,
		Series:    series,
		Title:     []excelize.RichTextRun{{Text: chartTitle}},
		XAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Scrum"}}},
		YAxis:     excelize.ChartAxis{Title: []excelize.RichTextRun{{Text: "Count"}}},
		Dimension: excelize.ChartDimension{Width: 960, Height: 480},
	}
	if err := w.f.AddChart(SummarySheet, "K2", chart); err != nil {
		return fmt.Errorf("failed to add summary chart: %w", err)
	}
	return nil
}

func (w *workbook) setRow(sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write row %d of %s: %w", row, sheet, err)
	}
	return nil
}

func (w *workbook) setCell(sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return w.f.SetCellValue(sheet, cell, value)
}

func (w *workbook) setStyledCell(sheet string, col, row int, value any, style excelize.Style) error {
	if err := w.setCell(sheet, col, row, value); err != nil {
		return err
	}
	id, err := w.styles.id(style)
	if err != nil {
		return err
	}
	cell, _ := excelize.CoordinatesToCellName(col, row)
	return w.f.SetCellStyle(sheet, cell, cell, id)
}

func toRow[T any](values []T) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}
