// Package report aggregates per-project vulnerability counts into group and
// summary tables and renders them as an XLSX workbook.
package report

import (
	"context"
	"strconv"

	"github.com/ortelius/gitlab-vuln-report/model"
	"github.com/ortelius/gitlab-vuln-report/util"
	"go.uber.org/zap"
)

// Source provides the counts a report is built from. *gitlab.Client implements it.
type Source interface {
	ListProjects(ctx context.Context, groupID string) ([]model.Project, error)
	CurrentOpenCounts(ctx context.Context, projectID int64) (model.SeverityCounts, error)
	WindowCountsFor(ctx context.Context, projectID int64, days ...int) ([]model.SeverityCounts, error)
}

// GroupReport is the project table of one group and its totals.
type GroupReport struct {
	Group   model.Group
	Rows    []model.ProjectRow
	Summary model.SummaryRow
}

// Report is everything rendered into the workbook.
type Report struct {
	Groups         []GroupReport
	Summary        []model.SummaryRow
	PercentChanges []model.PercentChangeRow
}

// Incomplete lists the groups and projects whose counts may be truncated
// because a page fetch failed.
func (r *Report) Incomplete() []string {
	var names []string
	for _, g := range r.Groups {
		if g.Summary.Incomplete {
			names = append(names, g.Summary.Group)
		}
		for _, row := range g.Rows {
			if row.Incomplete {
				names = append(names, row.Group+"/"+row.Project)
			}
		}
	}
	return names
}

// Builder walks groups and projects one at a time and collects rows.
type Builder struct {
	source Source
	logger *zap.Logger
}

// NewBuilder returns a Builder reading from source.
func NewBuilder(source Source, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{source: source, logger: logger}
}

// Build produces the report for groups in the given order. It only fails when
// ctx is cancelled; fetch failures mark rows incomplete instead.
func (b *Builder) Build(ctx context.Context, groups []model.Group) (*Report, error) {
	r := &Report{}
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		gr := b.BuildGroup(ctx, g)
		r.Groups = append(r.Groups, gr)
		r.Summary = append(r.Summary, gr.Summary)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.PercentChanges = PercentChanges(r.Summary)
	return r, nil
}

// BuildGroup builds one row per project of the group plus the group totals.
func (b *Builder) BuildGroup(ctx context.Context, g model.Group) GroupReport {
	name := util.Lower(g.Name)
	b.logger.Info("Processing group", zap.String("group", name), zap.String("id", g.ID))

	projects, err := b.source.ListProjects(ctx, g.ID)
	if err != nil {
		b.logger.Warn("Project listing incomplete", zap.String("group", name), zap.Error(err))
	}

	rows := make([]model.ProjectRow, 0, len(projects))
	for _, p := range projects {
		rows = append(rows, b.ProjectRow(ctx, name, p))
	}

	summary := Summarize(name, rows)
	if err != nil {
		summary.Incomplete = true
	}
	return GroupReport{Group: g, Rows: rows, Summary: summary}
}

// ProjectRow collects the open and trailing-window counts of one project.
func (b *Builder) ProjectRow(ctx context.Context, group string, p model.Project) model.ProjectRow {
	row := model.ProjectRow{
		Group:   group,
		Project: util.Lower(util.GetStringOrDefault(p.Name, strconv.FormatInt(p.ID, 10))),
	}

	current, err := b.source.CurrentOpenCounts(ctx, p.ID)
	if err != nil {
		b.logger.Warn("Open counts incomplete", zap.String("project", row.Project), zap.Error(err))
		row.Incomplete = true
	}
	row.Counts.Current = current

	windows, err := b.source.WindowCountsFor(ctx, p.ID, model.WindowDays...)
	if err != nil {
		b.logger.Warn("Window counts incomplete", zap.String("project", row.Project), zap.Error(err))
		row.Incomplete = true
	}
	for i, d := range model.WindowDays {
		if i < len(windows) {
			row.Counts.SetWindow(d, windows[i])
		}
	}

	b.logger.Debug("Project counted",
		zap.String("group", group),
		zap.String("project", row.Project),
		zap.Ints("counts", row.Counts.Values()))
	return row
}

// Summarize sums every numeric column of rows. An empty group sums to zero.
func Summarize(group string, rows []model.ProjectRow) model.SummaryRow {
	s := model.SummaryRow{Group: group}
	for _, r := range rows {
		s.Counts = s.Counts.Add(r.Counts)
		s.Incomplete = s.Incomplete || r.Incomplete
	}
	return s
}

// PercentChanges compares each window count of every group with its current open count.
func PercentChanges(summary []model.SummaryRow) []model.PercentChangeRow {
	rows := make([]model.PercentChangeRow, 0, len(summary))
	for _, s := range summary {
		row := model.PercentChangeRow{Group: s.Group}
		for _, d := range model.WindowDays {
			w := s.Counts.Window(d)
			row.Changes = append(row.Changes,
				model.ComputePercentChange(w.Critical, s.Counts.Current.Critical),
				model.ComputePercentChange(w.High, s.Counts.Current.High))
		}
		rows = append(rows, row)
	}
	return rows
}
