package report

import (
	"context"
	"errors"

	"github.com/ortelius/gitlab-vuln-report/model"
)

var errFetch = errors.New("page fetch failed")

// fakeSource serves canned counts; windows are aligned with model.WindowDays.
type fakeSource struct {
	projects map[string][]model.Project
	listErr  map[string]bool
	open     map[int64]model.SeverityCounts
	windows  map[int64][]model.SeverityCounts
	failing  map[int64]bool
}

func (f *fakeSource) ListProjects(_ context.Context, groupID string) ([]model.Project, error) {
	if f.listErr[groupID] {
		return f.projects[groupID], errFetch
	}
	return f.projects[groupID], nil
}

func (f *fakeSource) CurrentOpenCounts(_ context.Context, projectID int64) (model.SeverityCounts, error) {
	if f.failing[projectID] {
		return f.open[projectID], errFetch
	}
	return f.open[projectID], nil
}

func (f *fakeSource) WindowCountsFor(_ context.Context, projectID int64, days ...int) ([]model.SeverityCounts, error) {
	out := make([]model.SeverityCounts, len(days))
	copy(out, f.windows[projectID])
	return out, nil
}
