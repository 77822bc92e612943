package report

import (
	"context"
	"testing"

	"github.com/ortelius/gitlab-vuln-report/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func scenarioSource() *fakeSource {
	return &fakeSource{
		projects: map[string][]model.Project{
			"1": {{ID: 11, Name: "Project-A"}, {ID: 12, Name: "Project-B"}},
			"2": {{ID: 21, Name: "Only"}},
			"3": {{ID: 31, Name: "Quiet"}},
		},
		open: map[int64]model.SeverityCounts{
			11: {Critical: 3},
		},
		windows: map[int64][]model.SeverityCounts{
			11: {{Critical: 5}, {Critical: 5, High: 1}, {Critical: 6, High: 2}},
			21: {{Critical: 4}, {Critical: 4}, {Critical: 4}},
		},
	}
}

func TestBuildGroup_SumsProjects(t *testing.T) {
	b := NewBuilder(scenarioSource(), zaptest.NewLogger(t))

	gr := b.BuildGroup(context.Background(), model.Group{ID: "1", Name: "SME-Mobile"})
	require.Len(t, gr.Rows, 2)
	assert.Equal(t, "sme-mobile", gr.Rows[0].Group)
	assert.Equal(t, "project-a", gr.Rows[0].Project)
	assert.Equal(t, "project-b", gr.Rows[1].Project)
	assert.Equal(t, []int{3, 0, 5, 0, 5, 1, 6, 2}, gr.Rows[0].Counts.Values())
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0}, gr.Rows[1].Counts.Values())

	assert.Equal(t, "sme-mobile", gr.Summary.Group)
	assert.Equal(t, 3, gr.Summary.Counts.Current.Critical)
	assert.Equal(t, 5, gr.Summary.Counts.Last30.Critical)
	assert.False(t, gr.Summary.Incomplete)
}

func TestSummarize_MatchesColumnSums(t *testing.T) {
	rows := []model.ProjectRow{
		{Counts: model.Counts{Current: model.SeverityCounts{Critical: 1, High: 2}, Last60: model.SeverityCounts{High: 7}}},
		{Counts: model.Counts{Current: model.SeverityCounts{Critical: 4}, Last90: model.SeverityCounts{Critical: 9, High: 1}}},
		{Counts: model.Counts{Last30: model.SeverityCounts{Critical: 2, High: 3}}, Incomplete: true},
	}

	s := Summarize("g", rows)
	want := make([]int, len(model.CountColumns))
	for _, r := range rows {
		for i, v := range r.Counts.Values() {
			want[i] += v
		}
	}
	assert.Equal(t, want, s.Counts.Values())
	assert.True(t, s.Incomplete)

	empty := Summarize("empty", nil)
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0}, empty.Counts.Values())
	assert.False(t, empty.Incomplete)
}

func TestBuild_Scenarios(t *testing.T) {
	b := NewBuilder(scenarioSource(), zaptest.NewLogger(t))
	r, err := b.Build(context.Background(), []model.Group{
		{ID: "1", Name: "first"},
		{ID: "2", Name: "second"},
		{ID: "3", Name: "third"},
	})
	require.NoError(t, err)
	require.Len(t, r.Summary, 3)
	require.Len(t, r.PercentChanges, 3)

	// Scenario 1: (5-3)/3 for 30-day critical.
	first := r.PercentChanges[0]
	assert.Equal(t, "first", first.Group)
	v, ok := first.Changes[0].Value()
	require.True(t, ok)
	assert.InDelta(t, 2.0/3.0, v, 1e-12)
	assert.Equal(t, "+66.67%", first.Changes[0].String())

	// Scenario 2: zero baseline with a positive window is undefined.
	second := r.PercentChanges[1]
	assert.False(t, second.Changes[0].Defined())
	assert.Equal(t, "-", second.Changes[0].String())

	// Scenario 3: no records at all.
	third := r.PercentChanges[2]
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0, 0, 0}, r.Summary[2].Counts.Values())
	require.Len(t, third.Changes, 6)
	for _, c := range third.Changes {
		v, ok := c.Value()
		assert.True(t, ok)
		assert.Equal(t, 0.0, v)
	}
	assert.Empty(t, r.Incomplete())
}

func TestBuild_MarksIncomplete(t *testing.T) {
	src := scenarioSource()
	src.failing = map[int64]bool{12: true}
	src.listErr = map[string]bool{"3": true}

	r, err := NewBuilder(src, nil).Build(context.Background(), []model.Group{
		{ID: "1", Name: "first"},
		{ID: "3", Name: "third"},
	})
	require.NoError(t, err)
	assert.False(t, r.Groups[0].Rows[0].Incomplete)
	assert.True(t, r.Groups[0].Rows[1].Incomplete)
	assert.True(t, r.Summary[0].Incomplete)
	assert.True(t, r.Summary[1].Incomplete)
	assert.Equal(t, []string{"first", "first/project-b", "third"}, r.Incomplete())
}

func TestBuild_ProjectNameFallsBackToID(t *testing.T) {
	src := &fakeSource{projects: map[string][]model.Project{"9": {{ID: 77}}}}
	gr := NewBuilder(src, nil).BuildGroup(context.Background(), model.Group{ID: "9", Name: "g"})
	require.Len(t, gr.Rows, 1)
	assert.Equal(t, "77", gr.Rows[0].Project)
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewBuilder(scenarioSource(), nil).Build(ctx, []model.Group{{ID: "1", Name: "first"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPercentChanges_ColumnOrder(t *testing.T) {
	rows := PercentChanges([]model.SummaryRow{{
		Group: "g",
		Counts: model.Counts{
			Current: model.SeverityCounts{Critical: 2, High: 4},
			Last30:  model.SeverityCounts{Critical: 1, High: 4},
			Last60:  model.SeverityCounts{Critical: 3, High: 8},
			Last90:  model.SeverityCounts{Critical: 4, High: 2},
		},
	}})
	require.Len(t, rows, 1)
	var got []string
	for _, c := range rows[0].Changes {
		got = append(got, c.String())
	}
	assert.Equal(t, []string{"-50.00%", "0.00%", "+50.00%", "+100.00%", "+100.00%", "-50.00%"}, got)
}
