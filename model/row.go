package model

import "fmt"

// WindowDays are the trailing windows reported for every project, in column order.
var WindowDays = []int{30, 60, 90}

// Counts is the full set of numeric columns for a project or a group.
type Counts struct {
	Current SeverityCounts `json:"current"`
	Last30  SeverityCounts `json:"last30"`
	Last60  SeverityCounts `json:"last60"`
	Last90  SeverityCounts `json:"last90"`
}

// Window returns the counts for a trailing window. Unknown windows are zero.
func (c Counts) Window(days int) SeverityCounts {
	switch days {
	case 30:
		return c.Last30
	case 60:
		return c.Last60
	case 90:
		return c.Last90
	}
	return SeverityCounts{}
}

// SetWindow stores the counts for a trailing window.
func (c *Counts) SetWindow(days int, s SeverityCounts) {
	switch days {
	case 30:
		c.Last30 = s
	case 60:
		c.Last60 = s
	case 90:
		c.Last90 = s
	}
}

// Add returns the field-wise sum of two Counts.
func (c Counts) Add(o Counts) Counts {
	return Counts{
		Current: c.Current.Add(o.Current),
		Last30:  c.Last30.Add(o.Last30),
		Last60:  c.Last60.Add(o.Last60),
		Last90:  c.Last90.Add(o.Last90),
	}
}

// Values returns the numeric columns in sheet order.
func (c Counts) Values() []int {
	return []int{
		c.Current.Critical, c.Current.High,
		c.Last30.Critical, c.Last30.High,
		c.Last60.Critical, c.Last60.High,
		c.Last90.Critical, c.Last90.High,
	}
}

// CountColumns are the headers matching Counts.Values.
var CountColumns = []string{
	"Critical", "High",
	"30DaysCritical", "30DaysHigh",
	"60DaysCritical", "60DaysHigh",
	"90DaysCritical", "90DaysHigh",
}

// ProjectColumns is the header row of a group sheet.
var ProjectColumns = append([]string{"ScrumName", "ProjectName"}, CountColumns...)

// SummaryColumns is the header row of the Summary sheet.
var SummaryColumns = append([]string{"ScrumName"}, CountColumns...)

// PercentChangeColumns is the header row of the percent-change block.
var PercentChangeColumns = func() []string {
	cols := []string{"ScrumName"}
	for _, d := range WindowDays {
		cols = append(cols,
			fmt.Sprintf("%dDay Critical %% change", d),
			fmt.Sprintf("%dDay High %% change", d))
	}
	return cols
}()

// ProjectRow is the derived aggregate for a single project.
// Incomplete is set when a page fetch failed and the counts may be truncated.
type ProjectRow struct {
	Group      string `json:"group"`
	Project    string `json:"project"`
	Counts     Counts `json:"counts"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

// SummaryRow is the sum of every ProjectRow in a group.
type SummaryRow struct {
	Group      string `json:"group"`
	Counts     Counts `json:"counts"`
	Incomplete bool   `json:"incomplete,omitempty"`
}

// PercentChangeRow compares each window count to the current open count of a group.
type PercentChangeRow struct {
	Group   string          `json:"group"`
	Changes []PercentChange `json:"changes"` // aligned with PercentChangeColumns[1:]
}
