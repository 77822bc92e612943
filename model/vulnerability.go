package model

import "strings"

// Severity levels that the report counts. Anything else is ignored.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
)

// StateDetected is the lifecycle state of a vulnerability that is still open.
const StateDetected = "detected"

// Vulnerability is a single finding from the project vulnerabilities API.
// CreatedAt is kept as the raw string so one malformed timestamp never fails a page.
type Vulnerability struct {
	ID        int64  `json:"id"`
	Title     string `json:"title,omitempty"`
	Severity  string `json:"severity"`
	State     string `json:"state"`
	CreatedAt string `json:"created_at"`
}

// IsSeverity reports whether the record has the given severity, ignoring case.
func (v Vulnerability) IsSeverity(severity string) bool {
	return strings.EqualFold(v.Severity, severity)
}

// IsOpen reports whether the record is still in the detected state.
func (v Vulnerability) IsOpen() bool {
	return strings.EqualFold(v.State, StateDetected)
}

// SeverityCounts holds the number of critical and high findings.
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
}

// Tally adds the record to the counts when its severity is critical or high.
func (s *SeverityCounts) Tally(v Vulnerability) {
	switch {
	case v.IsSeverity(SeverityCritical):
		s.Critical++
	case v.IsSeverity(SeverityHigh):
		s.High++
	}
}

// Add returns the field-wise sum of two SeverityCounts.
func (s SeverityCounts) Add(o SeverityCounts) SeverityCounts {
	return SeverityCounts{Critical: s.Critical + o.Critical, High: s.High + o.High}
}
