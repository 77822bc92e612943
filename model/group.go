// Package model defines the data structures used by the vulnerability report,
// including groups, projects, vulnerability records and the derived report rows.
package model

// Group is a GitLab group (a "scrum") whose projects are reported together.
type Group struct {
	ID   string `json:"id" yaml:"id"`     // Numeric id or URL-encoded full path of the group.
	Name string `json:"name" yaml:"name"` // Display name used for the sheet and the ScrumName column.
}

// Project is a single GitLab project as returned by the group projects listing.
type Project struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace,omitempty"`
	Archived          bool   `json:"archived,omitempty"`
}
