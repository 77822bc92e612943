package gitlab

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ortelius/gitlab-vuln-report/model"
	"go.uber.org/zap"
)

// ListProjects returns every non-archived project of a group, subgroups included.
// When a page fails the projects read so far are returned with the error.
func (c *Client) ListProjects(ctx context.Context, groupID string) ([]model.Project, error) {
	params := url.Values{}
	params.Set("include_subgroups", "true")
	params.Set("archived", "false")

	c.logger.Info("Fetching projects for group", zap.String("group", groupID))

	var projects []model.Project
	var failed error
	path := "groups/" + url.PathEscape(groupID) + "/projects"
	for p, err := range Paginate[model.Project](ctx, c, path, params) {
		if err != nil {
			failed = fmt.Errorf("listing projects of group %s: %w", groupID, err)
			break
		}
		projects = append(projects, p)
	}

	c.logger.Info("Group projects", zap.String("group", groupID), zap.Int("count", len(projects)))
	return projects, failed
}
