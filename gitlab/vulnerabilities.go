package gitlab

import (
	"context"
	"fmt"
	"iter"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/ortelius/gitlab-vuln-report/model"
	"github.com/ortelius/gitlab-vuln-report/util"
	"go.uber.org/zap"
)

// Vulnerabilities lazily yields the vulnerability records of a project,
// filtered server-side by state when state is not empty.
func (c *Client) Vulnerabilities(ctx context.Context, projectID int64, state string) iter.Seq2[model.Vulnerability, error] {
	params := url.Values{}
	if state != "" {
		params.Set("state", state)
	}
	path := "projects/" + strconv.FormatInt(projectID, 10) + "/vulnerabilities"
	return Paginate[model.Vulnerability](ctx, c, path, params)
}

// CurrentOpenCounts counts the open critical and high findings of a project.
// State and severity are both checked again on the client.
func (c *Client) CurrentOpenCounts(ctx context.Context, projectID int64) (model.SeverityCounts, error) {
	var counts model.SeverityCounts
	for v, err := range c.Vulnerabilities(ctx, projectID, model.StateDetected) {
		if err != nil {
			return counts, fmt.Errorf("open vulnerabilities of project %d: %w", projectID, err)
		}
		if v.IsOpen() {
			counts.Tally(v)
		}
	}
	return counts, nil
}

// WindowCounts counts critical and high findings in any state created within
// the last daysBack days.
func (c *Client) WindowCounts(ctx context.Context, projectID int64, daysBack int) (model.SeverityCounts, error) {
	counts, err := c.WindowCountsFor(ctx, projectID, daysBack)
	return counts[0], err
}

// WindowCountsFor computes several trailing windows in a single pass over
// the project's records. The result is aligned with days. A record is in a
// window when its creation time is at or after now minus the window; records
// without a parseable timestamp are in none.
func (c *Client) WindowCountsFor(ctx context.Context, projectID int64, days ...int) ([]model.SeverityCounts, error) {
	counts := make([]model.SeverityCounts, len(days))
	if len(days) == 0 {
		return counts, nil
	}

	now := c.now().UTC()
	cutoffs := make([]time.Time, len(days))
	for i, d := range days {
		cutoffs[i] = now.Add(-time.Duration(d) * 24 * time.Hour)
	}
	oldest := slices.MinFunc(cutoffs, func(a, b time.Time) int { return a.Compare(b) })

	for v, err := range c.Vulnerabilities(ctx, projectID, "") {
		if err != nil {
			return counts, fmt.Errorf("vulnerabilities of project %d: %w", projectID, err)
		}
		created, perr := util.ParseTimestamp(v.CreatedAt)
		if perr != nil {
			c.logger.Debug("Skipping record without usable created_at",
				zap.Int64("project", projectID),
				zap.Int64("vulnerability", v.ID),
				zap.String("created_at", v.CreatedAt))
			continue
		}
		if created.Before(oldest) {
			continue
		}
		for i, cutoff := range cutoffs {
			if !created.Before(cutoff) {
				counts[i].Tally(v)
			}
		}
	}
	return counts, nil
}
