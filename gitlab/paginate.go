package gitlab

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"

	"go.uber.org/zap"
)

// Paginate walks path page by page, starting at page 1, and yields every
// decoded record. Iteration ends on an empty page. A failed page yields one
// non-nil error and ends the sequence; records that fail to decode on their
// own are logged and skipped. Each call makes a fresh pass over the API.
func Paginate[T any](ctx context.Context, c *Client, path string, params url.Values) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		query := url.Values{}
		for k, v := range params {
			query[k] = append([]string(nil), v...)
		}
		query.Set("per_page", strconv.Itoa(c.perPage))

		for page := 1; ; page++ {
			query.Set("page", strconv.Itoa(page))

			items, err := c.FetchPage(ctx, path, query)
			if err != nil {
				var zero T
				yield(zero, err)
				return
			}
			if len(items) == 0 {
				return
			}

			for i, raw := range items {
				var item T
				if err := json.Unmarshal(raw, &item); err != nil {
					c.logger.Warn("Skipping malformed record",
						zap.String("path", path),
						zap.Int("page", page),
						zap.Int("index", i),
						zap.Error(err))
					continue
				}
				if !yield(item, nil) {
					return
				}
			}
		}
	}
}
