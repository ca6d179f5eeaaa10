package taskboard

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/taskboard/taskboard.go/pkg/models"
)

// ListDirectory lists the server-side directory at path. A non-empty
// query fuzzy-filters the entries by name, case- and accent-insensitive,
// best match first; an empty query returns the server's order unchanged.
func (c *Client) ListDirectory(ctx context.Context, path, query string) ([]models.DirectoryEntry, error) {
	q := url.Values{"path": {path}}
	var entries []models.DirectoryEntry
	if err := c.api.Do(ctx, http.MethodGet, "/api/filesystem/directory?"+q.Encode(), nil, &entries); err != nil {
		return nil, err
	}
	if query == "" {
		return entries, nil
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(query, names)
	sort.Sort(ranks)

	matched := make([]models.DirectoryEntry, 0, len(ranks))
	for _, r := range ranks {
		matched = append(matched, entries[r.OriginalIndex])
	}
	return matched, nil
}
