package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// QueryDatabasePage runs one page of a database query. next is "" when
// there are no more results.
func (client *Client) QueryDatabasePage(ctx context.Context, databaseID string, query DatabaseQuery) (pages []Page, next string, err error) {
	if query.PageSize <= 0 || query.PageSize > maxPageSize {
		query.PageSize = maxPageSize
	}
	var resp listResponse
	path := "/databases/" + url.PathEscape(databaseID) + "/query"
	if err := client.do(ctx, http.MethodPost, path, query, &resp); err != nil {
		return nil, "", err
	}
	pages = make([]Page, 0, len(resp.Results))
	for _, raw := range resp.Results {
		var page Page
		if err := json.Unmarshal(raw, &page); err != nil {
			client.logger.Warn("skipping undecodable query result", "database_id", databaseID, "error", err)
			continue
		}
		pages = append(pages, page)
	}
	if resp.HasMore && resp.NextCursor != nil {
		next = *resp.NextCursor
	}
	return pages, next, nil
}

// QueryDatabase runs a database query and follows cursors until all results
// are collected. Result order is the order Notion returns.
func (client *Client) QueryDatabase(ctx context.Context, databaseID string, query DatabaseQuery) ([]Page, error) {
	var all []Page
	for {
		pages, next, err := client.QueryDatabasePage(ctx, databaseID, query)
		if err != nil {
			return all, err
		}
		all = append(all, pages...)
		if next == "" {
			return all, nil
		}
		if next == query.StartCursor {
			return all, fmt.Errorf("notion: query on %s returned a repeating cursor", databaseID)
		}
		query.StartCursor = next
	}
}

// ListUsers enumerates every user in the workspace.
func (client *Client) ListUsers(ctx context.Context) ([]User, error) {
	var all []User
	cursor := ""
	for {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(maxPageSize))
		if cursor != "" {
			params.Set("start_cursor", cursor)
		}
		var resp listResponse
		if err := client.do(ctx, http.MethodGet, "/users?"+params.Encode(), nil, &resp); err != nil {
			return all, err
		}
		for _, raw := range resp.Results {
			var user User
			if err := json.Unmarshal(raw, &user); err != nil {
				client.logger.Warn("skipping undecodable user", "error", err)
				continue
			}
			all = append(all, user)
		}
		if !resp.HasMore || resp.NextCursor == nil || *resp.NextCursor == "" {
			return all, nil
		}
		if *resp.NextCursor == cursor {
			return all, fmt.Errorf("notion: user list returned a repeating cursor")
		}
		cursor = *resp.NextCursor
	}
}
