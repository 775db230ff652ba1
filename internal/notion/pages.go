package notion

import (
	"context"
	"net/http"
	"net/url"
)

// RetrievePage fetches a page by id.
func (client *Client) RetrievePage(ctx context.Context, pageID string) (Page, error) {
	var page Page
	err := client.do(ctx, http.MethodGet, "/pages/"+url.PathEscape(pageID), nil, &page)
	return page, err
}

// CreatePage creates a page in a database and returns it.
func (client *Client) CreatePage(ctx context.Context, databaseID string, properties Properties) (Page, error) {
	body := struct {
		Parent     Parent     `json:"parent"`
		Properties Properties `json:"properties"`
	}{
		Parent:     Parent{DatabaseID: databaseID},
		Properties: properties,
	}
	var page Page
	err := client.do(ctx, http.MethodPost, "/pages", body, &page)
	return page, err
}

// UpdatePage applies a property patch. Properties absent from the patch are
// left untouched by Notion.
func (client *Client) UpdatePage(ctx context.Context, pageID string, properties Properties) (Page, error) {
	body := struct {
		Properties Properties `json:"properties"`
	}{Properties: properties}
	var page Page
	err := client.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(pageID), body, &page)
	return page, err
}
