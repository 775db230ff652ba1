package postlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Postline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Post mirrors the API post model.
type Post struct {
	ID                   string     `json:"id"`
	Title                string     `json:"title"`
	FirstCheck           bool       `json:"firstCheck"`
	SecondCheck          bool       `json:"secondCheck"`
	CanvaURL             *string    `json:"canvaUrl"`
	Categories           []string   `json:"categories"`
	SecondCheckAssignees []string   `json:"secondCheckAssignees"`
	Authors              []string   `json:"authors"`
	FileURLs             []string   `json:"fileUrls"`
	Status               *string    `json:"status"`
	CreatedTime          *time.Time `json:"createdTime"`
	LastEditedTime       *time.Time `json:"lastEditedTime"`
	ImagePath            *string    `json:"imagePath"`
}

type PostList struct {
	Success bool   `json:"success"`
	Posts   []Post `json:"posts"`
	Reason  string `json:"reason,omitempty"`
}

// PostInput creates a post when ID is empty. Nil optional fields are left
// out of the request and keep their stored value; names listed in Clear
// are sent as null.
type PostInput struct {
	ID          string
	Title       string
	FirstCheck  bool
	SecondCheck bool
	CanvaURL    *string
	Categories  []string
	Status      *string
	ImagePath   *string
	Clear       []string
}

type UpsertResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	PageID  string `json:"pageId"`
	Created bool   `json:"created"`
}

type SyncResult struct {
	Success      bool    `json:"success"`
	NotionUserID *string `json:"notionUserId"`
}

type WhoAmI struct {
	UserID       string `json:"userId"`
	Email        string `json:"email,omitempty"`
	Source       string `json:"source"`
	NotionUserID string `json:"notionUserId,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// ListPosts returns every post, newest first.
func (c *Client) ListPosts(ctx context.Context) (PostList, error) {
	var resp PostList
	err := c.do(ctx, http.MethodGet, "posts", nil, &resp)
	return resp, err
}

// GetPost fetches a post by page id.
func (c *Client) GetPost(ctx context.Context, id string) (Post, error) {
	var resp struct {
		Post Post `json:"post"`
	}
	err := c.do(ctx, http.MethodGet, "posts/"+url.PathEscape(id), nil, &resp)
	return resp.Post, err
}

// UpsertPost creates or updates a post.
func (c *Client) UpsertPost(ctx context.Context, in PostInput) (UpsertResult, error) {
	body := map[string]any{
		"title":       in.Title,
		"firstCheck":  in.FirstCheck,
		"secondCheck": in.SecondCheck,
	}
	if in.ID != "" {
		body["id"] = in.ID
	}
	if in.CanvaURL != nil {
		body["canvaUrl"] = *in.CanvaURL
	}
	if in.Categories != nil {
		body["categories"] = in.Categories
	}
	if in.Status != nil {
		body["status"] = *in.Status
	}
	if in.ImagePath != nil {
		body["imagePath"] = *in.ImagePath
	}
	for _, field := range in.Clear {
		body[field] = nil
	}
	var resp UpsertResult
	err := c.do(ctx, http.MethodPost, "posts", body, &resp)
	return resp, err
}

// MyPosts lists the caller's completed posts.
func (c *Client) MyPosts(ctx context.Context) (PostList, error) {
	var resp PostList
	err := c.do(ctx, http.MethodGet, "me/posts", nil, &resp)
	return resp, err
}

// UserPosts lists the completed posts of a linked local user.
func (c *Client) UserPosts(ctx context.Context, localUserID string) (PostList, error) {
	var resp PostList
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("users/%s/posts", url.PathEscape(localUserID)), nil, &resp)
	return resp, err
}

// MediaURL returns the first file URL attached to a post.
func (c *Client) MediaURL(ctx context.Context, id string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("posts/%s/media", url.PathEscape(id)), nil, &resp)
	return resp.URL, err
}

// SyncUser links the caller to the Notion user sharing their email.
func (c *Client) SyncUser(ctx context.Context) (SyncResult, error) {
	var resp SyncResult
	err := c.do(ctx, http.MethodPost, "users/sync", nil, &resp)
	return resp, err
}

// Me returns the authenticated principal.
func (c *Client) Me(ctx context.Context) (WhoAmI, error) {
	var resp WhoAmI
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp, err
}

// DevLogin mints a token through the development login route and stores it
// on the client.
func (c *Client) DevLogin(ctx context.Context, userID, email string, ttl time.Duration) (string, error) {
	body := map[string]any{"userId": userID}
	if email != "" {
		body["email"] = email
	}
	if ttl > 0 {
		body["ttlSeconds"] = int(ttl / time.Second)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/dev/login", body, &resp); err != nil {
		return "", err
	}
	c.BearerToken = resp.Token
	return resp.Token, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
