package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

// DefaultVersion is the Notion-Version header sent with every request.
const DefaultVersion = "2022-06-28"

const defaultBaseURL = "https://api.notion.com/v1"

// maxPageSize is the largest page_size Notion accepts.
const maxPageSize = 100

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// Config holds configuration for creating a Client.
type Config struct {
	// Token is the integration secret. Required.
	Token string

	// BaseURL defaults to "https://api.notion.com/v1". Must use HTTPS.
	BaseURL string

	// Version defaults to DefaultVersion.
	Version string

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Client is a typed Notion API client.
type Client struct {
	baseURL    string
	token      string
	version    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a client from config.
func NewClient(config Config) (*Client, error) {
	if strings.TrimSpace(config.Token) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("notion: API client requires HTTPS (got %q)", baseURL)
	}
	version := config.Version
	if version == "" {
		version = DefaultVersion
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		token:      config.Token,
		version:    version,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// do executes an authenticated request and decodes a 2xx JSON body into
// result (when non-nil). Non-2xx responses come back as *APIError.
func (client *Client) do(ctx context.Context, method, path string, requestBody, result any) error {
	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return fmt.Errorf("notion: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	url := client.baseURL + path
	request, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("notion: creating request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+client.token)
	request.Header.Set("Notion-Version", client.version)
	request.Header.Set("Accept", "application/json")
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("notion: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBody))
		apiError := parseAPIError(response.StatusCode, body)
		client.logger.Debug("notion request failed",
			"method", method,
			"path", path,
			"status", response.StatusCode,
			"code", apiError.Code,
		)
		return apiError
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, response.Body)
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(result); err != nil {
		return fmt.Errorf("notion: decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func parseAPIError(statusCode int, body []byte) *APIError {
	apiError := &APIError{StatusCode: statusCode}
	var wire struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &wire) == nil && wire.Message != "" {
		apiError.Code = wire.Code
		apiError.Message = wire.Message
	} else {
		apiError.Message = strings.TrimSpace(string(body))
	}
	return apiError
}
