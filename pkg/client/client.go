package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrCancelled is returned when the user dismissed a dialog.
var ErrCancelled = errors.New("dialog cancelled")

// Client talks to the command API of a running shell.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:8765",
		Timeout: 10 * time.Second,
	}
}

// New creates a new command API client
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the shell is running and answers its health check
func (c *Client) IsReachable(ctx context.Context) bool {
	err := c.do(ctx, http.MethodGet, c.baseURL+"/healthz", nil, nil)
	if err != nil {
		c.logger.Debug("Shell unreachable", "error", err)
		return false
	}
	return true
}

// Status returns the supervisor state of the running shell
func (c *Client) Status(ctx context.Context) (ShellStatus, error) {
	var st ShellStatus
	err := c.do(ctx, http.MethodGet, c.baseURL+"/supervisor/status", nil, &st)
	return st, err
}

// SelectFiles opens the multi-file picker with the named filter preset.
// A dismissed dialog returns ErrCancelled.
func (c *Client) SelectFiles(ctx context.Context, preset string) ([]string, error) {
	u := c.baseURL + "/commands/select_files"
	if preset != "" {
		u += "?preset=" + url.QueryEscape(preset)
	}
	var resp dialogResponse
	if err := c.do(ctx, http.MethodPost, u, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Cancelled {
		return nil, ErrCancelled
	}
	return resp.Paths, nil
}

// SelectFolder opens the folder picker.
func (c *Client) SelectFolder(ctx context.Context) (string, error) {
	var resp dialogResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/commands/select_folder", nil, &resp); err != nil {
		return "", err
	}
	if resp.Cancelled {
		return "", ErrCancelled
	}
	return resp.Path, nil
}

// SaveFile opens the save dialog suggesting defaultName.
func (c *Client) SaveFile(ctx context.Context, defaultName string) (string, error) {
	var resp dialogResponse
	body := map[string]string{"default_name": defaultName}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/commands/save_file", body, &resp); err != nil {
		return "", err
	}
	if resp.Cancelled {
		return "", ErrCancelled
	}
	return resp.Path, nil
}

// WriteFile writes content to the absolute path on the shell's host.
func (c *Client) WriteFile(ctx context.Context, path, content string) error {
	c.logger.Debug("Writing file", "path", path, "bytes", len(content))
	return c.do(ctx, http.MethodPost, c.baseURL+"/commands/write_file", writeFileRequest{FilePath: path, Content: content}, nil)
}

// UniqueFolderName asks for a folder name not yet taken under basePath.
func (c *Client) UniqueFolderName(ctx context.Context, basePath, name string) (string, error) {
	var resp uniqueNameResponse
	req := uniqueNameRequest{BasePath: basePath, FolderName: name}
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/commands/generate_unique_folder_name", req, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// do performs an HTTP request with common error handling and decodes a 200 body into out.
func (c *Client) do(ctx context.Context, method, endpoint string, in any, out any) error {
	var body *bytes.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := c.handleErrorResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// handleErrorResponse handles HTTP error responses
func (c *Client) handleErrorResponse(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	var errorResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errorResp); err != nil || errorResp.Error == "" {
		c.logger.Debug("Failed to decode error response", "status", resp.StatusCode)
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	c.logger.Debug("API request failed", "error", errorResp.Error, "status", resp.StatusCode)
	return fmt.Errorf("API error (HTTP %d): %s", resp.StatusCode, errorResp.Error)
}
