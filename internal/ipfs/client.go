package ipfs

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"
)

// Client talks to a Kubo node through its HTTP RPC API (/api/v0).
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the HTTP client used for RPC calls.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the timeout applied to each RPC call.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a client for the Kubo RPC endpoint at apiURL (e.g. http://127.0.0.1:5001).
func NewClient(apiURL string, opts ...ClientOption) (*Client, error) {
	parsed, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid IPFS API URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid IPFS API URL %q", apiURL)
	}

	c := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// rpcError is the error body returned by Kubo.
type rpcError struct {
	Message string `json:"Message"`
	Code    int    `json:"Code"`
	Type    string `json:"Type"`
}

// addEvent is one NDJSON object of the /add response stream.
type addEvent struct {
	Name  string `json:"Name"`
	Hash  string `json:"Hash"`
	Bytes int64  `json:"Bytes"`
	Size  string `json:"Size"`
}

// AddDirectory implements Store.
func (c *Client) AddDirectory(ctx context.Context, files []File, onProgress ProgressFunc) (string, error) {
	if len(files) == 0 {
		return "", errors.New("no files to add")
	}

	total := TotalSize(files)
	sizes := make(map[string]int64, len(files))
	for _, f := range files {
		sizes[f.Name] = int64(len(f.Data))
	}

	body, contentType := multipartBody(files)
	defer body.Close()

	query := url.Values{}
	query.Set("wrap-with-directory", "true")
	query.Set("progress", "true")
	query.Set("pin", "false")

	resp, err := c.post(ctx, "add", query, body, contentType)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	sent := make(map[string]int64, len(files))
	var transferred int64
	var lastHash string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var event addEvent
		if err := json.Unmarshal([]byte(line), &event); err != nil {
			return "", fmt.Errorf("failed to decode add response: %w", err)
		}

		if event.Hash != "" {
			lastHash = event.Hash
			if size, ok := sizes[event.Name]; ok && sent[event.Name] < size {
				transferred += size - sent[event.Name]
				sent[event.Name] = size
				if onProgress != nil {
					onProgress(transferred, total)
				}
			}
			continue
		}

		if event.Bytes > sent[event.Name] {
			transferred += event.Bytes - sent[event.Name]
			sent[event.Name] = event.Bytes
			if onProgress != nil {
				onProgress(transferred, total)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read add response: %w", err)
	}
	if streamErr := resp.Trailer.Get("X-Stream-Error"); streamErr != "" {
		return "", fmt.Errorf("ipfs add failed: %s", streamErr)
	}
	if lastHash == "" {
		return "", errors.New("ipfs add returned no content address")
	}

	return lastHash, nil
}

// ReadAll implements Store.
func (c *Client) ReadAll(ctx context.Context, hash string) ([]byte, error) {
	query := url.Values{}
	query.Set("arg", hash)

	resp, err := c.post(ctx, "cat", query, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}
	return data, nil
}

// Pin implements Store.
func (c *Client) Pin(ctx context.Context, hash string) error {
	query := url.Values{}
	query.Set("arg", hash)

	resp, err := c.post(ctx, "pin/add", query, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// NodeInfo implements NodeInfoProvider.
func (c *Client) NodeInfo(ctx context.Context) (*NodeInfo, error) {
	resp, err := c.post(ctx, "id", nil, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		ID              string `json:"ID"`
		AgentVersion    string `json:"AgentVersion"`
		ProtocolVersion string `json:"ProtocolVersion"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode node info: %w", err)
	}
	return &NodeInfo{
		ID:              body.ID,
		AgentVersion:    body.AgentVersion,
		ProtocolVersion: body.ProtocolVersion,
	}, nil
}

func (c *Client) post(ctx context.Context, command string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	endpoint := *c.baseURL
	endpoint.Path = path.Join(endpoint.Path, "/api/v0", command)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call ipfs %s: %w", command, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var rpcErr rpcError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		if err := json.Unmarshal(data, &rpcErr); err == nil && rpcErr.Message != "" {
			if strings.Contains(rpcErr.Message, "not found") || strings.Contains(rpcErr.Message, "no link named") {
				return nil, fmt.Errorf("ipfs %s: %s: %w", command, rpcErr.Message, ErrNotFound)
			}
			return nil, fmt.Errorf("ipfs %s failed (%d): %s", command, resp.StatusCode, rpcErr.Message)
		}
		return nil, fmt.Errorf("ipfs %s failed with status %d: %s", command, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return resp, nil
}

// multipartBody streams files as a multipart form. Parent directories of nested
// names are sent as directory parts so the node can rebuild the tree.
func multipartBody(files []File) (io.ReadCloser, string) {
	reader, writer := io.Pipe()
	form := multipart.NewWriter(writer)

	go func() {
		err := writeParts(form, files)
		if closeErr := form.Close(); err == nil {
			err = closeErr
		}
		writer.CloseWithError(err)
	}()

	return reader, form.FormDataContentType()
}

func writeParts(form *multipart.Writer, files []File) error {
	for _, dir := range parentDirs(files) {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, url.PathEscape(dir)))
		header.Set("Content-Type", "application/x-directory")
		if _, err := form.CreatePart(header); err != nil {
			return err
		}
	}

	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapePath(f.Name)))
		header.Set("Content-Type", "application/octet-stream")
		part, err := form.CreatePart(header)
		if err != nil {
			return err
		}
		if _, err := part.Write(f.Data); err != nil {
			return err
		}
	}
	return nil
}

func parentDirs(files []File) []string {
	seen := map[string]struct{}{}
	for _, f := range files {
		dir := path.Dir(f.Name)
		for dir != "." && dir != "/" && dir != "" {
			seen[dir] = struct{}{}
			dir = path.Dir(dir)
		}
	}
	dirs := make([]string, 0, len(seen))
	for dir := range seen {
		dirs = append(dirs, dir)
	}
	// parents sort before their children
	sort.Strings(dirs)
	return dirs
}

func escapePath(name string) string {
	segments := strings.Split(name, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
