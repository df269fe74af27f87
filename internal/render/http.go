package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	defaultTimeout   = 60 * time.Second
	maxErrorBodySize = 4096
)

// NewHTTPClient builds the client shared by backends and uploaders. Large
// transfers are bounded by the caller's context rather than a fixed total
// timeout, so only connection setup and response headers have deadlines.
func NewHTTPClient() *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: defaultTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
	}
	return &http.Client{Transport: base}
}

// Authorizer adds backend credentials to an outgoing request.
type Authorizer interface {
	Authorize(req *http.Request)
}

type bearerAuth string

func (b bearerAuth) Authorize(req *http.Request) {
	if b != "" {
		req.Header.Set("Authorization", "Bearer "+string(b))
	}
}

type apiKeyAuth string

func (k apiKeyAuth) Authorize(req *http.Request) {
	if k != "" {
		req.Header.Set("x-api-key", string(k))
	}
}

// doJSON sends body (when non-nil) as JSON and decodes a 2xx response into
// out. Anything else becomes *APIError.
func doJSON(ctx context.Context, hc *http.Client, auth Authorizer, method, url string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Message: "encode request", Err: err}
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, r)
	if err != nil {
		return &APIError{Message: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != nil {
		auth.Authorize(req)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return transportError(method+" "+url, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &APIError{StatusCode: resp.StatusCode, Message: "decode response", Err: err}
	}
	return nil
}

// statusError extracts the backend's message from a non-2xx response.
func statusError(resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
	return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(body)}
}

func errorMessage(body []byte) string {
	var shaped struct {
		Message string `json:"message"`
		Error   any    `json:"error"`
		Hint    string `json:"hint"`
	}
	if json.Unmarshal(body, &shaped) == nil {
		if shaped.Message != "" {
			return shaped.Message
		}
		switch e := shaped.Error.(type) {
		case string:
			if e != "" {
				return e
			}
		case map[string]any:
			if m, ok := e["message"].(string); ok && m != "" {
				return m
			}
		}
		if shaped.Hint != "" {
			return shaped.Hint
		}
	}
	return strings.TrimSpace(string(body))
}

// Downloader streams a remote artifact to disk.
type Downloader struct {
	hc *http.Client
}

func NewDownloader(hc *http.Client) *Downloader {
	return &Downloader{hc: hc}
}

// Download writes url to destPath, creating parent directories. On failure
// destPath may hold a partial file; the caller owns cleanup.
func (d *Downloader) Download(ctx context.Context, url, destPath string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &APIError{Message: "create request", Err: err}
	}

	resp, err := d.hc.Do(req)
	if err != nil {
		return 0, transportError("download", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, statusError(resp)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("create download file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	closeErr := f.Close()
	if err != nil {
		return n, transportError("download body", err)
	}
	if closeErr != nil {
		return n, fmt.Errorf("close download file: %w", closeErr)
	}
	return n, nil
}
