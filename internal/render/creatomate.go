package render

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

const DefaultCreatomateURL = "https://api.creatomate.com/v1"

// Creatomate renders through POST /renders and reports "succeeded" when done.
type Creatomate struct {
	baseURL string
	hc      *http.Client
	bearerAuth
}

func NewCreatomate(baseURL, apiKey string, hc *http.Client) *Creatomate {
	if baseURL == "" {
		baseURL = DefaultCreatomateURL
	}
	return &Creatomate{baseURL: strings.TrimRight(baseURL, "/"), hc: hc, bearerAuth: bearerAuth(apiKey)}
}

func (c *Creatomate) Name() string { return "creatomate" }

type creatomateElement struct {
	Type         string  `json:"type"`
	Source       string  `json:"source"`
	TrimStart    float64 `json:"trim_start"`
	TrimDuration float64 `json:"trim_duration"`
}

type creatomateRequest struct {
	Source struct {
		OutputFormat string              `json:"output_format"`
		Elements     []creatomateElement `json:"elements"`
	} `json:"source"`
}

type creatomateRender struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	URL          string `json:"url"`
	ErrorMessage string `json:"error_message"`
	Error        string `json:"error"`
}

func (c *Creatomate) SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error) {
	var body creatomateRequest
	body.Source.OutputFormat = "mp4"
	body.Source.Elements = []creatomateElement{{
		Type:         "video",
		Source:       sourceURL,
		TrimStart:    start,
		TrimDuration: duration,
	}}

	var raw json.RawMessage
	if err := doJSON(ctx, c.hc, c, http.MethodPost, c.baseURL+"/renders", body, &raw); err != nil {
		return "", err
	}
	return firstRenderID(raw)
}

// firstRenderID accepts either {id} or [{id}, ...] and takes the first id.
func firstRenderID(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	var id string
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var renders []creatomateRender
		if err := json.Unmarshal(trimmed, &renders); err != nil {
			return "", &APIError{Message: "decode render list", Err: err}
		}
		if len(renders) > 0 {
			id = renders[0].ID
		}
	} else {
		var r creatomateRender
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return "", &APIError{Message: "decode render", Err: err}
		}
		id = r.ID
	}
	if id == "" {
		return "", &APIError{Message: "render response missing id"}
	}
	return id, nil
}

func (c *Creatomate) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var r creatomateRender
	if err := doJSON(ctx, c.hc, c, http.MethodGet, c.baseURL+"/renders/"+url.PathEscape(jobID), nil, &r); err != nil {
		return nil, err
	}
	return toJobStatus(jobID, r.Status, r.URL, firstNonEmpty(r.ErrorMessage, r.Error))
}

func toJobStatus(id, rawStatus, outputURL, errMsg string) (*JobStatus, error) {
	st, err := NormalizeStatus(rawStatus)
	if err != nil {
		return nil, &APIError{Message: "poll status", Err: err}
	}
	if st == StatusSucceeded && outputURL == "" {
		return nil, &APIError{Message: "render completed but url is missing"}
	}
	return &JobStatus{ID: id, Status: st, OutputURL: outputURL, Error: errMsg}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
