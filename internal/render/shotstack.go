package render

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const DefaultShotstackURL = "https://api.shotstack.io/edit/stage"

// Shotstack renders a one-clip timeline through POST /render and reports
// "done" when finished. Responses are wrapped in {success, message, response}.
type Shotstack struct {
	baseURL string
	hc      *http.Client
	apiKeyAuth
}

func NewShotstack(baseURL, apiKey string, hc *http.Client) *Shotstack {
	if baseURL == "" {
		baseURL = DefaultShotstackURL
	}
	return &Shotstack{baseURL: strings.TrimRight(baseURL, "/"), hc: hc, apiKeyAuth: apiKeyAuth(apiKey)}
}

func (s *Shotstack) Name() string { return "shotstack" }

type shotstackAsset struct {
	Type string  `json:"type"`
	Src  string  `json:"src"`
	Trim float64 `json:"trim"`
}

type shotstackClip struct {
	Asset  shotstackAsset `json:"asset"`
	Start  float64        `json:"start"`
	Length float64        `json:"length"`
}

type shotstackTrack struct {
	Clips []shotstackClip `json:"clips"`
}

type shotstackOutput struct {
	Format string `json:"format"`
	Size   struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"size"`
	FPS int `json:"fps"`
}

type shotstackRequest struct {
	Timeline struct {
		Tracks []shotstackTrack `json:"tracks"`
	} `json:"timeline"`
	Output shotstackOutput `json:"output"`
}

type shotstackEnvelope struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Response struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		URL    string `json:"url"`
		Error  string `json:"error"`
	} `json:"response"`
}

func (s *Shotstack) SubmitRender(ctx context.Context, sourceURL string, start, duration float64) (string, error) {
	var body shotstackRequest
	body.Timeline.Tracks = []shotstackTrack{{
		Clips: []shotstackClip{{
			Asset:  shotstackAsset{Type: "video", Src: sourceURL, Trim: start},
			Start:  0,
			Length: duration,
		}},
	}}
	body.Output.Format = "mp4"
	body.Output.Size.Width = 1280
	body.Output.Size.Height = 720
	body.Output.FPS = 30

	var env shotstackEnvelope
	if err := doJSON(ctx, s.hc, s, http.MethodPost, s.baseURL+"/render", body, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return "", &APIError{Message: firstNonEmpty(env.Message, "render request rejected")}
	}
	if env.Response.ID == "" {
		return "", &APIError{Message: "render response missing id"}
	}
	return env.Response.ID, nil
}

func (s *Shotstack) PollStatus(ctx context.Context, jobID string) (*JobStatus, error) {
	var env shotstackEnvelope
	if err := doJSON(ctx, s.hc, s, http.MethodGet, s.baseURL+"/render/"+url.PathEscape(jobID), nil, &env); err != nil {
		return nil, err
	}
	return toJobStatus(jobID, env.Response.Status, env.Response.URL, env.Response.Error)
}
