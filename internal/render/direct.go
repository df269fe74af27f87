package render

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"

	"github.com/heimdex/clipdiary/internal/diary"
)

// DirectUploader posts the source as multipart form data to the backend's
// ingest endpoint ({ingestURL}/sources).
type DirectUploader struct {
	ingestURL string
	hc        *http.Client
	auth      Authorizer
}

func NewDirectUploader(ingestURL string, auth Authorizer, hc *http.Client) *DirectUploader {
	return &DirectUploader{ingestURL: strings.TrimRight(ingestURL, "/"), hc: hc, auth: auth}
}

// ingestResponse covers the shapes seen from ingest services: a Shotstack
// style envelope, a bare {url}, or {data: {link}}.
type ingestResponse struct {
	URL      string `json:"url"`
	Response struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"response"`
	Data struct {
		Link string `json:"link"`
	} `json:"data"`
}

func (u *DirectUploader) UploadSource(ctx context.Context, localPath string) (string, error) {
	if u.ingestURL == "" {
		return "", &APIError{Message: "no ingest url configured"}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(localPath)))
		h.Set("Content-Type", diary.MIMEType(localPath))
		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, f)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.ingestURL+"/sources", pr)
	if err != nil {
		pr.Close()
		return "", &APIError{Message: "create request", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	if u.auth != nil {
		u.auth.Authorize(req)
	}

	resp, err := u.hc.Do(req)
	if err != nil {
		pr.Close()
		return "", transportError("upload", err)
	}
	defer resp.Body.Close()

	var out ingestResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", err
	}

	url := firstNonEmpty(out.Response.URL, out.URL, out.Data.Link)
	if url == "" {
		return "", &APIError{StatusCode: resp.StatusCode, Message: "upload response missing url"}
	}
	return url, nil
}
