package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/aliskhannn/image-tracker/internal/model"
)

// ErrImageNotFound is returned when the service answers 404 for an id.
var ErrImageNotFound = errors.New("image not found")

const maxErrorBody = 4 << 10

// StatusError describes an unexpected response status.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}

	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Message)
}

// Client talks to the image processing service.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the service at baseURL.
// If hc is nil, http.DefaultClient is used.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
	}
}

// uploadResponse accepts both a bare {"id": ...} body and the
// {"result": {"id": ...}} envelope used by the processing server.
type uploadResponse struct {
	ID     string `json:"id"`
	Result *struct {
		ID string `json:"id"`
	} `json:"result"`
}

type statusBody struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statusResponse struct {
	statusBody
	Result *statusBody `json:"result"`
}

// Upload sends the image as the "image" field of a multipart form
// and returns the id of the created job.
func (c *Client) Upload(ctx context.Context, filename string, src io.Reader) (string, error) {
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)

	part, err := mw.CreateFormFile("image", filename)
	if err != nil {
		return "", fmt.Errorf("upload: failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return "", fmt.Errorf("upload: failed to read image: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("upload: failed to close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", body)
	if err != nil {
		return "", fmt.Errorf("upload: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload: %w", err)
	}
	defer resp.Body.Close()

	if !ok(resp.StatusCode) {
		return "", fmt.Errorf("upload: %w", statusError(resp))
	}

	var out uploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("upload: failed to decode response: %w", err)
	}

	id := out.ID
	if id == "" && out.Result != nil {
		id = out.Result.ID
	}
	if id == "" {
		return "", fmt.Errorf("upload: response carries no id")
	}

	return id, nil
}

// Status queries the processing status of a job.
// It returns ErrImageNotFound if the service does not know the id.
func (c *Client) Status(ctx context.Context, id string) (model.StatusSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status/"+url.PathEscape(id), nil)
	if err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("status: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.StatusSnapshot{}, ErrImageNotFound
	}
	if !ok(resp.StatusCode) {
		return model.StatusSnapshot{}, fmt.Errorf("status: %w", statusError(resp))
	}

	var out statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return model.StatusSnapshot{}, fmt.Errorf("status: failed to decode response: %w", err)
	}

	body := out.statusBody
	if body.Status == "" && out.Result != nil {
		body = *out.Result
	}

	return model.StatusSnapshot{
		State:   model.ParseState(body.Status),
		Message: body.Message,
	}, nil
}

// Variant downloads one variant of a processed image.
func (c *Client) Variant(ctx context.Context, id string, kind model.VariantKind) ([]byte, string, error) {
	u := c.baseURL + "/image/" + url.PathEscape(id) + "?" + url.Values{"type": {string(kind)}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", fmt.Errorf("variant %s: failed to build request: %w", kind, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("variant %s: %w", kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("variant %s: %w", kind, ErrImageNotFound)
	}
	if !ok(resp.StatusCode) {
		return nil, "", fmt.Errorf("variant %s: %w", kind, statusError(resp))
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("variant %s: failed to read body: %w", kind, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(payload)
	}

	return payload, contentType, nil
}

// Delete removes a job and its variants from the service.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/image/"+url.PathEscape(id), nil)
	if err != nil {
		return fmt.Errorf("delete: failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("delete: %w", ErrImageNotFound)
	}
	if !ok(resp.StatusCode) {
		return fmt.Errorf("delete: %w", statusError(resp))
	}

	return nil
}

func ok(code int) bool {
	return code >= 200 && code < 300
}

// statusError builds a StatusError, pulling a message out of
// {"message": ...} or {"error": ...} bodies when present.
func statusError(resp *http.Response) *StatusError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}

	msg := strings.TrimSpace(string(raw))
	if err := json.Unmarshal(raw, &body); err == nil {
		switch {
		case body.Message != "":
			msg = body.Message
		case body.Error != "":
			msg = body.Error
		}
	}

	return &StatusError{Code: resp.StatusCode, Message: msg}
}
