package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/api/respond"
	"github.com/aliskhannn/image-tracker/internal/session"
	"github.com/aliskhannn/image-tracker/internal/view/board"
)

const maxUploadMemory = 10 << 20

// tracker is the session the handlers act on.
type tracker interface {
	Submit(ctx context.Context, filename string, src io.Reader) error
	Lookup(ctx context.Context, id string) error
	Delete(ctx context.Context) error
	Reset(ctx context.Context) error
	State(ctx context.Context) (session.State, error)
}

// page exposes what the session currently displays.
type page interface {
	Snapshot() board.Snapshot
}

// handleSource serves payloads of in-memory display handles.
type handleSource interface {
	Get(key string) ([]byte, string, bool)
	Len() int
}

// Handler provides the HTTP equivalents of the page's forms and buttons.
type Handler struct {
	tracker tracker
	page    page
	handles handleSource
}

// NewHandler creates a Handler. handles may be nil when display handles
// are not served by this process.
func NewHandler(t tracker, p page, hs handleSource) *Handler {
	return &Handler{tracker: t, page: p, handles: hs}
}

// LookupRequest is the body of a lookup call.
type LookupRequest struct {
	ID string `json:"id"`
}

// SessionResponse is the state of the session plus what it displays.
// LiveHandles is set only when display handles are served by this process.
type SessionResponse struct {
	session.State
	Page        board.Snapshot `json:"page"`
	LiveHandles *int           `json:"live_handles,omitempty"`
}

// Upload reads the "image" multipart field and submits it as a new job.
func (h *Handler) Upload(c *ginext.Context) {
	if err := c.Request.ParseMultipartForm(maxUploadMemory); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("parse multipart form failed: %v", err))
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to read the file")
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("failed to retrieve the file"))
		return
	}
	defer file.Close()

	zlog.Logger.Printf("submitting file: %v (%v bytes)", header.Filename, header.Size)

	if err := h.tracker.Submit(c.Request.Context(), header.Filename, file); err != nil {
		fail(c, err)
		return
	}

	h.state(c, http.StatusCreated)
}

// Lookup starts tracking an existing job by id.
func (h *Handler) Lookup(c *ginext.Context) {
	var req LookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Fail(c, http.StatusBadRequest, fmt.Errorf("invalid request body"))
		return
	}

	if err := h.tracker.Lookup(c.Request.Context(), req.ID); err != nil {
		fail(c, err)
		return
	}

	h.state(c, http.StatusOK)
}

// Delete removes the tracked job from the service.
func (h *Handler) Delete(c *ginext.Context) {
	if err := h.tracker.Delete(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Reset stops tracking without touching the service.
func (h *Handler) Reset(c *ginext.Context) {
	if err := h.tracker.Reset(c.Request.Context()); err != nil {
		fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Session returns the session state and the displayed page.
func (h *Handler) Session(c *ginext.Context) {
	h.state(c, http.StatusOK)
}

// Handle serves the bytes behind an in-memory display handle.
func (h *Handler) Handle(c *ginext.Context) {
	if h.handles == nil {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("handles are not served here"))
		return
	}

	payload, contentType, ok := h.handles.Get(c.Param("key"))
	if !ok {
		respond.Fail(c, http.StatusNotFound, fmt.Errorf("handle not found"))
		return
	}

	respond.Data(c, http.StatusOK, contentType, payload)
}

func (h *Handler) state(c *ginext.Context, status int) {
	st, err := h.tracker.State(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}

	resp := SessionResponse{State: st, Page: h.page.Snapshot()}
	if h.handles != nil {
		n := h.handles.Len()
		resp.LiveHandles = &n
	}

	if status == http.StatusCreated {
		respond.Created(c, resp)
		return
	}
	respond.OK(c, resp)
}

// fail maps session errors to HTTP status codes.
func fail(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyID):
		respond.Fail(c, http.StatusBadRequest, err)
	case errors.Is(err, session.ErrLookupNotFound):
		respond.Fail(c, http.StatusNotFound, err)
	case errors.Is(err, session.ErrNotTracking):
		respond.Fail(c, http.StatusConflict, err)
	case errors.Is(err, session.ErrClosed):
		respond.Fail(c, http.StatusServiceUnavailable, err)
	case errors.Is(err, session.ErrUploadFailure),
		errors.Is(err, session.ErrLookupFailure),
		errors.Is(err, session.ErrDeleteFailure):
		respond.Fail(c, http.StatusBadGateway, err)
	default:
		zlog.Logger.Err(err).Msg("request failed")
		respond.Fail(c, http.StatusInternalServerError, err)
	}
}
