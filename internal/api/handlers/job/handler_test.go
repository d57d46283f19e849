package job_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/image-tracker/internal/api/handlers/job"
	"github.com/aliskhannn/image-tracker/internal/api/router"
	"github.com/aliskhannn/image-tracker/internal/model"
	"github.com/aliskhannn/image-tracker/internal/session"
	"github.com/aliskhannn/image-tracker/internal/storage/memory"
	"github.com/aliskhannn/image-tracker/internal/view/board"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type fakeTracker struct {
	err       error
	state     session.State
	submitted string
	looked    string
	deleted   bool
	reset     bool
}

func (f *fakeTracker) Submit(_ context.Context, filename string, src io.Reader) error {
	data, _ := io.ReadAll(src)
	f.submitted = filename + ":" + string(data)
	return f.err
}

func (f *fakeTracker) Lookup(_ context.Context, id string) error {
	f.looked = id
	return f.err
}

func (f *fakeTracker) Delete(context.Context) error {
	f.deleted = true
	return f.err
}

func (f *fakeTracker) Reset(context.Context) error {
	f.reset = true
	return f.err
}

func (f *fakeTracker) State(context.Context) (session.State, error) {
	return f.state, nil
}

func setup(t *testing.T, tr *fakeTracker) (http.Handler, *board.Board, *memory.Store) {
	t.Helper()

	b := board.New()
	store := memory.NewStore("http://localhost:8080")

	return router.Setup(job.NewHandler(tr, b, store)), b, store
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUpload(t *testing.T) {
	tr := &fakeTracker{state: session.State{
		Phase: session.PhaseTracking,
		Job:   model.JobReference{ID: "abc123", Generation: 1},
	}}
	h, b, _ := setup(t, tr)
	b.ShowJob("abc123")

	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	part, err := mw.CreateFormFile("image", "cat.jpg")
	require.NoError(t, err)
	_, _ = part.Write([]byte("jpeg"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := do(h, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "cat.jpg:jpeg", tr.submitted)

	var resp struct {
		Result job.SessionResponse `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, session.PhaseTracking, resp.Result.Phase)
	assert.Equal(t, "abc123", resp.Result.Job.ID)
	assert.Equal(t, "abc123", resp.Result.Page.ImageID)
}

func TestUpload_MissingFile(t *testing.T) {
	h, _, _ := setup(t, &fakeTracker{})

	req := httptest.NewRequest(http.MethodPost, "/api/upload", strings.NewReader("nope"))
	req.Header.Set("Content-Type", "text/plain")

	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		method string
		path   string
		body   string
		want   int
	}{
		{"lookup not found", session.ErrLookupNotFound, http.MethodPost, "/api/lookup", `{"id":"zzz999"}`, http.StatusNotFound},
		{"lookup failure", fmt.Errorf("%w: boom", session.ErrLookupFailure), http.MethodPost, "/api/lookup", `{"id":"abc123"}`, http.StatusBadGateway},
		{"lookup empty id", session.ErrEmptyID, http.MethodPost, "/api/lookup", `{"id":""}`, http.StatusBadRequest},
		{"lookup bad body", nil, http.MethodPost, "/api/lookup", `{`, http.StatusBadRequest},
		{"delete idle", session.ErrNotTracking, http.MethodDelete, "/api/current", "", http.StatusConflict},
		{"delete failure", fmt.Errorf("%w: boom", session.ErrDeleteFailure), http.MethodDelete, "/api/current", "", http.StatusBadGateway},
		{"delete ok", nil, http.MethodDelete, "/api/current", "", http.StatusNoContent},
		{"reset", nil, http.MethodPost, "/api/reset", "", http.StatusNoContent},
		{"lookup after close", session.ErrClosed, http.MethodPost, "/api/lookup", `{"id":"abc123"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := setup(t, &fakeTracker{err: tt.err})

			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			assert.Equal(t, tt.want, do(h, req).Code)
		})
	}
}

func TestSession(t *testing.T) {
	h, b, store := setup(t, &fakeTracker{state: session.State{Phase: session.PhaseIdle}})
	b.Alert("image deleted")

	_, err := store.Create(context.Background(), "abc123", model.VariantOriginal, []byte("img"), "image/png")
	require.NoError(t, err)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"idle"`)
	assert.Contains(t, rec.Body.String(), `"last_alert":"image deleted"`)
	assert.Contains(t, rec.Body.String(), `"live_handles":1`)
}

func TestSession_HandlesServedElsewhere(t *testing.T) {
	r := router.Setup(job.NewHandler(&fakeTracker{state: session.State{Phase: session.PhaseIdle}}, board.New(), nil))

	rec := do(r, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "live_handles")
}

func TestHandle(t *testing.T) {
	h, _, store := setup(t, &fakeTracker{})

	handle, err := store.Create(context.Background(), "abc123", model.VariantThumbnail, []byte("thumb"), "image/jpeg")
	require.NoError(t, err)

	rec := do(h, httptest.NewRequest(http.MethodGet, "/handles/"+handle.Key, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "thumb", rec.Body.String())
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))

	require.NoError(t, store.Release(context.Background(), handle))

	rec = do(h, httptest.NewRequest(http.MethodGet, "/handles/"+handle.Key, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
