package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fleetdeck-io/fleetdeck/internal/database/testutil"
	"github.com/fleetdeck-io/fleetdeck/internal/frames"
	"github.com/fleetdeck-io/fleetdeck/internal/middleware"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
)

func validJPEG(size int) []byte {
	payload := make([]byte, size)
	copy(payload, []byte{0xFF, 0xD8, 0xFF})
	return payload
}

type frameFixture struct {
	handler *CameraFrameHandler
	store   *frames.Store
	camera  *services.CameraDTO
}

func newFrameFixture(t *testing.T) frameFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	cameras, err := services.NewCameraService(db, nil)
	require.NoError(t, err)

	camera, err := cameras.Register(context.Background(), services.RegisterCameraInput{
		CameraID:   "cam-001",
		CameraName: "Basket Cam",
	})
	require.NoError(t, err)

	store := frames.NewStore(frames.Config{})
	streamer := frames.NewStreamer(store, 5*time.Millisecond)
	return frameFixture{
		handler: NewCameraFrameHandler(store, streamer, cameras),
		store:   store,
		camera:  camera,
	}
}

func ingestRequest(t *testing.T, fx frameFixture, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/devices/camera/frame", bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", contentType)
	c.Set(middleware.CtxCameraIDKey, fx.camera.ID)
	fx.handler.Ingest(c)
	return recorder
}

func TestIngestAcceptsValidJPEG(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := ingestRequest(t, fx, "image/jpeg", validJPEG(2048))
	require.Equal(t, http.StatusOK, recorder.Code)

	frame, ok := fx.store.Fetch(fx.camera.ID)
	require.True(t, ok)
	require.Len(t, frame.Payload, 2048)
}

func TestIngestRejectsWrongContentType(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := ingestRequest(t, fx, "image/png", validJPEG(2048))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	_, ok := fx.store.Fetch(fx.camera.ID)
	require.False(t, ok)
}

func TestIngestRejectsTinyBody(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := ingestRequest(t, fx, "image/jpeg", validJPEG(50))
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	_, ok := fx.store.Fetch(fx.camera.ID)
	require.False(t, ok)
}

func TestIngestRejectsOversizedBody(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := ingestRequest(t, fx, "image/jpeg", validJPEG(5<<20+1))
	require.Equal(t, http.StatusRequestEntityTooLarge, recorder.Code)

	_, ok := fx.store.Fetch(fx.camera.ID)
	require.False(t, ok)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	fx := newFrameFixture(t)

	body := make([]byte, 2048)
	body[0] = 0x89 // PNG magic, not JPEG
	recorder := ingestRequest(t, fx, "image/jpeg", body)
	require.Equal(t, http.StatusBadRequest, recorder.Code)

	_, ok := fx.store.Fetch(fx.camera.ID)
	require.False(t, ok)
}

func TestIngestAcceptsImageJPGAlias(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := ingestRequest(t, fx, "image/jpg", validJPEG(512))
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestSnapshotReturnsCachedBytes(t *testing.T) {
	fx := newFrameFixture(t)

	payload := validJPEG(1024)
	fx.store.Store(fx.camera.ID, payload, "image/jpeg")

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/cameras/cam-001/snapshot", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "cam-001"}}
	fx.handler.Snapshot(c)

	require.Equal(t, http.StatusOK, recorder.Code)
	require.Equal(t, "image/jpeg", recorder.Header().Get("Content-Type"))
	require.Equal(t, payload, recorder.Body.Bytes())
}

func TestSnapshotMissingFrameIs404(t *testing.T) {
	fx := newFrameFixture(t)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/cameras/cam-001/snapshot", nil)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "cam-001"}}
	fx.handler.Snapshot(c)

	require.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestStreamWritesMultipartParts(t *testing.T) {
	fx := newFrameFixture(t)
	fx.store.Store(fx.camera.ID, validJPEG(256), "image/jpeg")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/cameras/cam-001/stream", nil).WithContext(ctx)
	c.Params = gin.Params{gin.Param{Key: "id", Value: "cam-001"}}
	fx.handler.Stream(c)

	require.Equal(t, frames.StreamContentType, recorder.Header().Get("Content-Type"))
	body := recorder.Body.String()
	require.Contains(t, body, "--frame\r\n")
	require.Contains(t, body, "Content-Type: image/jpeg\r\n")
	require.Contains(t, body, "Content-Length: 256\r\n")
}
