package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fleetdeck-io/fleetdeck/internal/frames"
	"github.com/fleetdeck-io/fleetdeck/internal/middleware"
	"github.com/fleetdeck-io/fleetdeck/internal/services"
	"github.com/fleetdeck-io/fleetdeck/pkg/errors"
	"github.com/fleetdeck-io/fleetdeck/pkg/metrics"
	"github.com/fleetdeck-io/fleetdeck/pkg/response"
)

const (
	minFrameBytes = 100
	maxFrameBytes = 5 << 20 // 5 MiB
)

var jpegSignature = []byte{0xFF, 0xD8, 0xFF}

// CameraFrameHandler serves the live-view pipeline: device frame uploads
// into the in-memory store, dashboard snapshots, and the MJPEG stream.
type CameraFrameHandler struct {
	store    *frames.Store
	streamer *frames.Streamer
	cameras  *services.CameraService
}

// NewCameraFrameHandler constructs the frame pipeline handler.
func NewCameraFrameHandler(store *frames.Store, streamer *frames.Streamer, cameras *services.CameraService) *CameraFrameHandler {
	return &CameraFrameHandler{store: store, streamer: streamer, cameras: cameras}
}

// Ingest accepts a raw JPEG body from an authenticated camera. Rejected
// frames are never stored.
// POST /api/devices/camera/frame
func (h *CameraFrameHandler) Ingest(c *gin.Context) {
	cameraID := c.GetString(middleware.CtxCameraIDKey)
	if cameraID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	contentType := strings.ToLower(strings.TrimSpace(c.ContentType()))
	if contentType != "image/jpeg" && contentType != "image/jpg" {
		metrics.FramesIngested.WithLabelValues("rejected_content_type").Inc()
		response.Error(c, errors.NewBadRequest("content type must be image/jpeg"))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxFrameBytes+1))
	if err != nil {
		metrics.FramesIngested.WithLabelValues("rejected_read").Inc()
		response.Error(c, errors.NewBadRequest("unable to read frame body"))
		return
	}
	if len(payload) > maxFrameBytes {
		metrics.FramesIngested.WithLabelValues("rejected_too_large").Inc()
		response.Error(c, errors.ErrPayloadTooLarge)
		return
	}
	if len(payload) < minFrameBytes {
		metrics.FramesIngested.WithLabelValues("rejected_too_small").Inc()
		response.Error(c, errors.NewBadRequest("frame too small to be a JPEG"))
		return
	}
	if !bytes.HasPrefix(payload, jpegSignature) {
		metrics.FramesIngested.WithLabelValues("rejected_signature").Inc()
		response.Error(c, errors.NewBadRequest("body is not a JPEG image"))
		return
	}

	h.store.Store(cameraID, payload, "image/jpeg")
	metrics.FramesIngested.WithLabelValues("accepted").Inc()
	metrics.FrameBytes.Observe(float64(len(payload)))

	response.Success(c, http.StatusOK, gin.H{
		"size":        len(payload),
		"captured_at": time.Now().UTC(),
	})
}

// Snapshot returns the cached frame verbatim when fresh.
// GET /api/cameras/:id/snapshot
func (h *CameraFrameHandler) Snapshot(c *gin.Context) {
	camera, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	frame, ok := h.store.Fetch(camera.ID)
	if !ok {
		response.Error(c, errors.New("camera.no_frame", "No fresh frame available", http.StatusNotFound))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, frame.ContentType, frame.Payload)
}

// Stream serves the MJPEG pseudo-stream until the client disconnects.
// GET /api/cameras/:id/stream
func (h *CameraFrameHandler) Stream(c *gin.Context) {
	camera, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", frames.StreamContentType)
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)

	_ = h.streamer.Serve(c.Request.Context(), c.Writer, camera.ID)
}

// FrameStatus reports the age of the cached frame for a camera.
// GET /api/cameras/:id/frame-status
func (h *CameraFrameHandler) FrameStatus(c *gin.Context) {
	camera, err := h.cameras.Get(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	age, ok := h.store.AgeOf(camera.ID)
	payload := gin.H{"has_frame": ok}
	if ok {
		payload["age_ms"] = age.Milliseconds()
	}
	response.Success(c, http.StatusOK, payload)
}
