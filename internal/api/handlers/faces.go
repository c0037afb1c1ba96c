package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/magiclogon/faceid/internal/engine"
	"github.com/magiclogon/faceid/internal/models"
	"github.com/magiclogon/faceid/internal/observability"
	"github.com/magiclogon/faceid/internal/storage"
	"github.com/magiclogon/faceid/internal/upload"
	"github.com/magiclogon/faceid/pkg/dto"
)

const (
	msgNoImage       = "No image provided"
	msgNoEmployeeID  = "No employee ID provided"
	msgInvalidID     = "Invalid employee ID"
	msgNotRegistered = "Employee not registered"
	msgNoFace        = "No face detected in the image"
	msgMultipleFaces = "Multiple faces detected in the image"
	msgEngineFailure = "Error processing image: Could not detect face"
	msgTooLarge      = "Image too large"
)

// EventPublisher receives face events after a successful request.
type EventPublisher interface {
	PublishFaceEvent(ctx context.Context, ev models.FaceEvent) error
}

type FaceHandler struct {
	engine     engine.Engine
	store      storage.EmbeddingStore
	assets     storage.AssetStore
	stager     *upload.Stager
	publishers []EventPublisher
	maxBytes   int64
	now        func() time.Time
}

// NewFaceHandler builds the register/verify handler. maxUploadBytes <= 0
// disables the request body limit.
func NewFaceHandler(eng engine.Engine, store storage.EmbeddingStore, assets storage.AssetStore,
	stager *upload.Stager, maxUploadBytes int64, publishers ...EventPublisher) *FaceHandler {
	return &FaceHandler{
		engine:     eng,
		store:      store,
		assets:     assets,
		stager:     stager,
		publishers: publishers,
		maxBytes:   maxUploadBytes,
		now:        time.Now,
	}
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, dto.ErrorResponse{Success: false, Error: msg})
}

// readForm returns the uploaded image bytes and employee id. It writes the
// error response itself and returns ok=false when a field is missing.
func (h *FaceHandler) readForm(c *gin.Context) (data []byte, employeeID string, ok bool) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			fail(c, http.StatusRequestEntityTooLarge, msgTooLarge)
			return nil, "", false
		}
		// Not multipart: fall through so the field checks below report it.
	}

	file, _, err := c.Request.FormFile(dto.FieldImage)
	if err != nil {
		fail(c, http.StatusBadRequest, msgNoImage)
		return nil, "", false
	}
	defer file.Close()

	employeeID = c.PostForm(dto.FieldEmployeeID)
	if employeeID == "" {
		fail(c, http.StatusBadRequest, msgNoEmployeeID)
		return nil, "", false
	}

	data, err = io.ReadAll(file)
	if err != nil {
		fail(c, http.StatusInternalServerError, fmt.Sprintf("read image: %v", err))
		return nil, "", false
	}
	return data, employeeID, true
}

// extract runs the single-face gate on a staged image. It writes the 400
// response on failure. The result label is used for metrics.
func (h *FaceHandler) extract(c *gin.Context, path string) ([]float32, string, bool) {
	emb, err := engine.ExtractSingle(c.Request.Context(), h.engine, path)
	switch {
	case err == nil:
		return emb, "", true
	case errors.Is(err, engine.ErrNoFace):
		fail(c, http.StatusBadRequest, msgNoFace)
		return nil, "no_face", false
	case errors.Is(err, engine.ErrMultipleFaces):
		fail(c, http.StatusBadRequest, msgMultipleFaces)
		return nil, "multiple_faces", false
	default:
		slog.Warn("face engine failed", "path", path, "error", err)
		fail(c, http.StatusBadRequest, msgEngineFailure)
		return nil, "engine_error", false
	}
}

func (h *FaceHandler) publish(ctx context.Context, ev models.FaceEvent) {
	for _, p := range h.publishers {
		if err := p.PublishFaceEvent(ctx, ev); err != nil {
			slog.Error("publish face event", "type", ev.Type, "employee_id", ev.EmployeeID, "error", err)
		}
	}
}

// Register handles POST /register-face.
func (h *FaceHandler) Register(c *gin.Context) {
	data, employeeID, ok := h.readForm(c)
	if !ok {
		observability.Registrations.WithLabelValues("invalid").Inc()
		return
	}
	if err := storage.ValidateKey(employeeID); err != nil {
		observability.Registrations.WithLabelValues("invalid").Inc()
		fail(c, http.StatusBadRequest, msgInvalidID)
		return
	}
	ctx := c.Request.Context()

	path, cleanup, err := h.stager.Stage(data, upload.SuffixProbe)
	defer cleanup()
	if err != nil {
		observability.Registrations.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	emb, outcome, ok := h.extract(c, path)
	if !ok {
		observability.Registrations.WithLabelValues(outcome).Inc()
		return
	}

	now := h.now().UTC()
	if err := h.store.Put(ctx, models.NewIdentityRecord(employeeID, emb, now)); err != nil {
		slog.Error("save embedding", "employee_id", employeeID, "error", err)
		observability.Registrations.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.assets.WriteCanonical(ctx, employeeID, data); err != nil {
		slog.Error("save canonical image", "employee_id", employeeID, "error", err)
		observability.Registrations.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	if n, err := h.store.Count(ctx); err == nil {
		observability.RegisteredIdentities.Set(float64(n))
	}
	observability.Registrations.WithLabelValues("success").Inc()
	slog.Info("face registered", "employee_id", employeeID, "dims", len(emb))
	h.publish(ctx, models.NewRegisteredEvent(employeeID, now))

	c.JSON(http.StatusOK, dto.RegisterResponse{
		Success: true,
		Message: fmt.Sprintf("Face registered successfully for employee %s", employeeID),
	})
}

// Verify handles POST /verify-face.
func (h *FaceHandler) Verify(c *gin.Context) {
	data, employeeID, ok := h.readForm(c)
	if !ok {
		observability.Verifications.WithLabelValues("invalid").Inc()
		return
	}
	ctx := c.Request.Context()

	rec, err := h.store.Get(ctx, employeeID)
	if err != nil {
		observability.Verifications.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	if rec == nil {
		observability.Verifications.WithLabelValues("not_found").Inc()
		fail(c, http.StatusNotFound, msgNotRegistered)
		return
	}

	probePath, cleanupProbe, err := h.stager.Stage(data, upload.SuffixProbe)
	defer cleanupProbe()
	if err != nil {
		observability.Verifications.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}

	// The probe embedding gates face quality only; the decision below
	// compares the two images.
	if _, outcome, ok := h.extract(c, probePath); !ok {
		observability.Verifications.WithLabelValues(outcome).Inc()
		return
	}

	result, err := h.compareWithCanonical(ctx, employeeID, probePath)
	if err != nil {
		slog.Error("verification failed", "employee_id", employeeID, "error", err)
		observability.Verifications.WithLabelValues("error").Inc()
		fail(c, http.StatusInternalServerError, fmt.Sprintf("Verification error: %v", err))
		return
	}

	outcome := "no_match"
	if result.Verified {
		outcome = "match"
	}
	observability.Verifications.WithLabelValues(outcome).Inc()
	slog.Info("face verified", "employee_id", employeeID, "match", result.Verified,
		"distance", result.Distance, "threshold", result.Threshold)
	h.publish(ctx, models.NewVerifiedEvent(employeeID, result.Verified, result.Distance, result.Threshold, h.now().UTC()))

	c.JSON(http.StatusOK, dto.VerifyResponse{
		Success:    true,
		Match:      result.Verified,
		Confidence: result.Distance,
		Threshold:  result.Threshold,
		EmployeeID: employeeID,
	})
}

func (h *FaceHandler) compareWithCanonical(ctx context.Context, employeeID, probePath string) (engine.Verification, error) {
	canonical, err := h.assets.ReadCanonical(ctx, employeeID)
	if err != nil {
		return engine.Verification{}, fmt.Errorf("read registered image: %w", err)
	}

	regPath, cleanup, err := h.stager.Stage(canonical, upload.SuffixCanonical)
	defer cleanup()
	if err != nil {
		return engine.Verification{}, err
	}

	return h.engine.Compare(ctx, probePath, regPath)
}
