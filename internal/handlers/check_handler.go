package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"image-admission-service/internal/models"
	"image-admission-service/internal/requestid"
	"image-admission-service/internal/services"
)

// UploadField is the multipart field carrying the image
const UploadField = "image"

// multipartOverhead leaves room for boundaries and headers around the file part
const multipartOverhead = 1 << 20

// Response messages for the check endpoint
const (
	MsgAdmitted           = "Image uploaded successfully."
	MsgRejected           = "Image is not appropriate for upload"
	MsgNoFile             = "No file uploaded"
	MsgNoAnnotations      = "No safe search annotations found."
	MsgConvertFailed      = "Failed to convert HEIC file"
	MsgNormalizeFailed    = "Failed to normalize image"
	MsgCheckFailed        = "Failed to check image content"
	msgFileTooLargeFormat = "File size exceeds limit of %d MB"
)

// CheckHandler handles image admission requests
type CheckHandler struct {
	pipeline     *services.Pipeline
	maxFileBytes int64
	logger       *zap.Logger
}

// NewCheckHandler creates a new check handler. maxFileBytes must be a whole number of megabytes.
func NewCheckHandler(pipeline *services.Pipeline, maxFileBytes int64, logger *zap.Logger) *CheckHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckHandler{
		pipeline:     pipeline,
		maxFileBytes: maxFileBytes,
		logger:       logger,
	}
}

// CheckImage runs a multipart upload through the admission pipeline
func (h *CheckHandler) CheckImage(c *gin.Context) {
	logger := h.logger.With(zap.String("request_id", requestid.FromContext(c.Request.Context())))

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileBytes+multipartOverhead)

	file, err := c.FormFile(UploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fileTooLarge(c)
			return
		}
		logger.Debug("No upload in request", zap.Error(err))
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgNoFile})
		return
	}

	if file.Size > h.maxFileBytes {
		h.fileTooLarge(c)
		return
	}

	src, err := file.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: MsgCheckFailed})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxFileBytes+1))
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: MsgCheckFailed})
		return
	}
	if int64(len(data)) > h.maxFileBytes {
		h.fileTooLarge(c)
		return
	}

	req := models.UploadRequest{
		Data:      data,
		MediaType: file.Header.Get("Content-Type"),
		Filename:  file.Filename,
	}

	result, err := h.pipeline.AdmitUpload(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, logger, req, err)
		return
	}

	if !result.Admission.Admitted {
		c.JSON(http.StatusOK, models.RejectedImageResponse{
			Safe:    false,
			Message: MsgRejected,
			Reasons: result.Admission.Reasons,
		})
		return
	}

	resp := models.CheckImageResponse{
		Safe:    true,
		Message: MsgAdmitted,
	}
	if result.Location != nil {
		accuracy := fmt.Sprintf("%.2f", result.Location.AccuracyPercent)
		resp.Accuracy = &accuracy
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CheckHandler) fileTooLarge(c *gin.Context) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: fmt.Sprintf(msgFileTooLargeFormat, h.maxFileBytes/(1024*1024)),
	})
}

// writeError maps pipeline failures to responses without leaking internals
func (h *CheckHandler) writeError(c *gin.Context, logger *zap.Logger, req models.UploadRequest, err error) {
	switch {
	case services.IsKind(err, services.KindInconclusive):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: MsgNoAnnotations})
	case services.IsKind(err, services.KindNormalization):
		logger.Error("Image normalization failed", zap.String("filename", req.Filename), zap.Error(err))
		msg := MsgNormalizeFailed
		if services.IsLegacyUpload(req) {
			msg = MsgConvertFailed
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg})
	default:
		logger.Error("Image check failed", zap.String("filename", req.Filename), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: MsgCheckFailed})
	}
}
