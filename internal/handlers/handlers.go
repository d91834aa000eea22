package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Brownie44l1/banana-detector/internal/detector"
	"github.com/Brownie44l1/banana-detector/internal/model"
	"github.com/Brownie44l1/banana-detector/internal/web"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

// multipart headers and boundaries on top of the file itself
const formOverhead = 1 << 20

// upper bound on the JSON text of one tensor element, separator included
const bytesPerValue = 32

type Handler struct {
	detector       *detector.Detector
	maxUploadBytes int64
}

func NewHandler(d *detector.Detector, maxUploadBytes int64) *Handler {
	return &Handler{
		detector:       d,
		maxUploadBytes: maxUploadBytes,
	}
}

func (h *Handler) Register(r gin.IRouter) {
	r.GET("/", h.Page)
	r.POST("/", h.Upload)
	r.GET("/health", h.Health)
	r.POST("/predict", h.Predict)
	r.POST("/predict/image", h.PredictFromImage)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) Page(c *gin.Context) {
	c.HTML(http.StatusOK, web.PageTemplate, web.Idle())
}

// Upload is the form target of the page. Failures still render the page,
// in its error state.
func (h *Handler) Upload(c *gin.Context) {
	res, err := h.detectUpload(c)
	if err != nil {
		logger(c).WithError(err).Warn("prediction failed")
		c.HTML(http.StatusOK, web.PageTemplate, web.FromVerdict(model.VerdictError))
		return
	}
	c.HTML(http.StatusOK, web.PageTemplate, web.FromVerdict(res.Verdict))
}

func (h *Handler) PredictFromImage(c *gin.Context) {
	res, err := h.detectUpload(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

// Predict accepts an already preprocessed planar tensor.
func (h *Handler) Predict(c *gin.Context) {
	limit := int64(h.detector.InputSize())*bytesPerValue + formOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	var req model.PredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, fmt.Errorf("%w: invalid JSON: %v", detector.ErrInvalidInput, err))
		return
	}

	res, err := h.detector.DetectTensor(req.Image)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res.Response())
}

func (h *Handler) detectUpload(c *gin.Context) (*detector.Result, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+formOverhead)

	header, err := c.FormFile("image")
	if err != nil {
		return nil, fmt.Errorf("%w: no image file provided, use 'image' as the form field name: %v", detector.ErrInvalidInput, err)
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open upload: %v", detector.ErrInvalidInput, err)
	}
	defer file.Close()

	log := logger(c).WithFields(logrus.Fields{
		"filename": header.Filename,
		"size":     header.Size,
	})
	log.Debug("received file")

	res, err := h.detector.Detect(file)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"format":      res.Format,
		"width":       res.Width,
		"height":      res.Height,
		"probability": res.Probability,
		"verdict":     res.Verdict,
		"elapsed":     res.Elapsed,
	}).Info("prediction complete")
	return res, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, detector.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	logger(c).WithError(err).WithField("status", status).Warn("prediction failed")

	c.JSON(status, model.ErrorResponse{
		Verdict: model.VerdictError,
		Message: model.VerdictError.Message(),
	})
}

func logger(c *gin.Context) *logrus.Entry {
	entry := logrus.WithField("path", c.Request.URL.Path)
	if id := c.GetString(RequestIDKey); id != "" {
		entry = entry.WithField(RequestIDKey, id)
	}
	return entry
}
