package handlers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"admira-report/internal/config"
	"admira-report/internal/export"
	"admira-report/internal/metrics"
	"admira-report/internal/models"
	"admira-report/internal/parser"
	"admira-report/internal/report"
)

// Deliverer hands a finished report to the render sink.
type Deliverer interface {
	Enabled() bool
	Deliver(ctx context.Context, r *models.Report) error
}

type Handler struct {
	config    *config.Config
	builder   *report.Builder
	deliverer Deliverer
	logger    *logrus.Logger
}

func New(cfg *config.Config, builder *report.Builder, deliverer Deliverer, logger *logrus.Logger) *Handler {
	return &Handler{
		config:    cfg,
		builder:   builder,
		deliverer: deliverer,
		logger:    logger,
	}
}

type reportForm struct {
	ReportName    string `form:"report_name"`
	ObjectiveType string `form:"objective_type" binding:"required"`
	RetentionType string `form:"retention_type" binding:"required"`
	Top           int    `form:"top" binding:"min=0"`
}

type jsonFile struct {
	Filename string `json:"filename" binding:"required"`
	Content  string `json:"content"`
}

type jsonReportRequest struct {
	ReportName    string     `json:"report_name"`
	ObjectiveType string     `json:"objective_type" binding:"required"`
	RetentionType string     `json:"retention_type" binding:"required"`
	Top           int        `json:"top" binding:"min=0"`
	ThisPeriod    []jsonFile `json:"this_period" binding:"dive"`
	LastPeriod    []jsonFile `json:"last_period" binding:"dive"`
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "admira-report",
	})
}

func (h *Handler) ReadinessCheck(c *gin.Context) {
	if h.builder == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not ready",
			"message": "report builder is not initialized",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":           "ready",
		"objectives":       len(metrics.Profiles()),
		"delivery_enabled": h.deliverer != nil && h.deliverer.Enabled(),
	})
}

func (h *Handler) ListObjectives(c *gin.Context) {
	profiles := metrics.Profiles()
	infos := make([]models.ObjectiveInfo, 0, len(profiles))
	for _, p := range profiles {
		infos = append(infos, p.Info())
	}
	c.JSON(http.StatusOK, gin.H{"objectives": infos})
}

// CreateReport builds a report from a multipart upload carrying
// this_period and last_period file fields.
func (h *Handler) CreateReport(c *gin.Context) {
	var form reportForm
	if err := c.ShouldBind(&form); err != nil {
		h.badRequest(c, err)
		return
	}
	multipartForm, err := c.MultipartForm()
	if err != nil {
		h.badRequest(c, fmt.Errorf("expected a multipart upload: %w", err))
		return
	}

	thisPeriod, err := h.readUploads(multipartForm.File[string(models.PeriodCurrent)])
	if err != nil {
		h.badRequest(c, err)
		return
	}
	lastPeriod, err := h.readUploads(multipartForm.File[string(models.PeriodPrevious)])
	if err != nil {
		h.badRequest(c, err)
		return
	}

	h.respond(c, report.Request{
		Name:       form.ReportName,
		Objective:  models.Objective(form.ObjectiveType),
		Retention:  models.RetentionType(form.RetentionType),
		TopN:       form.Top,
		ThisPeriod: thisPeriod,
		LastPeriod: lastPeriod,
	})
}

// CreateReportJSON is CreateReport for clients that send base64 file
// contents in a JSON body.
func (h *Handler) CreateReportJSON(c *gin.Context) {
	var body jsonReportRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.badRequest(c, err)
		return
	}

	thisPeriod, err := decodeFiles(body.ThisPeriod)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	lastPeriod, err := decodeFiles(body.LastPeriod)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	h.respond(c, report.Request{
		Name:       body.ReportName,
		Objective:  models.Objective(body.ObjectiveType),
		Retention:  models.RetentionType(body.RetentionType),
		TopN:       body.Top,
		ThisPeriod: thisPeriod,
		LastPeriod: lastPeriod,
	})
}

func (h *Handler) respond(c *gin.Context, req report.Request) {
	startTime := time.Now()

	deliver, _ := strconv.ParseBool(c.DefaultQuery("deliver", "false"))
	if deliver && (h.deliverer == nil || !h.deliverer.Enabled()) {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{
			Error: export.ErrSinkNotConfigured.Error(),
			Code:  "delivery_unavailable",
		})
		return
	}

	r, err := h.builder.Build(c.Request.Context(), req)
	if err != nil {
		h.writeBuildError(c, err)
		return
	}

	if deliver {
		if err := h.deliverer.Deliver(c.Request.Context(), r); err != nil {
			h.logger.WithError(err).WithField("report_id", r.ID).Error("Report delivery failed")
			c.JSON(http.StatusBadGateway, models.ErrorResponse{
				Error:   "report was built but could not be delivered",
				Code:    "delivery_failed",
				Details: []string{err.Error()},
			})
			return
		}
	}

	duration := time.Since(startTime)
	h.logger.WithFields(logrus.Fields{
		"report_id":   r.ID,
		"objective":   r.Objective,
		"this_files":  len(req.ThisPeriod),
		"last_files":  len(req.LastPeriod),
		"delivered":   deliver,
		"duration_ms": duration.Milliseconds(),
	}).Info("Report request completed")

	c.JSON(http.StatusOK, models.ReportResponse{
		Status:      "success",
		Report:      r,
		DurationMs:  duration.Milliseconds(),
		Delivered:   deliver,
		ProcessedAt: time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) writeBuildError(c *gin.Context, err error) {
	resp := models.ErrorResponse{Error: err.Error()}
	var periodErr *report.PeriodError
	if errors.As(err, &periodErr) {
		resp.Period = periodErr.Period
		resp.File = periodErr.File
	}

	status := http.StatusInternalServerError
	var malformed *parser.MalformedCSVError
	switch {
	case errors.Is(err, report.ErrInvalidRequest):
		status, resp.Code = http.StatusBadRequest, "invalid_request"
	case errors.As(err, &malformed):
		status, resp.Code = http.StatusBadRequest, "malformed_csv"
		resp.Details = []string{"please re-export a valid CSV from Ads Manager"}
	case errors.Is(err, report.ErrUploadTooLarge), errors.Is(err, parser.ErrTooManyRows):
		status, resp.Code = http.StatusRequestEntityTooLarge, "upload_too_large"
	case errors.Is(err, report.ErrNoMainFileFound):
		status, resp.Code = http.StatusUnprocessableEntity, "no_main_file"
	case errors.Is(err, report.ErrNoDataForPeriod):
		status, resp.Code = http.StatusUnprocessableEntity, "no_data"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status, resp.Code = http.StatusRequestTimeout, "canceled"
	default:
		resp.Code = "internal_error"
		resp.Error = "failed to build report"
	}

	entry := h.logger.WithError(err).WithFields(logrus.Fields{
		"status": status,
		"code":   resp.Code,
		"period": resp.Period,
		"file":   resp.File,
	})
	if status >= http.StatusInternalServerError {
		entry.Error("Report build failed")
	} else {
		entry.Warn("Report request rejected")
	}
	c.JSON(status, resp)
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	h.logger.WithError(err).Warn("Invalid report request")
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error: err.Error(),
		Code:  "invalid_request",
	})
}

// readUploads reads at most one byte past the upload limit so the builder
// can still reject the file with the size error.
func (h *Handler) readUploads(headers []*multipart.FileHeader) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		content, err := h.readUpload(fh)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
		}
		files = append(files, models.UploadedFile{Name: fh.Filename, Content: content})
	}
	return files, nil
}

func (h *Handler) readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if h.config.MaxUploadBytes > 0 {
		r = io.LimitReader(f, h.config.MaxUploadBytes+1)
	}
	return io.ReadAll(r)
}

func decodeFiles(in []jsonFile) ([]models.UploadedFile, error) {
	files := make([]models.UploadedFile, 0, len(in))
	for _, f := range in {
		content, err := base64.StdEncoding.DecodeString(f.Content)
		if err != nil {
			return nil, fmt.Errorf("content of %s is not valid base64: %w", f.Filename, err)
		}
		files = append(files, models.UploadedFile{Name: f.Filename, Content: content})
	}
	return files, nil
}
