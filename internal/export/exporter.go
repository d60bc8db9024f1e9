package export

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"admira-report/internal/models"
)

var ErrSinkNotConfigured = errors.New("render sink is not configured")

// Poster is the transport the exporter delivers through.
type Poster interface {
	PostJSON(ctx context.Context, url string, body []byte, headers map[string]string) error
}

// Exporter hands finished reports to the rendering service.
type Exporter struct {
	sinkURL string
	secret  string
	poster  Poster
	logger  *logrus.Logger
	now     func() time.Time
}

func NewExporter(sinkURL, secret string, poster Poster, logger *logrus.Logger) *Exporter {
	return &Exporter{
		sinkURL: sinkURL,
		secret:  secret,
		poster:  poster,
		logger:  logger,
		now:     time.Now,
	}
}

func (e *Exporter) Enabled() bool {
	return e.sinkURL != ""
}

// Deliver posts the report with an X-Signature HMAC of the body.
func (e *Exporter) Deliver(ctx context.Context, report *models.Report) error {
	if !e.Enabled() {
		return ErrSinkNotConfigured
	}
	if report == nil {
		return fmt.Errorf("no report to deliver")
	}

	body, err := json.Marshal(models.DeliveryEnvelope{
		ReportID:    report.ID,
		DeliveredAt: e.now().UTC().Format(time.RFC3339),
		Report:      report,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	headers := map[string]string{
		"X-Signature": Sign(e.secret, body),
		"X-Report-ID": report.ID,
	}
	if err := e.poster.PostJSON(ctx, e.sinkURL, body, headers); err != nil {
		e.logger.WithError(err).WithField("report_id", report.ID).Error("Failed to deliver report")
		return fmt.Errorf("failed to deliver report: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"objective": report.Objective,
		"bytes":     len(body),
	}).Info("Successfully delivered report")
	return nil
}

// Sign returns the "sha256=<hex>" HMAC of body.
func Sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}
