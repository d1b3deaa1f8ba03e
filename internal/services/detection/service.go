// Package detection implements the upload-to-annotated-result pipeline.
package detection

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"imagedetect/internal/logger"
	"imagedetect/internal/metrics"
	"imagedetect/internal/models"
	"imagedetect/internal/repository"
	"imagedetect/internal/services/ai"
	"imagedetect/internal/services/annotate"
)

// ConfidenceThreshold is the exclusive lower bound for kept detections.
const ConfidenceThreshold = 0.5

// Upload is one submitted image.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Result is the response of a successful detection.
type Result struct {
	Filename       string            `json:"filename"`
	Detections     models.Detections `json:"detections"`
	TotalObjects   int               `json:"total_objects"`
	AnnotatedImage string            `json:"annotated_image"`
	Timestamp      string            `json:"timestamp"`

	// RecordID is zero when the record could not be saved.
	RecordID uint `json:"-"`
}

// Event is the summary pushed to live viewers after each detection.
type Event struct {
	Filename     string            `json:"filename"`
	Detections   models.Detections `json:"detections"`
	TotalObjects int               `json:"total_objects"`
	Timestamp    string            `json:"timestamp"`
	RecordID     uint              `json:"record_id,omitempty"`
}

// Publisher receives detection events. Publish must not block.
type Publisher interface {
	Publish(event any) error
}

// Service runs the detection pipeline against the shared model and store.
type Service struct {
	model     *ai.Handle
	repo      repository.DetectionRepository
	publisher Publisher
	metrics   *metrics.DetectionMetrics
	logger    *logger.Logger
	now       func() time.Time
}

// Option configures optional collaborators of a Service.
type Option func(*Service)

// WithPublisher sends an Event to p after every successful detection.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics records pipeline metrics.
func WithMetrics(m *metrics.DetectionMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(model *ai.Handle, repo repository.DetectionRepository, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Service{
		model:  model,
		repo:   repo,
		logger: log.With("module", "detection"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ModelLoaded reports whether detection requests can be served.
func (s *Service) ModelLoaded() bool {
	return s.model != nil && s.model.Loaded()
}

// Detect runs the full pipeline on up: validate, decode, predict, filter,
// annotate, save (best-effort) and respond.
func (s *Service) Detect(ctx context.Context, up Upload) (*Result, error) {
	res, err := s.detect(ctx, up)
	s.metrics.ObserveRequest(outcome(err))
	return res, err
}

func (s *Service) detect(ctx context.Context, up Upload) (*Result, error) {
	var model ai.Model
	if s.model != nil {
		model = s.model.Get()
	}
	if model == nil {
		return nil, ErrModelUnavailable
	}
	if !IsImageContentType(up.ContentType) {
		return nil, fmt.Errorf("%w: got content type %q", ErrInvalidInput, up.ContentType)
	}

	img, err := imaging.Decode(bytes.NewReader(up.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	start := time.Now()
	raw, err := model.Predict(ctx, img)
	s.metrics.ObserveInference(model.Name(), time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("%w: inference with %s: %w", ErrDetectionFailed, model.Name(), err)
	}

	kept := FilterDetections(raw)
	s.metrics.ObserveObjects(kept.Labels())

	encoded, err := annotate.EncodeBase64JPEG(img, kept)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDetectionFailed, err)
	}

	ts := s.now().UTC()
	rec := models.NewDetectionRecord(up.Filename, kept, ts)
	s.saveBestEffort(ctx, rec)

	res := &Result{
		Filename:       up.Filename,
		Detections:     kept,
		TotalObjects:   len(kept),
		AnnotatedImage: encoded,
		Timestamp:      models.FormatTimestamp(ts),
		RecordID:       rec.ID,
	}
	s.publish(res)

	s.logger.Info("Detected %d object(s) in %s", res.TotalObjects, up.Filename)
	return res, nil
}

// saveBestEffort persists rec and discards any failure after logging it.
// A detection is never failed because the store is down.
func (s *Service) saveBestEffort(ctx context.Context, rec *models.DetectionRecord) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		rec.ID = 0
		s.metrics.ObservePersistenceFailure()
		s.logger.Error("Failed to save detection record for %s: %v", rec.Filename, err)
	}
}

func (s *Service) publish(res *Result) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(Event{
		Filename:     res.Filename,
		Detections:   res.Detections,
		TotalObjects: res.TotalObjects,
		Timestamp:    res.Timestamp,
		RecordID:     res.RecordID,
	})
	if err != nil {
		s.logger.Warning("Failed to publish detection event: %v", err)
	}
}

// ListRecent returns the most recent records as plain mappings, newest first.
func (s *Service) ListRecent(ctx context.Context) ([]map[string]any, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: no store configured", repository.ErrPersistence)
	}
	records, err := s.repo.QueryRecent(ctx, repository.DefaultRecentLimit)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, 0, len(records))
	for i := range records {
		out = append(out, records[i].ToMap())
	}
	return out, nil
}

// FilterDetections keeps entries whose confidence is strictly above
// ConfidenceThreshold, in model order.
func FilterDetections(raw []ai.RawDetection) models.Detections {
	kept := models.Detections{}
	for _, r := range raw {
		if r.Confidence <= ConfidenceThreshold {
			continue
		}
		kept = append(kept, models.Detection{
			Class:      r.Label,
			Confidence: r.Confidence,
			BBox:       r.Box,
		})
	}
	return kept
}

// IsImageContentType reports whether a declared MIME type is image/*.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.StatusOK
	case errors.Is(err, ErrModelUnavailable):
		return metrics.StatusUnavailable
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrDecode):
		return metrics.StatusInvalid
	default:
		return metrics.StatusFailed
	}
}
