package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagedetect/internal/logger"
	"imagedetect/internal/models"
	"imagedetect/internal/repository"
	"imagedetect/internal/services/ai"
	"imagedetect/internal/services/detection"
)

type stubModel struct {
	detections []ai.RawDetection
	err        error
	calls      int
}

func (s *stubModel) Predict(context.Context, image.Image) ([]ai.RawDetection, error) {
	s.calls++
	return s.detections, s.err
}
func (s *stubModel) Name() string { return "stub.onnx" }
func (s *stubModel) Close() error { return nil }

// memoryRepo is an in-memory DetectionRepository.
type memoryRepo struct {
	records []models.DetectionRecord
	saveErr error
	readErr error
}

func (m *memoryRepo) InitializeSchema(context.Context) error { return nil }

func (m *memoryRepo) Save(_ context.Context, rec *models.DetectionRecord) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	rec.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *rec)
	return nil
}

func (m *memoryRepo) QueryRecent(_ context.Context, limit int) ([]models.DetectionRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := make([]models.DetectionRecord, 0, limit)
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *memoryRepo) Close() error { return nil }

func newTestEcho(svc *detection.Service) *echo.Echo {
	log := logger.NewNop()
	e := echo.New()
	e.HTTPErrorHandler = HTTPErrorHandler(log)
	e.GET("/", RootHandler())
	e.GET("/health", HealthHandler(svc))
	e.POST("/detect", DetectHandler(svc, log))
	e.GET("/detections", ListDetectionsHandler(svc, log))
	return e
}

func multipartUpload(t *testing.T, field, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(120, 80, color.NRGBA{R: 90, G: 90, B: 90, A: 255}), imaging.JPEG))
	return buf.Bytes()
}

func doDetect(t *testing.T, e *echo.Echo, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRootAndHealth(t *testing.T) {
	e := newTestEcho(detection.NewService(ai.NewHandle(nil), &memoryRepo{}, nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Image Detection API is running!"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","model_loaded":false}`, rec.Body.String())
}

func TestDetect_OK(t *testing.T) {
	model := &stubModel{detections: []ai.RawDetection{
		{Label: "person", Confidence: 0.88, Box: [4]float64{10, 10, 60, 70}},
		{Label: "kite", Confidence: 0.42, Box: [4]float64{0, 0, 5, 5}},
	}}
	repo := &memoryRepo{}
	svc := detection.NewService(ai.NewHandle(model), repo, nil,
		detection.WithClock(func() time.Time { return time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC) }))
	e := newTestEcho(svc)

	body, ct := multipartUpload(t, UploadField, "people.jpg", "image/jpeg", jpegBytes(t))
	rec := doDetect(t, e, body, ct)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got struct {
		Filename       string             `json:"filename"`
		Detections     []models.Detection `json:"detections"`
		TotalObjects   int                `json:"total_objects"`
		AnnotatedImage string             `json:"annotated_image"`
		Timestamp      string             `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "people.jpg", got.Filename)
	assert.Equal(t, 1, got.TotalObjects)
	require.Len(t, got.Detections, 1)
	assert.Equal(t, "person", got.Detections[0].Class)
	assert.Equal(t, "2025-07-01T09:30:00Z", got.Timestamp)

	raw, err := base64.StdEncoding.DecodeString(got.AnnotatedImage)
	require.NoError(t, err)
	_, format, err := image.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	require.Len(t, repo.records, 1)
	assert.Equal(t, 1, repo.records[0].TotalObjects)
}

func TestDetect_StatusMapping(t *testing.T) {
	tests := []struct {
		name        string
		model       *stubModel
		field       string
		contentType string
		data        []byte
		wantCode    int
		wantCalls   int
	}{
		{"non-image upload", &stubModel{}, UploadField, "text/plain", []byte("hello"), http.StatusBadRequest, 0},
		{"missing field", &stubModel{}, "upload", "image/jpeg", []byte("x"), http.StatusBadRequest, 0},
		{"undecodable image", &stubModel{}, UploadField, "image/jpeg", []byte("garbage"), http.StatusBadRequest, 0},
		{"inference failure", &stubModel{err: errors.New("cv::Exception at /opt/opencv/dnn.cpp:42")}, UploadField, "image/jpeg", nil, http.StatusInternalServerError, 1},
		{"model not loaded", nil, UploadField, "image/jpeg", nil, http.StatusServiceUnavailable, 0},
		{"model not loaded and no file", nil, "upload", "image/jpeg", nil, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var handle *ai.Handle
			if tt.model != nil {
				handle = ai.NewHandle(tt.model)
			} else {
				handle = ai.NewHandle(nil)
			}
			repo := &memoryRepo{}
			e := newTestEcho(detection.NewService(handle, repo, nil))

			data := tt.data
			if data == nil {
				data = jpegBytes(t)
			}
			body, ct := multipartUpload(t, tt.field, "upload.bin", tt.contentType, data)
			rec := doDetect(t, e, body, ct)

			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotEmpty(t, resp.CorrelationID)
			assert.NotContains(t, resp.Error, "cv::Exception")

			if tt.model != nil {
				assert.Equal(t, tt.wantCalls, tt.model.calls)
			}
			assert.Empty(t, repo.records, "no record may be persisted")
		})
	}
}

func TestDetect_StoreDownStillSucceeds(t *testing.T) {
	repo := &memoryRepo{saveErr: repository.ErrPersistence}
	svc := detection.NewService(ai.NewHandle(&stubModel{}), repo, nil)
	e := newTestEcho(svc)

	body, ct := multipartUpload(t, UploadField, "a.jpg", "image/jpeg", jpegBytes(t))
	rec := doDetect(t, e, body, ct)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListDetections(t *testing.T) {
	repo := &memoryRepo{}
	svc := detection.NewService(ai.NewHandle(&stubModel{}), repo, nil)
	e := newTestEcho(svc)

	for _, name := range []string{"a.jpg", "b.jpg"} {
		body, ct := multipartUpload(t, UploadField, name, "image/jpeg", jpegBytes(t))
		require.Equal(t, http.StatusOK, doDetect(t, e, body, ct).Code)
	}

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got struct {
		Detections []map[string]any `json:"detections"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Detections, 2)
	assert.Equal(t, "b.jpg", got.Detections[0]["filename"])
	assert.Equal(t, "a.jpg", got.Detections[1]["filename"])
	assert.InDelta(t, 0, got.Detections[0]["total_objects"], 0)
}

func TestListDetections_StoreFailure(t *testing.T) {
	repo := &memoryRepo{readErr: errors.Join(repository.ErrPersistence, errors.New("dial tcp 10.0.0.5:3306"))}
	e := newTestEcho(detection.NewService(ai.NewHandle(nil), repo, nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/detections", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to retrieve detections", resp.Message)
	assert.NotContains(t, resp.Error, "10.0.0.5")
}

func TestHTTPErrorHandler_NotFound(t *testing.T) {
	e := newTestEcho(detection.NewService(ai.NewHandle(nil), &memoryRepo{}, nil))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "Not Found", resp.Message)
}
