package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/disintegration/imaging"
)

// RemoteModel runs inference on an external HTTP service. The image is
// posted as multipart field "file" and the service answers with
// {"detections": [{"class", "class_id", "confidence", "bbox"}]}.
type RemoteModel struct {
	inferenceURL string
	client       *http.Client
}

type remoteDetection struct {
	Class      string     `json:"class"`
	ClassID    *int       `json:"class_id,omitempty"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"`
}

// NewRemoteModel creates a client for inferenceURL. A nil client uses a
// fresh http.Client without timeout.
func NewRemoteModel(inferenceURL string, client *http.Client) *RemoteModel {
	if client == nil {
		client = &http.Client{}
	}
	return &RemoteModel{inferenceURL: inferenceURL, client: client}
}

// LoadRemote returns a loader that checks the service health before
// handing out the model.
func LoadRemote(inferenceURL string, client *http.Client) func() (Model, error) {
	return func() (Model, error) {
		m := NewRemoteModel(inferenceURL, client)
		if err := m.CheckHealth(context.Background()); err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Name returns the inference URL.
func (m *RemoteModel) Name() string {
	return m.inferenceURL
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (m *RemoteModel) Close() error {
	return nil
}

// Predict sends img to the inference service.
func (m *RemoteModel) Predict(ctx context.Context, img image.Image) ([]RawDetection, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if err := imaging.Encode(part, img, imaging.JPEG, imaging.JPEGQuality(95)); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.inferenceURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []remoteDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	out := make([]RawDetection, 0, len(result.Detections))
	for _, d := range result.Detections {
		raw := RawDetection{ClassID: -1, Label: d.Class, Confidence: d.Confidence, Box: d.BBox}
		if d.ClassID != nil {
			raw.ClassID = *d.ClassID
			if raw.Label == "" {
				raw.Label = ClassLabel(raw.ClassID)
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

// CheckHealth queries /health on the inference service host.
func (m *RemoteModel) CheckHealth(ctx context.Context) error {
	u, err := url.Parse(m.inferenceURL)
	if err != nil {
		return fmt.Errorf("invalid inference URL: %w", err)
	}
	u.Path = "/health"
	u.RawQuery = ""

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("inference service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("inference service unhealthy: %d", resp.StatusCode)
	}
	return nil
}
