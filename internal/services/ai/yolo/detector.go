// Package yolo runs YOLOv8 ONNX models through the OpenCV DNN module.
package yolo

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"

	"gocv.io/x/gocv"

	"imagedetect/internal/services/ai"
)

const (
	inputSize      = 640
	scoreThreshold = 0.25 // candidate threshold before suppression
	nmsThreshold   = 0.7
	// classOffset separates boxes of different classes so suppression is
	// applied per class.
	classOffset = 7680
)

var padColor = color.RGBA{R: 114, G: 114, B: 114, A: 0}

// Detector is a loaded YOLOv8 network. An OpenCV Net is not safe for
// concurrent SetInput/Forward, so inference is serialized.
type Detector struct {
	net  gocv.Net
	name string
	mu   sync.Mutex
}

var _ ai.Model = (*Detector)(nil)

// Load reads the ONNX model at path.
func Load(path string) (*Detector, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", path)
	}

	net := gocv.ReadNetFromONNX(path)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", path)
	}
	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Detector{net: net, name: filepath.Base(path)}, nil
}

// Loader adapts Load to an ai.Variant loader.
func Loader(path string) func() (ai.Model, error) {
	return func() (ai.Model, error) {
		d, err := Load(path)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

// Name returns the model file name.
func (d *Detector) Name() string {
	return d.name
}

// Predict runs the network on the full image. The image is converted to
// BGR and letterboxed onto a gray square of the network input size.
func (d *Detector) Predict(ctx context.Context, img image.Image) ([]ai.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("converted image is empty")
	}

	input := letterbox(mat)
	defer input.Close()

	blob := gocv.BlobFromImage(
		input,
		1.0/255.0,
		image.Pt(inputSize, inputSize),
		gocv.NewScalar(0, 0, 0, 0),
		true,
		false,
	)
	defer blob.Close()

	output := d.forward(blob)
	defer output.Close()

	sizes := output.Size()
	if len(sizes) != 3 {
		return nil, fmt.Errorf("unexpected output dimensions %v", sizes)
	}
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read output: %w", err)
	}

	candidates, err := ai.DecodeYOLOOutput(data, sizes[1], sizes[2], ai.DecodeOptions{
		InputWidth:     inputSize,
		InputHeight:    inputSize,
		ImageWidth:     mat.Cols(),
		ImageHeight:    mat.Rows(),
		ScoreThreshold: scoreThreshold,
	})
	if err != nil {
		return nil, err
	}
	return suppress(candidates), nil
}

// letterbox scales mat to fit the network input and pads the rest with
// gray. The geometry matches ai.NewLetterbox, which maps boxes back.
func letterbox(mat gocv.Mat) gocv.Mat {
	lb := ai.NewLetterbox(mat.Cols(), mat.Rows(), inputSize, inputSize)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(lb.Width, lb.Height), 0, 0, gocv.InterpolationLinear)

	padded := gocv.NewMat()
	gocv.CopyMakeBorder(resized, &padded,
		lb.Top, inputSize-lb.Height-lb.Top,
		lb.Left, inputSize-lb.Width-lb.Left,
		gocv.BorderConstant, padColor)
	return padded
}

func (d *Detector) forward(blob gocv.Mat) gocv.Mat {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.net.SetInput(blob, "")
	return d.net.Forward("")
}

// suppress applies class-aware non-maximum suppression. The survivors are
// returned highest score first.
func suppress(candidates []ai.RawDetection) []ai.RawDetection {
	if len(candidates) == 0 {
		return nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		off := c.ClassID * classOffset
		boxes[i] = image.Rect(
			int(c.Box[0])+off, int(c.Box[1])+off,
			int(c.Box[2])+off, int(c.Box[3])+off,
		)
		scores[i] = float32(c.Confidence)
	}

	indices := gocv.NMSBoxes(boxes, scores, scoreThreshold, nmsThreshold)
	kept := make([]ai.RawDetection, 0, len(indices))
	for _, idx := range indices {
		kept = append(kept, candidates[idx])
	}
	return kept
}

// Close releases the network.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}
