package ai

import (
	"fmt"
	"math"
)

// DecodeOptions describes how raw YOLO output maps back onto the image.
type DecodeOptions struct {
	InputWidth, InputHeight int // network input size
	ImageWidth, ImageHeight int // original image size
	ScoreThreshold          float64
}

// Letterbox is the geometry of an image scaled to fit the network input
// with its aspect ratio kept and the remainder padded evenly.
type Letterbox struct {
	Scale         float64
	Width, Height int // scaled image size
	Left, Top     int // padding before the scaled image
}

// NewLetterbox fits an imgW x imgH image into an inW x inH input.
func NewLetterbox(imgW, imgH, inW, inH int) Letterbox {
	scale := math.Min(float64(inW)/float64(imgW), float64(inH)/float64(imgH))
	w := min(int(math.Round(float64(imgW)*scale)), inW)
	h := min(int(math.Round(float64(imgH)*scale)), inH)
	return Letterbox{
		Scale:  scale,
		Width:  w,
		Height: h,
		Left:   (inW - w) / 2,
		Top:    (inH - h) / 2,
	}
}

// toImage maps a network input coordinate back onto the original image.
func (l Letterbox) toImage(x, y float64) (float64, float64) {
	return (x - float64(l.Left)) / l.Scale, (y - float64(l.Top)) / l.Scale
}

// DecodeYOLOOutput converts a YOLOv8 output tensor of shape
// [1, attrs, anchors] into candidate detections. Each anchor column holds
// cx, cy, w, h followed by one score per class. The input is assumed to be
// letterboxed; boxes are mapped back to the original image and clipped to
// its bounds. The result is not yet
// suppressed.
func DecodeYOLOOutput(data []float32, attrs, anchors int, opts DecodeOptions) ([]RawDetection, error) {
	if attrs <= 4 || anchors <= 0 {
		return nil, fmt.Errorf("unexpected output shape [1, %d, %d]", attrs, anchors)
	}
	if len(data) != attrs*anchors {
		return nil, fmt.Errorf("output holds %d values, shape [1, %d, %d] needs %d", len(data), attrs, anchors, attrs*anchors)
	}
	if opts.InputWidth <= 0 || opts.InputHeight <= 0 {
		return nil, fmt.Errorf("invalid network input size %dx%d", opts.InputWidth, opts.InputHeight)
	}

	if opts.ImageWidth <= 0 || opts.ImageHeight <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", opts.ImageWidth, opts.ImageHeight)
	}

	lb := NewLetterbox(opts.ImageWidth, opts.ImageHeight, opts.InputWidth, opts.InputHeight)
	maxX, maxY := float64(opts.ImageWidth), float64(opts.ImageHeight)
	at := func(row, col int) float64 { return float64(data[row*anchors+col]) }

	var out []RawDetection
	for i := 0; i < anchors; i++ {
		classID, score := -1, 0.0
		for c := 0; c < attrs-4; c++ {
			if s := at(4+c, i); s > score {
				classID, score = c, s
			}
		}
		if classID < 0 || score < opts.ScoreThreshold {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		x1, y1 := lb.toImage(cx-w/2, cy-h/2)
		x2, y2 := lb.toImage(cx+w/2, cy+h/2)
		out = append(out, RawDetection{
			ClassID:    classID,
			Label:      ClassLabel(classID),
			Confidence: score,
			Box: [4]float64{
				clamp(x1, maxX), clamp(y1, maxY),
				clamp(x2, maxX), clamp(y2, maxY),
			},
		})
	}
	return out, nil
}

func clamp(v, upper float64) float64 {
	if v < 0 {
		return 0
	}
	if v > upper {
		return upper
	}
	return v
}
