package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// yoloTensor lays out anchors column-wise as the network does:
// row r holds attribute r of every anchor.
func yoloTensor(numClasses int, anchors [][]float32) []float32 {
	attrs := 4 + numClasses
	data := make([]float32, attrs*len(anchors))
	for col, a := range anchors {
		for row := 0; row < attrs; row++ {
			data[row*len(anchors)+col] = a[row]
		}
	}
	return data
}

func TestDecodeYOLOOutput(t *testing.T) {
	// 1280x320 fits 640x640 at scale 0.5 as 640x160 with 240px bands
	// above and below.
	data := yoloTensor(3, [][]float32{
		{320, 320, 64, 128, 0.10, 0.85, 0.20}, // class 1, inside the scaled image
		{10, 10, 40, 40, 0.05, 0.02, 0.01},    // under score threshold
		{630, 245, 40, 20, 0.60, 0.10, 0.30},  // clipped at the right and top edges
	})

	dets, err := DecodeYOLOOutput(data, 7, 3, DecodeOptions{
		InputWidth: 640, InputHeight: 640,
		ImageWidth: 1280, ImageHeight: 320,
		ScoreThreshold: 0.25,
	})
	require.NoError(t, err)
	require.Len(t, dets, 2)

	assert.Equal(t, 1, dets[0].ClassID)
	assert.Equal(t, "bicycle", dets[0].Label)
	assert.InDelta(t, 0.85, dets[0].Confidence, 1e-6)
	assert.InDeltaSlice(t, []float64{576, 32, 704, 288}, dets[0].Box[:], 1e-3)

	assert.Equal(t, 0, dets[1].ClassID)
	assert.InDeltaSlice(t, []float64{1220, 0, 1280, 30}, dets[1].Box[:], 1e-3)
}

func TestNewLetterbox(t *testing.T) {
	tests := []struct {
		name       string
		imgW, imgH int
		want       Letterbox
	}{
		{"wide", 1280, 320, Letterbox{Scale: 0.5, Width: 640, Height: 160, Left: 0, Top: 240}},
		{"tall", 300, 600, Letterbox{Scale: 640.0 / 600.0, Width: 320, Height: 640, Left: 160, Top: 0}},
		{"square", 640, 640, Letterbox{Scale: 1, Width: 640, Height: 640}},
		{"small", 320, 320, Letterbox{Scale: 2, Width: 640, Height: 640}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewLetterbox(tt.imgW, tt.imgH, 640, 640)
			assert.InDelta(t, tt.want.Scale, got.Scale, 1e-9)
			got.Scale = tt.want.Scale
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeYOLOOutput_ShapeErrors(t *testing.T) {
	opts := DecodeOptions{InputWidth: 640, InputHeight: 640, ImageWidth: 10, ImageHeight: 10}

	_, err := DecodeYOLOOutput(make([]float32, 12), 4, 3, opts)
	assert.Error(t, err)

	_, err = DecodeYOLOOutput(make([]float32, 10), 5, 3, opts)
	assert.Error(t, err)

	_, err = DecodeYOLOOutput(make([]float32, 15), 5, 3, DecodeOptions{})
	assert.Error(t, err)

	_, err = DecodeYOLOOutput(make([]float32, 15), 5, 3, DecodeOptions{InputWidth: 640, InputHeight: 640})
	assert.Error(t, err)
}

func TestClassLabel(t *testing.T) {
	assert.Equal(t, 80, NumClasses)
	assert.Equal(t, "person", ClassLabel(0))
	assert.Equal(t, "toothbrush", ClassLabel(79))
	assert.Equal(t, "class_80", ClassLabel(80))
	assert.Equal(t, "class_-1", ClassLabel(-1))
}
