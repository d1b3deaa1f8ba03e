// Package annotate draws detection boxes onto images and encodes the result
// for transport.
package annotate

import (
	"encoding/base64"
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"imagedetect/internal/models"
)

const (
	lineThickness = 2
	labelOffsetY  = 10
	fontScale     = 0.5
	jpegQuality   = 95
)

// BoxColor is the color of boxes and labels.
var BoxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

// Draw outlines every detection on mat and writes a "<class>: <confidence>"
// label above it. mat is modified in place.
func Draw(mat *gocv.Mat, detections models.Detections) error {
	for _, det := range detections {
		x1, y1 := int(det.BBox[0]), int(det.BBox[1])
		x2, y2 := int(det.BBox[2]), int(det.BBox[3])

		if err := gocv.Rectangle(mat, image.Rect(x1, y1, x2, y2), BoxColor, lineThickness); err != nil {
			return fmt.Errorf("failed to draw rectangle: %w", err)
		}

		pt := image.Pt(x1, y1-labelOffsetY)
		if err := gocv.PutText(mat, Label(det), pt, gocv.FontHersheySimplex, fontScale, BoxColor, lineThickness); err != nil {
			return fmt.Errorf("failed to draw text: %w", err)
		}
	}
	return nil
}

// Label formats the text drawn above a box.
func Label(det models.Detection) string {
	return fmt.Sprintf("%s: %.2f", det.Class, det.Confidence)
}

// Annotate converts img to a BGR Mat, draws detections on it and returns
// the JPEG bytes. img itself is never modified; with no detections the
// image is re-encoded unchanged.
func Annotate(img image.Image, detections models.Detections) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	if err := Draw(&mat, detections); err != nil {
		return nil, err
	}
	return EncodeJPEG(mat)
}

// EncodeJPEG encodes mat as JPEG.
func EncodeJPEG(mat gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, mat, []int{gocv.IMWriteJpegQuality, jpegQuality})
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// EncodeBase64JPEG annotates img and returns the JPEG as standard base64 text.
func EncodeBase64JPEG(img image.Image, detections models.Detections) (string, error) {
	raw, err := Annotate(img, detections)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
