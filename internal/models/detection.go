package models

// Detection represents one recognized object instance in an image.
type Detection struct {
	Class      string     `json:"class"`
	Confidence float64    `json:"confidence"`
	BBox       [4]float64 `json:"bbox"` // x1, y1, x2, y2 in pixels
}

// Detections is the ordered list stored as a JSON blob on a record.
type Detections []Detection

// Labels returns the class labels in order.
func (d Detections) Labels() []string {
	labels := make([]string, len(d))
	for i, det := range d {
		labels[i] = det.Class
	}
	return labels
}
