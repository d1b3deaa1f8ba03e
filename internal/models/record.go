package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// DetectionRecord is the persisted summary of one /detect request.
type DetectionRecord struct {
	ID           uint       `gorm:"primaryKey;autoIncrement;index" json:"id"`
	Filename     string     `gorm:"type:varchar(255);not null" json:"filename"`
	Detections   Detections `gorm:"serializer:json;type:json;not null" json:"detections"`
	TotalObjects int        `gorm:"not null" json:"total_objects"`
	Timestamp    time.Time  `gorm:"index" json:"timestamp"`
}

// TableName explicitly sets the table name for GORM.
func (DetectionRecord) TableName() string {
	return "detection_results"
}

// NewDetectionRecord builds a record whose TotalObjects matches its detections.
func NewDetectionRecord(filename string, detections Detections, ts time.Time) *DetectionRecord {
	if detections == nil {
		detections = Detections{}
	}
	return &DetectionRecord{
		Filename:     filename,
		Detections:   detections,
		TotalObjects: len(detections),
		Timestamp:    ts,
	}
}

// BeforeCreate fills in the timestamp and refuses records whose count drifted.
func (r *DetectionRecord) BeforeCreate(*gorm.DB) error {
	if r.Detections == nil {
		r.Detections = Detections{}
	}
	if r.TotalObjects != len(r.Detections) {
		return fmt.Errorf("total_objects %d does not match %d detections", r.TotalObjects, len(r.Detections))
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	return nil
}

// ToMap serializes the record to the plain mapping returned by the listing
// endpoint.
func (r *DetectionRecord) ToMap() map[string]any {
	var ts any
	if !r.Timestamp.IsZero() {
		ts = FormatTimestamp(r.Timestamp)
	}
	detections := r.Detections
	if detections == nil {
		detections = Detections{}
	}
	return map[string]any{
		"id":            r.ID,
		"filename":      r.Filename,
		"detections":    detections,
		"total_objects": r.TotalObjects,
		"timestamp":     ts,
	}
}

// FormatTimestamp renders t as ISO-8601 with fractional seconds.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}
