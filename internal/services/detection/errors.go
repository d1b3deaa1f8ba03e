package detection

import "errors"

// Error kinds returned by Detect. Handlers classify with errors.Is.
var (
	// ErrInvalidInput is returned when the upload is not declared as an image.
	ErrInvalidInput = errors.New("file must be an image")
	// ErrDecode is returned when the upload bytes are not a decodable image.
	ErrDecode = errors.New("could not decode image")
	// ErrModelUnavailable is returned when no detection model is loaded.
	ErrModelUnavailable = errors.New("model not loaded")
	// ErrDetectionFailed wraps any other failure of the pipeline.
	ErrDetectionFailed = errors.New("detection failed")
)
