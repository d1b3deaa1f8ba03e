package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"imagedetect/internal/logger"
	"imagedetect/internal/services/detection"
)

// UploadField is the multipart field carrying the image.
const UploadField = "file"

func RootHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"message": "Image Detection API is running!"})
	}
}

// HealthHandler reports liveness and whether a model is loaded. It stays
// 200 while the service runs degraded.
func HealthHandler(svc *detection.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":       "healthy",
			"model_loaded": svc.ModelLoaded(),
		})
	}
}

// DetectHandler runs the detection pipeline on the uploaded file.
func DetectHandler(svc *detection.Service, log *logger.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile(UploadField)
		if err != nil {
			// Model availability is reported before upload problems.
			if !svc.ModelLoaded() {
				return HandleError(c, log, detection.ErrModelUnavailable, "YOLO model is not loaded. Please check server logs.", http.StatusServiceUnavailable)
			}
			return HandleError(c, log, err, fmt.Sprintf("Missing multipart field %q", UploadField), http.StatusBadRequest)
		}

		src, err := fh.Open()
		if err != nil {
			return HandleError(c, log, err, "Could not read upload", http.StatusBadRequest)
		}
		defer src.Close()

		data, err := io.ReadAll(src)
		if err != nil {
			return HandleError(c, log, err, "Could not read upload", http.StatusBadRequest)
		}

		res, err := svc.Detect(c.Request().Context(), detection.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Data:        data,
		})
		if err != nil {
			return handleDetectError(c, log, err)
		}
		return c.JSON(http.StatusOK, res)
	}
}

func handleDetectError(c echo.Context, log *logger.Logger, err error) error {
	switch {
	case errors.Is(err, detection.ErrModelUnavailable):
		return HandleError(c, log, err, "YOLO model is not loaded. Please check server logs.", http.StatusServiceUnavailable)
	case errors.Is(err, detection.ErrInvalidInput):
		return HandleError(c, log, err, "File must be an image", http.StatusBadRequest)
	case errors.Is(err, detection.ErrDecode):
		return HandleError(c, log, err, "Could not decode image", http.StatusBadRequest)
	default:
		return HandleError(c, log, err, "Detection failed", http.StatusInternalServerError)
	}
}

// ListDetectionsHandler returns the 50 most recent detection records.
func ListDetectionsHandler(svc *detection.Service, log *logger.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		records, err := svc.ListRecent(c.Request().Context())
		if err != nil {
			return HandleError(c, log, err, "Failed to retrieve detections", http.StatusInternalServerError)
		}
		return c.JSON(http.StatusOK, map[string]any{"detections": records})
	}
}
