package ai

import (
	"errors"
	"fmt"

	"imagedetect/internal/logger"
)

// Variant is one loadable model candidate.
type Variant struct {
	Name string
	Load func() (Model, error)
}

// LoadWithFallback tries primary and, if it fails, fallback exactly once.
// When both fail the returned error wraps ErrNoModel and both causes; the
// caller is expected to continue without a model.
func LoadWithFallback(primary, fallback Variant, log *logger.Logger) (Model, error) {
	if log == nil {
		log = logger.NewNop()
	}

	m, primaryErr := loadVariant(primary)
	if primaryErr == nil {
		log.Info("Detection model %s loaded", primary.Name)
		return m, nil
	}
	log.Warning("Failed to load model %s: %v, trying fallback %s", primary.Name, primaryErr, fallback.Name)

	m, fallbackErr := loadVariant(fallback)
	if fallbackErr == nil {
		log.Info("Fallback detection model %s loaded", fallback.Name)
		return m, nil
	}
	log.Error("Failed to load fallback model %s: %v", fallback.Name, fallbackErr)

	return nil, fmt.Errorf("%w: %w", ErrNoModel, errors.Join(primaryErr, fallbackErr))
}

func loadVariant(v Variant) (Model, error) {
	if v.Load == nil {
		return nil, fmt.Errorf("model %s: no loader", v.Name)
	}
	m, err := v.Load()
	if err != nil {
		return nil, fmt.Errorf("model %s: %w", v.Name, err)
	}
	if m == nil {
		return nil, fmt.Errorf("model %s: loader returned no model", v.Name)
	}
	return m, nil
}
