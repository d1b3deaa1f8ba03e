package app

import (
	"imagedetect/internal/config"
	"imagedetect/internal/logger"
	"imagedetect/internal/services/ai"
	"imagedetect/internal/services/ai/yolo"
)

// ModelVariants returns the primary and fallback variants for cfg. With an
// inference URL the remote service is primary and the local model file the
// fallback.
func ModelVariants(cfg *config.Config) (primary, fallback ai.Variant) {
	local := ai.Variant{Name: cfg.ModelPath, Load: yolo.Loader(cfg.ModelPath)}
	if cfg.InferenceURL != "" {
		return ai.Variant{Name: cfg.InferenceURL, Load: ai.LoadRemote(cfg.InferenceURL, nil)}, local
	}
	return local, ai.Variant{Name: cfg.FallbackModelPath, Load: yolo.Loader(cfg.FallbackModelPath)}
}

// LoadModel loads the primary variant or, failing that, the fallback.
func LoadModel(cfg *config.Config, log *logger.Logger) (ai.Model, error) {
	primary, fallback := ModelVariants(cfg)
	return ai.LoadWithFallback(primary, fallback, log)
}
