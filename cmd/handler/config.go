package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/target-san/demo-webserver/pkg/config"
	"github.com/target-san/demo-webserver/pkg/logger"
)

var configManager *config.ConfigManager

func SetConfigManager(cm *config.ConfigManager) {
	configManager = cm
}

func GetConfig(w http.ResponseWriter, r *http.Request) {
	if configManager == nil {
		http.Error(w, "Configuration manager not initialized", http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, configManager.Get())
}

func CheckFeature(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())
	feature := mux.Vars(r)["feature"]

	if configManager == nil {
		http.Error(w, "Configuration manager not initialized", http.StatusInternalServerError)
		return
	}

	var enabled bool
	cfg := configManager.GetFeatures()
	switch feature {
	case "profiling":
		enabled = cfg.EnableProfiling
	case "tracing":
		enabled = cfg.EnableTracing
	case "metrics":
		enabled = cfg.EnableMetrics
	case "debug":
		enabled = cfg.EnableDebugLogging
	default:
		enabled = configManager.IsFeatureEnabled(feature)
	}

	log.Info().
		Str("feature", feature).
		Bool("enabled", enabled).
		Msg("Feature flag checked")

	writeJSON(w, r, map[string]interface{}{
		"feature": feature,
		"enabled": enabled,
	})
}
