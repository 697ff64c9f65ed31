package app

import (
	"github.com/yungbote/artforge-backend/internal/config"
	"github.com/yungbote/artforge-backend/internal/http"
	"github.com/yungbote/artforge-backend/internal/observability"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
)

func wireServer(log *logger.Logger, cfg *config.Config, metrics *observability.Metrics, handlers Handlers) *http.Server {
	rc := http.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		GenerationHandler: handlers.Generation,
		PreferenceHandler: handlers.Preference,
		RealtimeHandler:   handlers.Realtime,
		HealthHandler:     handlers.Health,
	}
	if cfg.Otel.Enabled {
		rc.ServiceName = cfg.ServiceName
	}
	if cfg.Storage.Backend == "local" {
		rc.ObjectsDir = cfg.Storage.LocalPath
	}
	return http.NewServer(rc)
}
