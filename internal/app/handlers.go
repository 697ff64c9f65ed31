package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/artforge-backend/internal/http/handlers"
	"github.com/yungbote/artforge-backend/internal/platform/logger"
	"github.com/yungbote/artforge-backend/internal/realtime"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Generation *httpH.GenerationHandler
	Preference *httpH.PreferenceHandler
	Realtime   *httpH.RealtimeHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, clients Clients, services Services, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(healthChecks(db, clients)),
		Generation: httpH.NewGenerationHandler(services.Runner, log),
		Preference: httpH.NewPreferenceHandler(services.Preferences),
		Realtime:   httpH.NewRealtimeHandler(hub, log),
	}
}

func healthChecks(db *gorm.DB, clients Clients) map[string]httpH.Pinger {
	checks := map[string]httpH.Pinger{}
	if db != nil {
		checks["database"] = func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}
	}
	if clients.Bus != nil {
		rdb := clients.Bus.Client()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if h, ok := clients.ObjectStore.(interface{ Health(context.Context) error }); ok {
		checks["storage"] = h.Health
	}
	return checks
}
