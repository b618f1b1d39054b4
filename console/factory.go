package console

import (
	"context"

	"github.com/mmdatafocus/kitchen_admin/config"
	"github.com/mmdatafocus/kitchen_admin/edo"
	"github.com/mmdatafocus/kitchen_admin/models"
	"github.com/mmdatafocus/kitchen_admin/utils"
)

// NewControllerFactory wires sessions to the backend and whichever infrastructure is connected
// at the moment the session opens.
func NewControllerFactory(backend edo.Backend) ControllerFactory {
	return func(ctx context.Context, sessionId string) *edo.Controller {
		return edo.NewController(edo.NewSession(backend, SessionOptions(sessionId)))
	}
}

func SessionOptions(sessionId string) edo.Options {
	opts := edo.Options{
		SessionId:           sessionId,
		Logger:              config.GetLogger(),
		Threshold:           config.EdoAutoMatchThreshold(edo.AutoMatchThreshold),
		DisableDemoFallback: !config.EdoDemoFallbackEnabled(),
		WarehouseId:         config.EdoWarehouseId(),
	}
	if config.GetRedisDB() != nil {
		opts.Locker = edo.RedisLocker{}
		opts.Cache = edo.RedisCatalogCache{TTL: config.EdoCatalogCacheTTL()}
	}
	if utils.GCSConfigured() {
		opts.Archive = edo.GCSArchive{}
	}
	if db := config.GetDB(); db != nil {
		opts.Journal = models.NewGormJournal(db)
		opts.Events = models.NewGormEventSink(db)
	}
	return opts
}
