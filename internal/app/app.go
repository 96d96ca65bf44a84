package app

import (
	"context"
	"database/sql"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"plugmon/internal/cache"
	"plugmon/internal/config"
	"plugmon/internal/db"
	"plugmon/internal/hub"
	httpserver "plugmon/internal/http"
	"plugmon/internal/http/handlers"
	"plugmon/internal/metrics"
	"plugmon/internal/poller"
	"plugmon/internal/redisdb"
	"plugmon/internal/repository"
	"plugmon/internal/service"
	"plugmon/internal/tuya"
	"plugmon/internal/ws"
)

// App wires plugmon dependencies.
type App struct {
	server *httpserver.Server
	poller *poller.Poller
	db     *sql.DB
	redis  *redis.Client
	logger *zap.Logger
}

// New constructs application components. Redis is optional: without an address
// the latest-reading cache is simply disabled.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	var (
		redisClient *redis.Client
		latestStore *cache.LatestStore
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = redisdb.NewClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		latestStore = cache.NewLatestStore(redisClient, 3*cfg.PollInterval())
	} else {
		logger.Info("redis not configured, latest-reading cache disabled")
	}

	metrics.Register()

	tuyaClient := tuya.NewClient(cfg.Tuya.ClientID, cfg.Tuya.Secret, cfg.Tuya.BaseURL, cfg.Tuya.DeviceID, logger)
	telemetryRepo := repository.NewTelemetryRepository(sqlDB)
	broadcastHub := hub.NewHub(logger)

	chartsService := service.NewChartsService(telemetryRepo, logger)
	consumptionService := service.NewConsumptionService(telemetryRepo, cfg.Consumption.RatePerKWh, logger)
	controlService := service.NewControlService(tuyaClient, logger)

	var pollerLatest poller.LatestStore
	if latestStore != nil {
		pollerLatest = latestStore
	}
	telemetryPoller := poller.New(tuyaClient, telemetryRepo, broadcastHub, pollerLatest, poller.Config{
		Interval:         cfg.PollInterval(),
		FailureThreshold: cfg.Poller.FailureThreshold,
		RestartDelay:     cfg.RestartDelay(),
	}, logger)

	wsServer := ws.NewServer(broadcastHub, logger)
	switchHandler := handlers.NewSwitchHandler(controlService, logger)
	chartsHandler := handlers.NewChartsHandler(chartsService, consumptionService, cfg.DefaultTimezone, logger)

	routes := httpserver.Routes{
		Switch:           switchHandler.HandleSwitch,
		SwitchStatus:     switchHandler.HandleSwitchStatus,
		MainChart:        chartsHandler.HandleMainChart,
		TodayConsumption: chartsHandler.HandleTodayConsumption,
		Current:          handlers.NewCurrentHandler(latestStore, logger),
		WS:               wsServer.HandleWS,
		Health:           handlers.NewHealthHandler(),
		Metrics:          promhttp.Handler(),
	}

	router := httpserver.NewRouter(routes)
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server: server,
		poller: telemetryPoller,
		db:     sqlDB,
		redis:  redisClient,
		logger: logger,
	}, nil
}

// Run starts the poll loop and serves HTTP until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	go a.poller.Run(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
