package app

import (
	"context"
	"database/sql"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "github.com/remi-espie/AutoRenewPayByPhone/libs/db"
	libredis "github.com/remi-espie/AutoRenewPayByPhone/libs/redis"

	"github.com/remi-espie/AutoRenewPayByPhone/internal/auth"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/config"
	httpserver "github.com/remi-espie/AutoRenewPayByPhone/internal/http"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/http/handlers"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/http/middleware"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/paybyphone"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/renewal"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/repository"
	"github.com/remi-espie/AutoRenewPayByPhone/internal/ws"
)

// App wires the service dependency graph.
type App struct {
	server      *httpserver.Server
	service     *renewal.Service
	hub         *ws.Hub
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	var (
		db      *sql.DB
		history *repository.HistoryRepository
		err     error
	)
	if cfg.Database.DSN != "" {
		db, err = libdb.NewPostgresDB(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		history = repository.NewHistoryRepository(db)

		schemaCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := history.EnsureSchema(schemaCtx); err != nil {
			db.Close()
			return nil, err
		}
	}

	var (
		redisClient *redis.Client
		store       renewal.Store
	)
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, err
		}
		store = renewal.NewRedisStore(redisClient)
	} else {
		store = renewal.NewMemoryStore()
	}

	hub := ws.NewHub(logger)

	endpoints := paybyphone.Endpoints{
		ScriptURL: cfg.PayByPhone.ScriptURL,
		AuthURL:   cfg.PayByPhone.AuthURL,
		APIURL:    cfg.PayByPhone.APIURL,
	}
	probeMinutes := cfg.Parking.ProbeMinutes
	factory := func(account config.Account) renewal.Engine {
		return paybyphone.NewClient(
			paybyphone.Credentials{
				Plate:            account.Plate,
				Lot:              account.Lot,
				Login:            account.PayByPhone.Login,
				Password:         account.PayByPhone.Password,
				PaymentAccountID: account.PayByPhone.PaymentAccountID,
			},
			paybyphone.Options{Endpoints: endpoints, ProbeMinutes: probeMinutes},
			logger.With(zap.String("account", account.Name)),
		)
	}

	service := renewal.NewService(cfg.Accounts, factory, store, hub, history, cfg.SweepInterval(), logger)

	var tokens *auth.TokenService
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenService(cfg.Auth.JWTSecret, cfg.TokenTTL())
	}

	routes := httpserver.Routes{
		Health:    handlers.NewHealthHandler(),
		AuthToken: handlers.NewTokenHandler(cfg.Auth.PasswordHash, tokens),
		Accounts:  handlers.NewAccountsHandler(cfg.Accounts),
		Vehicles:  handlers.NewVehiclesHandler(service),
		Quote:     handlers.NewQuoteHandler(service),
		Park:      handlers.NewParkHandler(service),
		Check:     handlers.NewCheckHandler(service),
		Renewals:  handlers.NewRenewalsHandler(service),
		Events:    hub.ServeWS,
	}
	if history != nil {
		routes.History = handlers.NewHistoryHandler(history)
	}

	router := httpserver.NewRouter(routes, middleware.Auth(cfg.Auth.Bearer, tokens))
	server := httpserver.NewServer(cfg.HTTPAddress(), router, logger)

	return &App{
		server:      server,
		service:     service,
		hub:         hub,
		db:          db,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Run starts the event hub, the renewal sweep and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Run(ctx)
	go a.service.Run(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
