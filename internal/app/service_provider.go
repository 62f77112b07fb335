package app

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/client"
	"github.com/Lina3386/moliya-bot/internal/client/db"
	"github.com/Lina3386/moliya-bot/internal/client/db/sqlite"
	"github.com/Lina3386/moliya-bot/internal/closer"
	"github.com/Lina3386/moliya-bot/internal/config"
	"github.com/Lina3386/moliya-bot/internal/config/env"
	"github.com/Lina3386/moliya-bot/internal/handlers"
	"github.com/Lina3386/moliya-bot/internal/httpserver"
	"github.com/Lina3386/moliya-bot/internal/i18n"
	"github.com/Lina3386/moliya-bot/internal/logger"
	"github.com/Lina3386/moliya-bot/internal/services"
	"github.com/Lina3386/moliya-bot/internal/state"
)

type ServiceProvider struct {
	appConfig    config.AppConfig
	dbConfig     config.DBConfig
	botConfig    config.BotConfig
	adminConfig  config.AdminConfig
	adviceConfig config.AdviceConfig

	log *logrus.Logger

	dbClient db.Client

	// Services
	financeService *services.FinanceService
	broadcaster    *services.Broadcaster
	scheduler      *services.Scheduler

	// Clients
	telegramClient *client.TelegramClient
	adviceClient   *client.AdviceClient

	catalog *i18n.Catalog

	// Handlers
	botHandler *handlers.BotHandler
	dispatcher *handlers.Dispatcher

	// State
	stateManager *state.StateManager

	opsServer *httpserver.Server
}

func NewServiceProvider() *ServiceProvider {
	return &ServiceProvider{}
}

func (s *ServiceProvider) AppConfig() config.AppConfig {
	if s.appConfig == nil {
		appConfig, err := env.NewAppConfig()
		if err != nil {
			// the process logger depends on this config
			logrus.Fatalf("failed to get app config: %v", err)
		}
		s.appConfig = appConfig
	}
	return s.appConfig
}

func (s *ServiceProvider) Logger() *logrus.Logger {
	if s.log == nil {
		s.log = logger.New(s.AppConfig().LogLevel())
	}
	return s.log
}

func (s *ServiceProvider) DBConfig() config.DBConfig {
	if s.dbConfig == nil {
		dbConfig, err := env.NewDBConfig()
		if err != nil {
			s.Logger().Fatalf("failed to get db config: %v", err)
		}
		s.dbConfig = dbConfig
	}
	return s.dbConfig
}

func (s *ServiceProvider) BotConfig() config.BotConfig {
	if s.botConfig == nil {
		botConfig, err := env.NewBotConfig()
		if err != nil {
			s.Logger().Fatalf("failed to get bot config: %v", err)
		}
		s.botConfig = botConfig
	}
	return s.botConfig
}

func (s *ServiceProvider) AdminConfig() config.AdminConfig {
	if s.adminConfig == nil {
		adminConfig, err := env.NewAdminConfig()
		if err != nil {
			s.Logger().Fatalf("failed to get admin config: %v", err)
		}
		s.adminConfig = adminConfig
	}
	return s.adminConfig
}

func (s *ServiceProvider) AdviceConfig() config.AdviceConfig {
	if s.adviceConfig == nil {
		adviceConfig, err := env.NewAdviceConfig()
		if err != nil {
			s.Logger().Fatalf("failed to get advice config: %v", err)
		}
		s.adviceConfig = adviceConfig
	}
	return s.adviceConfig
}

func (s *ServiceProvider) DBClient(ctx context.Context) db.Client {
	if s.dbClient == nil {
		cl, err := sqlite.New(ctx, s.DBConfig().Path(), s.Logger())
		if err != nil {
			s.Logger().Fatalf("failed to get db client: %v", err)
		}
		s.Logger().WithField("path", s.DBConfig().Path()).Info("✅ ledger opened")

		closer.Add(func() error {
			return cl.Close()
		})
		s.dbClient = cl
	}
	return s.dbClient
}

func (s *ServiceProvider) FinanceService(ctx context.Context) *services.FinanceService {
	if s.financeService == nil {
		s.financeService = services.NewFinanceService(
			s.DBClient(ctx),
			s.AppConfig().Location(),
			s.Logger(),
		)
	}
	return s.financeService
}

func (s *ServiceProvider) Catalog() *i18n.Catalog {
	if s.catalog == nil {
		catalog, err := i18n.Load()
		if err != nil {
			s.Logger().Fatalf("failed to load locales: %v", err)
		}
		s.catalog = catalog
	}
	return s.catalog
}

func (s *ServiceProvider) StateManager() *state.StateManager {
	if s.stateManager == nil {
		s.stateManager = state.NewStateManager()
	}
	return s.stateManager
}

func (s *ServiceProvider) TelegramClient(_ context.Context) (*client.TelegramClient, error) {
	if s.telegramClient == nil {
		tg, err := client.NewTelegramClient(s.BotConfig().Token(), s.BotConfig().Debug(), s.Logger())
		if err != nil {
			return nil, err
		}
		closer.Add(tg.Close)
		s.telegramClient = tg
	}
	return s.telegramClient, nil
}

func (s *ServiceProvider) AdviceClient() *client.AdviceClient {
	if s.adviceClient == nil {
		cfg := s.AdviceConfig()
		if cfg.URL() == "" {
			s.Logger().Warn("⚠️ ADVICE_API_URL not set, AI answers will use the fallback text")
		}
		s.adviceClient = client.NewAdviceClient(cfg.URL(), cfg.Key(), cfg.Host(), s.Logger())
	}
	return s.adviceClient
}

func (s *ServiceProvider) Broadcaster(ctx context.Context) *services.Broadcaster {
	if s.broadcaster == nil {
		tg, err := s.TelegramClient(ctx)
		if err != nil {
			s.Logger().Fatalf("failed to get telegram client: %v", err)
		}
		s.broadcaster = services.NewBroadcaster(tg, s.FinanceService(ctx), s.Logger())
	}
	return s.broadcaster
}

func (s *ServiceProvider) Scheduler(ctx context.Context) *services.Scheduler {
	if s.scheduler == nil {
		s.scheduler = services.NewScheduler(
			s.FinanceService(ctx),
			s.Catalog(),
			s.Broadcaster(ctx),
			s.AppConfig().Location(),
			s.Logger(),
		)
	}
	return s.scheduler
}

func (s *ServiceProvider) BotHandler(ctx context.Context) *handlers.BotHandler {
	if s.botHandler == nil {
		tg, err := s.TelegramClient(ctx)
		if err != nil {
			s.Logger().Fatalf("failed to get telegram client: %v", err)
		}
		s.botHandler = handlers.NewBotHandler(
			tg,
			s.FinanceService(ctx),
			s.Catalog(),
			s.StateManager(),
			s.AdviceClient(),
			s.Scheduler(ctx),
			s.AdminConfig().AdminID(),
			s.Logger(),
		)
	}
	return s.botHandler
}

func (s *ServiceProvider) Dispatcher(ctx context.Context) *handlers.Dispatcher {
	if s.dispatcher == nil {
		s.dispatcher = handlers.NewDispatcher(s.BotHandler(ctx), s.Logger())
		closer.Add(s.dispatcher.Close)
	}
	return s.dispatcher
}

// OpsServer is nil when HTTP_ADDR is empty.
func (s *ServiceProvider) OpsServer(ctx context.Context) *httpserver.Server {
	if s.opsServer == nil && s.AppConfig().HTTPAddr() != "" {
		s.opsServer = httpserver.New(s.AppConfig().HTTPAddr(), s.FinanceService(ctx), s.Logger())
		closer.Add(func() error {
			return s.opsServer.Shutdown(context.Background())
		})
	}
	return s.opsServer
}
