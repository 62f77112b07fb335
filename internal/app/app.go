package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/Lina3386/moliya-bot/internal/client"
	"github.com/Lina3386/moliya-bot/internal/closer"
	"github.com/Lina3386/moliya-bot/internal/config"
)

const configPath = ".env"

type App struct {
	serviceProvider *ServiceProvider
	telegram        *client.TelegramClient
}

func NewApp(ctx context.Context) (*App, error) {
	a := &App{}

	err := a.initDeps(ctx)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// Run polls until SIGINT or SIGTERM, then shuts everything down in reverse
// order: ops endpoint, scheduler, dispatcher, telegram client, store.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := closer.CloseAll(); err != nil {
			a.serviceProvider.Logger().WithError(err).Error("shutdown finished with errors")
		}
		closer.Wait()
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.runTelegramBot(ctx)
}

func (a *App) initDeps(ctx context.Context) error {
	inits := []func(context.Context) error{
		a.initConfig,
		a.initServiceProvider,
		a.initStore,
		a.initTelegramBot,
		a.initDispatcher,
		a.initScheduler,
		a.initOpsServer,
	}

	for _, f := range inits {
		err := f(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *App) initConfig(context.Context) error {
	return config.Load(configPath)
}

func (a *App) initServiceProvider(context.Context) error {
	a.serviceProvider = NewServiceProvider()
	return nil
}

func (a *App) initStore(ctx context.Context) error {
	return a.serviceProvider.FinanceService(ctx).Ping(ctx)
}

func (a *App) initTelegramBot(ctx context.Context) error {
	tg, err := a.serviceProvider.TelegramClient(ctx)
	if err != nil {
		return err
	}
	a.telegram = tg
	return nil
}

func (a *App) initDispatcher(ctx context.Context) error {
	a.serviceProvider.Dispatcher(ctx)
	return nil
}

func (a *App) initScheduler(ctx context.Context) error {
	scheduler := a.serviceProvider.Scheduler(ctx)
	// registered after the dispatcher so cron stops before the queues drain
	closer.Add(scheduler.Stop)
	// jobs that are running at shutdown get to finish
	return scheduler.Start(context.WithoutCancel(ctx))
}

func (a *App) initOpsServer(ctx context.Context) error {
	if srv := a.serviceProvider.OpsServer(ctx); srv != nil {
		srv.Start()
	}
	return nil
}

func (a *App) runTelegramBot(ctx context.Context) error {
	log := a.serviceProvider.Logger()
	dispatcher := a.serviceProvider.Dispatcher(ctx)
	// queued updates are drained after the signal, so they must not inherit its cancellation
	handleCtx := context.WithoutCancel(ctx)

	log.Info("🤖 Bot is running... (Press Ctrl+C to stop)")
	for update := range a.telegram.Updates(ctx) {
		log.WithFields(logrus.Fields{"user_id": update.UserID, "chat_id": update.ChatID}).Debug("📨 update received")
		dispatcher.Dispatch(handleCtx, update)
	}

	log.Info("⏹️ Shutting down gracefully...")
	return nil
}
