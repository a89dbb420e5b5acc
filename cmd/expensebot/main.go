package main

import (
	"context"
	"os"

	"golang.org/x/sync/errgroup"

	"expensebot/internal/access"
	"expensebot/internal/amqp"
	"expensebot/internal/backend"
	"expensebot/internal/bot"
	"expensebot/internal/cache"
	"expensebot/internal/cli"
	"expensebot/internal/config"
	"expensebot/internal/gateway/discord"
	"expensebot/internal/gateway/telegram"
	apphttp "expensebot/internal/http"
	"expensebot/internal/ledger"
	"expensebot/internal/log"
	"expensebot/internal/metrics"
	"expensebot/internal/sheets"
)

type runner interface {
	Run(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.ShutdownContext(logger)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Expense bot stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Expense bot stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	level := log.ParseLevel(cfg.LogLevel)
	component := func(name string) *log.Logger {
		return log.New(log.Config{Level: level, Component: name})
	}

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(component(log.ComponentStorage))

	res, err := factory.CreateBackend(ctx, bcfg)
	if err != nil {
		return err
	}
	if res.Cleanup != nil {
		defer res.Cleanup()
	}

	store, err := factory.CreateAccessStore(ctx, bcfg)
	if err != nil {
		return err
	}
	if store.Cleanup != nil {
		defer store.Cleanup()
	}

	m := metrics.New()
	manager := ledger.NewManager(res.Backend,
		ledger.WithLogger(component(log.ComponentLedger)),
		ledger.WithDefaultTarget(cfg.Target()))

	svcOpts := []ledger.ServiceOption{ledger.WithDefaultLedger(cfg.GoogleSheetName)}
	if cfg.AMQPURL != "" {
		publisher, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPRoutingPrefix, component(log.ComponentAMQP))
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
		} else {
			defer publisher.Close()
			svcOpts = append(svcOpts, ledger.WithEvents(publisher))
			logger.Info("Publishing ledger events", "exchange", cfg.AMQPExchange)
		}
	}
	ledgers := ledger.NewService(manager, svcOpts...)

	// Stop before accepting commands if the default ledger cannot be prepared.
	name, initRes, err := ledgers.InitDefault(ctx)
	if err != nil {
		if sheets.IsCredentialError(err) {
			logger.Error("Spreadsheet credentials rejected", log.FieldLedger, name, log.FieldError, err)
		}
		return err
	}
	m.Warnings(log.OpStartup, len(initRes.Warnings))
	logger.Info("Default ledger ready", log.FieldLedger, name,
		"created", initRes.Created,
		"repaired", initRes.Repaired,
		"warnings", len(initRes.Warnings))

	acl := access.NewLedger(ctx, store.Store, cfg.AdminUserID, component(log.ComponentAccess))
	if !acl.HasAdmin() {
		logger.Warn("ADMIN_USER_ID not set, admin commands are disabled")
	}

	pending := cache.NewArena[bot.Pending](cfg.PendingMax, cfg.PendingTTL)
	handler := bot.New(ledgers, acl,
		bot.WithPendingArena(pending),
		bot.WithMetrics(m),
		bot.WithLogger(component(log.ComponentBot)),
		bot.WithDefaultTarget(cfg.Target()))

	var gw runner
	switch cfg.Gateway {
	case config.GatewayDiscord:
		gw, err = discord.New(cfg.DiscordBotToken, cfg.DiscordChannelID, handler, component(log.ComponentGateway))
	default:
		gw, err = telegram.New(cfg.TelegramBotToken, handler, component(log.ComponentGateway))
	}
	if err != nil {
		return err
	}

	sweeper := cache.NewSweeper(component(log.ComponentCache))
	sweeper.Register(pending)
	sweeper.OnSweep = func(removed int) {
		m.PendingExpired(removed)
		m.SetPending(pending.Size())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx, cfg.PendingSweepInterval) })
	if cfg.OpsPort != "" {
		srv := apphttp.NewServer(":"+cfg.OpsPort, apphttp.Options{
			Logger:  component(log.ComponentHTTP),
			Metrics: m,
			Ready:   ledgers.Ping,
			Status: func(ctx context.Context) (any, error) {
				return ledgers.Status(ctx)
			},
		})
		g.Go(func() error { return srv.Run(gctx) })
	}

	logger.Info("Expense bot started", "gateway", cfg.Gateway, "backend", cfg.DataBackend, "access_store", cfg.AccessStore)
	return g.Wait()
}
