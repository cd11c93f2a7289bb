package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"clockledger/internal/bot"
	"clockledger/internal/config"
	apphttp "clockledger/internal/http"
	"clockledger/internal/report"
	"clockledger/internal/repository"
	"clockledger/internal/repository/memory"
	mongostore "clockledger/internal/repository/mongo"
	"clockledger/internal/repository/sqlite"
	"clockledger/internal/router"
	"clockledger/internal/service"
	"clockledger/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		logger.Fatalf("telegram bot token is required")
	}
	if strings.TrimSpace(cfg.Auth.LinkSecret) == "" {
		logger.Fatalf("evidence link secret is required")
	}
	adminIDs, err := cfg.AdminIDList()
	if err != nil {
		logger.Fatalf("parse admin ids: %v", err)
	}

	loc, err := time.LoadLocation(cfg.Payroll.Timezone)
	if err != nil {
		logger.Fatalf("load timezone %s: %v", cfg.Payroll.Timezone, err)
	}
	defaultSalary, err := decimal.NewFromString(cfg.Payroll.MonthlySalary)
	if err != nil {
		logger.Fatalf("parse default salary: %v", err)
	}
	payroll := service.Payroll{
		DefaultMonthlySalary: defaultSalary,
		WorkingDaysPerMonth:  cfg.Payroll.WorkingDays,
		WorkingHoursPerDay:   cfg.Payroll.WorkingHours,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	durable, err := buildDurableStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("setup ledger store: %v", err)
	}
	defer durable.Close()

	var live *repository.Switching
	if cfg.Ledger.Bootstrap {
		logger.Info("starting on in-memory bootstrap store, run /migrate to flush")
		live = repository.NewSwitching(memory.NewStore())
	} else {
		live = repository.NewSwitching(durable)
	}

	deps := &service.Deps{
		Store:   live,
		Log:     logger,
		Timeout: time.Duration(cfg.Ledger.TimeoutSeconds) * time.Second,
	}

	clockSvc := service.NewClockService(deps, payroll, loc)
	accountSvc := service.NewAccountService(deps, payroll)
	exportSvc := service.NewExportService(deps, live, durable)

	storageSvc, err := buildStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup storage: %v", err)
	}
	claimSvc := service.NewClaimService(deps, storageSvc)

	deduper := buildDeduper(cfg, logger)
	disp := router.New(logger, deduper)

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatalf("connect telegram: %v", err)
	}
	logger.Infof("authorized as @%s", api.Self.UserName)

	signer := apphttp.NewLinkSigner(cfg.Auth.LinkSecret, time.Duration(cfg.Auth.LinkTTLMinutes)*time.Minute)
	handler := apphttp.NewHandler(storageSvc, signer, logger)

	builder := report.NewBuilder(live, payroll, loc)
	renderer := report.NewPDFRenderer()

	var tgBot *bot.Bot
	reports := report.NewManager(report.Config{
		MaxConcurrent: cfg.Report.MaxConcurrent,
		KeyPrefix:     cfg.Storage.KeyPrefix + "/reports",
		Logger:        logger,
	}, builder, renderer, storageSvc, func(res report.Result) {
		tgBot.SendReport(res)
	})
	if err := reports.Start(ctx); err != nil {
		logger.Fatalf("start report manager: %v", err)
	}

	tgBot = bot.New(bot.Options{
		API:      api,
		Router:   disp,
		Accounts: accountSvc,
		Clock:    clockSvc,
		Claims:   claimSvc,
		Exports:  exportSvc,
		Reports:  reports,
		AdminIDs: adminIDs,
		Linker: func(key string) (string, error) {
			return handler.EvidenceURL(cfg.Server.BaseURL, key)
		},
		Logger: logger,
	})

	switch cfg.Telegram.Mode {
	case "webhook":
		handler.EnableWebhook(cfg.Telegram.WebhookSecret, func(update tgbotapi.Update) {
			go tgBot.HandleUpdate(ctx, update)
		})
		params := tgbotapi.Params{"url": cfg.Telegram.WebhookURL}
		if cfg.Telegram.WebhookSecret != "" {
			params["secret_token"] = cfg.Telegram.WebhookSecret
		}
		if _, err := api.MakeRequest("setWebhook", params); err != nil {
			logger.Fatalf("set webhook: %v", err)
		}
		logger.Infof("webhook registered at %s", cfg.Telegram.WebhookURL)
	default:
		if _, err := api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			logger.Warnf("delete webhook: %v", err)
		}
		go tgBot.Run(ctx)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	handler.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}
	reports.Shutdown()

	logger.Info("bye")
}

func buildDurableStore(ctx context.Context, cfg config.Config) (repository.Store, error) {
	switch cfg.Ledger.Driver {
	case "mongo":
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		store := mongostore.NewStore(client, cfg.Mongo.Database)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init mongo store: %w", err)
		}
		return store, nil
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, err
		}
		store := sqlite.NewStore(db)
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Ledger.Driver)
	}
}

func buildStorage(ctx context.Context, cfg config.Config, logger *logrus.Logger) (storage.Service, error) {
	if cfg.Storage.Bucket == "" {
		return nil, fmt.Errorf("storage bucket is required")
	}

	client, err := storage.NewClient(ctx, storage.ClientOptions{
		Region:   cfg.Storage.Region,
		Endpoint: cfg.Storage.Endpoint,
		Profile:  cfg.AWS.Profile,
	})
	if err != nil {
		return nil, err
	}

	logger.Infof("using s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return storage.NewS3Service(client, cfg.Storage.Bucket)
}

func buildDeduper(cfg config.Config, logger *logrus.Logger) router.Deduper {
	if cfg.Redis.Addr == "" {
		logger.Info("redis not configured, using in-memory dedup")
		return router.NewMemoryDeduper(0)
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	logger.Infof("using redis dedup at %s", cfg.Redis.Addr)
	return router.NewRedisDeduper(client, 0)
}
