package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"charity-billing/internal/config"
	"charity-billing/internal/domain/model"
	payAdapters "charity-billing/internal/infra/adapters/payment"
	pg "charity-billing/internal/infra/db/postgres"
	"charity-billing/internal/infra/logging"
	"charity-billing/internal/infra/metrics"
	"charity-billing/internal/infra/notify"
	red "charity-billing/internal/infra/redis"
	"charity-billing/internal/infra/sched"
	"charity-billing/internal/infra/web"
	"charity-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "development mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, int32(cfg.Database.PoolSize))
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	go pg.ReportPoolStats(ctx, pool, 15*time.Second)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)

	// ---- Payment gateways ----
	// Constructed once and injected; a provider without credentials is not
	// registered at all, so misconfiguration surfaces here and not on a
	// live donation.
	gateways := usecase.Gateways{}
	if cfg.Payment.Payture.Configured() {
		gateways[model.ProviderDomestic] = payAdapters.NewPaytureGateway(cfg.Payment.Payture.MerchantID, cfg.Payment.Payture.SecretKey, cfg.Payment.Timeout)
		logger.Info().Msg("domestic provider enabled: payture")
	}
	if cfg.Payment.Ecommpay.Configured() {
		gateways[model.ProviderInternational] = payAdapters.NewEcommpayGateway(cfg.Payment.Ecommpay.MerchantID, cfg.Payment.Ecommpay.SecretKey, cfg.Payment.Timeout)
		logger.Info().Msg("international provider enabled: ecommpay")
	}

	// ---- Ops notifier ----
	var notifier notify.Notifier = notify.Noop{}
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != 0 {
		tn, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = tn
		}
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepoCacheDecorator(pg.NewPaymentRepo(pool), redisClient, cfg.Redis.TTL)
	donationRepo := pg.NewDonationRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	campaignRepo := pg.NewCampaignRepo(pool)
	partnerRepo := pg.NewPartnerRepo(pool)

	// ---- Use cases ----
	paymentUC := usecase.NewPaymentUseCase(payRepo, donationRepo, gateways, tm, logger)
	reconcileUC := usecase.NewReconcileUseCase(gateways, payRepo, donationRepo, campaignRepo, partnerRepo, tm, notifier, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, donationRepo, campaignRepo, gateways, tm, logger)
	billingUC := usecase.NewBillingUseCase(subRepo, donationRepo, campaignRepo, gateways, tm, cfg.Billing.Workers, cfg.Billing.ChargeTimeout, logger)

	// ---- Scheduled workers ----
	billingWorker := sched.NewBillingWorker(cfg.Billing.Interval, cfg.Billing.LockTTL, billingUC, locker, notifier, logger)
	go func() { _ = billingWorker.Run(ctx) }()
	sweeper := sched.NewPendingSweeper(1*time.Hour, cfg.Billing.SweepAge, payRepo, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.JWTSecret)
	srv := web.NewServer(paymentUC, subUC, reconcileUC, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
