package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lupora-api/internal/auth"
	"lupora-api/internal/client"
	"lupora-api/internal/notify"
	"lupora-api/internal/repository"
	"lupora-api/internal/server"
	"lupora-api/internal/service"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := bootstrap()
	if err != nil {
		return err
	}
	defer a.close()

	cfg, log, db := a.cfg, a.log, a.db

	razorpayClient := client.NewRazorpayClient(&cfg.Razorpay)
	var mailClient client.MailClient
	if cfg.Mail.Configured() {
		mailClient = client.NewMailClient(cfg.Mail)
	} else {
		log.Warn("mail not configured, order notifications disabled")
	}
	if !cfg.Razorpay.Configured() {
		log.Warn("razorpay keys not configured, online payments disabled")
	}

	userRepo := repository.NewUserRepository(db)
	productRepo := repository.NewProductRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	cartRepo := repository.NewCartRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	reviewRepo := repository.NewReviewRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)
	webhookEventRepo := repository.NewWebhookEventRepository(db)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	dispatcher := notify.NewDispatcher(mailClient, notify.Options{
		OwnerAddress: cfg.Mail.OwnerAddress,
		QueueSize:    cfg.Mail.QueueSize,
		SendTimeout:  cfg.Mail.SendTimeout,
		Enabled:      cfg.Mail.Configured(),
	}, log)
	dispatcher.Start(workerCtx)

	sweeper := service.NewSweeper(cartRepo, idempotencyRepo, cfg.Cart.TTL, cfg.Cart.SweepInterval, log)
	sweeper.Start(workerCtx)

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.Auth.TTL)
	health := client.NewHealthCheck(db)
	locks := service.NewUserLocks()

	srv := server.NewServer(server.Deps{
		Config: cfg,
		Log:    log,
		Tokens: tokens,
		Health: health,

		UserService:    service.NewUserService(userRepo, tokens, cfg.BcryptCost, log),
		CatalogService: service.NewCatalogService(productRepo, mediaRepo, health, cfg.Catalog.CacheTTL, time.Now, log),
		CartService:    service.NewCartService(db, cartRepo, productRepo, locks),
		OrderService: service.NewOrderService(service.OrderServiceDeps{
			DB:              db,
			OrderRepo:       orderRepo,
			CartRepo:        cartRepo,
			ProductRepo:     productRepo,
			UserRepo:        userRepo,
			IdempotencyRepo: idempotencyRepo,
			Publisher:       dispatcher,
			Locks:           locks,
			IdempotencyTTL:  cfg.Idempotency.TTL,
			Now:             time.Now,
		}, log),
		PaymentService: service.NewPaymentService(razorpayClient, cfg.Razorpay, orderRepo, webhookEventRepo, log),
		ReviewService:  service.NewReviewService(reviewRepo, productRepo, userRepo),
	})

	serverAddr := cfg.ServerAddr()
	serverErr := make(chan error, 1)

	log.Info("starting HTTP server",
		zap.String("addr", serverAddr),
		zap.String("environment", cfg.Environment.Name),
	)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		log.Info("signal received, starting graceful shutdown", zap.String("signal", sig.String()))
	case err, ok := <-serverErr:
		if ok {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	sweeper.Stop()

	drained := make(chan struct{})
	go func() {
		dispatcher.Close()
		close(drained)
	}()
	select {
	case <-drained:
	case <-shutdownCtx.Done():
		log.Warn("notification queue not drained before shutdown deadline")
		stopWorkers()
		<-drained
	}

	log.Info("shutdown complete")
	return nil
}
