package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ticket-checkout/internal/handlers"
	"ticket-checkout/internal/services"
	"ticket-checkout/monitoring"
	"ticket-checkout/security"
	"ticket-checkout/utils"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, st, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	if _, err := st.Migrate(ctx); err != nil {
		return err
	}

	redisClient, err := utils.NewRedisClient(ctx, cfg.RedisURL, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	var notifier *services.Notifier
	if cfg.PubNubPublishKey != "" {
		notifier = services.NewNotifier(services.NewPubNubPublisher(services.PubNubConfig{
			PublishKey:   cfg.PubNubPublishKey,
			SubscribeKey: cfg.PubNubSubscribeKey,
			SecretKey:    cfg.PubNubSecretKey,
			UserID:       cfg.PubNubUserID,
		}))
	} else {
		slog.Warn("PubNub publish key not set, purchase notifications disabled")
	}

	gw, err := services.NewGateway(cfg)
	if err != nil {
		return err
	}
	slog.Info("payment gateway ready", "mode", cfg.GatewayMode)

	refundQueue := services.NewRefundQueue(redisClient, services.DefaultRefundQueueKey, cfg.RefundRetryBackoff)
	refundWorker := services.NewRefundWorker(refundQueue, gw, st, cfg.RefundMaxAttempts)

	paymentService := services.NewPaymentService(st, gw, refundQueue, notifier, services.PaymentConfig{
		DefaultCurrency:  cfg.DefaultCurrency,
		DefaultEventName: cfg.DefaultEventName,
		TicketValidity:   cfg.TicketValidity,
	})

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		slog.Warn("JWT_SECRET not set, using an insecure development secret")
		jwtSecret = "development-only-secret"
	}
	tokens := security.NewJWT(jwtSecret, cfg.JWTTTL)
	lockoutService := services.NewLockoutService(st, cfg.LockoutPolicy())
	authService := services.NewAuthService(st, lockoutService, tokens, notifier)

	e := echo.New()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	handlers.Routes{
		Payments: handlers.NewPaymentHandler(paymentService),
		Auth:     handlers.NewAuthHandler(authService),
		Admin:    handlers.NewAdminHandler(authService),
		JWT:      tokens,
		Limiter:  security.NewRateLimiter(redisClient, cfg.RateLimitPerMinute),
		Health: map[string]handlers.HealthCheck{
			"database": st.Ping,
			"redis": func(ctx context.Context) error {
				return utils.RedisHealthCheck(ctx, redisClient)
			},
		},
		Metrics: cfg.EnableMetrics,
	}.Register(e)

	if cfg.EnableMetrics {
		go monitoring.NewMonitor(redisClient, refundQueue.Key(), cfg.MetricsInterval).Run(ctx)
	}
	go refundWorker.Run(ctx, cfg.RefundRetryInterval)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", server.Addr, "environment", cfg.Environment)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, draining requests", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
