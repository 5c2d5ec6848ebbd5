package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teralab/chatorder/internal/app"
	"github.com/teralab/chatorder/internal/middleware"
	httptransport "github.com/teralab/chatorder/internal/transport/http"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := configFromEnv(log)

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	h := httptransport.New(a.Engine, a.Bus, a.Orders, a.Reconciler, envDuration("REQUEST_TIMEOUT", 15*time.Second))

	srv := &http.Server{
		Addr:              envString("LISTEN_ADDR", ":8080"),
		Handler:           h.Router(middleware.Logging(log)),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func configFromEnv(log *slog.Logger) app.Config {
	return app.Config{
		SessionTTL:         envDuration("SESSION_TTL", 30*time.Minute),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		DBPath:             envString("DB_PATH", "chatorder.db"),
		FreeDeliveryCity:   envString("FREE_DELIVERY_CITY", "Dakar"),
		DeliveryFee:        envInt64("DELIVERY_FEE", 2000),
		Currency:           envString("CURRENCY", "XOF"),
		PaymentTimeout:     envDuration("PAYMENT_TIMEOUT", 5*time.Minute),
		MaxPaymentInFlight: int(envInt64("MAX_PAYMENT_IN_FLIGHT", 8)),
		WaveBaseURL:        envString("WAVE_BASE_URL", "https://api.wave.com"),
		WaveAPIKey:         os.Getenv("WAVE_API_KEY"),
		OrangeBaseURL:      envString("ORANGE_BASE_URL", "https://api.orange.com/orange-money-webpay"),
		OrangeMerchantKey:  os.Getenv("ORANGE_MERCHANT_KEY"),
		CardBaseURL:        envString("CARD_BASE_URL", "https://checkout.example.com"),
		CardAPIKey:         os.Getenv("CARD_API_KEY"),
		CallbackBaseURL:    envString("CALLBACK_BASE_URL", "http://localhost:8080"),
		Logger:             log,
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt64(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
