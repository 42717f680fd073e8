package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/chilly266futon/orderComposer/internal/balance"
	"github.com/chilly266futon/orderComposer/internal/clients"
	"github.com/chilly266futon/orderComposer/internal/composer"
	"github.com/chilly266futon/orderComposer/internal/config"
	"github.com/chilly266futon/orderComposer/internal/events"
	"github.com/chilly266futon/orderComposer/internal/logger"
	"github.com/chilly266futon/orderComposer/internal/service"
	"github.com/chilly266futon/orderComposer/internal/storage"
	"github.com/chilly266futon/orderComposer/internal/transport/rest"
)

const serviceName = "order-composer"

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	l, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer l.Sync()

	l.Info("starting "+serviceName,
		zap.String("version", "1.0.0"),
		zap.String("config", *configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	apiCfg := clients.Config{
		Address:       cfg.PricingAPI.Addr,
		AuthToken:     cfg.PricingAPI.AuthToken,
		Timeout:       cfg.PricingAPI.Timeout,
		EnableBreaker: cfg.PricingAPI.EnableBreaker,
		BreakerConfig: clients.BreakerConfig{
			MaxRequests: cfg.PricingAPI.Breaker.MaxRequests,
			Interval:    cfg.PricingAPI.Breaker.Interval,
			Timeout:     cfg.PricingAPI.Breaker.Timeout,
			Attempts:    cfg.PricingAPI.Breaker.Attempts,
		},
		RequestsPerSecond: cfg.PricingAPI.RequestsPerSecond,
		Burst:             cfg.PricingAPI.Burst,
	}
	httpClient := &http.Client{}

	estimator, err := clients.NewEstimationClient(apiCfg, httpClient, l)
	if err != nil {
		log.Fatalf("failed to create estimation client: %v", err)
	}
	orders, err := clients.NewOrderClient(apiCfg, httpClient, l)
	if err != nil {
		log.Fatalf("failed to create order client: %v", err)
	}

	l.Info("pricing api configured",
		zap.String("address", cfg.PricingAPI.Addr),
		zap.Bool("circuit_breaker", cfg.PricingAPI.EnableBreaker),
	)

	deps := service.Deps{
		Estimator: estimator,
		Orders:    orders,
	}

	if cfg.Redis.Enabled {
		loader := balance.NewRedisLoader(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, l)
		defer loader.Close()

		if err := loader.Ping(ctx); err != nil {
			l.Warn("redis unavailable, balances will load lazily", zap.Error(err))
		}
		deps.Balances = loader
		l.Info("balance loader enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Kafka.Enabled {
		publisher := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()

		deps.Publisher = publisher
		deps.PublishTimeout = cfg.Kafka.PublishTimeout
		l.Info("order events publishing enabled", zap.String("topic", cfg.Kafka.Topic))
	}

	composerCfg, err := composerConfig(cfg.Composer)
	if err != nil {
		log.Fatalf("invalid composer config: %v", err)
	}

	hub := rest.NewHub(l)
	deps.Notifier = hub

	svc := service.NewService(storage.NewSessionStorage(), composerCfg, deps, l)

	serverCfg := rest.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}
	if cfg.RateLimit.Enabled {
		serverCfg.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		serverCfg.Burst = cfg.RateLimit.Burst
		l.Info("rate limiting enabled")
	}
	server := rest.NewServer(svc, hub, serverCfg, l)

	lis, err := net.Listen("tcp", server.Addr())
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}

	go func() {
		if err := server.Serve(lis); err != nil {
			l.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	// health check
	var grpcServer *grpc.Server
	if cfg.Health.Enabled {
		grpcServer, err = startHealthServer(cfg, l)
		if err != nil {
			log.Fatalf("failed to start health server: %v", err)
		}
	}

	go reapSessions(ctx, svc, cfg.Server.SessionTTL)

	l.Info("server ready to accept connections")
	<-ctx.Done()

	l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Error("http server shutdown", zap.Error(err))
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
	svc.Shutdown()

	l.Info("server stopped")
}

func composerConfig(cfg config.ComposerConfig) (composer.Config, error) {
	out := composer.DefaultConfig()

	if cfg.AmountStep != "" {
		step, err := decimal.NewFromString(cfg.AmountStep)
		if err != nil {
			return out, err
		}
		out.Step = step
	}
	if cfg.EstimateTimeout > 0 {
		out.EstimateTimeout = cfg.EstimateTimeout
	}
	if cfg.SubmitTimeout > 0 {
		out.SubmitTimeout = cfg.SubmitTimeout
	}
	return out, nil
}

func startHealthServer(cfg *config.Config, l *zap.Logger) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Health.Port)))
	if err != nil {
		return nil, err
	}

	grpcServer := grpc.NewServer()

	healthServer := health.NewServer()
	healthServer.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	reflection.Register(grpcServer)

	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			l.Error("health server error", zap.Error(err))
		}
	}()

	l.Info("health check enabled", zap.String("addr", lis.Addr().String()))
	return grpcServer, nil
}

func reapSessions(ctx context.Context, svc *service.Service, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	ticker := time.NewTicker(ttl / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			svc.Reap(now, ttl)
		}
	}
}
