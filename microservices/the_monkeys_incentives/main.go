package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/the-monkeys/incentives/config"
	"github.com/the-monkeys/incentives/constants"
	"github.com/the-monkeys/incentives/logger"
	"github.com/the-monkeys/incentives/microservices/rabbitmq"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/consumer"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/counter"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/database"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/evaluation"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/hot"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/limits"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/notify"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/reward"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/routes"
	"github.com/the-monkeys/incentives/microservices/the_monkeys_incentives/internal/rules"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

const serviceName = "incentives"

func printBanner(cfg *config.Config) {
	banner := `
┌────────────────────────────────────────────────────────────┐
│   🐒  The Monkeys Incentives Service                       │
│   Status   : ONLINE                                         │
│   HTTP     : http://` + cfg.Incentives.HTTP + `
│   Health   : ` + fmt.Sprintf("%d", cfg.Incentives.HealthPort) + `
│   Env      : ` + cfg.AppEnv + `
│   Logs     : zap (structured)                               │
│   Tip      : set LOG_LEVEL=debug for verbose logs           │
└────────────────────────────────────────────────────────────┘`
	fmt.Println(banner)
}

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	log := logger.ZapForService("tm_incentives")
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, log); err != nil {
		log.Errorf("incentives service stopped: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, log *zap.SugaredLogger) error {
	withQueueDefaults(&cfg.RabbitMQ)

	redisClient, err := counter.RedisConn(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()
	store := counter.NewRedisStore(redisClient)

	db, err := database.NewIncentivesDB(ctx, cfg.Postgresql.PrimaryDB, log)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	engine, err := rules.NewEngine(log, rules.DefaultRegistrations(store, log)...)
	if err != nil {
		return err
	}
	detector := hot.NewDetector(store, cfg.Incentives.HotThreshold, log)

	var gate reward.AggregationGate = reward.AlwaysGate{}
	if cfg.Incentives.GateColdQuests {
		gate = reward.HotGate{Hot: detector}
	}
	machine := reward.NewMachine(store, db, gate, amounts(cfg.Incentives), log)
	hub := notify.NewHub(log)

	orchestrator := evaluation.NewOrchestrator(evaluation.Deps{
		Campaigns:  db,
		Incentives: db,
		Notifier:   hub,
		Limits:     limits.NewEnforcer(db, store, log),
		Rules:      engine,
		Rewards:    machine,
	}, evaluation.Policy{LimitAbortsEvent: cfg.Incentives.LimitAbortsEvent}, log)

	qConn, err := rabbitmq.Reconnect(ctx, cfg.RabbitMQ)
	if err != nil {
		return fmt.Errorf("rabbitmq: %w", err)
	}
	defer qConn.Close()
	publisher := consumer.NewPublisher(qConn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKeys[0], log)

	var wg sync.WaitGroup
	startConsumer := func(queue string, handle consumer.HandleFunc) error {
		msgs, err := qConn.Consume(queue, serviceName+"-"+queue)
		if err != nil {
			return err
		}
		c := consumer.New(queue, handle, cfg.RabbitMQ.Prefetch, log)
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Run(ctx, msgs)
			if ctx.Err() == nil {
				log.Errorf("delivery channel for %s closed, shutting down", queue)
				stop()
			}
		}()
		return nil
	}
	if err := startConsumer(cfg.RabbitMQ.Queues[0], consumer.Evaluate(orchestrator, log)); err != nil {
		return err
	}
	if len(cfg.RabbitMQ.Queues) > 1 {
		if err := startConsumer(cfg.RabbitMQ.Queues[1], consumer.TrackHot(db, detector)); err != nil {
			return err
		}
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := routes.NewRouter(cfg, routes.Deps{
		Campaigns:   db,
		Limits:      db,
		Rules:       engine,
		Publisher:   publisher,
		Processor:   orchestrator,
		Hot:         detector,
		Subscribers: hub,
		WebSocket:   hub.ServeWS,
		Ready: func(c *gin.Context) error {
			if err := db.Ready(c.Request.Context()); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return redisClient.Ping(c.Request.Context()).Err()
		},
	}, log)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Incentives.HTTP,
		Handler:           router,
		MaxHeaderBytes:    1 << 20,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("http listening", "addr", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("http server start failed", "err", err)
			stop()
		}
	}()

	grpcServer, healthSrv, err := startHealthServer(cfg.Incentives.HealthPort, log)
	if err != nil {
		return err
	}

	printBanner(cfg)
	<-ctx.Done()
	log.Info("shutdown signal received, draining")

	healthSrv.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("http shutdown error", "err", err)
	}
	grpcServer.GracefulStop()
	wg.Wait()
	return nil
}

func startHealthServer(port int, log *zap.SugaredLogger) (*grpc.Server, *health.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to listen at port %d: %w", port, err)
	}
	grpcServer := grpc.NewServer()
	healthSrv := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthSrv)
	healthSrv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_SERVING)

	go func() {
		log.Debugf("✅ the incentives health server started at: %d", port)
		if err := grpcServer.Serve(lis); err != nil {
			log.Errorf("health server stopped: %v", err)
		}
	}()
	return grpcServer, healthSrv, nil
}

func amounts(cfg config.Incentives) reward.Amounts {
	a := reward.DefaultAmounts()
	if cfg.IncentiveType != "" {
		a.Type = cfg.IncentiveType
	}
	if cfg.Currency != "" {
		a.Currency = cfg.Currency
	}
	if cfg.SimpleAmount > 0 {
		a.Simple = cfg.SimpleAmount
	}
	if cfg.QuestAmount > 0 {
		a.Quest = cfg.QuestAmount
	}
	return a
}

// withQueueDefaults binds the evaluation and hot-tracking queues to the
// action routing key when no queues are configured.
func withQueueDefaults(conf *config.RabbitMQ) {
	if len(conf.Queues) > 0 {
		return
	}
	conf.Queues = []string{constants.ActionEventsQueue, constants.HotTrackingQueue}
	conf.RoutingKeys = []string{constants.ActionRoutingKey, constants.ActionRoutingKey}
}
