package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	sharedcache "github.com/radieske/live-odds-core/internal/shared/cache"
	"github.com/radieske/live-odds-core/internal/shared/config"
	"github.com/radieske/live-odds-core/internal/shared/db"
	"github.com/radieske/live-odds-core/internal/shared/kafka"
	"github.com/radieske/live-odds-core/internal/shared/logger"
	"github.com/radieske/live-odds-core/internal/shared/metrics"

	"github.com/radieske/live-odds-core/internal/valuation-service/cache"
	"github.com/radieske/live-odds-core/internal/valuation-service/consumer"
	"github.com/radieske/live-odds-core/internal/valuation-service/core"
	"github.com/radieske/live-odds-core/internal/valuation-service/httpapi"
	"github.com/radieske/live-odds-core/internal/valuation-service/publisher"
	"github.com/radieske/live-odds-core/internal/valuation-service/relay"
	"github.com/radieske/live-odds-core/internal/valuation-service/repository"
	"github.com/radieske/live-odds-core/internal/valuation-service/sink"
	"github.com/radieske/live-odds-core/internal/valuation-service/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	repo := repository.NewPostgresRepo(pg)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("postgres schema", zap.Error(err))
	}

	// Métricas Prometheus do núcleo e do bombeamento
	m := metrics.NewCollectors(prometheus.DefaultRegisterer)
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "valuation_kafka_messages_consumed_total", Help: "mensagens consumidas"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "valuation_kafka_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, errorsBy)

	// Saídas externas: snapshot no Redis, arquivo no Postgres e tópico value_bets
	vbWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicValueBets)
	pub := publisher.NewKafkaPublisher(vbWriter, log.Named("publisher"))
	defer pub.Close()

	out := sink.New(log.Named("sink"),
		cache.NewRedisCache(redisClient, cfg.Valuation.GameRetention),
		repo, pub,
		sink.Options{Queue: 4096, Timeout: 2 * time.Second},
	)
	out.OnDropped = func(w string) { m.SinkDropped.WithLabelValues(w).Inc() }
	out.OnError = func(w string) { errorsBy.WithLabelValues("sink_" + w).Inc() }
	out.Start(ctx)
	defer out.Close()

	// Registro dos componentes
	c := core.New(cfg.Valuation, core.Deps{Log: log, Metrics: m, Sink: out})
	c.Start(ctx)
	defer c.Close()

	// Réplica do fan-out entre instâncias
	rl := relay.New(redisClient, cfg.RelayChannel, 4096, log.Named("relay"))
	rl.OnDropped = func() { errorsBy.WithLabelValues("relay").Inc() }
	c.Broker.OnPublish = rl.Forward
	go rl.Run(ctx, c.Broker.Deliver)

	// Consumer Kafka (consumer group valuation-service)
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicLiveIngest, cfg.ServiceName)
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLiveIngestDLQ)
	defer dlq.Close()

	proc := &consumer.Processor{
		Log:        log.Named("consumer"),
		Reader:     reader,
		Core:       c,
		DLQ:        dlq,
		Workers:    cfg.Valuation.IngestWorkers,
		Queue:      256,
		Timeout:    cfg.Valuation.IngestTimeout,
		OnConsumed: func() { consumed.Inc() },
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	msrv := metrics.StartMetricsServer(cfg.MetricsPort, func(ctx context.Context) error {
		if err := pg.PingContext(ctx); err != nil {
			return fmt.Errorf("pg: %w", err)
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		return nil
	})
	log.Info("metrics/health listening", zap.String("port", cfg.MetricsPort))

	// API de consulta + /ws
	api := &httpapi.API{
		Core:    c,
		History: repo,
		WS:      ws.NewHandler(log.Named("ws"), c.Broker, func(*http.Request) bool { return true }),
	}
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("query api listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", zap.Error(err))
			cancel()
		}
	}()

	log.Info("valuation-service started")
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	_ = msrv.Shutdown(shutdownCtx)
	log.Info("valuation-service stopped")
}
