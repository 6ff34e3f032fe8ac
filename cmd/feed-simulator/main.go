package main

import (
	"context"
	"encoding/json"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/feed-simulator/sim"
	"github.com/radieske/live-odds-core/internal/shared/config"
	"github.com/radieske/live-odds-core/internal/shared/kafka"
	"github.com/radieske/live-odds-core/internal/shared/logger"
	"github.com/radieske/live-odds-core/internal/shared/metrics"
)

var (
	// Métricas Prometheus para monitoramento das mensagens geradas
	messagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feed_simulator_messages_sent_total",
		Help: "Total de mensagens de ingestão enviadas",
	}, []string{"kind"})
	sendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_simulator_send_errors_total",
		Help: "Falhas ao escrever no Kafka",
	})
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

	prometheus.MustRegister(messagesSent, sendErrors)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicLiveIngest)
	defer writer.Close()

	msrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("feed simulator (metrics) running", zap.String("port", cfg.MetricsPort))

	// cada tick avança 30s de jogo a cada 2s de relógio real
	s := sim.New(time.Now().UnixNano(), sim.Catalog, time.Now)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	log.Info("feed simulator started", zap.Int("games", len(sim.Catalog)), zap.String("topic", cfg.TopicLiveIngest))
	for {
		select {
		case <-ctx.Done():
			shutdownCtx, done := context.WithTimeout(context.Background(), 3*time.Second)
			_ = msrv.Shutdown(shutdownCtx)
			done()
			log.Info("feed simulator stopped")
			return
		case <-ticker.C:
		}

		msgs := s.Tick(30 * time.Second)
		if len(msgs) == 0 {
			log.Info("all simulated games finished, restarting catalog")
			s = sim.New(time.Now().UnixNano(), sim.Catalog, time.Now)
			continue
		}
		for _, m := range msgs {
			b, err := json.Marshal(m)
			if err != nil {
				continue
			}
			// chave = partida: mesma partição, ordem preservada por partida
			if err := kafka.WriteJSON(ctx, writer, m.GameID, b); err != nil {
				sendErrors.Inc()
				log.Warn("kafka write failed", zap.String("game_id", m.GameID), zap.Error(err))
				continue
			}
			messagesSent.WithLabelValues(string(m.Kind)).Inc()
		}
	}
}
