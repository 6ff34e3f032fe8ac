// Package core é o registro explícito dos componentes de valoração: cria,
// conecta e encerra store, tracker, momentum, engine, detector e broker,
// e serializa por partida tudo o que a ingestão altera.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/shared/config"
	"github.com/radieske/live-odds-core/internal/shared/metrics"
	"github.com/radieske/live-odds-core/internal/shared/partition"
	"github.com/radieske/live-odds-core/internal/valuation-service/fanout"
	"github.com/radieske/live-odds-core/internal/valuation-service/gamestate"
	"github.com/radieske/live-odds-core/internal/valuation-service/momentum"
	"github.com/radieske/live-odds-core/internal/valuation-service/oddstracker"
	"github.com/radieske/live-odds-core/internal/valuation-service/probability"
	"github.com/radieske/live-odds-core/internal/valuation-service/valuebet"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
	"github.com/radieske/live-odds-core/pkg/contracts/topics"
)

var (
	ErrUnknownKind = errors.New("unknown ingest kind")
	ErrBadMessage  = errors.New("malformed ingest message")
	ErrGameFault   = errors.New("game processing fault")
)

// Sink recebe as saídas do núcleo para os colaboradores externos
// (cache, arquivo, mensageria). Não pode bloquear.
type Sink interface {
	GameState(events.GameState)
	Prediction(events.WinProbability)
	LineMovement(events.LineMovement)
	ValueBet(events.ValueBet)
}

type Deps struct {
	Log     *zap.Logger
	Metrics *metrics.Collectors
	Sink    Sink
	Mapper  valuebet.ProbabilityMapper
	Now     func() time.Time
}

type Core struct {
	log  *zap.Logger
	cfg  config.Valuation
	m    *metrics.Collectors
	sink Sink
	now  func() time.Time

	States   *gamestate.Store
	Odds     *oddstracker.Tracker
	Momentum *momentum.Model
	Priors   *probability.StaticPriors
	Engine   *probability.Engine
	Detector *valuebet.Detector
	Broker   *fanout.Broker

	locks *partition.Mutex

	// última previsão publicada por partida
	published sync.Map // gameID -> time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New monta o registro a partir da configuração
func New(cfg config.Valuation, deps Deps) *Core {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	m := deps.Metrics
	if m == nil {
		m = metrics.NewCollectors(nil)
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	c := &Core{
		log:   log,
		cfg:   cfg,
		m:     m,
		sink:  deps.Sink,
		now:   now,
		locks: partition.New(),
	}

	c.States = gamestate.NewStore(log.Named("gamestate"))
	c.Odds = oddstracker.New(log.Named("odds"), oddstracker.Options{
		Capacity:          cfg.OddsHistory,
		MovementThreshold: cfg.MovementThreshold,
	})
	c.Momentum = momentum.New(log.Named("momentum"), momentum.Options{
		Window:     cfg.MomentumWindow,
		HistoryCap: 50,
		Now:        now,
	})
	c.Priors = probability.NewStaticPriors()
	c.Engine = probability.NewEngine(log.Named("probability"), c.States, c.Momentum, c.Priors, probability.Options{
		TTL:                cfg.ProbabilityTTL,
		ImpactInvalidation: cfg.ImpactInvalidation,
		ScoringWindow:      15 * time.Minute,
		HistorySize:        50,
		Now:                now,
	})
	c.Engine.OnFallback = func() { m.PredictionFallbacks.Inc() }

	mapper := deps.Mapper
	if mapper == nil {
		mapper = valuebet.LinearLineMapper{PerPoint: 0.03}
	}
	c.Detector = valuebet.NewDetector(log.Named("valuebet"), c.Engine, mapper, valuebet.Options{
		MinEdge:         cfg.MinEdge,
		MinConfidence:   cfg.MinConfidence,
		MinOdds:         cfg.MinOdds,
		MaxOdds:         cfg.MaxOdds,
		KellyCap:        cfg.KellyCap,
		KellyMultiplier: cfg.KellyMultiplier,
		Lifetime:        cfg.ValueBetLifetime,
		StaleMovePct:    cfg.StaleMovePct,
		MaxQuoteAge:     cfg.MaxQuoteAge,
		Now:             now,
	})
	c.Detector.OnDetected = func(vb events.ValueBet) {
		m.ValueBetsDetected.Inc()
		c.publishValueBet(vb)
	}
	c.Detector.OnDeactivated = func(vb events.ValueBet) {
		if vb.Reason == events.ReasonExpired {
			m.ValueBetsExpired.Inc()
		}
		c.publishValueBet(vb)
	}
	c.Detector.OnStale = func() { m.RejectedTotal.WithLabelValues(metrics.ReasonStaleRejected).Inc() }

	c.Broker = fanout.NewBroker(log.Named("fanout"), fanout.Options{
		QueueSize:          cfg.OutboundQueue,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Now:                now,
	})
	c.Broker.OnEnqueued = func(n int) { m.BrokerDelivered.Add(float64(n)) }
	c.Broker.OnDropped = func() { m.BrokerDropped.Inc() }
	c.Broker.OnRateLimited = func() { m.RateLimited.Inc() }
	c.Broker.OnConnections = func(n int) { m.Connections.Set(float64(n)) }

	return c
}

// publish envia o envelope a cada tópico válido
func (c *Core) publish(typ events.MessageType, data any, ts time.Time, topicList ...string) {
	for _, t := range topicList {
		if !topics.Valid(t) {
			continue
		}
		if _, err := c.Broker.Publish(events.Envelope{Topic: t, Type: typ, Data: data, Timestamp: ts}); err != nil {
			c.log.Warn("publish failed", zap.String("topic", t), zap.Error(err))
		}
	}
}

func (c *Core) publishValueBet(vb events.ValueBet) {
	c.publish(events.MsgValueBet, vb, c.now(),
		topics.Game(vb.GameID), topics.Sport(vb.Sport), topics.Bookmaker(vb.Bookmaker), topics.AllValueBets)
	if c.sink != nil {
		c.sink.ValueBet(vb)
	}
}

func (c *Core) publishPrediction(sport string, p events.WinProbability) {
	if last, ok := c.published.Load(p.GameID); ok && last.(time.Time).Equal(p.GeneratedAt) {
		return
	}
	c.published.Store(p.GameID, p.GeneratedAt)
	c.publish(events.MsgPredictionUpdate, p, p.GeneratedAt, topics.Game(p.GameID), topics.Sport(sport))
	if c.sink != nil {
		c.sink.Prediction(p)
	}
}
