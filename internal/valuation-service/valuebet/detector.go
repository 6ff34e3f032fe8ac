// Package valuebet compara as cotações com a previsão do modelo e mantém o
// registro de value bets ativas, com expiração.
package valuebet

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/shared/partition"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// Predictor fornece a previsão atual (gerando uma quando ausente)
type Predictor interface {
	Predict(gameID string) (events.WinProbability, error)
}

type Options struct {
	MinEdge         float64
	MinConfidence   float64
	MinOdds         float64
	MaxOdds         float64
	KellyCap        float64
	KellyMultiplier float64
	Lifetime        time.Duration
	StaleMovePct    float64       // movimento relativo que invalida a aposta ativa
	MaxQuoteAge     time.Duration // cotações mais velhas ficam sem opinião
	Now             func() time.Time
}

func DefaultOptions() Options {
	return Options{
		MinEdge:         0.02,
		MinConfidence:   0.6,
		MinOdds:         1.5,
		MaxOdds:         10.0,
		KellyCap:        0.25,
		KellyMultiplier: 0.25,
		Lifetime:        15 * time.Minute,
		StaleMovePct:    0.05,
		MaxQuoteAge:     2 * time.Minute,
		Now:             time.Now,
	}
}

// Stats conta o trabalho do detector desde o início do processo
type Stats struct {
	Processed   int64 `json:"processed"`
	Found       int64 `json:"found"`
	Expired     int64 `json:"expired"`
	Deactivated int64 `json:"deactivated"`
	Active      int   `json:"active"`
}

type Detector struct {
	log       *zap.Logger
	opts      Options
	predictor Predictor
	mapper    ProbabilityMapper

	// exclusão por chave (partida, casa, mercado, seleção)
	locks *partition.Mutex

	mu       sync.RWMutex
	registry map[events.QuoteKey]*events.ValueBet // valores nunca alterados após publicados

	processed, found, expired, deactivated atomic.Int64

	OnDetected    func(events.ValueBet)
	OnDeactivated func(events.ValueBet)
	OnStale       func()
}

func NewDetector(log *zap.Logger, predictor Predictor, mapper ProbabilityMapper, opts Options) *Detector {
	if log == nil {
		log = zap.NewNop()
	}
	if mapper == nil {
		mapper = LinearLineMapper{PerPoint: 0.03}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Detector{
		log:       log,
		opts:      opts,
		predictor: predictor,
		mapper:    mapper,
		locks:     partition.New(),
		registry:  make(map[events.QuoteKey]*events.ValueBet),
	}
}

// Evaluate avalia a cotação e registra a value bet quando todos os critérios
// passam; nil significa "sem opinião".
func (d *Detector) Evaluate(q events.OddsQuote) *events.ValueBet {
	d.processed.Add(1)
	now := d.opts.Now()

	if d.opts.MaxQuoteAge > 0 && now.Sub(q.Timestamp) > d.opts.MaxQuoteAge {
		d.log.Debug("stale quote ignored",
			zap.String("key", q.Key().String()),
			zap.Duration("age", now.Sub(q.Timestamp)),
		)
		if d.OnStale != nil {
			d.OnStale()
		}
		return nil
	}

	key := q.Key()
	unlock := d.locks.Lock(key.String())
	defer unlock()

	if cur := d.get(key); cur != nil && cur.IsActive && d.opts.StaleMovePct > 0 {
		if math.Abs(q.Odds-cur.Odds)/cur.Odds > d.opts.StaleMovePct {
			d.deactivate(cur, events.ReasonOddsMoved)
		}
	}

	pred, err := d.predictor.Predict(q.GameID)
	if err != nil {
		d.log.Debug("no prediction for quote", zap.String("game_id", q.GameID), zap.Error(err))
		return nil
	}

	trueProb, ok := d.mapper.TrueProbability(q, pred)
	if !ok || trueProb <= 0 || trueProb >= 1 {
		return nil
	}

	pr := Price(trueProb, q.Odds)
	if pr.Edge <= 0 {
		return nil
	}
	kelly := KellyFraction(pr.Edge, q.Odds, d.opts.KellyMultiplier, d.opts.KellyCap)
	conf := Confidence(pred.Confidence, pr.Edge)

	switch {
	case pr.Edge < d.opts.MinEdge,
		conf < d.opts.MinConfidence,
		q.Odds < d.opts.MinOdds,
		q.Odds > d.opts.MaxOdds:
		return nil
	}

	vb := &events.ValueBet{
		ID:            uuid.NewString(),
		GameID:        q.GameID,
		Sport:         q.Sport,
		Bookmaker:     q.Bookmaker,
		BetType:       q.BetType,
		Selection:     q.Selection,
		Line:          q.Line,
		Odds:          q.Odds,
		FairOdds:      pr.FairOdds,
		TrueProb:      pr.TrueProb,
		ImpliedProb:   pr.ImpliedProb,
		Edge:          pr.Edge,
		ExpectedValue: pr.ExpectedValue,
		Confidence:    conf,
		KellyFraction: kelly,
		DetectedAt:    now,
		ExpiresAt:     now.Add(d.opts.Lifetime),
		IsActive:      true,
	}

	if cur := d.get(key); cur != nil && cur.IsActive {
		d.deactivate(cur, events.ReasonSuperseded)
	}
	d.put(key, vb)
	d.found.Add(1)

	d.log.Info("value bet detected",
		zap.String("game_id", vb.GameID),
		zap.String("bookmaker", vb.Bookmaker),
		zap.String("bet_type", string(vb.BetType)),
		zap.String("selection", vb.Selection),
		zap.Float64("odds", vb.Odds),
		zap.Float64("edge", vb.Edge),
		zap.Float64("kelly", vb.KellyFraction),
	)
	if d.OnDetected != nil {
		d.OnDetected(*vb)
	}
	return vb
}

func (d *Detector) get(k events.QuoteKey) *events.ValueBet {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.registry[k]
}

func (d *Detector) put(k events.QuoteKey, vb *events.ValueBet) {
	d.mu.Lock()
	d.registry[k] = vb
	d.mu.Unlock()
}

// deactivate publica uma cópia inativa; exige o lock da chave
func (d *Detector) deactivate(cur *events.ValueBet, reason string) {
	next := *cur
	next.IsActive = false
	next.Reason = reason
	d.put(cur.Key(), &next)
	d.deactivated.Add(1)
	if reason == events.ReasonExpired {
		d.expired.Add(1)
	}
	if d.OnDeactivated != nil {
		d.OnDeactivated(next)
	}
}

// Sweep desativa as value bets vencidas. Pode rodar junto com Evaluate:
// cada chave é rechecada sob o seu lock.
func (d *Detector) Sweep() []events.ValueBet {
	now := d.opts.Now()

	d.mu.RLock()
	var due []events.QuoteKey
	for k, vb := range d.registry {
		if vb.IsActive && !now.Before(vb.ExpiresAt) {
			due = append(due, k)
		}
	}
	d.mu.RUnlock()

	var out []events.ValueBet
	for _, k := range due {
		unlock := d.locks.Lock(k.String())
		if cur := d.get(k); cur != nil && cur.IsActive && !now.Before(cur.ExpiresAt) {
			d.deactivate(cur, events.ReasonExpired)
			out = append(out, *d.get(k))
		}
		unlock()
	}
	if len(out) > 0 {
		d.log.Info("expired value bets deactivated", zap.Int("count", len(out)))
	}
	return out
}

// Active devolve as value bets vivas (ativas e não vencidas), opcionalmente
// filtradas por partida, ordenadas por edge decrescente
func (d *Detector) Active(gameID string) []events.ValueBet {
	now := d.opts.Now()
	d.mu.RLock()
	out := make([]events.ValueBet, 0, len(d.registry))
	for _, vb := range d.registry {
		if (gameID == "" || vb.GameID == gameID) && vb.LiveAt(now) {
			out = append(out, *vb)
		}
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Edge != out[j].Edge {
			return out[i].Edge > out[j].Edge
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Evict remove do registro todas as entradas da partida
func (d *Detector) Evict(gameID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k := range d.registry {
		if k.GameID == gameID {
			delete(d.registry, k)
		}
	}
}

func (d *Detector) Stats() Stats {
	return Stats{
		Processed:   d.processed.Load(),
		Found:       d.found.Load(),
		Expired:     d.expired.Load(),
		Deactivated: d.deactivated.Load(),
		Active:      len(d.Active("")),
	}
}
