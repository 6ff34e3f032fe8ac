// Package probability gera a probabilidade de vitória ao vivo por partida,
// com cache de TTL curto e invalidação explícita por eventos de impacto.
package probability

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/shared/partition"
	"github.com/radieske/live-odds-core/internal/shared/stats"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// StateSource fornece o estado atual da partida
type StateSource interface {
	Get(gameID string) (events.GameState, error)
}

// MomentumSource fornece momentum, eventos recentes e ritmo de pontuação
type MomentumSource interface {
	Current(gameID string) events.MomentumScore
	Recent(gameID string) []events.GameEvent
	ScoringRates(gameID string, window time.Duration) (home, away float64)
}

// Priors são dados estáticos pré-jogo; zero quando ausentes
type Priors struct {
	H2H      float64 `json:"h2h"`
	FormHome float64 `json:"form_home"`
	FormAway float64 `json:"form_away"`
}

// PriorSource fornece priors por partida
type PriorSource interface {
	Priors(gameID string) (Priors, bool)
}

type Options struct {
	TTL                time.Duration // frescor do cache
	ImpactInvalidation float64       // impacto mínimo que invalida o cache
	ScoringWindow      time.Duration // janela do ritmo de pontuação
	HistorySize        int           // previsões retidas para estabilidade/tendência
	Now                func() time.Time
}

func DefaultOptions() Options {
	return Options{
		TTL:                10 * time.Second,
		ImpactInvalidation: 0.1,
		ScoringWindow:      15 * time.Minute,
		HistorySize:        50,
		Now:                time.Now,
	}
}

type slot struct {
	cached  atomic.Pointer[events.WinProbability] // nil = sem cache ou invalidado
	history []events.WinProbability               // protegido pelo lock da partida
}

type Engine struct {
	log      *zap.Logger
	opts     Options
	state    StateSource
	momentum MomentumSource
	priors   PriorSource

	locks *partition.Mutex

	mu    sync.RWMutex
	games map[string]*slot

	OnFallback func() // métricas
}

func NewEngine(log *zap.Logger, state StateSource, momentum MomentumSource, priors PriorSource, opts Options) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.TTL <= 0 {
		opts.TTL = def.TTL
	}
	if opts.ImpactInvalidation <= 0 {
		opts.ImpactInvalidation = def.ImpactInvalidation
	}
	if opts.ScoringWindow <= 0 {
		opts.ScoringWindow = def.ScoringWindow
	}
	if opts.HistorySize < 3 {
		opts.HistorySize = def.HistorySize
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Engine{
		log:      log,
		opts:     opts,
		state:    state,
		momentum: momentum,
		priors:   priors,
		locks:    partition.New(),
		games:    make(map[string]*slot),
	}
}

func (e *Engine) slotFor(gameID string, create bool) *slot {
	e.mu.RLock()
	s, ok := e.games[gameID]
	e.mu.RUnlock()
	if ok || !create {
		return s
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok = e.games[gameID]; !ok {
		s = &slot{}
		e.games[gameID] = s
	}
	return s
}

func (e *Engine) fresh(gameID string) (events.WinProbability, bool) {
	s := e.slotFor(gameID, false)
	if s == nil {
		return events.WinProbability{}, false
	}
	p := s.cached.Load()
	if p == nil || e.opts.Now().Sub(p.GeneratedAt) >= e.opts.TTL {
		return events.WinProbability{}, false
	}
	return *p, true
}

// Predict devolve a previsão em cache quando fresca; caso contrário recalcula.
// Só retorna erro quando a partida não tem estado conhecido; falhas de
// cálculo viram uma previsão de fallback.
func (e *Engine) Predict(gameID string) (events.WinProbability, error) {
	if p, ok := e.fresh(gameID); ok {
		return p, nil
	}

	unlock := e.locks.Lock(gameID)
	defer unlock()

	// outro chamador pode ter recalculado enquanto esperávamos
	if p, ok := e.fresh(gameID); ok {
		return p, nil
	}

	st, err := e.state.Get(gameID)
	if err != nil {
		return events.WinProbability{}, fmt.Errorf("predict %s: %w", gameID, err)
	}

	s := e.slotFor(gameID, true)
	p := e.compute(st, s.history)

	s.history = append(s.history, p)
	if over := len(s.history) - e.opts.HistorySize; over > 0 {
		s.history = append([]events.WinProbability(nil), s.history[over:]...)
	}
	s.cached.Store(&p)
	return p, nil
}

func (e *Engine) compute(st events.GameState, history []events.WinProbability) (p events.WinProbability) {
	now := e.opts.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Warn("prediction failed, using fallback",
				zap.String("game_id", st.GameID),
				zap.Any("panic", r),
			)
			p = e.fallback(st, now)
		}
	}()

	f := e.features(st)
	home, away, draw := score(st.Sport, f)
	if math.IsNaN(home) || math.IsNaN(away) {
		e.log.Warn("prediction produced NaN, using fallback", zap.String("game_id", st.GameID))
		return e.fallback(st, now)
	}

	recent := make([]float64, 0, len(history))
	for _, h := range history {
		recent = append(recent, h.HomeProb)
	}

	return events.WinProbability{
		GameID:       st.GameID,
		ModelVersion: ModelVersion,
		HomeProb:     home,
		AwayProb:     away,
		DrawProb:     draw,
		Confidence:   confidence(f, recent),
		Features:     f,
		GeneratedAt:  now,
	}
}

func (e *Engine) features(st events.GameState) events.Features {
	f := events.Features{
		ScoreDiff:     st.Score.Diff(),
		TotalPoints:   st.Score.Total(),
		TimeRemaining: TimeRemaining(st),
		TotalDuration: TotalDuration(st.Sport),
		Period:        st.Period,
	}
	if e.momentum != nil {
		f.Momentum = e.momentum.Current(st.GameID).Signed()
		f.EventCount = len(e.momentum.Recent(st.GameID))
		f.ScoringRateHome, f.ScoringRateAway = e.momentum.ScoringRates(st.GameID, e.opts.ScoringWindow)
	}
	if e.priors != nil {
		if pr, ok := e.priors.Priors(st.GameID); ok {
			f.H2H, f.FormHome, f.FormAway = pr.H2H, pr.FormHome, pr.FormAway
		}
	}
	return f
}

func (e *Engine) fallback(st events.GameState, now time.Time) events.WinProbability {
	if e.OnFallback != nil {
		e.OnFallback()
	}
	home, away := Fallback(st)
	return events.WinProbability{
		GameID:       st.GameID,
		ModelVersion: FallbackVersion,
		HomeProb:     home,
		AwayProb:     away,
		Confidence:   fallbackConfidence,
		Fallback:     true,
		Features:     events.Features{ScoreDiff: st.Score.Diff(), TotalPoints: st.Score.Total(), Period: st.Period},
		GeneratedAt:  now,
	}
}

// Invalidate descarta a previsão em cache da partida, independente do TTL
func (e *Engine) Invalidate(gameID string) {
	s := e.slotFor(gameID, false)
	if s == nil {
		return
	}
	unlock := e.locks.Lock(gameID)
	defer unlock()
	s.cached.Store(nil)
}

// ObserveEvent invalida o cache quando o impacto do evento atinge o limiar
func (e *Engine) ObserveEvent(ev events.GameEvent) bool {
	if ev.Impact < e.opts.ImpactInvalidation {
		return false
	}
	e.Invalidate(ev.GameID)
	e.log.Debug("prediction invalidated",
		zap.String("game_id", ev.GameID),
		zap.String("event", string(ev.Type)),
		zap.Float64("impact", ev.Impact),
	)
	return true
}

// Sweep descarta entradas de cache vencidas
func (e *Engine) Sweep() int {
	now := e.opts.Now()
	e.mu.RLock()
	slots := make([]*slot, 0, len(e.games))
	for _, s := range e.games {
		slots = append(slots, s)
	}
	e.mu.RUnlock()

	n := 0
	for _, s := range slots {
		if p := s.cached.Load(); p != nil && now.Sub(p.GeneratedAt) >= e.opts.TTL {
			if s.cached.CompareAndSwap(p, nil) {
				n++
			}
		}
	}
	return n
}

// Evict remove cache e histórico da partida
func (e *Engine) Evict(gameID string) {
	unlock := e.locks.Lock(gameID)
	defer unlock()
	e.mu.Lock()
	delete(e.games, gameID)
	e.mu.Unlock()
}

// Direções de tendência das previsões
const (
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// slope por segundo abaixo deste valor é estável
const trendSlopeEpsilon = 0.001

// Trend resume a evolução de homeProb nas previsões retidas
type Trend struct {
	Direction   string  `json:"trend"`
	Slope       float64 `json:"slope"`
	Volatility  float64 `json:"volatility"`
	Predictions int     `json:"predictions"`
	LatestHome  float64 `json:"latest_home_probability"`
	Change      float64 `json:"change_since_start"`
}

// Trend calcula a tendência das previsões dentro da janela informada
func (e *Engine) Trend(gameID string, window time.Duration) Trend {
	s := e.slotFor(gameID, false)
	if s == nil {
		return Trend{Direction: TrendInsufficientData}
	}

	unlock := e.locks.Lock(gameID)
	cutoff := e.opts.Now().Add(-window)
	var hist []events.WinProbability
	for _, p := range s.history {
		if window <= 0 || !p.GeneratedAt.Before(cutoff) {
			hist = append(hist, p)
		}
	}
	unlock()

	tr := Trend{Direction: TrendInsufficientData, Predictions: len(hist)}
	if len(hist) < 2 {
		return tr
	}

	xs := make([]float64, len(hist))
	ys := make([]float64, len(hist))
	for i, p := range hist {
		xs[i] = p.GeneratedAt.Sub(hist[0].GeneratedAt).Seconds()
		ys[i] = p.HomeProb
	}
	tr.Slope = stats.SlopeXY(xs, ys)
	tr.Volatility = stats.StdDev(ys)
	tr.LatestHome = ys[len(ys)-1]
	tr.Change = ys[len(ys)-1] - ys[0]

	switch {
	case tr.Slope > trendSlopeEpsilon:
		tr.Direction = TrendIncreasing
	case tr.Slope < -trendSlopeEpsilon:
		tr.Direction = TrendDecreasing
	default:
		tr.Direction = TrendStable
	}
	return tr
}

// StaticPriors é um PriorSource em memória
type StaticPriors struct {
	mu sync.RWMutex
	m  map[string]Priors
}

func NewStaticPriors() *StaticPriors {
	return &StaticPriors{m: make(map[string]Priors)}
}

func (s *StaticPriors) Set(gameID string, p Priors) {
	s.mu.Lock()
	s.m[gameID] = p
	s.mu.Unlock()
}

func (s *StaticPriors) Priors(gameID string) (Priors, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.m[gameID]
	return p, ok
}
