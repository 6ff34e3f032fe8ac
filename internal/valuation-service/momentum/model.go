package momentum

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

const (
	// eventos qualificados mínimos para sair do neutro
	minQualifying = 3
	// epsilon do denominador da força
	strengthEpsilon = 0.01
	// variação de força que caracteriza virada de momentum
	shiftThreshold  = 0.3
	neutralStrength = 0.5
)

type Options struct {
	Window     time.Duration // janela móvel de eventos
	HistoryCap int           // eventos retidos por partida
	Now        func() time.Time
}

func DefaultOptions() Options {
	return Options{Window: 5 * time.Minute, HistoryCap: 50, Now: time.Now}
}

type game struct {
	mu      sync.Mutex
	history []events.GameEvent
	current *events.MomentumScore // último recálculo; base da detecção de virada
	pinned  bool                  // fixado por Set até o próximo Observe
}

// Model guarda o histórico limitado de eventos e o momentum atual por partida
type Model struct {
	log  *zap.Logger
	opts Options

	mu    sync.RWMutex
	games map[string]*game
}

func New(log *zap.Logger, opts Options) *Model {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.Window <= 0 {
		opts.Window = def.Window
	}
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = def.HistoryCap
	}
	if opts.Now == nil {
		opts.Now = def.Now
	}
	return &Model{log: log, opts: opts, games: make(map[string]*game)}
}

func (m *Model) gameFor(id string, create bool) *game {
	m.mu.RLock()
	g, ok := m.games[id]
	m.mu.RUnlock()
	if ok || !create {
		return g
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok = m.games[id]; !ok {
		g = &game{}
		m.games[id] = g
	}
	return g
}

// Observe acrescenta o evento ao histórico e recalcula o momentum da partida.
// Eventos momentum_shift são derivados e não entram no histórico.
func (m *Model) Observe(ev events.GameEvent) events.MomentumScore {
	g := m.gameFor(ev.GameID, true)

	g.mu.Lock()
	defer g.mu.Unlock()

	if ev.Type != events.EventMomentumShift {
		g.history = append(g.history, ev)
		if over := len(g.history) - m.opts.HistoryCap; over > 0 {
			g.history = append([]events.GameEvent(nil), g.history[over:]...)
		}
	}

	next := compute(ev.GameID, g.history, m.opts.Now(), m.opts.Window)
	if g.current != nil && math.Abs(next.Strength-g.current.Strength) > shiftThreshold {
		next.Shift = true
		m.log.Info("momentum shift",
			zap.String("game_id", ev.GameID),
			zap.String("direction", string(next.Direction)),
			zap.Float64("from", g.current.Strength),
			zap.Float64("to", next.Strength),
		)
	}
	g.current = &next
	g.pinned = false
	return next
}

// compute recalcula o momentum do zero sobre os eventos da janela
func compute(gameID string, history []events.GameEvent, now time.Time, window time.Duration) events.MomentumScore {
	cutoff := now.Add(-window)
	ms := events.MomentumScore{
		GameID:     gameID,
		Direction:  events.SideNeutral,
		Strength:   neutralStrength,
		ComputedAt: now,
	}

	var home, away float64
	for _, ev := range history {
		if ev.Timestamp.Before(cutoff) {
			continue
		}
		switch ev.Team {
		case events.SideHome:
			home += ev.Impact
		case events.SideAway:
			away += ev.Impact
		default:
			continue
		}
		ms.EventCount++
	}
	ms.HomeImpact, ms.AwayImpact = home, away

	if ms.EventCount < minQualifying {
		return ms
	}
	switch {
	case home > away:
		ms.Direction = events.SideHome
		ms.Strength = math.Min(home/(home+away+strengthEpsilon), 1.0)
	case away > home:
		ms.Direction = events.SideAway
		ms.Strength = math.Min(away/(home+away+strengthEpsilon), 1.0)
	}
	return ms
}

// Current recalcula o momentum sobre a janela no instante atual: eventos que
// saíram da janela deixam de contar mesmo sem novos eventos.
func (m *Model) Current(gameID string) events.MomentumScore {
	neutral := events.MomentumScore{GameID: gameID, Direction: events.SideNeutral, Strength: neutralStrength}
	g := m.gameFor(gameID, false)
	if g == nil {
		return neutral
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pinned && g.current != nil {
		return *g.current
	}
	if len(g.history) == 0 {
		return neutral
	}
	return compute(gameID, g.history, m.opts.Now(), m.opts.Window)
}

// Set fixa o momentum da partida sem passar pelo histórico; vale até o
// próximo Observe.
func (m *Model) Set(ms events.MomentumScore) {
	g := m.gameFor(ms.GameID, true)
	g.mu.Lock()
	g.current = &ms
	g.pinned = true
	g.mu.Unlock()
}

// Recent devolve uma cópia do histórico retido
func (m *Model) Recent(gameID string) []events.GameEvent {
	g := m.gameFor(gameID, false)
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]events.GameEvent(nil), g.history...)
}

// ScoringRates retorna pontos por minuto de cada lado nos eventos "score" da janela
func (m *Model) ScoringRates(gameID string, window time.Duration) (home, away float64) {
	if window <= 0 {
		return 0, 0
	}
	cutoff := m.opts.Now().Add(-window)
	for _, ev := range m.Recent(gameID) {
		if ev.Type != events.EventScore || ev.Timestamp.Before(cutoff) {
			continue
		}
		switch ev.Team {
		case events.SideHome:
			home += float64(ev.Points)
		case events.SideAway:
			away += float64(ev.Points)
		}
	}
	mins := window.Minutes()
	return home / mins, away / mins
}

// Evict descarta histórico e momentum da partida
func (m *Model) Evict(gameID string) {
	m.mu.Lock()
	delete(m.games, gameID)
	m.mu.Unlock()
}
