// Package oddstracker mantém o histórico limitado de cotações por
// (partida, casa, mercado, seleção) e detecta movimentos de linha.
package oddstracker

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/shared/stats"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

var (
	ErrInvalidQuote = errors.New("invalid odds quote")
	ErrStaleQuote   = errors.New("stale odds quote")
)

// Direções de tendência
const (
	TrendIncreasing       = "increasing"
	TrendDecreasing       = "decreasing"
	TrendStable           = "stable"
	TrendInsufficientData = "insufficient_data"
)

// slope abaixo deste valor (em odds por cotação) é considerado estável
const trendSlopeEpsilon = 0.01

type Options struct {
	Capacity          int     // cotações por série
	MovementThreshold float64 // significância mínima para emitir LineMovement
}

func DefaultOptions() Options {
	return Options{Capacity: 100, MovementThreshold: 0.02}
}

type series struct {
	mu  sync.Mutex
	buf *ring
}

// book agrupa as séries de uma partida
type book struct {
	mu     sync.RWMutex
	series map[events.QuoteKey]*series
}

type Tracker struct {
	log  *zap.Logger
	opts Options

	mu    sync.RWMutex
	games map[string]*book
}

func New(log *zap.Logger, opts Options) *Tracker {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Capacity < 2 {
		opts.Capacity = DefaultOptions().Capacity
	}
	return &Tracker{log: log, opts: opts, games: make(map[string]*book)}
}

func (t *Tracker) bookFor(gameID string, create bool) *book {
	t.mu.RLock()
	b, ok := t.games[gameID]
	t.mu.RUnlock()
	if ok || !create {
		return b
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if b, ok = t.games[gameID]; !ok {
		b = &book{series: make(map[events.QuoteKey]*series)}
		t.games[gameID] = b
	}
	return b
}

func (b *book) seriesFor(k events.QuoteKey, capacity int) *series {
	b.mu.RLock()
	s, ok := b.series[k]
	b.mu.RUnlock()
	if ok {
		return s
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.series[k]; !ok {
		s = &series{buf: newRing(capacity)}
		b.series[k] = s
	}
	return s
}

func validate(q events.OddsQuote) error {
	switch {
	case q.GameID == "" || q.Bookmaker == "" || q.Selection == "":
		return fmt.Errorf("%w: missing key fields", ErrInvalidQuote)
	case q.BetType != events.BetMoneyline && q.BetType != events.BetSpread && q.BetType != events.BetTotal:
		return fmt.Errorf("%w: unknown bet type %q", ErrInvalidQuote, q.BetType)
	case math.IsNaN(q.Odds) || q.Odds < events.MinDecimalOdds:
		return fmt.Errorf("%w: odds %v below %v", ErrInvalidQuote, q.Odds, events.MinDecimalOdds)
	}
	return nil
}

// Record grava a cotação e devolve o LineMovement em relação à cotação
// anterior da mesma série, quando a significância passa do limiar.
func (t *Tracker) Record(q events.OddsQuote) (*events.LineMovement, error) {
	if err := validate(q); err != nil {
		return nil, err
	}
	s := t.bookFor(q.GameID, true).seriesFor(q.Key(), t.opts.Capacity)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.buf.last()
	if ok && q.Timestamp.Before(prev.Timestamp) {
		return nil, fmt.Errorf("%w: %s at %s older than %s", ErrStaleQuote, q.Key(), q.Timestamp, prev.Timestamp)
	}
	s.buf.push(q)
	if !ok {
		return nil, nil
	}

	mv := movement(prev, q)
	if mv.Significance <= t.opts.MovementThreshold {
		return nil, nil
	}
	t.log.Debug("line movement",
		zap.String("key", q.Key().String()),
		zap.Float64("old", prev.Odds),
		zap.Float64("new", q.Odds),
		zap.Float64("significance", mv.Significance),
	)
	return &mv, nil
}

func movement(prev, cur events.OddsQuote) events.LineMovement {
	delta := cur.Odds - prev.Odds
	pct := math.Abs(delta) / prev.Odds

	dir := events.DirectionStable
	switch {
	case delta > 0:
		dir = events.DirectionUp
	case delta < 0:
		dir = events.DirectionDown
	}

	return events.LineMovement{
		GameID:       cur.GameID,
		Bookmaker:    cur.Bookmaker,
		BetType:      cur.BetType,
		Selection:    cur.Selection,
		OldOdds:      prev.Odds,
		NewOdds:      cur.Odds,
		OldLine:      prev.Line,
		NewLine:      cur.Line,
		Delta:        delta,
		Direction:    dir,
		Significance: math.Min(pct*10, 1.0),
		Timestamp:    cur.Timestamp,
	}
}

// Latest retorna a última cotação da série
func (t *Tracker) Latest(k events.QuoteKey) (events.OddsQuote, bool) {
	b := t.bookFor(k.GameID, false)
	if b == nil {
		return events.OddsQuote{}, false
	}
	b.mu.RLock()
	s, ok := b.series[k]
	b.mu.RUnlock()
	if !ok {
		return events.OddsQuote{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.last()
}

// History devolve a janela armazenada da série, da mais antiga para a mais nova
func (t *Tracker) History(k events.QuoteKey) []events.OddsQuote {
	b := t.bookFor(k.GameID, false)
	if b == nil {
		return nil
	}
	b.mu.RLock()
	s, ok := b.series[k]
	b.mu.RUnlock()
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.items()
}

// Quotes devolve a última cotação de cada série da partida.
// betType vazio retorna todos os mercados.
func (t *Tracker) Quotes(gameID string, betType events.BetType) []events.OddsQuote {
	b := t.bookFor(gameID, false)
	if b == nil {
		return nil
	}

	b.mu.RLock()
	all := make([]*series, 0, len(b.series))
	for k, s := range b.series {
		if betType == "" || k.BetType == betType {
			all = append(all, s)
		}
	}
	b.mu.RUnlock()

	out := make([]events.OddsQuote, 0, len(all))
	for _, s := range all {
		s.mu.Lock()
		if q, ok := s.buf.last(); ok {
			out = append(out, q)
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().String() < out[j].Key().String() })
	return out
}

// BestOdds retorna a cotação mais alta entre as casas para o mercado/seleção
func (t *Tracker) BestOdds(gameID string, betType events.BetType, selection string) (events.OddsQuote, bool) {
	var best events.OddsQuote
	found := false
	for _, q := range t.Quotes(gameID, betType) {
		if q.Selection != selection {
			continue
		}
		if !found || q.Odds > best.Odds {
			best, found = q, true
		}
	}
	return best, found
}

// Trend resume a janela armazenada da série
type Trend struct {
	Direction  string  `json:"direction"`
	Slope      float64 `json:"slope"`
	Volatility float64 `json:"volatility"`
	Current    float64 `json:"current_odds"`
	MinOdds    float64 `json:"min_odds"`
	MaxOdds    float64 `json:"max_odds"`
	DataPoints int     `json:"data_points"`
}

// Trend calcula regressão linear e desvio padrão sobre a janela; exige 2 pontos
func (t *Tracker) Trend(k events.QuoteKey) Trend {
	hist := t.History(k)
	tr := Trend{Direction: TrendInsufficientData, DataPoints: len(hist)}
	if len(hist) < 2 {
		return tr
	}

	odds := make([]float64, len(hist))
	tr.MinOdds, tr.MaxOdds = hist[0].Odds, hist[0].Odds
	for i, q := range hist {
		odds[i] = q.Odds
		tr.MinOdds = math.Min(tr.MinOdds, q.Odds)
		tr.MaxOdds = math.Max(tr.MaxOdds, q.Odds)
	}
	tr.Current = odds[len(odds)-1]
	tr.Slope = stats.Slope(odds)
	tr.Volatility = stats.StdDev(odds)

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

// Evict descarta todas as séries da partida
func (t *Tracker) Evict(gameID string) {
	t.mu.Lock()
	delete(t.games, gameID)
	t.mu.Unlock()
}
