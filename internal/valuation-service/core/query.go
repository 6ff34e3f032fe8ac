package core

import (
	"time"

	"github.com/radieske/live-odds-core/internal/valuation-service/oddstracker"
	"github.com/radieske/live-odds-core/internal/valuation-service/probability"
	"github.com/radieske/live-odds-core/internal/valuation-service/valuebet"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// Snapshot é a resposta das consultas: dados imutáveis e o instante de geração
type Snapshot[T any] struct {
	Data        T         `json:"data"`
	GeneratedAt time.Time `json:"generated_at"`
}

func wrap[T any](c *Core, v T) Snapshot[T] {
	return Snapshot[T]{Data: v, GeneratedAt: c.now()}
}

// GameState devolve o último estado da partida
func (c *Core) GameState(gameID string) (Snapshot[events.GameState], error) {
	st, err := c.States.Get(gameID)
	if err != nil {
		return Snapshot[events.GameState]{}, err
	}
	return wrap(c, st), nil
}

// Games lista os estados conhecidos
func (c *Core) Games() Snapshot[[]events.GameState] {
	return wrap(c, c.States.List())
}

// OddsSnapshot devolve a última cotação de cada série da partida; betType vazio = todos os mercados
func (c *Core) OddsSnapshot(gameID string, betType events.BetType) Snapshot[[]events.OddsQuote] {
	return wrap(c, c.Odds.Quotes(gameID, betType))
}

func (c *Core) OddsHistory(k events.QuoteKey) Snapshot[[]events.OddsQuote] {
	return wrap(c, c.Odds.History(k))
}

func (c *Core) OddsTrend(k events.QuoteKey) Snapshot[oddstracker.Trend] {
	return wrap(c, c.Odds.Trend(k))
}

// BestOdds devolve a melhor cotação entre as casas para a seleção
func (c *Core) BestOdds(gameID string, betType events.BetType, selection string) (Snapshot[events.OddsQuote], bool) {
	q, ok := c.Odds.BestOdds(gameID, betType, selection)
	return wrap(c, q), ok
}

// WinProbability devolve a previsão atual, recalculando se necessário
func (c *Core) WinProbability(gameID string) (Snapshot[events.WinProbability], error) {
	p, err := c.Engine.Predict(gameID)
	if err != nil {
		return Snapshot[events.WinProbability]{}, err
	}
	return wrap(c, p), nil
}

func (c *Core) PredictionTrend(gameID string, window time.Duration) Snapshot[probability.Trend] {
	return wrap(c, c.Engine.Trend(gameID, window))
}

func (c *Core) MomentumScore(gameID string) Snapshot[events.MomentumScore] {
	return wrap(c, c.Momentum.Current(gameID))
}

func (c *Core) RecentEvents(gameID string) Snapshot[[]events.GameEvent] {
	return wrap(c, c.Momentum.Recent(gameID))
}

// ActiveValueBets lista as value bets vivas; gameID vazio = todas as partidas
func (c *Core) ActiveValueBets(gameID string) Snapshot[[]events.ValueBet] {
	return wrap(c, c.Detector.Active(gameID))
}

// SetPriors registra priors externos (confronto direto e forma recente) e
// invalida a previsão em cache da partida
func (c *Core) SetPriors(gameID string, p probability.Priors) {
	c.Priors.Set(gameID, p)
	c.Engine.Invalidate(gameID)
}

// Stats resume os contadores do núcleo
type Stats struct {
	Games       int            `json:"games"`
	Connections int            `json:"connections"`
	ValueBets   valuebet.Stats `json:"value_bets"`
}

func (c *Core) Stats() Snapshot[Stats] {
	return wrap(c, Stats{
		Games:       len(c.States.List()),
		Connections: c.Broker.Connections(),
		ValueBets:   c.Detector.Stats(),
	})
}
