package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/radieske/live-odds-core/internal/shared/metrics"
	"github.com/radieske/live-odds-core/internal/valuation-service/gamestate"
	"github.com/radieske/live-odds-core/internal/valuation-service/momentum"
	"github.com/radieske/live-odds-core/internal/valuation-service/oddstracker"
	"github.com/radieske/live-odds-core/pkg/contracts/events"
	"github.com/radieske/live-odds-core/pkg/contracts/topics"
)

// Ingest aplica uma mensagem da ingestão. Mutações da mesma partida são
// serializadas; falhas ficam isoladas na partida e nunca derrubam o chamador.
func (c *Core) Ingest(ctx context.Context, msg events.IngestMessage) (err error) {
	if msg.GameID == "" {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonDecode).Inc()
		return fmt.Errorf("%w: empty game id", ErrBadMessage)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = c.now()
	}

	unlock := c.locks.Lock(msg.GameID)
	defer unlock()

	defer func() {
		if r := recover(); r != nil {
			c.m.RejectedTotal.WithLabelValues(metrics.ReasonGameFault).Inc()
			c.log.Error("game processing panic",
				zap.String("game_id", msg.GameID),
				zap.String("kind", string(msg.Kind)),
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			err = fmt.Errorf("%w: game %s: %v", ErrGameFault, msg.GameID, r)
		}
	}()

	switch msg.Kind {
	case events.KindScore:
		err = c.ingestScore(msg)
	case events.KindEvent:
		err = c.ingestEvent(msg)
	case events.KindOdds:
		err = c.ingestOdds(msg)
	default:
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonDecode).Inc()
		return fmt.Errorf("%w: %q", ErrUnknownKind, msg.Kind)
	}
	if err == nil {
		c.m.IngestedTotal.WithLabelValues(string(msg.Kind)).Inc()
	}
	return err
}

func decode(msg events.IngestMessage, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrBadMessage, msg.Kind, err)
	}
	return nil
}

func (c *Core) ingestScore(msg events.IngestMessage) error {
	var upd events.ScoreUpdate
	if err := decode(msg, &upd); err != nil {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonDecode).Inc()
		return err
	}

	prev, prevErr := c.States.Get(msg.GameID)
	next, err := c.States.Upsert(msg.GameID, upd, msg.Timestamp)
	if err != nil {
		if errors.Is(err, gamestate.ErrOutOfOrder) {
			c.m.RejectedTotal.WithLabelValues(metrics.ReasonInputRejected).Inc()
		}
		return err
	}
	if c.sink != nil {
		c.sink.GameState(next)
	}

	var evs []events.GameEvent
	if prevErr == nil {
		evs = momentum.ScoreEvents(prev, next, upd.ScoringPlay, msg.Timestamp)
		if prev.Active && !next.Active {
			evs = append(evs, events.GameEvent{
				GameID:      msg.GameID,
				Type:        events.EventGameEnd,
				Team:        events.SideNeutral,
				NewScore:    &next.Score,
				Description: "game finished",
				Period:      next.Period,
				Clock:       next.Clock,
				Timestamp:   msg.Timestamp,
			})
		}
	}

	// impacto calculado contra o estado anterior ao lance
	for i := range evs {
		c.processEvent(&evs[i], prev)
	}
	// placar mudou: a previsão em cache não vale mais
	c.Engine.Invalidate(msg.GameID)
	c.refresh(next)
	return nil
}

func (c *Core) ingestEvent(msg events.IngestMessage) error {
	var raw events.RawPlay
	if err := decode(msg, &raw); err != nil {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonDecode).Inc()
		return err
	}

	st, err := c.States.Get(msg.GameID)
	if err != nil {
		st = events.GameState{GameID: msg.GameID}
	}

	ev, ok := momentum.Classify(msg.GameID, raw, st, msg.Timestamp)
	if !ok {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonUnclassifiable).Inc()
		c.log.Debug("unclassifiable play dropped", zap.String("game_id", msg.GameID), zap.String("text", raw.Text))
		return nil
	}

	if ev.Type == events.EventScore && err == nil {
		return c.applyScoringPlay(ev, st, msg)
	}

	if c.processEvent(ev, st) && err == nil {
		c.refresh(st)
	}
	return nil
}

// applyScoringPlay leva ao placar um lance "score" recebido como evento, para
// que a atualização de placar seguinte não sintetize o mesmo ponto de novo.
// Um lance cujo placar já está no estado foi contado por ScoreEvents e é descartado.
func (c *Core) applyScoringPlay(ev *events.GameEvent, prev events.GameState, msg events.IngestMessage) error {
	score, ok := scoreAfter(ev, prev.Score)
	if !ok {
		if c.processEvent(ev, prev) {
			c.refresh(prev)
		}
		return nil
	}
	if score == prev.Score {
		c.log.Debug("scoring play already applied",
			zap.String("game_id", ev.GameID),
			zap.Int("home", score.Home),
			zap.Int("away", score.Away),
		)
		return nil
	}

	next, err := c.States.Upsert(ev.GameID, events.ScoreUpdate{
		HomeScore: &score.Home,
		AwayScore: &score.Away,
	}, msg.Timestamp)
	if err != nil {
		if errors.Is(err, gamestate.ErrOutOfOrder) {
			c.m.RejectedTotal.WithLabelValues(metrics.ReasonInputRejected).Inc()
		}
		return err
	}
	if c.sink != nil {
		c.sink.GameState(next)
	}

	ev.NewScore = &next.Score
	c.processEvent(ev, prev)
	c.Engine.Invalidate(ev.GameID)
	c.refresh(next)
	return nil
}

// scoreAfter resolve o placar depois do lance: payload new_score quando
// presente, senão o placar anterior somado aos pontos do lado que marcou.
func scoreAfter(ev *events.GameEvent, prev events.Score) (events.Score, bool) {
	if raw, ok := ev.Payload["new_score"].(map[string]any); ok {
		home, hok := asInt(raw["home"])
		away, aok := asInt(raw["away"])
		if hok && aok && home >= 0 && away >= 0 {
			return events.Score{Home: home, Away: away}, true
		}
	}
	if ev.Points <= 0 {
		return prev, false
	}
	switch ev.Team {
	case events.SideHome:
		prev.Home += ev.Points
	case events.SideAway:
		prev.Away += ev.Points
	default:
		return prev, false
	}
	return prev, true
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), n == math.Trunc(n)
	case int:
		return n, true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// processEvent anota, registra no momentum, publica e invalida a previsão.
// Devolve true quando a previsão em cache foi invalidada.
func (c *Core) processEvent(ev *events.GameEvent, st events.GameState) bool {
	momentum.Annotate(ev, st)
	ms := c.Momentum.Observe(*ev)

	c.publish(events.MsgGameEvent, *ev, ev.Timestamp, topics.Game(ev.GameID), topics.Sport(st.Sport))

	if ms.Shift {
		shift := events.GameEvent{
			GameID:      ev.GameID,
			Type:        events.EventMomentumShift,
			Team:        ms.Direction,
			Description: fmt.Sprintf("momentum shift: %s", ms.Direction),
			Payload: map[string]any{
				"direction":   ms.Direction,
				"strength":    ms.Strength,
				"event_count": ms.EventCount,
			},
			Period:    ev.Period,
			Clock:     ev.Clock,
			Impact:    math.Min(1, math.Abs(ms.Strength-0.5)*2),
			Timestamp: ev.Timestamp,
		}
		c.publish(events.MsgGameEvent, shift, ev.Timestamp, topics.Game(ev.GameID), topics.Sport(st.Sport))
	}

	return c.Engine.ObserveEvent(*ev)
}

// refresh publica a previsão atual e reavalia as cotações da partida
func (c *Core) refresh(st events.GameState) {
	p, err := c.Engine.Predict(st.GameID)
	if err != nil {
		c.log.Debug("no prediction", zap.String("game_id", st.GameID), zap.Error(err))
		return
	}
	c.publishPrediction(st.Sport, p)

	// cotações vencidas já foram contadas como stale na chegada
	now := c.now()
	for _, q := range c.Odds.Quotes(st.GameID, "") {
		if c.cfg.MaxQuoteAge > 0 && now.Sub(q.Timestamp) > c.cfg.MaxQuoteAge {
			continue
		}
		c.Detector.Evaluate(q)
	}
}

func (c *Core) ingestOdds(msg events.IngestMessage) error {
	var q events.OddsQuote
	if err := decode(msg, &q); err != nil {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonDecode).Inc()
		return err
	}
	if q.GameID == "" {
		q.GameID = msg.GameID
	}
	if q.GameID != msg.GameID {
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonInputRejected).Inc()
		return fmt.Errorf("%w: quote for %s routed as %s", ErrBadMessage, q.GameID, msg.GameID)
	}
	if q.Timestamp.IsZero() {
		q.Timestamp = msg.Timestamp
	}
	if q.Sport == "" {
		if st, err := c.States.Get(q.GameID); err == nil {
			q.Sport = st.Sport
		}
	}

	mv, err := c.Odds.Record(q)
	switch {
	case errors.Is(err, oddstracker.ErrStaleQuote):
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonStaleRejected).Inc()
		c.log.Debug("stale quote dropped", zap.String("key", q.Key().String()))
		return err
	case err != nil:
		c.m.RejectedTotal.WithLabelValues(metrics.ReasonInputRejected).Inc()
		c.log.Warn("quote rejected", zap.String("game_id", q.GameID), zap.Error(err))
		return err
	}

	c.publish(events.MsgOddsUpdate, q, q.Timestamp,
		topics.Game(q.GameID), topics.Sport(q.Sport), topics.Bookmaker(q.Bookmaker))

	if mv != nil {
		c.m.LineMovementsTotal.Inc()
		c.publish(events.MsgLineMovement, *mv, mv.Timestamp,
			topics.Game(q.GameID), topics.Bookmaker(q.Bookmaker))
		if c.sink != nil {
			c.sink.LineMovement(*mv)
		}
	}

	c.Detector.Evaluate(q)
	return nil
}
