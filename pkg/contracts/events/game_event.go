package events

import "time"

// EventType é a variante fechada de eventos de jogo
type EventType string

const (
	EventScore         EventType = "score"
	EventTurnover      EventType = "turnover"
	EventPenalty       EventType = "penalty"
	EventInjury        EventType = "injury"
	EventTimeout       EventType = "timeout"
	EventPeriodEnd     EventType = "period_end"
	EventHalfEnd       EventType = "half_end"
	EventGameEnd       EventType = "game_end"
	EventMomentumShift EventType = "momentum_shift" // só publicado, nunca entra no cálculo de momentum
)

// ParseEventType valida um tipo vindo de dados estruturados
func ParseEventType(s string) (EventType, bool) {
	switch t := EventType(s); t {
	case EventScore, EventTurnover, EventPenalty, EventInjury, EventTimeout,
		EventPeriodEnd, EventHalfEnd, EventGameEnd:
		return t, true
	}
	return "", false
}

// RawPlay é o payload "event" da ingestão (texto livre e/ou campos estruturados)
type RawPlay struct {
	Text    string         `json:"text"`
	Type    string         `json:"type,omitempty"`
	Team    string         `json:"team,omitempty"`
	Points  int            `json:"points,omitempty"`
	Clock   string         `json:"clock,omitempty"`
	Impact  float64        `json:"impact,omitempty"` // impacto já calculado pela origem, opcional
	Payload map[string]any `json:"payload,omitempty"`
}

// ProbabilityShift é a estimativa de deslocamento de probabilidade por lado
type ProbabilityShift struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// GameEvent é uma ocorrência tipada, append-only por partida
type GameEvent struct {
	GameID      string           `json:"game_id"`
	Type        EventType        `json:"type"`
	Team        Side             `json:"team,omitempty"`
	Points      int              `json:"points,omitempty"`
	NewScore    *Score           `json:"new_score,omitempty"`
	Description string           `json:"description,omitempty"`
	Payload     map[string]any   `json:"payload,omitempty"`
	Clock       string           `json:"clock,omitempty"`
	Period      int              `json:"period,omitempty"`
	Impact      float64          `json:"impact"`
	Shift       ProbabilityShift `json:"probability_shift"`
	Timestamp   time.Time        `json:"timestamp"`
}

// MomentumScore é recalculado por inteiro a cada evento
type MomentumScore struct {
	GameID     string    `json:"game_id"`
	Direction  Side      `json:"direction"`
	Strength   float64   `json:"strength"`
	EventCount int       `json:"event_count"`
	HomeImpact float64   `json:"home_impact"`
	AwayImpact float64   `json:"away_impact"`
	Shift      bool      `json:"shift"`
	ComputedAt time.Time `json:"computed_at"`
}

// Signed converte o momentum para [-1,1] (positivo favorece o mandante)
func (m MomentumScore) Signed() float64 {
	v := (m.Strength - 0.5) * 2
	if v < 0 {
		v = 0
	}
	switch m.Direction {
	case SideHome:
		return v
	case SideAway:
		return -v
	}
	return 0
}
