package momentum

import (
	"math"
	"strings"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// defaultWeight é o peso base de eventos sem entrada na tabela
const defaultWeight = 0.02

// Pesos base por esporte, indexados pelo subtipo do lance ou pelo tipo do evento
var baseWeights = map[string]map[string]float64{
	events.SportNFL: {
		"touchdown": 0.15, "field_goal": 0.08, "safety": 0.05,
		"interception": 0.12, "fumble": 0.10, "sack": 0.03,
		"penalty": 0.02, "timeout": 0.01, "injury": 0.05,
		"score": 0.10, "turnover": 0.10,
	},
	events.SportNBA: {
		"three_pointer": 0.02, "dunk": 0.02, "layup": 0.02, "steal": 0.03, "block": 0.02,
		"technical_foul": 0.03, "flagrant_foul": 0.05, "injury": 0.08, "timeout": 0.01,
		"score": 0.02, "turnover": 0.03,
	},
	events.SportMLB: {
		"home_run": 0.12, "triple": 0.08, "double": 0.05, "single": 0.03,
		"walk": 0.02, "strikeout": 0.02, "error": 0.04, "injury": 0.06,
		"run_scored": 0.08, "score": 0.08,
	},
	events.SportNHL: {
		"goal": 0.20, "assist": 0.08, "penalty": 0.05, "power_play": 0.08,
		"short_handed_goal": 0.15, "save": 0.01, "injury": 0.08,
		"score": 0.20, "giveaway": 0.03,
	},
	events.SportSoccer: {
		"goal": 0.25, "score": 0.25, "red_card": 0.15, "penalty": 0.04, "injury": 0.05,
	},
}

// timing aumenta o impacto nos períodos finais e reduz nos iniciais
type timing struct {
	latePeriod  int
	late        float64
	earlyPeriod int
	early       float64
}

var timingTable = map[string]timing{
	events.SportNFL: {latePeriod: 4, late: 1.5, earlyPeriod: 1, early: 0.8},
	events.SportNBA: {latePeriod: 4, late: 1.4, earlyPeriod: 2, early: 0.9},
	events.SportNHL: {latePeriod: 3, late: 1.3, earlyPeriod: 1, early: 0.9},
	events.SportMLB: {latePeriod: 8, late: 1.3, earlyPeriod: 3, early: 0.9},
}

// BaseWeight retorna o peso base do evento no esporte
func BaseWeight(sport string, ev events.GameEvent) float64 {
	table := baseWeights[strings.ToUpper(sport)]
	if play, _ := ev.Payload["play"].(string); play != "" {
		if w, ok := table[play]; ok {
			return w
		}
	}
	if w, ok := table[string(ev.Type)]; ok {
		return w
	}
	return defaultWeight
}

// ContextMultiplier favorece jogos equilibrados e penaliza goleadas.
// Pontuar perdendo vale mais.
func ContextMultiplier(ev events.GameEvent, st events.GameState) float64 {
	m := 1.0
	diff := st.Score.Diff()
	switch abs := int(math.Abs(float64(diff))); {
	case abs <= 3:
		m *= 1.5
	case abs <= 7:
		m *= 1.2
	case abs >= 21:
		m *= 0.5
	}
	if ev.Type == events.EventScore {
		if (ev.Team == events.SideHome && diff < 0) || (ev.Team == events.SideAway && diff > 0) {
			m *= 1.3
		}
	}
	return m
}

// TimingMultiplier escala o impacto conforme o período atual
func TimingMultiplier(st events.GameState) float64 {
	t, ok := timingTable[strings.ToUpper(st.Sport)]
	if !ok {
		return 1.0
	}
	switch {
	case st.Period >= t.latePeriod:
		return t.late
	case st.Period <= t.earlyPeriod:
		return t.early
	}
	return 1.0
}

// Impact = peso base × contexto × tempo, limitado a [0,1].
// st deve ser o estado anterior ao evento.
func Impact(ev events.GameEvent, st events.GameState) float64 {
	v := BaseWeight(st.Sport, ev) * ContextMultiplier(ev, st) * TimingMultiplier(st)
	return math.Max(0, math.Min(v, 1.0))
}

// Shift estima o deslocamento de probabilidade: score e turnover movem
// ±impacto para o lado que agiu; demais eventos não deslocam.
func Shift(ev events.GameEvent) events.ProbabilityShift {
	if ev.Type != events.EventScore && ev.Type != events.EventTurnover {
		return events.ProbabilityShift{}
	}
	switch ev.Team {
	case events.SideHome:
		return events.ProbabilityShift{Home: ev.Impact, Away: -ev.Impact}
	case events.SideAway:
		return events.ProbabilityShift{Home: -ev.Impact, Away: ev.Impact}
	}
	return events.ProbabilityShift{}
}

// Annotate preenche impacto e deslocamento; um impacto já informado pela
// origem é mantido.
func Annotate(ev *events.GameEvent, st events.GameState) {
	if ev.Impact <= 0 {
		ev.Impact = Impact(*ev, st)
	} else {
		ev.Impact = math.Min(ev.Impact, 1.0)
	}
	ev.Shift = Shift(*ev)
}
