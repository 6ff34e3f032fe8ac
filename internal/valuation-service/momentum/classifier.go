// Package momentum classifica lances brutos em eventos tipados, calcula o
// impacto de cada evento e mantém o sinal de momentum por partida.
package momentum

import (
	"strings"
	"time"

	"github.com/radieske/live-odds-core/pkg/contracts/events"
)

// rule associa palavras-chave a um tipo de evento. Play é o subtipo usado
// na tabela de pesos (ex.: "touchdown" dentro de "score").
type rule struct {
	Type     events.EventType
	Play     string
	Points   int
	Keywords []string
}

// Regras por esporte, avaliadas em ordem; a primeira que casar vence.
// Incluir um esporte é editar esta tabela.
var sportRules = map[string][]rule{
	events.SportNFL: {
		{Type: events.EventScore, Play: "touchdown", Points: 6, Keywords: []string{"touchdown"}},
		{Type: events.EventScore, Play: "field_goal", Points: 3, Keywords: []string{"field goal is good", "field goal good"}},
		{Type: events.EventScore, Play: "safety", Points: 2, Keywords: []string{"safety"}},
		{Type: events.EventTurnover, Play: "interception", Keywords: []string{"intercepted", "interception"}},
		{Type: events.EventTurnover, Play: "fumble", Keywords: []string{"fumble"}},
		{Type: events.EventPenalty, Play: "penalty", Keywords: []string{"penalty", "flag", "holding", "interference", "offside", "false start"}},
	},
	events.SportNBA: {
		{Type: events.EventScore, Play: "three_pointer", Points: 3, Keywords: []string{"three point", "3-pt", "three-pointer"}},
		{Type: events.EventScore, Play: "dunk", Points: 2, Keywords: []string{"dunk"}},
		{Type: events.EventScore, Play: "layup", Points: 2, Keywords: []string{"layup", "makes"}},
		{Type: events.EventTurnover, Play: "steal", Keywords: []string{"steal"}},
		{Type: events.EventTurnover, Play: "turnover", Keywords: []string{"turnover", "bad pass", "traveling"}},
		{Type: events.EventPenalty, Play: "flagrant_foul", Keywords: []string{"flagrant"}},
		{Type: events.EventPenalty, Play: "technical_foul", Keywords: []string{"technical"}},
		{Type: events.EventPenalty, Play: "foul", Keywords: []string{"foul"}},
	},
	events.SportMLB: {
		{Type: events.EventScore, Play: "home_run", Points: 1, Keywords: []string{"home run", "homers"}},
		{Type: events.EventScore, Play: "run_scored", Points: 1, Keywords: []string{"scores", "run scored"}},
		{Type: events.EventTurnover, Play: "error", Keywords: []string{"error", "double play"}},
	},
	events.SportNHL: {
		{Type: events.EventScore, Play: "short_handed_goal", Points: 1, Keywords: []string{"short-handed goal", "shorthanded goal"}},
		{Type: events.EventScore, Play: "goal", Points: 1, Keywords: []string{"goal"}},
		{Type: events.EventPenalty, Play: "penalty", Keywords: []string{"penalty", "minor", "major", "hooking", "tripping"}},
		{Type: events.EventTurnover, Play: "giveaway", Keywords: []string{"giveaway", "takeaway"}},
	},
	events.SportSoccer: {
		{Type: events.EventScore, Play: "goal", Points: 1, Keywords: []string{"goal"}},
		{Type: events.EventPenalty, Play: "red_card", Keywords: []string{"red card", "sent off"}},
		{Type: events.EventPenalty, Play: "penalty", Keywords: []string{"penalty", "yellow card", "foul", "offside"}},
	},
}

// Regras comuns a todos os esportes, avaliadas depois das específicas
var commonRules = []rule{
	{Type: events.EventGameEnd, Play: "game_end", Keywords: []string{"end of game", "final whistle", "game over"}},
	{Type: events.EventHalfEnd, Play: "half_end", Keywords: []string{"end of half", "end of 1st half", "halftime"}},
	{Type: events.EventPeriodEnd, Play: "period_end", Keywords: []string{"end of quarter", "end of period", "end of inning", "end of the"}},
	{Type: events.EventTurnover, Play: "turnover", Keywords: []string{"turnover", "recovered by"}},
	{Type: events.EventTimeout, Play: "timeout", Keywords: []string{"timeout", "time out"}},
	{Type: events.EventInjury, Play: "injury", Keywords: []string{"injury", "injured", "hurt", "down on the field"}},
	{Type: events.EventPenalty, Play: "penalty", Keywords: []string{"penalty", "foul", "flag"}},
}

func rulesFor(sport string) []rule {
	specific := sportRules[strings.ToUpper(sport)]
	out := make([]rule, 0, len(specific)+len(commonRules))
	out = append(out, specific...)
	return append(out, commonRules...)
}

// Classify converte o lance bruto num GameEvent. Lances não reconhecidos
// retornam (nil, false) e devem ser descartados pelo chamador.
func Classify(gameID string, raw events.RawPlay, st events.GameState, ts time.Time) (*events.GameEvent, bool) {
	rules := rulesFor(st.Sport)

	r, ok := matchStructured(raw.Type, rules)
	if !ok {
		r, ok = matchText(strings.ToLower(raw.Text), rules)
	}
	if !ok {
		return nil, false
	}

	ev := &events.GameEvent{
		GameID:      gameID,
		Type:        r.Type,
		Team:        resolveTeam(raw, st),
		Points:      raw.Points,
		Description: raw.Text,
		Payload:     map[string]any{"play": r.Play},
		Clock:       raw.Clock,
		Period:      st.Period,
		Impact:      raw.Impact,
		Timestamp:   ts,
	}
	for k, v := range raw.Payload {
		if k != "play" {
			ev.Payload[k] = v
		}
	}
	if ev.Clock == "" {
		ev.Clock = st.Clock
	}
	if ev.Type == events.EventScore && ev.Points == 0 {
		ev.Points = r.Points
	}
	return ev, true
}

// matchStructured aceita tanto o tipo fechado ("score") quanto o subtipo
// de uma regra do esporte ("touchdown")
func matchStructured(typ string, rules []rule) (rule, bool) {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if typ == "" {
		return rule{}, false
	}
	for _, r := range rules {
		if r.Play == typ {
			return r, true
		}
	}
	if et, ok := events.ParseEventType(typ); ok {
		return rule{Type: et, Play: string(et)}, true
	}
	return rule{}, false
}

func matchText(text string, rules []rule) (rule, bool) {
	if text == "" {
		return rule{}, false
	}
	for _, r := range rules {
		for _, kw := range r.Keywords {
			if strings.Contains(text, kw) {
				return r, true
			}
		}
	}
	return rule{}, false
}

// resolveTeam usa o campo estruturado e, na falta dele, o nome do time no texto
func resolveTeam(raw events.RawPlay, st events.GameState) events.Side {
	switch strings.ToLower(raw.Team) {
	case "home":
		return events.SideHome
	case "away":
		return events.SideAway
	}
	for _, src := range []string{raw.Team, raw.Text} {
		lc := strings.ToLower(src)
		if lc == "" {
			continue
		}
		if st.HomeTeam != "" && strings.Contains(lc, strings.ToLower(st.HomeTeam)) {
			return events.SideHome
		}
		if st.AwayTeam != "" && strings.Contains(lc, strings.ToLower(st.AwayTeam)) {
			return events.SideAway
		}
	}
	return events.SideNeutral
}

// ScoreEvents sintetiza eventos "score" a partir da mudança de placar entre
// dois estados; um evento por lado que pontuou.
func ScoreEvents(prev, next events.GameState, scoringPlay string, ts time.Time) []events.GameEvent {
	var out []events.GameEvent
	newScore := next.Score
	add := func(side events.Side, pts int) {
		out = append(out, events.GameEvent{
			GameID:      next.GameID,
			Type:        events.EventScore,
			Team:        side,
			Points:      pts,
			NewScore:    &newScore,
			Description: scoringPlay,
			Payload:     map[string]any{"play": "score"},
			Clock:       next.Clock,
			Period:      next.Period,
			Timestamp:   ts,
		})
	}
	if d := next.Score.Home - prev.Score.Home; d > 0 {
		add(events.SideHome, d)
	}
	if d := next.Score.Away - prev.Score.Away; d > 0 {
		add(events.SideAway, d)
	}
	return out
}
