package events

import (
	"math"
	"time"
)

// ProbabilityTolerance é a folga aceita na soma das probabilidades
const ProbabilityTolerance = 0.05

// Features é o snapshot de entradas usado numa previsão
type Features struct {
	ScoreDiff       int     `json:"score_diff"`
	TotalPoints     int     `json:"total_points"`
	TimeRemaining   float64 `json:"time_remaining_min"`
	TotalDuration   float64 `json:"total_duration_min"`
	Period          int     `json:"period"`
	Momentum        float64 `json:"momentum"`
	ScoringRateHome float64 `json:"scoring_rate_home"`
	ScoringRateAway float64 `json:"scoring_rate_away"`
	H2H             float64 `json:"h2h"`
	FormHome        float64 `json:"form_home"`
	FormAway        float64 `json:"form_away"`
	EventCount      int     `json:"event_count"`
}

// ElapsedFraction retorna a fração do jogo já disputada em [0,1]
func (f Features) ElapsedFraction() float64 {
	if f.TotalDuration <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, 1-f.TimeRemaining/f.TotalDuration))
}

// WinProbability é a distribuição de vitória de uma partida para uma versão de modelo
type WinProbability struct {
	GameID       string    `json:"game_id"`
	ModelVersion string    `json:"model_version"`
	HomeProb     float64   `json:"home_prob"`
	AwayProb     float64   `json:"away_prob"`
	DrawProb     *float64  `json:"draw_prob,omitempty"`
	Confidence   float64   `json:"confidence"`
	Fallback     bool      `json:"fallback"`
	Features     Features  `json:"features"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// Sum retorna home + away + draw
func (p WinProbability) Sum() float64 {
	s := p.HomeProb + p.AwayProb
	if p.DrawProb != nil {
		s += *p.DrawProb
	}
	return s
}

// For devolve a probabilidade do lado pedido
func (p WinProbability) For(side string) float64 {
	switch side {
	case SelectionHome:
		return p.HomeProb
	case SelectionAway:
		return p.AwayProb
	case SelectionDraw:
		if p.DrawProb != nil {
			return *p.DrawProb
		}
	}
	return 0
}
