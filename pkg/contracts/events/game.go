package events

import "time"

// Esportes suportados pelas tabelas de classificação e de duração
const (
	SportNFL    = "NFL"
	SportNBA    = "NBA"
	SportMLB    = "MLB"
	SportNHL    = "NHL"
	SportSoccer = "SOCCER"
)

// Side identifica o lado de uma partida
type Side string

const (
	SideHome    Side = "home"
	SideAway    Side = "away"
	SideNeutral Side = "neutral"
)

// Score guarda o placar atual
type Score struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

// Diff retorna home - away
func (s Score) Diff() int { return s.Home - s.Away }

// Total retorna a soma dos pontos
func (s Score) Total() int { return s.Home + s.Away }

// GameState é o último estado conhecido de uma partida ao vivo.
// Publicado como snapshot imutável; nunca alterado depois de publicado.
type GameState struct {
	GameID      string    `json:"game_id"`
	Sport       string    `json:"sport"`
	HomeTeam    string    `json:"home_team"`
	AwayTeam    string    `json:"away_team"`
	Score       Score     `json:"score"`
	Clock       string    `json:"clock"` // "MM:SS" restante no período
	Period      int       `json:"period"`
	Possession  string    `json:"possession,omitempty"`
	Active      bool      `json:"active"`
	LastUpdated time.Time `json:"last_updated"`
}

// ScoreUpdate é o payload "score" da ingestão. Campos nulos não alteram o estado.
type ScoreUpdate struct {
	Sport       *string `json:"sport,omitempty"`
	HomeTeam    *string `json:"home_team,omitempty"`
	AwayTeam    *string `json:"away_team,omitempty"`
	HomeScore   *int    `json:"home_score,omitempty"`
	AwayScore   *int    `json:"away_score,omitempty"`
	Period      *int    `json:"period,omitempty"`
	Clock       *string `json:"clock,omitempty"`
	Possession  *string `json:"possession,omitempty"`
	Active      *bool   `json:"active,omitempty"`
	ScoringPlay string  `json:"scoring_play,omitempty"`
}
