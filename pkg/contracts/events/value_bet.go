package events

import "time"

// Motivos de desativação de um ValueBet
const (
	ReasonExpired    = "expired"
	ReasonOddsMoved  = "odds_moved"
	ReasonSuperseded = "superseded"
)

// ValueBet é uma aposta com edge positivo segundo o modelo
type ValueBet struct {
	ID            string    `json:"id"`
	GameID        string    `json:"game_id"`
	Sport         string    `json:"sport,omitempty"`
	Bookmaker     string    `json:"bookmaker"`
	BetType       BetType   `json:"bet_type"`
	Selection     string    `json:"selection"`
	Line          *float64  `json:"line,omitempty"`
	Odds          float64   `json:"odds"`
	FairOdds      float64   `json:"fair_odds"`
	TrueProb      float64   `json:"true_prob"`
	ImpliedProb   float64   `json:"implied_prob"`
	Edge          float64   `json:"edge"`
	ExpectedValue float64   `json:"expected_value"`
	Confidence    float64   `json:"confidence"`
	KellyFraction float64   `json:"kelly_fraction"`
	DetectedAt    time.Time `json:"detected_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IsActive      bool      `json:"is_active"`
	Reason        string    `json:"deactivation_reason,omitempty"`
}

// Key retorna a chave de registro (partida, casa, mercado, seleção)
func (v ValueBet) Key() QuoteKey {
	return QuoteKey{GameID: v.GameID, Bookmaker: v.Bookmaker, BetType: v.BetType, Selection: v.Selection}
}

// LiveAt indica se a aposta está ativa e não expirada no instante informado
func (v ValueBet) LiveAt(now time.Time) bool {
	return v.IsActive && now.Before(v.ExpiresAt)
}
